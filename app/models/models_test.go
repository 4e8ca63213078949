package models

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusValid(t *testing.T) {
	for _, status := range Statuses {
		assert.True(t, status.Valid(), status)
	}
	assert.False(t, Status("bogus").Valid())
	assert.False(t, Status("").Valid())
	assert.False(t, Status("OPEN").Valid())
}

func TestCloneDoesNotAlias(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	original := Task{
		ID:       NewID(),
		Title:    "write docs",
		ParentID: StringPtr("parent"),
		Children: []string{"a", "b"},
		Deadline: &deadline,
	}

	clone := original.Clone()
	clone.Children[0] = "changed"
	*clone.ParentID = "other"
	*clone.Deadline = deadline.Add(time.Hour)

	assert.Equal(t, []string{"a", "b"}, original.Children)
	assert.Equal(t, "parent", *original.ParentID)
	assert.Equal(t, deadline, *original.Deadline)
}

func TestCloneNormalizesNilChildren(t *testing.T) {
	clone := Task{ID: NewID()}.Clone()
	require.NotNil(t, clone.Children)
	assert.Empty(t, clone.Children)
}

func TestIsRootAndParent(t *testing.T) {
	root := Task{ID: NewID()}
	assert.True(t, root.IsRoot())
	assert.Equal(t, "", root.Parent())

	child := Task{ID: NewID(), ParentID: StringPtr(root.ID)}
	assert.False(t, child.IsRoot())
	assert.Equal(t, root.ID, child.Parent())
}

func TestTaskPatchEmpty(t *testing.T) {
	assert.True(t, TaskPatch{}.Empty())
	assert.False(t, TaskPatch{Title: StringPtr("x")}.Empty())
	assert.False(t, TaskPatch{ClearDeadline: true}.Empty())
}

func TestValidateID(t *testing.T) {
	require.NoError(t, ValidateID("get", NewID()))

	cases := []string{
		"",
		"not-a-uuid",
		"{6ba7b810-9dad-11d1-80b4-00c04fd430c8}",
		"urn:uuid:6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		"6BA7B810-9DAD-11D1-80B4-00C04FD430C8",
	}
	for _, id := range cases {
		err := ValidateID("get", id)
		assert.ErrorIs(t, err, ErrInvalidArgument, "id %q", id)
	}
}

func TestValidateTitle(t *testing.T) {
	require.NoError(t, ValidateTitle("create", "A"))
	assert.ErrorIs(t, ValidateTitle("create", ""), ErrInvalidArgument)
	assert.ErrorIs(t, ValidateTitle("create", "   \t"), ErrInvalidArgument)
	assert.ErrorIs(t, ValidateTitle("create", strings.Repeat("x", MaxTitleLength+1)), ErrInvalidArgument)
}

func TestValidateStatus(t *testing.T) {
	require.NoError(t, ValidateStatus("update", "id", StatusBlocked))
	assert.ErrorIs(t, ValidateStatus("update", "id", "bogus"), ErrInvalidState)
}

func TestTaskErrorMessageAndKinds(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable("create", "abc", cause)

	assert.Equal(t, "unavailable: create abc: backing store: connection refused", err.Error())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrUnavailable, KindOf(err))

	wrapped := fmt.Errorf("service: %w", NotFound("get", "abc"))
	assert.Equal(t, ErrNotFound, KindOf(wrapped))
	assert.Nil(t, KindOf(errors.New("plain")))

	var taskErr *TaskError
	require.ErrorAs(t, wrapped, &taskErr)
	assert.Equal(t, "get", taskErr.Op)
}
