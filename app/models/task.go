package models

import (
	"slices"
	"time"
)

// Status is the progress state of a task.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusBlocked    Status = "blocked"
)

// Statuses lists every recognized status in display order.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusDone, StatusBlocked}

// Valid reports whether s is one of the recognized statuses.
func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// RootTitle is the title given to a synthesized root task.
const RootTitle = "root"

// Task represents one node of the task tree. ParentID is nil only for
// the root. Children holds child ids in their significant order.
type Task struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	DefinitionOfDone string     `json:"definition_of_done,omitempty"`
	Status           Status     `json:"status"`
	Assignee         string     `json:"assignee,omitempty"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	CloseReason      string     `json:"close_reason,omitempty"`
	ParentID         *string    `json:"parent_id"`
	Children         []string   `json:"children"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// IsRoot reports whether t has no parent.
func (t Task) IsRoot() bool {
	return t.ParentID == nil
}

// Parent returns the parent id, or "" for the root.
func (t Task) Parent() string {
	if t.ParentID == nil {
		return ""
	}
	return *t.ParentID
}

// Clone returns a deep copy of t. Slices and pointers in the copy do
// not alias the original.
func (t Task) Clone() Task {
	c := t
	if t.ParentID != nil {
		parent := *t.ParentID
		c.ParentID = &parent
	}
	if t.Deadline != nil {
		deadline := *t.Deadline
		c.Deadline = &deadline
	}
	c.Children = slices.Clone(t.Children)
	if c.Children == nil {
		c.Children = []string{}
	}
	return c
}

// NewTask carries the caller-supplied fields of a task being created.
type NewTask struct {
	Title            string
	Description      string
	DefinitionOfDone string
	Assignee         string
	Deadline         *time.Time
}

// TaskPatch lists the fields an update may change. Nil fields are left
// untouched. ClearDeadline removes an existing deadline.
type TaskPatch struct {
	Title            *string
	Description      *string
	DefinitionOfDone *string
	Status           *Status
	Assignee         *string
	Deadline         *time.Time
	ClearDeadline    bool
	CloseReason      *string
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.DefinitionOfDone == nil &&
		p.Status == nil && p.Assignee == nil && p.Deadline == nil &&
		!p.ClearDeadline && p.CloseReason == nil
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// StatusPtr returns a pointer to s.
func StatusPtr(s Status) *Status {
	return &s
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}
