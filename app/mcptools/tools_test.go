package mcptools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktree-go/app/clock"
	"tasktree-go/app/services"
	"tasktree-go/app/store"
)

func connect(t *testing.T) (*mcp.ClientSession, *services.TaskService) {
	t.Helper()
	ctx := context.Background()

	adapter := store.NewAdapter(store.NewMemoryBackend())
	svc, err := services.Open(ctx, adapter, clock.Fake(time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC)), nil)
	require.NoError(t, err)

	server := NewServer(svc, "test", nil)
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session, svc
}

func call(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return result
}

func text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	content, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content is %T", result.Content[0])
	return content.Text
}

func decode[T any](t *testing.T, result *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, result.IsError, "tool error: %s", text(t, result))
	var out T
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &out))
	return out
}

func TestToolsAreListed(t *testing.T) {
	session, _ := connect(t)
	listed, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	var names []string
	for _, tool := range listed.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"create_task", "get_task", "update_task", "move_task", "delete_task",
		"list_tasks", "list_children", "close_task", "search_tasks", "show_tree", "ping",
	}, names)
}

func TestToolWorkflow(t *testing.T) {
	session, svc := connect(t)

	ping := decode[PingOutput](t, call(t, session, "ping", nil))
	assert.Equal(t, "ok", ping.Status)
	assert.Equal(t, svc.RootID(), ping.RootID)

	a := decode[TaskOutput](t, call(t, session, "create_task", map[string]any{
		"title":              "Ship release",
		"definition_of_done": "tag pushed",
		"deadline":           "2026-03-01",
	})).Task
	assert.Equal(t, svc.RootID(), a.ParentID)
	assert.Equal(t, "open", a.Status)
	assert.Equal(t, "2026-03-01T23:59:59Z", a.Deadline)

	b := decode[TaskOutput](t, call(t, session, "create_task", map[string]any{
		"parent_id": a.ID,
		"title":     "Write notes",
	})).Task

	got := decode[TaskOutput](t, call(t, session, "get_task", map[string]any{"id": b.ID})).Task
	assert.Equal(t, "Write notes", got.Title)

	updated := decode[TaskOutput](t, call(t, session, "update_task", map[string]any{
		"id":       b.ID,
		"status":   "in_progress",
		"assignee": "kim",
	})).Task
	assert.Equal(t, "in_progress", updated.Status)
	assert.Equal(t, "kim", updated.Assignee)

	listed := decode[TaskListOutput](t, call(t, session, "list_tasks", nil))
	assert.Equal(t, 3, listed.Count)

	children := decode[TaskListOutput](t, call(t, session, "list_children", map[string]any{"id": a.ID}))
	require.Len(t, children.Tasks, 1)
	assert.Equal(t, b.ID, children.Tasks[0].ID)

	tree := call(t, session, "show_tree", map[string]any{"root_id": a.ID})
	require.False(t, tree.IsError)
	assert.True(t, strings.HasPrefix(text(t, tree), "- [open] Ship release"))
	assert.Contains(t, text(t, tree), "  - [in_progress] Write notes")

	found := decode[TaskListOutput](t, call(t, session, "search_tasks", map[string]any{"query": "NOTES"}))
	require.Len(t, found.Tasks, 1)
	assert.Equal(t, b.ID, found.Tasks[0].ID)

	moved := decode[TaskOutput](t, call(t, session, "move_task", map[string]any{
		"id":        b.ID,
		"parent_id": svc.RootID(),
		"position":  0,
	})).Task
	assert.Equal(t, svc.RootID(), moved.ParentID)

	closed := decode[TaskOutput](t, call(t, session, "close_task", map[string]any{"id": b.ID, "reason": "merged"})).Task
	assert.Equal(t, "done", closed.Status)
	assert.Equal(t, "merged", closed.CloseReason)

	removed := decode[DeleteTaskOutput](t, call(t, session, "delete_task", map[string]any{"id": a.ID}))
	assert.Equal(t, 1, removed.Removed)
}

func TestToolErrorsCarryKind(t *testing.T) {
	session, svc := connect(t)
	a := decode[TaskOutput](t, call(t, session, "create_task", map[string]any{"title": "A"})).Task
	b := decode[TaskOutput](t, call(t, session, "create_task", map[string]any{"parent_id": a.ID, "title": "B"})).Task

	tests := []struct {
		name string
		tool string
		args map[string]any
		kind string
	}{
		{"cycle", "move_task", map[string]any{"id": a.ID, "parent_id": b.ID}, "cycle_detected"},
		{"root delete", "delete_task", map[string]any{"id": svc.RootID()}, "forbidden"},
		{"bad status", "update_task", map[string]any{"id": a.ID, "status": "bogus"}, "invalid_state"},
		{"blank title", "create_task", map[string]any{"title": ""}, "invalid_argument"},
		{"bad id", "get_task", map[string]any{"id": "nope"}, "invalid_argument"},
		{"bad deadline", "create_task", map[string]any{"title": "x", "deadline": "soon"}, "invalid_argument"},
		{"missing", "get_task", map[string]any{"id": "8c0b6f68-52e6-4d0e-9f1e-3d2c1b0a9f8e"}, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := call(t, session, tt.tool, tt.args)
			require.True(t, result.IsError)
			assert.True(t, strings.HasPrefix(text(t, result), tt.kind+":"), "got %q", text(t, result))
		})
	}
}

func TestParseDeadline(t *testing.T) {
	got, err := parseDeadline("create", "2026-03-01T17:00:00+02:00")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC), *got)

	got, err = parseDeadline("create", "")
	require.NoError(t, err)
	assert.Nil(t, got)
}
