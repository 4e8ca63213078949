package mcptools

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"tasktree-go/app/models"
	"tasktree-go/app/services"
)

// ServerName is reported to MCP clients during initialization.
const ServerName = "tasktree"

type handlers struct {
	svc    *services.TaskService
	logger *slog.Logger
}

// NewServer returns an MCP server with every task tool registered.
func NewServer(svc *services.TaskService, version string, logger *slog.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil)
	Register(server, svc, logger)
	return server
}

// Register adds the task tools to server.
func Register(server *mcp.Server, svc *services.TaskService, logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &handlers{svc: svc, logger: logger}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_task",
		Description: "Create a task under a parent (the root when parent_id is empty). Returns the new task.",
	}, h.createTask)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_task",
		Description: "Fetch one task by id.",
	}, h.getTask)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_task",
		Description: "Change a task's title, description, definition of done, status, assignee or deadline. Omitted fields stay as they are.",
	}, h.updateTask)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "move_task",
		Description: "Re-parent a task, optionally at a position among the new siblings. Moving a task under itself or a descendant fails with cycle_detected.",
	}, h.moveTask)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_task",
		Description: "Delete a task and its whole subtree. The root cannot be deleted.",
	}, h.deleteTask)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_tasks",
		Description: "List a subtree in pre-order, its root first. Without root_id the whole tree is listed.",
	}, h.listTasks)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_children",
		Description: "List the direct children of a task in order.",
	}, h.listChildren)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "close_task",
		Description: "Mark a task done and record why.",
	}, h.closeTask)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_tasks",
		Description: "Find tasks whose title, description or definition of done contains the query.",
	}, h.searchTasks)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "show_tree",
		Description: "Render a subtree as an indented text outline.",
	}, h.showTree)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ping",
		Description: "Check that the task tree server is up.",
	}, h.ping)
}

func (h *handlers) createTask(ctx context.Context, req *mcp.CallToolRequest, args CreateTaskArgs) (*mcp.CallToolResult, TaskOutput, error) {
	deadline, err := parseDeadline("create", args.Deadline)
	if err != nil {
		return nil, TaskOutput{}, err
	}
	task, err := h.svc.CreateTask(ctx, services.CreateTaskRequest{
		ParentID:         args.ParentID,
		Title:            args.Title,
		Description:      args.Description,
		DefinitionOfDone: args.DefinitionOfDone,
		Assignee:         args.Assignee,
		Deadline:         deadline,
	})
	if err != nil {
		return nil, TaskOutput{}, h.fail("create_task", err)
	}
	return nil, TaskOutput{Task: viewOf(task)}, nil
}

func (h *handlers) getTask(ctx context.Context, req *mcp.CallToolRequest, args TaskIDArgs) (*mcp.CallToolResult, TaskOutput, error) {
	task, err := h.svc.GetTask(ctx, args.ID)
	if err != nil {
		return nil, TaskOutput{}, h.fail("get_task", err)
	}
	return nil, TaskOutput{Task: viewOf(task)}, nil
}

func (h *handlers) updateTask(ctx context.Context, req *mcp.CallToolRequest, args UpdateTaskArgs) (*mcp.CallToolResult, TaskOutput, error) {
	patch := models.TaskPatch{
		Title:            args.Title,
		Description:      args.Description,
		DefinitionOfDone: args.DefinitionOfDone,
		Assignee:         args.Assignee,
		ClearDeadline:    args.ClearDeadline,
	}
	if args.Status != nil {
		patch.Status = models.StatusPtr(models.Status(*args.Status))
	}
	if args.Deadline != nil {
		deadline, err := parseDeadline("update", *args.Deadline)
		if err != nil {
			return nil, TaskOutput{}, err
		}
		patch.Deadline = deadline
	}

	task, err := h.svc.UpdateTask(ctx, args.ID, patch)
	if err != nil {
		return nil, TaskOutput{}, h.fail("update_task", err)
	}
	return nil, TaskOutput{Task: viewOf(task)}, nil
}

func (h *handlers) moveTask(ctx context.Context, req *mcp.CallToolRequest, args MoveTaskArgs) (*mcp.CallToolResult, TaskOutput, error) {
	task, err := h.svc.MoveTask(ctx, args.ID, args.ParentID, args.Position)
	if err != nil {
		return nil, TaskOutput{}, h.fail("move_task", err)
	}
	return nil, TaskOutput{Task: viewOf(task)}, nil
}

func (h *handlers) deleteTask(ctx context.Context, req *mcp.CallToolRequest, args TaskIDArgs) (*mcp.CallToolResult, DeleteTaskOutput, error) {
	removed, err := h.svc.DeleteTask(ctx, args.ID)
	if err != nil {
		return nil, DeleteTaskOutput{}, h.fail("delete_task", err)
	}
	return nil, DeleteTaskOutput{Removed: removed}, nil
}

func (h *handlers) listTasks(ctx context.Context, req *mcp.CallToolRequest, args ListTasksArgs) (*mcp.CallToolResult, TaskListOutput, error) {
	tasks, err := h.svc.ListSubtree(ctx, args.RootID)
	if err != nil {
		return nil, TaskListOutput{}, h.fail("list_tasks", err)
	}
	return nil, TaskListOutput{Count: len(tasks), Tasks: viewsOf(tasks)}, nil
}

func (h *handlers) listChildren(ctx context.Context, req *mcp.CallToolRequest, args TaskIDArgs) (*mcp.CallToolResult, TaskListOutput, error) {
	tasks, err := h.svc.ListChildren(ctx, args.ID)
	if err != nil {
		return nil, TaskListOutput{}, h.fail("list_children", err)
	}
	return nil, TaskListOutput{Count: len(tasks), Tasks: viewsOf(tasks)}, nil
}

func (h *handlers) closeTask(ctx context.Context, req *mcp.CallToolRequest, args CloseTaskArgs) (*mcp.CallToolResult, TaskOutput, error) {
	task, err := h.svc.CloseTask(ctx, args.ID, args.Reason)
	if err != nil {
		return nil, TaskOutput{}, h.fail("close_task", err)
	}
	return nil, TaskOutput{Task: viewOf(task)}, nil
}

func (h *handlers) searchTasks(ctx context.Context, req *mcp.CallToolRequest, args SearchTasksArgs) (*mcp.CallToolResult, TaskListOutput, error) {
	tasks, err := h.svc.SearchTasks(ctx, args.Query)
	if err != nil {
		return nil, TaskListOutput{}, h.fail("search_tasks", err)
	}
	return nil, TaskListOutput{Count: len(tasks), Tasks: viewsOf(tasks)}, nil
}

func (h *handlers) showTree(ctx context.Context, req *mcp.CallToolRequest, args ListTasksArgs) (*mcp.CallToolResult, ShowTreeOutput, error) {
	outline, err := h.svc.RenderTree(ctx, args.RootID)
	if err != nil {
		return nil, ShowTreeOutput{}, h.fail("show_tree", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: outline}},
	}, ShowTreeOutput{Tree: outline}, nil
}

func (h *handlers) ping(ctx context.Context, req *mcp.CallToolRequest, _ PingArgs) (*mcp.CallToolResult, PingOutput, error) {
	return nil, PingOutput{Status: "ok", RootID: h.svc.RootID()}, nil
}

func (h *handlers) fail(tool string, err error) error {
	if models.KindOf(err) == models.ErrUnavailable {
		h.logger.Warn("tool failed", "tool", tool, "error", err)
	} else {
		h.logger.Debug("tool rejected", "tool", tool, "error", err)
	}
	return err
}

// parseDeadline accepts RFC 3339 timestamps and plain dates. A plain date
// means the end of that day in UTC.
func parseDeadline(op, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		t = t.Add(24*time.Hour - time.Second)
		return &t, nil
	}
	return nil, models.Errorf(models.ErrInvalidArgument, op, "", "deadline %q is neither RFC 3339 nor YYYY-MM-DD", raw)
}
