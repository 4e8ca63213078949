// Package mcptools exposes the task service as MCP tools so an agent can
// plan and track work as a tree over stdio.
//
// Every tool handler validates its arguments, calls one TaskService
// operation and returns a typed output. A failed operation comes back as a
// tool error whose text starts with the error kind, for example
// "not_found: get 3f2a...: task not found".
package mcptools

import (
	"time"

	"tasktree-go/app/models"
)

// TaskView is the wire form of a task. Timestamps are RFC 3339 strings.
type TaskView struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description,omitempty"`
	DefinitionOfDone string   `json:"definition_of_done,omitempty"`
	Status           string   `json:"status"`
	Assignee         string   `json:"assignee,omitempty"`
	Deadline         string   `json:"deadline,omitempty"`
	CloseReason      string   `json:"close_reason,omitempty"`
	ParentID         string   `json:"parent_id,omitempty"`
	Children         []string `json:"children"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

func viewOf(task models.Task) TaskView {
	view := TaskView{
		ID:               task.ID,
		Title:            task.Title,
		Description:      task.Description,
		DefinitionOfDone: task.DefinitionOfDone,
		Status:           string(task.Status),
		Assignee:         task.Assignee,
		CloseReason:      task.CloseReason,
		ParentID:         task.Parent(),
		Children:         task.Children,
		CreatedAt:        task.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:        task.UpdatedAt.Format(time.RFC3339Nano),
	}
	if view.Children == nil {
		view.Children = []string{}
	}
	if task.Deadline != nil {
		view.Deadline = task.Deadline.Format(time.RFC3339)
	}
	return view
}

func viewsOf(tasks []models.Task) []TaskView {
	views := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, viewOf(task))
	}
	return views
}

// CreateTaskArgs is the input for the create_task tool.
type CreateTaskArgs struct {
	ParentID         string `json:"parent_id,omitempty" jsonschema:"Parent task id. Empty creates the task under the root."`
	Title            string `json:"title" jsonschema:"Short task title"`
	Description      string `json:"description,omitempty" jsonschema:"Longer description of the work"`
	DefinitionOfDone string `json:"definition_of_done,omitempty" jsonschema:"What must be true for the task to count as done"`
	Assignee         string `json:"assignee,omitempty" jsonschema:"Who owns the task"`
	Deadline         string `json:"deadline,omitempty" jsonschema:"Due date as RFC 3339 (2026-03-01T17:00:00Z) or a plain date (2026-03-01)"`
}

// TaskIDArgs is the input for tools that address a single task.
type TaskIDArgs struct {
	ID string `json:"id" jsonschema:"Task id"`
}

// UpdateTaskArgs is the input for the update_task tool. Omitted fields are
// left unchanged.
type UpdateTaskArgs struct {
	ID               string  `json:"id" jsonschema:"Task id"`
	Title            *string `json:"title,omitempty" jsonschema:"New title"`
	Description      *string `json:"description,omitempty" jsonschema:"New description"`
	DefinitionOfDone *string `json:"definition_of_done,omitempty" jsonschema:"New definition of done"`
	Status           *string `json:"status,omitempty" jsonschema:"One of open, in_progress, done, blocked"`
	Assignee         *string `json:"assignee,omitempty" jsonschema:"New assignee"`
	Deadline         *string `json:"deadline,omitempty" jsonschema:"New deadline (RFC 3339 or plain date)"`
	ClearDeadline    bool    `json:"clear_deadline,omitempty" jsonschema:"Remove the current deadline"`
}

// MoveTaskArgs is the input for the move_task tool.
type MoveTaskArgs struct {
	ID       string `json:"id" jsonschema:"Task to move"`
	ParentID string `json:"parent_id" jsonschema:"New parent task id"`
	Position *int   `json:"position,omitempty" jsonschema:"Zero-based index among the new parent's children. Omit to append."`
}

// CloseTaskArgs is the input for the close_task tool.
type CloseTaskArgs struct {
	ID     string `json:"id" jsonschema:"Task id"`
	Reason string `json:"reason,omitempty" jsonschema:"Why the task is closed"`
}

// ListTasksArgs is the input for list_tasks and show_tree.
type ListTasksArgs struct {
	RootID string `json:"root_id,omitempty" jsonschema:"Subtree root. Empty means the whole tree."`
}

// SearchTasksArgs is the input for the search_tasks tool.
type SearchTasksArgs struct {
	Query string `json:"query" jsonschema:"Case-insensitive text to look for in titles, descriptions and definitions of done"`
}

// PingArgs is the empty input for the ping tool.
type PingArgs struct{}

// TaskOutput wraps a single task.
type TaskOutput struct {
	Task TaskView `json:"task"`
}

// TaskListOutput wraps a list of tasks in pre-order.
type TaskListOutput struct {
	Count int        `json:"count"`
	Tasks []TaskView `json:"tasks"`
}

// DeleteTaskOutput reports how many tasks a delete removed.
type DeleteTaskOutput struct {
	Removed int `json:"removed"`
}

// ShowTreeOutput is a text outline of a subtree.
type ShowTreeOutput struct {
	Tree string `json:"tree"`
}

// PingOutput reports liveness and the root id.
type PingOutput struct {
	Status string `json:"status"`
	RootID string `json:"root_id"`
}
