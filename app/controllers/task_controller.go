package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"tasktree-go/app/models"
	"tasktree-go/app/services"
)

// TaskController handles HTTP requests for tasks.
type TaskController struct {
	Service *services.TaskService
	Logger  *slog.Logger
}

// NewTaskController creates a new TaskController.
func NewTaskController(service *services.TaskService, logger *slog.Logger) *TaskController {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TaskController{Service: service, Logger: logger}
}

type createTaskPayload struct {
	ParentID         string     `json:"parent_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	DefinitionOfDone string     `json:"definition_of_done"`
	Assignee         string     `json:"assignee"`
	Deadline         *time.Time `json:"deadline"`
}

type updateTaskPayload struct {
	Title            *string        `json:"title"`
	Description      *string        `json:"description"`
	DefinitionOfDone *string        `json:"definition_of_done"`
	Status           *models.Status `json:"status"`
	Assignee         *string        `json:"assignee"`
	Deadline         *time.Time     `json:"deadline"`
	ClearDeadline    bool           `json:"clear_deadline"`
}

type moveTaskPayload struct {
	ParentID string `json:"parent_id"`
	Position *int   `json:"position"`
}

type closeTaskPayload struct {
	Reason string `json:"reason"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// GetTasks handles GET /tasks. The optional root query parameter selects
// the subtree to list.
func (c *TaskController) GetTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := c.Service.ListSubtree(r.Context(), r.URL.Query().Get("root"))
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// SearchTasks handles GET /tasks/search?q=.
func (c *TaskController) SearchTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := c.Service.SearchTasks(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// CreateTask handles POST /tasks.
func (c *TaskController) CreateTask(w http.ResponseWriter, r *http.Request) {
	var payload createTaskPayload
	if !c.decode(w, r, &payload) {
		return
	}

	task, err := c.Service.CreateTask(r.Context(), services.CreateTaskRequest{
		ParentID:         payload.ParentID,
		Title:            payload.Title,
		Description:      payload.Description,
		DefinitionOfDone: payload.DefinitionOfDone,
		Assignee:         payload.Assignee,
		Deadline:         payload.Deadline,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// GetTaskByID handles GET /tasks/{taskID}.
func (c *TaskController) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	task, err := c.Service.GetTask(r.Context(), mux.Vars(r)["taskID"])
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// UpdateTask handles PATCH and PUT /tasks/{taskID}. Absent fields are left
// unchanged.
func (c *TaskController) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var payload updateTaskPayload
	if !c.decode(w, r, &payload) {
		return
	}

	task, err := c.Service.UpdateTask(r.Context(), mux.Vars(r)["taskID"], models.TaskPatch{
		Title:            payload.Title,
		Description:      payload.Description,
		DefinitionOfDone: payload.DefinitionOfDone,
		Status:           payload.Status,
		Assignee:         payload.Assignee,
		Deadline:         payload.Deadline,
		ClearDeadline:    payload.ClearDeadline,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// DeleteTask handles DELETE /tasks/{taskID}.
func (c *TaskController) DeleteTask(w http.ResponseWriter, r *http.Request) {
	removed, err := c.Service.DeleteTask(r.Context(), mux.Vars(r)["taskID"])
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// GetChildren handles GET /tasks/{taskID}/children.
func (c *TaskController) GetChildren(w http.ResponseWriter, r *http.Request) {
	children, err := c.Service.ListChildren(r.Context(), mux.Vars(r)["taskID"])
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}

// MoveTask handles POST /tasks/{taskID}/move.
func (c *TaskController) MoveTask(w http.ResponseWriter, r *http.Request) {
	var payload moveTaskPayload
	if !c.decode(w, r, &payload) {
		return
	}
	task, err := c.Service.MoveTask(r.Context(), mux.Vars(r)["taskID"], payload.ParentID, payload.Position)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// CloseTask handles POST /tasks/{taskID}/close. The body is optional.
func (c *TaskController) CloseTask(w http.ResponseWriter, r *http.Request) {
	var payload closeTaskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_argument", Message: "Invalid request payload"})
		return
	}
	task, err := c.Service.CloseTask(r.Context(), mux.Vars(r)["taskID"], payload.Reason)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// GetTree handles GET /tasks/{taskID}/tree and writes a plain text outline.
func (c *TaskController) GetTree(w http.ResponseWriter, r *http.Request) {
	outline, err := c.Service.RenderTree(r.Context(), mux.Vars(r)["taskID"])
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, outline)
}

// Health handles GET /healthz.
func (c *TaskController) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "root_id": c.Service.RootID()})
}

func (c *TaskController) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_argument", Message: "Invalid request payload"})
		return false
	}
	return true
}

func (c *TaskController) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	kind := "internal"
	if k := models.KindOf(err); k != nil {
		kind = k.Error()
	}
	if status >= http.StatusInternalServerError {
		c.Logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		c.Logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: kind, Message: err.Error()})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch models.KindOf(err) {
	case models.ErrNotFound:
		return http.StatusNotFound
	case models.ErrCycleDetected:
		return http.StatusConflict
	case models.ErrForbidden:
		return http.StatusForbidden
	case models.ErrInvalidState:
		return http.StatusUnprocessableEntity
	case models.ErrInvalidArgument:
		return http.StatusBadRequest
	case models.ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
