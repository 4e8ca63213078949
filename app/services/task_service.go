package services

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tasktree-go/app/clock"
	"tasktree-go/app/models"
	"tasktree-go/app/store"
	"tasktree-go/app/tree"
)

// TaskService is the single entry point for task operations. It owns one
// tree index and mirrors every mutation to the store adapter before
// returning.
type TaskService struct {
	mu      sync.RWMutex
	index   *tree.Index
	adapter *store.Adapter
	clock   clock.Clock
	logger  *slog.Logger
}

// CreateTaskRequest describes a task to create. An empty ParentID means
// the root.
type CreateTaskRequest struct {
	ParentID         string
	Title            string
	Description      string
	DefinitionOfDone string
	Assignee         string
	Deadline         *time.Time
}

// NewTaskService creates a TaskService around an already loaded index.
// A nil clock means the real UTC clock; a nil logger discards output.
func NewTaskService(index *tree.Index, adapter *store.Adapter, clk clock.Clock, logger *slog.Logger) *TaskService {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TaskService{index: index, adapter: adapter, clock: clk, logger: logger}
}

// Open loads the tree held by adapter and returns a service over it.
func Open(ctx context.Context, adapter *store.Adapter, clk clock.Clock, logger *slog.Logger) (*TaskService, error) {
	if clk == nil {
		clk = clock.Real()
	}
	index, err := adapter.Load(ctx, clk.Now())
	if err != nil {
		return nil, err
	}
	return NewTaskService(index, adapter, clk, logger), nil
}

// RootID returns the id of the root task.
func (s *TaskService) RootID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.RootID()
}

// CreateTask adds a task under req.ParentID.
func (s *TaskService) CreateTask(ctx context.Context, req CreateTaskRequest) (models.Task, error) {
	const op = "create"
	if req.ParentID != "" {
		if err := models.ValidateID(op, req.ParentID); err != nil {
			return models.Task{}, err
		}
	}
	if err := models.ValidateTitle(op, req.Title); err != nil {
		return models.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parentID := req.ParentID
	if parentID == "" {
		parentID = s.index.RootID()
	}
	task, undo, err := s.index.Create(parentID, models.NewTask{
		Title:            req.Title,
		Description:      req.Description,
		DefinitionOfDone: req.DefinitionOfDone,
		Assignee:         req.Assignee,
		Deadline:         req.Deadline,
	}, s.clock.Now())
	if err != nil {
		return models.Task{}, err
	}

	parent, _ := s.index.Get(parentID)
	if err := s.adapter.PersistCreate(ctx, task, parent); err != nil {
		undo()
		s.logRollback(op, task.ID, err)
		return models.Task{}, err
	}
	s.logger.Debug("task created", "id", task.ID, "parent_id", parentID)
	return task, nil
}

// GetTask returns the task with the given id.
func (s *TaskService) GetTask(_ context.Context, id string) (models.Task, error) {
	if err := models.ValidateID("get", id); err != nil {
		return models.Task{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Get(id)
}

// UpdateTask applies patch to the task. An empty patch returns the task
// unchanged without writing.
func (s *TaskService) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	return s.update(ctx, "update", id, patch)
}

// CloseTask marks the task done and records reason.
func (s *TaskService) CloseTask(ctx context.Context, id, reason string) (models.Task, error) {
	return s.update(ctx, "close", id, models.TaskPatch{
		Status:      models.StatusPtr(models.StatusDone),
		CloseReason: models.StringPtr(reason),
	})
}

func (s *TaskService) update(ctx context.Context, op, id string, patch models.TaskPatch) (models.Task, error) {
	if err := models.ValidateID(op, id); err != nil {
		return models.Task{}, err
	}
	if patch.Title != nil {
		if err := models.ValidateTitle(op, *patch.Title); err != nil {
			return models.Task{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if patch.Empty() {
		return s.index.Get(id)
	}
	task, undo, err := s.index.Update(id, patch, s.clock.Now())
	if err != nil {
		return models.Task{}, err
	}
	if err := s.adapter.PersistUpdate(ctx, op, task); err != nil {
		undo()
		s.logRollback(op, id, err)
		return models.Task{}, err
	}
	s.logger.Debug("task updated", "op", op, "id", id, "status", task.Status)
	return task, nil
}

// MoveTask re-parents the task under newParentID. A nil position appends
// it to the end of the new parent's children.
func (s *TaskService) MoveTask(ctx context.Context, id, newParentID string, position *int) (models.Task, error) {
	const op = "move"
	if err := models.ValidateID(op, id); err != nil {
		return models.Task{}, err
	}
	if err := models.ValidateID(op, newParentID); err != nil {
		return models.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before, err := s.index.Get(id)
	if err != nil {
		return models.Task{}, err
	}
	task, undo, err := s.index.Move(id, newParentID, position, s.clock.Now())
	if err != nil {
		return models.Task{}, err
	}

	oldParentID := before.Parent()
	parents := make([]models.Task, 0, 2)
	oldParent, _ := s.index.Get(oldParentID)
	parents = append(parents, oldParent)
	if newParentID != oldParentID {
		newParent, _ := s.index.Get(newParentID)
		parents = append(parents, newParent)
	}
	if err := s.adapter.PersistMove(ctx, task, parents...); err != nil {
		undo()
		s.logRollback(op, id, err)
		return models.Task{}, err
	}
	s.logger.Debug("task moved", "id", id, "from", oldParentID, "to", newParentID)
	return task, nil
}

// DeleteTask removes the task and all of its descendants and reports how
// many tasks were removed.
func (s *TaskService) DeleteTask(ctx context.Context, id string) (int, error) {
	const op = "delete"
	if err := models.ValidateID(op, id); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed, undo, err := s.index.Delete(id, s.clock.Now())
	if err != nil {
		return 0, err
	}
	last := removed[len(removed)-1]
	parent, _ := s.index.Get(last.Parent())
	if err := s.adapter.PersistDelete(ctx, removed, parent); err != nil {
		undo()
		s.logRollback(op, id, err)
		return 0, err
	}
	s.logger.Debug("task deleted", "id", id, "removed", len(removed))
	return len(removed), nil
}

// ListSubtree returns the subtree rooted at id in pre-order, root first.
// An empty id lists the whole tree.
func (s *TaskService) ListSubtree(_ context.Context, id string) ([]models.Task, error) {
	if id != "" {
		if err := models.ValidateID("list", id); err != nil {
			return nil, err
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id == "" {
		id = s.index.RootID()
	}
	seq, err := s.index.Subtree(id)
	if err != nil {
		return nil, err
	}
	var tasks []models.Task
	for task := range seq {
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// ListChildren returns the direct children of id in order.
func (s *TaskService) ListChildren(_ context.Context, id string) ([]models.Task, error) {
	if err := models.ValidateID("children", id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, err := s.index.Children(id)
	if err != nil {
		return nil, err
	}
	children := make([]models.Task, 0, len(ids))
	for _, childID := range ids {
		child, err := s.index.Get(childID)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

// SearchTasks returns, in pre-order, every task whose title, description
// or definition of done contains query, ignoring case.
func (s *TaskService) SearchTasks(_ context.Context, query string) ([]models.Task, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, models.Errorf(models.ErrInvalidArgument, "search", "", "query must not be blank")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.index.Find(func(task models.Task) bool {
		return strings.Contains(strings.ToLower(task.Title), needle) ||
			strings.Contains(strings.ToLower(task.Description), needle) ||
			strings.Contains(strings.ToLower(task.DefinitionOfDone), needle)
	}), nil
}

// RenderTree returns an indented outline of the subtree rooted at id, or
// of the whole tree when id is empty.
func (s *TaskService) RenderTree(_ context.Context, id string) (string, error) {
	if id != "" {
		if err := models.ValidateID("render", id); err != nil {
			return "", err
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id == "" {
		id = s.index.RootID()
	}
	var b strings.Builder
	if err := s.index.Render(&b, id); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Close releases the backing store.
func (s *TaskService) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adapter.Close(ctx)
}

func (s *TaskService) logRollback(op, id string, err error) {
	s.logger.Warn("rolled back task mutation", "op", op, "id", id, "error", err)
}
