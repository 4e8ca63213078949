package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tasktree-go/app/models"
	"tasktree-go/app/tree"
)

// DefaultTimeout bounds every backend call made by an Adapter.
const DefaultTimeout = 5 * time.Second

// Adapter mirrors tree mutations to a Backend.
type Adapter struct {
	backend Backend
	timeout time.Duration
	logger  *slog.Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithTimeout sets the per-call deadline. Non-positive values keep the
// default.
func WithTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(logger *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAdapter wraps backend.
func NewAdapter(backend Backend, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		backend: backend,
		timeout: DefaultTimeout,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Load reads every record and rebuilds the tree. An empty backend gets a
// fresh root stamped with now, which is persisted before Load returns.
// Records that do not form a valid tree fail with models.ErrInvalidState;
// backend failures with models.ErrUnavailable.
func (a *Adapter) Load(ctx context.Context, now time.Time, opts ...tree.Option) (*tree.Index, error) {
	callCtx, cancel := a.callContext(ctx)
	defer cancel()

	records, err := a.backend.List(callCtx)
	if err != nil {
		a.logger.Error("loading tasks failed", "error", err)
		return nil, models.Unavailable("load", "", err)
	}

	if len(records) == 0 {
		root := tree.NewRoot(now)
		if err := a.persist(ctx, "load", root.ID, Batch{Puts: []models.Task{root}}); err != nil {
			return nil, err
		}
		a.logger.Info("initialized empty store", "root_id", root.ID)
		return tree.New(root, opts...)
	}

	index, err := tree.Rebuild(records, opts...)
	if err != nil {
		a.logger.Error("stored tasks do not form a tree", "records", len(records), "error", err)
		return nil, err
	}
	a.logger.Info("loaded tasks", "records", len(records), "root_id", index.RootID())
	return index, nil
}

// PersistCreate writes a new task together with its updated parent.
func (a *Adapter) PersistCreate(ctx context.Context, task, parent models.Task) error {
	return a.persist(ctx, "create", task.ID, Batch{Puts: []models.Task{task, parent}})
}

// PersistUpdate rewrites one task.
func (a *Adapter) PersistUpdate(ctx context.Context, op string, task models.Task) error {
	return a.persist(ctx, op, task.ID, Batch{Puts: []models.Task{task}})
}

// PersistMove writes a moved task and its old and new parents. When the
// parents are the same record it is passed once.
func (a *Adapter) PersistMove(ctx context.Context, task models.Task, parents ...models.Task) error {
	puts := append([]models.Task{task}, parents...)
	return a.persist(ctx, "move", task.ID, Batch{Puts: puts})
}

// PersistDelete removes every task in removed and rewrites the parent
// that lost the subtree root.
func (a *Adapter) PersistDelete(ctx context.Context, removed []models.Task, parent models.Task) error {
	ids := make([]string, 0, len(removed))
	for _, task := range removed {
		ids = append(ids, task.ID)
	}
	id := ""
	if len(ids) > 0 {
		id = ids[len(ids)-1]
	}
	return a.persist(ctx, "delete", id, Batch{Puts: []models.Task{parent}, Deletes: ids})
}

// Close closes the backend.
func (a *Adapter) Close(ctx context.Context) error {
	return a.backend.Close(ctx)
}

func (a *Adapter) persist(ctx context.Context, op, id string, batch Batch) error {
	callCtx, cancel := a.callContext(ctx)
	defer cancel()

	err := a.backend.Write(callCtx, batch)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		a.logger.Error("backing store timed out", "op", op, "id", id, "timeout", a.timeout)
	} else {
		a.logger.Error("backing store write failed", "op", op, "id", id, "error", err)
	}
	return models.Unavailable(op, id, err)
}

// callContext ignores the caller's cancellation; only the adapter timeout
// ends a backend call.
func (a *Adapter) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
}
