// Package tree provides the in-memory task tree index: a flat arena of
// tasks keyed by id, with parent and child links stored as ids.
//
// The index enforces the structural invariants of the tree (a single
// undeletable root, no cycles, bidirectional parent/child consistency,
// stable child order, no dangling references). Every mutation either
// succeeds completely or leaves the index untouched, and returns an
// [Undo] that reverts it exactly.
//
// # Concurrency
//
// Index is not safe for concurrent use. The task service wraps it with a
// read/write mutex.
package tree

import (
	"iter"
	"slices"
	"time"

	"tasktree-go/app/models"
)

// Undo reverts the mutation that returned it. It must be called at
// most once, and only before any later mutation of the same index.
type Undo func()

func noUndo() {}

// Index is the authoritative in-memory task tree. Construct with [New]
// or [Rebuild].
type Index struct {
	nodes  map[string]*models.Task
	rootID string
	newID  func() string
}

// Option configures an Index.
type Option func(*Index)

// WithIDGenerator replaces the UUID generator used by Create.
func WithIDGenerator(fn func() string) Option {
	return func(idx *Index) { idx.newID = fn }
}

// NewRoot returns a fresh root task stamped with now.
func NewRoot(now time.Time) models.Task {
	return models.Task{
		ID:        models.NewID(),
		Title:     models.RootTitle,
		Status:    models.StatusOpen,
		Children:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// New returns an index holding only root. The root must have no parent
// and no children.
func New(root models.Task, opts ...Option) (*Index, error) {
	if !root.IsRoot() || len(root.Children) > 0 {
		return nil, models.Errorf(models.ErrInvalidState, "new", root.ID, "root must have no parent and no children")
	}
	return Rebuild([]models.Task{root}, opts...)
}

// Rebuild reconstructs an index from a flat list of task records, as
// returned by a full scan of the backing store. Records are copied.
// Rebuild fails with ErrInvalidState if the records do not form a valid
// tree.
func Rebuild(records []models.Task, opts ...Option) (*Index, error) {
	idx := &Index{
		nodes: make(map[string]*models.Task, len(records)),
		newID: models.NewID,
	}
	for _, opt := range opts {
		opt(idx)
	}

	for _, record := range records {
		if _, dup := idx.nodes[record.ID]; dup {
			return nil, models.Errorf(models.ErrInvalidState, "rebuild", record.ID, "duplicate task id")
		}
		task := record.Clone()
		idx.nodes[task.ID] = &task
		if task.IsRoot() {
			if idx.rootID != "" {
				return nil, models.Errorf(models.ErrInvalidState, "rebuild", task.ID, "second root (first is %s)", idx.rootID)
			}
			idx.rootID = task.ID
		}
	}
	if idx.rootID == "" {
		return nil, models.Errorf(models.ErrInvalidState, "rebuild", "", "no root task")
	}
	if err := idx.Validate(); err != nil {
		return nil, err
	}
	return idx, nil
}

// RootID returns the id of the root task.
func (idx *Index) RootID() string {
	return idx.rootID
}

// Root returns a copy of the root task.
func (idx *Index) Root() models.Task {
	return idx.nodes[idx.rootID].Clone()
}

// Len returns the number of tasks, root included.
func (idx *Index) Len() int {
	return len(idx.nodes)
}

// Has reports whether id exists.
func (idx *Index) Has(id string) bool {
	_, ok := idx.nodes[id]
	return ok
}

// Get returns a copy of the task with the given id.
func (idx *Index) Get(id string) (models.Task, error) {
	node, ok := idx.nodes[id]
	if !ok {
		return models.Task{}, models.NotFound("get", id)
	}
	return node.Clone(), nil
}

// Children returns the ordered child ids of id.
func (idx *Index) Children(id string) ([]string, error) {
	node, ok := idx.nodes[id]
	if !ok {
		return nil, models.NotFound("children", id)
	}
	return slices.Clone(node.Children), nil
}

// Subtree returns a pre-order sequence of the subtree rooted at id, id
// first. The sequence is lazy and restartable: each range over it walks
// the index as it is at that moment. Yielded tasks are copies.
func (idx *Index) Subtree(id string) (iter.Seq[models.Task], error) {
	if _, ok := idx.nodes[id]; !ok {
		return nil, models.NotFound("subtree", id)
	}
	return func(yield func(models.Task) bool) {
		seen := make(map[string]struct{})
		stack := []string{id}
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			node, ok := idx.nodes[current]
			if !ok {
				continue
			}
			if _, visited := seen[current]; visited {
				continue
			}
			seen[current] = struct{}{}
			if !yield(node.Clone()) {
				return
			}
			for i := len(node.Children) - 1; i >= 0; i-- {
				stack = append(stack, node.Children[i])
			}
		}
	}, nil
}

// Ancestors returns the ids from the parent of id up to and including
// the root. The root has no ancestors.
func (idx *Index) Ancestors(id string) ([]string, error) {
	node, ok := idx.nodes[id]
	if !ok {
		return nil, models.NotFound("ancestors", id)
	}
	var ancestors []string
	for node.ParentID != nil && len(ancestors) <= len(idx.nodes) {
		parentID := *node.ParentID
		ancestors = append(ancestors, parentID)
		node, ok = idx.nodes[parentID]
		if !ok {
			break
		}
	}
	return ancestors, nil
}

// Depth returns the number of edges between id and the root.
func (idx *Index) Depth(id string) (int, error) {
	ancestors, err := idx.Ancestors(id)
	if err != nil {
		return 0, err
	}
	return len(ancestors), nil
}

// isSelfOrDescendant reports whether candidate is id or lies below it.
// It walks candidate's ancestor chain, which is bounded by tree depth.
func (idx *Index) isSelfOrDescendant(candidate, id string) bool {
	current := candidate
	for steps := 0; steps <= len(idx.nodes); steps++ {
		if current == id {
			return true
		}
		node, ok := idx.nodes[current]
		if !ok || node.ParentID == nil {
			return false
		}
		current = *node.ParentID
	}
	return false
}

// Find returns, in pre-order from the root, every task match accepts.
func (idx *Index) Find(match func(models.Task) bool) []models.Task {
	seq, _ := idx.Subtree(idx.rootID)
	var found []models.Task
	for task := range seq {
		if match(task) {
			found = append(found, task)
		}
	}
	return found
}

// checkpoint records the current state of ids, including their absence,
// and returns an Undo restoring exactly that state.
func (idx *Index) checkpoint(ids ...string) Undo {
	saved := make(map[string]*models.Task, len(ids))
	for _, id := range ids {
		if node, ok := idx.nodes[id]; ok {
			clone := node.Clone()
			saved[id] = &clone
		} else {
			saved[id] = nil
		}
	}
	return func() {
		for id, task := range saved {
			if task == nil {
				delete(idx.nodes, id)
				continue
			}
			restored := task.Clone()
			idx.nodes[id] = &restored
		}
	}
}
