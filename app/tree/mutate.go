package tree

import (
	"slices"
	"time"

	"tasktree-go/app/models"
)

// Create attaches a new task as the last child of parentID and returns
// it. The parent's UpdatedAt is bumped to now.
func (idx *Index) Create(parentID string, fields models.NewTask, now time.Time) (models.Task, Undo, error) {
	parent, ok := idx.nodes[parentID]
	if !ok {
		return models.Task{}, nil, models.NotFound("create", parentID)
	}
	if err := models.ValidateTitle("create", fields.Title); err != nil {
		return models.Task{}, nil, err
	}

	id := idx.newID()
	if _, taken := idx.nodes[id]; taken {
		return models.Task{}, nil, models.Errorf(models.ErrInvalidState, "create", id, "generated id already in use")
	}

	undo := idx.checkpoint(parentID, id)

	task := models.Task{
		ID:               id,
		Title:            fields.Title,
		Description:      fields.Description,
		DefinitionOfDone: fields.DefinitionOfDone,
		Status:           models.StatusOpen,
		Assignee:         fields.Assignee,
		ParentID:         models.StringPtr(parentID),
		Children:         []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if fields.Deadline != nil {
		deadline := *fields.Deadline
		task.Deadline = &deadline
	}
	idx.nodes[id] = &task
	parent.Children = append(parent.Children, id)
	parent.UpdatedAt = now

	return task.Clone(), undo, nil
}

// Update applies patch to id in place. An empty patch is a no-op that
// returns the current task.
func (idx *Index) Update(id string, patch models.TaskPatch, now time.Time) (models.Task, Undo, error) {
	node, ok := idx.nodes[id]
	if !ok {
		return models.Task{}, nil, models.NotFound("update", id)
	}
	if patch.Status != nil {
		if err := models.ValidateStatus("update", id, *patch.Status); err != nil {
			return models.Task{}, nil, err
		}
	}
	if patch.Title != nil {
		if err := models.ValidateTitle("update", *patch.Title); err != nil {
			return models.Task{}, nil, err
		}
	}
	if patch.Empty() {
		return node.Clone(), noUndo, nil
	}

	undo := idx.checkpoint(id)

	if patch.Title != nil {
		node.Title = *patch.Title
	}
	if patch.Description != nil {
		node.Description = *patch.Description
	}
	if patch.DefinitionOfDone != nil {
		node.DefinitionOfDone = *patch.DefinitionOfDone
	}
	if patch.Status != nil {
		node.Status = *patch.Status
	}
	if patch.Assignee != nil {
		node.Assignee = *patch.Assignee
	}
	if patch.ClearDeadline {
		node.Deadline = nil
	}
	if patch.Deadline != nil {
		deadline := *patch.Deadline
		node.Deadline = &deadline
	}
	if patch.CloseReason != nil {
		node.CloseReason = *patch.CloseReason
	}
	node.UpdatedAt = now

	return node.Clone(), undo, nil
}

// Move re-parents id under newParentID at position in the new parent's
// child list (nil means last). Position counts entries with id already
// removed, so moving within the same parent reorders. Move fails with
// ErrCycleDetected, leaving the index untouched, if newParentID is id
// or one of its descendants.
func (idx *Index) Move(id, newParentID string, position *int, now time.Time) (models.Task, Undo, error) {
	node, ok := idx.nodes[id]
	if !ok {
		return models.Task{}, nil, models.NotFound("move", id)
	}
	newParent, ok := idx.nodes[newParentID]
	if !ok {
		return models.Task{}, nil, models.NotFound("move", newParentID)
	}
	if idx.isSelfOrDescendant(newParentID, id) {
		return models.Task{}, nil, models.Errorf(models.ErrCycleDetected, "move", id, "%s is the task itself or one of its descendants", newParentID)
	}

	// The root is an ancestor of every task, so the cycle check above
	// already rejected any move of the root.
	oldParentID := *node.ParentID

	destination := newParent.Children
	if oldParentID == newParentID {
		destination = removeID(slices.Clone(destination), id)
	}
	insertAt := len(destination)
	if position != nil {
		if *position < 0 || *position > len(destination) {
			return models.Task{}, nil, models.Errorf(models.ErrInvalidArgument, "move", id, "position %d outside [0, %d]", *position, len(destination))
		}
		insertAt = *position
	}

	undo := idx.checkpoint(id, oldParentID, newParentID)

	oldParent := idx.nodes[oldParentID]
	oldParent.Children = removeID(oldParent.Children, id)
	oldParent.UpdatedAt = now

	newParent.Children = slices.Insert(newParent.Children, insertAt, id)
	newParent.UpdatedAt = now

	node.ParentID = models.StringPtr(newParentID)
	node.UpdatedAt = now

	return node.Clone(), undo, nil
}

// Delete removes id and its entire subtree. The removed tasks are
// returned in post-order (every task before its parent, id last). The
// root cannot be deleted.
func (idx *Index) Delete(id string, now time.Time) ([]models.Task, Undo, error) {
	node, ok := idx.nodes[id]
	if !ok {
		return nil, nil, models.NotFound("delete", id)
	}
	if node.IsRoot() {
		return nil, nil, models.Errorf(models.ErrForbidden, "delete", id, "the root task cannot be deleted")
	}
	parentID := *node.ParentID

	order := idx.postOrder(id)
	undo := idx.checkpoint(append(slices.Clone(order), parentID)...)

	removed := make([]models.Task, 0, len(order))
	for _, removedID := range order {
		removed = append(removed, idx.nodes[removedID].Clone())
		delete(idx.nodes, removedID)
	}

	parent := idx.nodes[parentID]
	parent.Children = removeID(parent.Children, id)
	parent.UpdatedAt = now

	return removed, undo, nil
}

// postOrder lists the subtree rooted at id in post-order using an
// explicit stack, so deep trees do not grow the call stack.
func (idx *Index) postOrder(id string) []string {
	type frame struct {
		id   string
		next int
	}
	var order []string
	stack := []frame{{id: id}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		children := idx.nodes[top.id].Children
		if top.next < len(children) {
			child := children[top.next]
			top.next++
			stack = append(stack, frame{id: child})
			continue
		}
		order = append(order, top.id)
		stack = stack[:len(stack)-1]
	}
	return order
}

func removeID(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(candidate string) bool { return candidate == id })
}
