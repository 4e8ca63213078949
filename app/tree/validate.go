package tree

import (
	"tasktree-go/app/models"
)

// Validate checks every structural invariant of the index and returns
// an ErrInvalidState error describing the first violation found.
func (idx *Index) Validate() error {
	root, ok := idx.nodes[idx.rootID]
	if !ok {
		return invalid(idx.rootID, "root is missing")
	}
	if !root.IsRoot() {
		return invalid(root.ID, "root has a parent")
	}

	for id, node := range idx.nodes {
		if node.ID != id {
			return invalid(id, "indexed under a different id (%s)", node.ID)
		}
		if err := models.ValidateTitle("validate", node.Title); err != nil {
			return invalid(id, "bad title")
		}
		if !node.Status.Valid() {
			return invalid(id, "unrecognized status %q", node.Status)
		}

		if node.ParentID == nil {
			if id != idx.rootID {
				return invalid(id, "second task without a parent")
			}
		} else {
			parent, ok := idx.nodes[*node.ParentID]
			if !ok {
				return invalid(id, "parent %s does not exist", *node.ParentID)
			}
			if count := countID(parent.Children, id); count != 1 {
				return invalid(id, "listed %d times by parent %s", count, parent.ID)
			}
		}

		for _, childID := range node.Children {
			child, ok := idx.nodes[childID]
			if !ok {
				return invalid(id, "child %s does not exist", childID)
			}
			if child.Parent() != id {
				return invalid(id, "child %s names parent %q", childID, child.Parent())
			}
		}
	}

	// Every task has exactly one parent that lists it exactly once, so
	// the only way left to break the tree is a cycle detached from the
	// root. Reachability rules that out.
	reached := 0
	stack := []string{idx.rootID}
	seen := make(map[string]struct{}, len(idx.nodes))
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, visited := seen[current]; visited {
			return invalid(current, "reached twice")
		}
		seen[current] = struct{}{}
		reached++
		stack = append(stack, idx.nodes[current].Children...)
	}
	if reached != len(idx.nodes) {
		return invalid(idx.rootID, "%d of %d tasks unreachable from the root", len(idx.nodes)-reached, len(idx.nodes))
	}
	return nil
}

func invalid(id, format string, args ...any) error {
	return models.Errorf(models.ErrInvalidState, "validate", id, format, args...)
}

func countID(ids []string, id string) int {
	count := 0
	for _, candidate := range ids {
		if candidate == id {
			count++
		}
	}
	return count
}
