package tree

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Render writes an indented outline of the subtree rooted at id, one
// task per line:
//
//	- [open] Ship release (id=...)
//	  - [done] Tag commit (id=...) | DoD: tag pushed | closed: merged
func (idx *Index) Render(w io.Writer, id string) error {
	seq, err := idx.Subtree(id)
	if err != nil {
		return err
	}
	base, _ := idx.Depth(id)
	for task := range seq {
		depth, _ := idx.Depth(task.ID)

		var line strings.Builder
		line.WriteString(strings.Repeat("  ", depth-base))
		fmt.Fprintf(&line, "- [%s] %s (id=%s)", task.Status, task.Title, task.ID)
		if task.DefinitionOfDone != "" {
			fmt.Fprintf(&line, " | DoD: %s", task.DefinitionOfDone)
		}
		if task.Assignee != "" {
			fmt.Fprintf(&line, " | assignee: %s", task.Assignee)
		}
		if task.Deadline != nil {
			fmt.Fprintf(&line, " | deadline: %s", task.Deadline.Format(time.RFC3339))
		}
		if task.CloseReason != "" {
			fmt.Fprintf(&line, " | closed: %s", task.CloseReason)
		}
		line.WriteByte('\n')
		if _, err := io.WriteString(w, line.String()); err != nil {
			return err
		}
	}
	return nil
}
