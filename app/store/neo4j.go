package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"tasktree-go/app/models"
)

const (
	cypherConstraint = "CREATE CONSTRAINT task_id_unique IF NOT EXISTS " +
		"FOR (t:Task) REQUIRE t.id IS UNIQUE"

	cypherGet = "MATCH (t:Task {id: $id}) RETURN t"

	cypherList = "MATCH (t:Task) RETURN t"

	cypherDelete = "UNWIND $ids AS id " +
		"MATCH (t:Task {id: id}) " +
		"DETACH DELETE t"

	cypherMerge = "UNWIND $rows AS row " +
		"MERGE (t:Task {id: row.id}) " +
		"SET t = row"

	cypherRelink = "UNWIND $rows AS row " +
		"MATCH (t:Task {id: row.id}) " +
		"OPTIONAL MATCH (t)-[old:HAS_PARENT]->(:Task) " +
		"DELETE old " +
		"WITH DISTINCT t, row " +
		"WHERE row.parent_id IS NOT NULL " +
		"MATCH (p:Task {id: row.parent_id}) " +
		"CREATE (t)-[:HAS_PARENT]->(p)"
)

// Neo4jBackend keeps each task as a :Task node. Node properties carry the
// whole record, including the ordered child list; a HAS_PARENT edge
// points from every non-root task to its parent so the graph can be
// queried directly.
type Neo4jBackend struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewNeo4jBackend verifies connectivity and makes sure the uniqueness
// constraint on Task.id exists. The backend takes ownership of driver and
// closes it in Close. An empty database selects the server default.
func NewNeo4jBackend(ctx context.Context, driver neo4j.DriverWithContext, database string, logger *slog.Logger) (*Neo4jBackend, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4j store: connectivity: %w", err)
	}
	backend := &Neo4jBackend{driver: driver, database: database, logger: logger}

	session := backend.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, cypherConstraint, nil)
		return nil, err
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j store: creating constraint: %w", err)
	}

	logger.Info("neo4j store opened", "database", database)
	return backend, nil
}

func (n *Neo4jBackend) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return n.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: n.database})
}

// Get implements Backend.
func (n *Neo4jBackend) Get(ctx context.Context, id string) (models.Task, error) {
	tasks, err := n.read(ctx, cypherGet, map[string]any{"id": id})
	if err != nil {
		return models.Task{}, fmt.Errorf("neo4j store: get %s: %w", id, err)
	}
	if len(tasks) == 0 {
		return models.Task{}, ErrRecordNotFound
	}
	return tasks[0], nil
}

// List implements Backend.
func (n *Neo4jBackend) List(ctx context.Context) ([]models.Task, error) {
	tasks, err := n.read(ctx, cypherList, nil)
	if err != nil {
		return nil, fmt.Errorf("neo4j store: list: %w", err)
	}
	return tasks, nil
}

func (n *Neo4jBackend) read(ctx context.Context, query string, params map[string]any) ([]models.Task, error) {
	session := n.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}

		var tasks []models.Task
		for res.Next(ctx) {
			value, ok := res.Record().Get("t")
			if !ok {
				return nil, fmt.Errorf("record has no node")
			}
			node, ok := value.(neo4j.Node)
			if !ok {
				return nil, fmt.Errorf("unexpected value %T", value)
			}
			task, err := taskFromProps(node.Props)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return tasks, nil
	})
	if err != nil {
		return nil, err
	}
	tasks, _ := result.([]models.Task)
	return tasks, nil
}

// Write implements Backend. Deletes, node upserts and edge re-pointing all
// run inside one managed write transaction.
func (n *Neo4jBackend) Write(ctx context.Context, batch Batch) error {
	if batch.Empty() {
		return nil
	}
	rows := make([]map[string]any, 0, len(batch.Puts))
	for _, task := range batch.Puts {
		rows = append(rows, propsFromTask(task))
	}

	session := n.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(batch.Deletes) > 0 {
			if _, err := tx.Run(ctx, cypherDelete, map[string]any{"ids": batch.Deletes}); err != nil {
				return nil, err
			}
		}
		if len(rows) == 0 {
			return nil, nil
		}
		// Nodes first so edges can point at parents written in the same batch.
		if _, err := tx.Run(ctx, cypherMerge, map[string]any{"rows": rows}); err != nil {
			return nil, err
		}
		_, err := tx.Run(ctx, cypherRelink, map[string]any{"rows": rows})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("neo4j store: write: %w", err)
	}
	return nil
}

// Close implements Backend.
func (n *Neo4jBackend) Close(ctx context.Context) error {
	if err := n.driver.Close(ctx); err != nil {
		n.logger.Error("neo4j store close error", "error", err)
		return fmt.Errorf("neo4j store: close: %w", err)
	}
	n.logger.Info("neo4j store closed")
	return nil
}

// propsFromTask flattens a task into Neo4j property values. Timestamps are
// stored as RFC 3339 strings with nanoseconds; absent optionals are null.
func propsFromTask(task models.Task) map[string]any {
	props := map[string]any{
		"id":                 task.ID,
		"title":              task.Title,
		"description":        task.Description,
		"definition_of_done": task.DefinitionOfDone,
		"status":             string(task.Status),
		"assignee":           task.Assignee,
		"close_reason":       task.CloseReason,
		"children":           append([]string{}, task.Children...),
		"created_at":         task.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":         task.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"parent_id":          nil,
		"deadline":           nil,
	}
	if task.ParentID != nil {
		props["parent_id"] = *task.ParentID
	}
	if task.Deadline != nil {
		props["deadline"] = task.Deadline.UTC().Format(time.RFC3339Nano)
	}
	return props
}

func taskFromProps(props map[string]any) (models.Task, error) {
	var task models.Task
	var err error

	str := func(key string) string {
		if err != nil {
			return ""
		}
		value, ok := props[key]
		if !ok || value == nil {
			return ""
		}
		s, ok := value.(string)
		if !ok {
			err = fmt.Errorf("property %s: want string, got %T", key, value)
		}
		return s
	}
	stamp := func(key string) *time.Time {
		raw := str(key)
		if raw == "" || err != nil {
			return nil
		}
		parsed, parseErr := time.Parse(time.RFC3339Nano, raw)
		if parseErr != nil {
			err = fmt.Errorf("property %s: %w", key, parseErr)
			return nil
		}
		return &parsed
	}

	task.ID = str("id")
	task.Title = str("title")
	task.Description = str("description")
	task.DefinitionOfDone = str("definition_of_done")
	task.Status = models.Status(str("status"))
	task.Assignee = str("assignee")
	task.CloseReason = str("close_reason")
	if parent := str("parent_id"); parent != "" {
		task.ParentID = &parent
	}
	task.Deadline = stamp("deadline")
	if created := stamp("created_at"); created != nil {
		task.CreatedAt = *created
	}
	if updated := stamp("updated_at"); updated != nil {
		task.UpdatedAt = *updated
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("task %s: %w", task.ID, err)
	}

	task.Children = []string{}
	switch children := props["children"].(type) {
	case nil:
	case []any:
		for _, child := range children {
			id, ok := child.(string)
			if !ok {
				return models.Task{}, fmt.Errorf("task %s: child id: want string, got %T", task.ID, child)
			}
			task.Children = append(task.Children, id)
		}
	case []string:
		task.Children = append(task.Children, children...)
	default:
		return models.Task{}, fmt.Errorf("task %s: property children: unexpected %T", task.ID, children)
	}
	return task, nil
}
