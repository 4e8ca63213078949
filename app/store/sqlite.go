package store

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"tasktree-go/app/codec"
	"tasktree-go/app/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id         TEXT PRIMARY KEY,
	parent_id  TEXT,
	document   BLOB NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS tasks_parent_id ON tasks(parent_id);
`

// SQLiteConfig holds the parameters for opening a SQLite backend.
type SQLiteConfig struct {
	// Path is the database file. The parent directory must exist; the
	// file is created if missing.
	Path string

	// PoolSize is the number of pooled connections. Zero or negative
	// means max(runtime.NumCPU(), 4).
	PoolSize int

	// Logger receives pool lifecycle messages. Nil discards them.
	Logger *slog.Logger
}

// SQLiteBackend stores each task as a CBOR document in a single table.
// Safe for concurrent use; each call borrows its own connection.
type SQLiteBackend struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// OpenSQLite opens (creating if needed) the database at cfg.Path and
// ensures the schema exists. Every pooled connection runs with WAL
// journaling, synchronous=NORMAL and a five second busy timeout.
func OpenSQLite(ctx context.Context, cfg SQLiteConfig) (*SQLiteBackend, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite store: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = max(runtime.NumCPU(), 4)
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareSQLiteConn,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: opening %s: %w", cfg.Path, err)
	}

	backend := &SQLiteBackend{pool: pool, logger: logger, path: cfg.Path}
	if err := backend.migrate(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	logger.Info("sqlite store opened", "path", cfg.Path, "pool_size", poolSize)
	return backend, nil
}

func prepareSQLiteConn(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=OFF",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlite store: %s: %w", pragma, err)
		}
	}
	return nil
}

func (s *SQLiteBackend) migrate(ctx context.Context) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlite store: migrate: %w", err)
	}
	defer s.pool.Put(conn)

	if err := sqlitex.ExecuteScript(conn, sqliteSchema, nil); err != nil {
		return fmt.Errorf("sqlite store: creating schema: %w", err)
	}
	return nil
}

// Get implements Backend.
func (s *SQLiteBackend) Get(ctx context.Context, id string) (models.Task, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return models.Task{}, fmt.Errorf("sqlite store: get: %w", err)
	}
	defer s.pool.Put(conn)

	var (
		task  models.Task
		found bool
	)
	err = sqlitex.Execute(conn, `SELECT document FROM tasks WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []any{id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			decoded, err := decodeDocumentColumn(stmt, 0)
			if err != nil {
				return fmt.Errorf("decoding task %s: %w", id, err)
			}
			task, found = decoded, true
			return nil
		},
	})
	if err != nil {
		return models.Task{}, fmt.Errorf("sqlite store: get %s: %w", id, err)
	}
	if !found {
		return models.Task{}, ErrRecordNotFound
	}
	return task, nil
}

// List implements Backend.
func (s *SQLiteBackend) List(ctx context.Context) ([]models.Task, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: list: %w", err)
	}
	defer s.pool.Put(conn)

	var tasks []models.Task
	err = sqlitex.Execute(conn, `SELECT id, document FROM tasks`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			task, err := decodeDocumentColumn(stmt, 1)
			if err != nil {
				return fmt.Errorf("decoding task %s: %w", stmt.ColumnText(0), err)
			}
			tasks = append(tasks, task)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: list: %w", err)
	}
	return tasks, nil
}

// Write implements Backend. The batch runs in one IMMEDIATE transaction.
func (s *SQLiteBackend) Write(ctx context.Context, batch Batch) (err error) {
	if batch.Empty() {
		return nil
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlite store: write: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("sqlite store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	for _, id := range batch.Deletes {
		if err = sqlitex.Execute(conn, `DELETE FROM tasks WHERE id = ?`, &sqlitex.ExecOptions{
			Args: []any{id},
		}); err != nil {
			return fmt.Errorf("sqlite store: delete %s: %w", id, err)
		}
	}

	for _, task := range batch.Puts {
		document, encodeErr := codec.EncodeTask(task)
		if encodeErr != nil {
			err = fmt.Errorf("sqlite store: encoding %s: %w", task.ID, encodeErr)
			return err
		}
		var parentID any
		if task.ParentID != nil {
			parentID = *task.ParentID
		}
		if err = sqlitex.Execute(conn, `
			INSERT INTO tasks (id, parent_id, document, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				parent_id = excluded.parent_id,
				document = excluded.document,
				updated_at = excluded.updated_at`,
			&sqlitex.ExecOptions{
				Args: []any{task.ID, parentID, document, task.UpdatedAt.UTC().Format(time.RFC3339Nano)},
			}); err != nil {
			return fmt.Errorf("sqlite store: put %s: %w", task.ID, err)
		}
	}
	return nil
}

// Close implements Backend. Blocks until borrowed connections return.
func (s *SQLiteBackend) Close(context.Context) error {
	if err := s.pool.Close(); err != nil {
		s.logger.Error("sqlite store close error", "path", s.path, "error", err)
		return fmt.Errorf("sqlite store: closing %s: %w", s.path, err)
	}
	s.logger.Info("sqlite store closed", "path", s.path)
	return nil
}

func decodeDocumentColumn(stmt *sqlite.Stmt, column int) (models.Task, error) {
	document := make([]byte, stmt.ColumnLen(column))
	stmt.ColumnBytes(column, document)
	return codec.DecodeTask(document)
}
