// Package store mirrors the in-memory task tree to a durable backend and
// reloads it on startup.
//
// A [Backend] is a document store keyed by task id: it can fetch one
// record, list every record, and apply a [Batch] of puts and deletes
// atomically. Three backends ship with the module: [MemoryBackend]
// (tests and throwaway sessions), [SQLiteBackend] (one CBOR document per
// row, via zombiezen.com/go/sqlite) and [Neo4jBackend] (one :Task node
// per task with a HAS_PARENT edge).
//
// The [Adapter] sits between the task service and a backend. Each of its
// Persist methods mirrors exactly one tree mutation as one batch, under
// a bounded timeout, and reports any failure as models.ErrUnavailable so
// the service can roll the in-memory mutation back.
package store

import (
	"context"
	"errors"

	"tasktree-go/app/models"
)

// ErrRecordNotFound is returned by Backend.Get for an unknown id.
var ErrRecordNotFound = errors.New("store: record not found")

// Batch is a set of writes applied atomically. Puts insert or replace
// whole records; Deletes remove records by id. Deleting an absent id is
// not an error.
type Batch struct {
	Puts    []models.Task
	Deletes []string
}

// Empty reports whether the batch writes nothing.
func (b Batch) Empty() bool {
	return len(b.Puts) == 0 && len(b.Deletes) == 0
}

// Backend is a durable key/document store for task records.
type Backend interface {
	// Get returns the record for id, or ErrRecordNotFound.
	Get(ctx context.Context, id string) (models.Task, error)

	// List returns every record, in no particular order.
	List(ctx context.Context) ([]models.Task, error)

	// Write applies the batch atomically: either every put and delete
	// is durable when Write returns nil, or none is.
	Write(ctx context.Context, batch Batch) error

	// Close releases the backend's resources.
	Close(ctx context.Context) error
}
