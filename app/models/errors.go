package models

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the tree, store and service
// layers wraps exactly one of these.
var (
	ErrNotFound        = errors.New("not_found")
	ErrCycleDetected   = errors.New("cycle_detected")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidState    = errors.New("invalid_state")
	ErrInvalidArgument = errors.New("invalid_argument")
	ErrUnavailable     = errors.New("unavailable")
)

var kinds = []error{
	ErrNotFound,
	ErrCycleDetected,
	ErrForbidden,
	ErrInvalidState,
	ErrInvalidArgument,
	ErrUnavailable,
}

// TaskError describes a failed task operation.
type TaskError struct {
	Kind error  // one of the Err* kinds
	Op   string // operation name, e.g. "move"
	ID   string // task the operation targeted, if any
	Msg  string
	Err  error // underlying cause, if any
}

func (e *TaskError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.ID != "" {
		msg += " " + e.ID
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *TaskError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Errorf builds a TaskError of the given kind.
func Errorf(kind error, op, id, format string, args ...any) error {
	return &TaskError{Kind: kind, Op: op, ID: id, Msg: fmt.Sprintf(format, args...)}
}

// NotFound reports that id does not exist.
func NotFound(op, id string) error {
	return &TaskError{Kind: ErrNotFound, Op: op, ID: id, Msg: "task not found"}
}

// Unavailable wraps a backing store failure.
func Unavailable(op, id string, err error) error {
	return &TaskError{Kind: ErrUnavailable, Op: op, ID: id, Msg: "backing store", Err: err}
}

// KindOf returns the kind wrapped by err, or nil if err carries none.
func KindOf(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
