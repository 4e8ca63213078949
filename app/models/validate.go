package models

import (
	"strings"

	"github.com/google/uuid"
)

// MaxTitleLength bounds task titles, in bytes.
const MaxTitleLength = 512

// NewID returns a fresh task id.
func NewID() string {
	return uuid.NewString()
}

// ValidateID rejects ids that are not canonical UUID strings.
func ValidateID(op, id string) error {
	if id == "" {
		return Errorf(ErrInvalidArgument, op, "", "task id is required")
	}
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.String() != id {
		return Errorf(ErrInvalidArgument, op, "", "malformed task id %q", id)
	}
	return nil
}

// ValidateTitle rejects blank or oversized titles.
func ValidateTitle(op, title string) error {
	if strings.TrimSpace(title) == "" {
		return Errorf(ErrInvalidArgument, op, "", "title must not be empty")
	}
	if len(title) > MaxTitleLength {
		return Errorf(ErrInvalidArgument, op, "", "title longer than %d bytes", MaxTitleLength)
	}
	return nil
}

// ValidateStatus rejects unrecognized statuses.
func ValidateStatus(op, id string, status Status) error {
	if !status.Valid() {
		return Errorf(ErrInvalidState, op, id, "unrecognized status %q", status)
	}
	return nil
}
