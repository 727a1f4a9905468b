package model

import (
	"fmt"

	"github.com/google/uuid"
)

// RunID identifies one invocation of the downloader (UUIDv7).
// Every composite persisted by that invocation is recorded under it.
type RunID string

// NewRunID generates a fresh UUIDv7 run identifier.
func NewRunID() (RunID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate run-id: %w", err)
	}
	return RunID(id.String()), nil
}

// Validate checks that the RunID is a valid UUIDv7.
func (r RunID) Validate() error {
	if r == "" {
		return &InvalidInputError{Field: "run-id", Reason: "cannot be empty"}
	}
	id, err := uuid.Parse(string(r))
	if err != nil {
		return &InvalidInputError{Field: "run-id", Value: string(r), Reason: "must be a valid UUID", Err: err}
	}
	if id.Version() != uuid.Version(7) {
		return &InvalidInputError{Field: "run-id", Value: string(r), Reason: fmt.Sprintf("must be a UUIDv7, got v%d", id.Version())}
	}
	return nil
}

// String returns the run ID as a string.
func (r RunID) String() string {
	return string(r)
}

// InvalidInputError reports a request parameter that cannot be used:
// an unparseable date, an unsupported grid level or band, and so on.
type InvalidInputError struct {
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e *InvalidInputError) Error() string {
	msg := fmt.Sprintf("invalid %s", e.Field)
	if e.Value != "" {
		msg += fmt.Sprintf(" %q", e.Value)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidInputError) Unwrap() error {
	return e.Err
}
