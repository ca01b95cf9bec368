// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package apperr defines the typed failures that cross the marketplace core
// boundary. Every concrete error unwraps to one of the sentinel kinds below so
// callers can branch with errors.Is and inspect details with errors.As.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation failed")
	ErrPersistence  = errors.New("persistence failure")
	ErrInvariant    = errors.New("invariant violation")

	// ErrConflict is returned by stores when an optimistic version check
	// fails. It never leaves the lifecycle service.
	ErrConflict = errors.New("concurrent modification")
)

// NotFoundError reports that an entity id has no record.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found with id: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// InvalidStateError reports an operation that is not legal in the task's
// current status.
type InvalidStateError struct {
	TaskID   string
	Op       string
	Actual   string
	Expected []string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s task %s: status must be %s, but was: %s",
		e.Op, e.TaskID, strings.Join(e.Expected, " or "), e.Actual)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// ForbiddenError reports an actor lacking authority over an entity.
type ForbiddenError struct {
	ActorID string
	Entity  string
	ID      string
	Reason  string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("user %s may not act on %s %s: %s", e.ActorID, e.Entity, e.ID, e.Reason)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// InvariantError reports a transition that would leave a task breaking a
// data-model invariant. It signals a defect in the transition, not bad input.
type InvariantError struct {
	TaskID    string
	Violation string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("task %s would break an invariant: %s", e.TaskID, e.Violation)
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a single-field ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: fmt.Sprintf(format, args...)}}}
}

// PersistenceError wraps a storage collaborator failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

// Unwrap exposes both the kind and the underlying driver error.
func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// Persistence wraps err as a PersistenceError. Errors that already carry a
// kind are returned unchanged; nil stays nil.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != "" {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// Kind returns a short label for the error's kind, or "" for untyped errors.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvariant):
		return "invariant"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return ""
	}
}
