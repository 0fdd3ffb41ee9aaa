package mutate

import (
	"fmt"

	"teamboard/internal/model"
	"teamboard/internal/scope"
)

func requiredField(field string) error { return scope.PreconditionError{Field: field} }

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// CreateError is returned to the caller when the store rejects a create.
type CreateError struct {
	Kind model.Kind
	Err  error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("could not create %s: %v", e.Kind, e.Err)
}

func (e *CreateError) Unwrap() error { return e.Err }

// DeleteError is returned to the caller when the remote delete fails. The local removal is not
// undone.
type DeleteError struct {
	Kind model.Kind
	ID   string
	Err  error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("could not delete %s %s: %v", e.Kind, e.ID, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }

// MutationError describes a failed fire-and-forget write. It is only ever logged or handed to
// an observer hook; nothing is rolled back.
type MutationError struct {
	Kind  model.Kind
	ID    string
	Patch model.Patch
	Err   error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("update %s %s failed: %v", e.Kind, e.ID, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }
