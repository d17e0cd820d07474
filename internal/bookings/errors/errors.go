package errors

import (
	"agenda/pkg/model"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	ErrInvalidTransition = errors.New("status transition not allowed")

	ErrTransitionTooEarly = errors.New("status transition not allowed before the booking starts")

	ErrTransitionTooLate = errors.New("status transition not allowed after the booking starts")

	ErrStartInPast = errors.New("booking start is in the past")

	// ErrStaleStatus means the stored status changed between read and update.
	ErrStaleStatus = errors.New("booking status changed concurrently")
)

// RejectionError carries the critical conflicts that blocked an admission.
type RejectionError struct {
	Conflicts []model.Conflict
}

func (e *RejectionError) Error() string {
	types := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		types = append(types, string(c.Type))
	}
	return "booking rejected: " + strings.Join(types, ", ")
}

// RepositoryError wraps a storage failure. Admission fails closed on it.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s failed: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

func Repository(op string, err error) error {
	if err == nil {
		return nil
	}
	var repoErr *RepositoryError
	if errors.As(err, &repoErr) {
		return err
	}
	return &RepositoryError{Op: op, Err: err}
}
