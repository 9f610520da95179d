package core

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrNotFound           = errors.New("not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUnavailable        = errors.New("repository unavailable")
)

// Reason is the machine-readable cause of a failed precondition.
type Reason string

const (
	AlreadyAssigned        Reason = "AlreadyAssigned"
	AlreadyVerified        Reason = "AlreadyVerified"
	ContentUnchanged       Reason = "ContentUnchanged"
	EmptyNotes             Reason = "EmptyNotes"
	InsufficientReferences Reason = "InsufficientReferences"
	UnknownReferences      Reason = "UnknownReferences"
	UnverifiedReferences   Reason = "UnverifiedReferences"
)

// PreconditionError is returned if a domain rule is violated.
type PreconditionError struct {
	Reason  Reason
	Message string
}

func (e *PreconditionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v: %s", ErrPreconditionFailed, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", ErrPreconditionFailed, e.Reason, e.Message)
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPreconditionFailed
}

func precondition(reason Reason, format string, args ...interface{}) error {
	return &PreconditionError{
		Reason:  reason,
		Message: fmt.Sprintf(format, args...),
	}
}

// ReasonOf returns the precondition reason contained in err, or the empty string.
func ReasonOf(err error) Reason {
	var pe *PreconditionError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return ""
}

// Retryable returns whether a client may repeat the request unchanged.
// After ErrConflict, the client should read the article again.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrUnavailable)
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// unavailable maps timeouts to ErrUnavailable, so they can be told apart from conflicts.
func unavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrUnavailable) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
