package memory

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every error for an absent or soft-deleted memory.
	ErrNotFound = errors.New("memory not found")

	// ErrInvalidOperation is matched by errors for operations a memory's
	// state or decay policy forbids.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrInvalidRequest is returned for malformed input, such as an unknown
	// decay policy.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrBackendUnavailable classifies every other failure. The service
	// never returns it directly; see KindOf.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// NotFoundError reports that a memory does not exist or was soft-deleted.
// The two cases are deliberately indistinguishable.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Memory '%s' not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// InvalidOperationError reports a rejected state transition. Reason is
// meant for humans and is returned verbatim by Error.
type InvalidOperationError struct {
	ID     string
	Reason string
}

func (e *InvalidOperationError) Error() string {
	return e.Reason
}

func (e *InvalidOperationError) Is(target error) bool {
	return target == ErrInvalidOperation
}

// Kind classifies an error for presentation adapters.
type Kind string

const (
	KindNone               Kind = ""
	KindNotFound           Kind = "not_found"
	KindInvalidOperation   Kind = "invalid_operation"
	KindInvalidRequest     Kind = "invalid_request"
	KindBackendUnavailable Kind = "backend_unavailable"
)

// KindOf classifies err. Anything the service did not raise itself is a
// backend failure.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidOperation):
		return KindInvalidOperation
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	default:
		return KindBackendUnavailable
	}
}
