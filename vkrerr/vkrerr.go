// Package vkrerr defines the error kinds shared by every engine core
// package. Operations that the source expresses as a bool-plus-out-parameter
// return (bool, error) or (T, error) here, with the error's Kind recoverable
// via As.
package vkrerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies one of the engine's error categories. Kinds are compared
// by value, never by wrapped message text.
type Kind uint8

const (
	// InvalidParameter marks a caller-supplied argument that violates an
	// operation's precondition (bad size, misaligned request, unknown id).
	InvalidParameter Kind = iota + 1
	// OutOfMemory marks an allocation that exceeded a reserve or commit limit.
	OutOfMemory
	// ResourceNotFound marks a lookup against a name or handle that does
	// not resolve to a live resource.
	ResourceNotFound
	// ResourceCreationFailed marks a backend allocation failure.
	ResourceCreationFailed
	// FileNotFound marks a missing file on a load path.
	FileNotFound
	// BackendError marks a failure surfaced by the external GPU/backend
	// collaborator.
	BackendError
	// NotInitialized marks use of a system before its required setup step.
	NotInitialized
)

func (k Kind) String() string {
	switch k {
	case InvalidParameter:
		return "invalid_parameter"
	case OutOfMemory:
		return "out_of_memory"
	case ResourceNotFound:
		return "resource_not_found"
	case ResourceCreationFailed:
		return "resource_creation_failed"
	case FileNotFound:
		return "file_not_found"
	case BackendError:
		return "backend_error"
	case NotInitialized:
		return "not_initialized"
	default:
		return "unknown"
	}
}

// Error is a Kind paired with a causal chain. It satisfies the standard
// errors.Is/As protocol via Unwrap.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind with a formatted message.
func New(k Kind, format string, args ...any) error {
	return &Error{Kind: k, cause: errors.Errorf(format, args...)}
}

// Wrap attaches a kind to an existing error, preserving its cause chain.
func Wrap(k Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, cause: errors.Wrapf(err, format, args...)}
}

// Is reports whether err (or any error in its chain) carries the given Kind.
func Is(err error, k Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			if e.Kind == k {
				return true
			}
			err = e.cause
			continue
		}
		err = errors.Unwrap(err)
	}
	return false
}
