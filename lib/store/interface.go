package store

import (
	"context"
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Commander is the single command-invocation surface shared by real
// connections, queued atomic/batch scopes and the individual-command proxy.
// The name is the store command (e.g. "SET"), args are converted with Args.
//
// Replies are one of: nil, string, int64, []any (nested replies).
// Inside an atomic or batch scope Do returns the Queued placeholder; the real
// replies are returned by the scope.
type Commander interface {
	Do(ctx context.Context, name string, args ...any) (any, error)
}

// IConn is a single connection to a store backend.
// It is not required to be safe for concurrent use; each execution unit
// resolves its own connection.
type IConn interface {
	Commander

	// Atomic queues all commands issued by fn and applies them as one
	// indivisible unit. If fn returns an error nothing is applied and the
	// error is returned unchanged. Errors of the atomic primitive itself
	// (e.g. a conflicting modification) are returned as error, per-command
	// errors are returned in the replies.
	Atomic(ctx context.Context, fn func(c Commander) error) ([]Reply, error)

	// Batch queues all commands issued by fn and sends them together.
	// Commands execute independently, a failing command does not abort the others.
	Batch(ctx context.Context, fn func(c Commander) error) ([]Reply, error)

	// Target returns the normalized target descriptor this connection is scoped to
	// (see NormalizeTarget).
	Target() string

	// Close releases the connection. Using a closed connection returns ErrClosed.
	Close() error
}

// Factory creates a new, uncached connection for a normalized target descriptor.
type Factory func(ctx context.Context, target string) (IConn, error)

// Reply is the outcome of a single command, either a value or an error.
type Reply struct {
	Value any
	Err   error
}

// Queued is the placeholder returned by Do for commands issued inside an
// atomic or batch scope.
const Queued = "QUEUED"

// ErrClosed is returned by connections after Close was called.
var ErrClosed = errors.New("store: connection closed")

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Is reports whether target is a *Error with the same code.
// This allows errors.Is(err, store.NewError(store.RetCWrongType, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new StoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new StoreError with a formatted message.
func Errorf(code RetCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// CodeOf returns the RetCode of err, RetCInternalError for foreign errors
// and RetCSuccess for nil.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCInternalError
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Command is not supported by the backend.
	RetCInvalidOperation                    // 3: Invalid operation (wrong arity, syntax).
	RetCWrongType                           // 4: Operation against a key holding the wrong kind of value.
	RetCNotInteger                          // 5: Value is not an integer or out of range.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCWrongType:
		return "WrongType"
	case RetCNotInteger:
		return "NotInteger"
	default:
		return "Unknown"
	}
}
