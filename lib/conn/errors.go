package conn

import (
	"errors"
	"fmt"
)

var (
	// ErrChainExhausted is returned when no handler of a chain produced a
	// connection. This is a configuration defect: every chain must end with a
	// handler that always produces a connection or fails.
	ErrChainExhausted = errors.New("conn: no handler produced a connection")

	// ErrScopeClosed is returned when a commander of an atomic or batch scope
	// is used after the scope ended.
	ErrScopeClosed = errors.New("conn: scope already closed")
)

// OperationModeError is returned when the strict fallback mode rejects an atomic
// or batch operation on a connection whose handler does not allow it.
// No command was executed.
type OperationModeError struct {
	Kind    Kind   // the requested operation
	Handler string // the handler that resolved the connection
}

func (e *OperationModeError) Error() string {
	return fmt.Sprintf("conn: %s operation not allowed on connection resolved by %s handler (strict fallback mode)", e.Kind, e.Handler)
}
