package conn

import (
	"errors"

	"github.com/ValentinKolb/rkv/lib/store"
)

// MultiResult is the immutable outcome of an atomic or batch operation:
// one reply per command issued inside the block, in issue order.
type MultiResult struct {
	successful bool
	results    []store.Reply
}

// newMultiResult creates a result that is successful if no reply is an error
func newMultiResult(replies []store.Reply) *MultiResult {
	results := make([]store.Reply, len(replies))
	copy(results, replies)

	successful := true
	for _, r := range results {
		if r.Err != nil {
			successful = false
			break
		}
	}
	return &MultiResult{successful: successful, results: results}
}

// Successful reports whether no command failed
func (m *MultiResult) Successful() bool {
	return m.successful
}

// Results returns a copy of all replies
func (m *MultiResult) Results() []store.Reply {
	return append([]store.Reply(nil), m.results...)
}

// Len returns the number of commands
func (m *MultiResult) Len() int {
	return len(m.results)
}

// At returns the reply of the i-th command
func (m *MultiResult) At(i int) store.Reply {
	return m.results[i]
}

// Values returns the reply values (nil for failed commands)
func (m *MultiResult) Values() []any {
	values := make([]any, len(m.results))
	for i, r := range m.results {
		values[i] = r.Value
	}
	return values
}

// Errors returns the per command errors (nil for successful commands)
func (m *MultiResult) Errors() []error {
	errs := make([]error, len(m.results))
	for i, r := range m.results {
		errs[i] = r.Err
	}
	return errs
}

// Err joins all per command errors, nil if the result is successful
func (m *MultiResult) Err() error {
	if m.successful {
		return nil
	}
	return errors.Join(m.Errors()...)
}
