package conn

import (
	"github.com/ValentinKolb/rkv/lib/store"
)

// Target is a normalized target descriptor: a store URI plus the selected
// logical database (see store.NormalizeTarget).
type Target struct {
	uri        string
	db         int
	normalized string
}

// NewTarget normalizes a store URI and a logical database.
func NewTarget(uri string, db int) (Target, error) {
	normalized, err := store.NormalizeTarget(uri, db)
	if err != nil {
		return Target{}, err
	}
	return Target{uri: uri, db: db, normalized: normalized}, nil
}

// MustTarget is like NewTarget but panics on invalid input.
func MustTarget(uri string, db int) Target {
	t, err := NewTarget(uri, db)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the normalized descriptor handed to providers and factories.
func (t Target) String() string {
	return t.normalized
}

// DB returns the logical database of the target.
func (t Target) DB() int {
	return t.db
}

// URI returns the URI the target was created from.
func (t Target) URI() string {
	return t.uri
}

// WithDB returns the same store with another logical database.
func (t Target) WithDB(db int) (Target, error) {
	return NewTarget(t.uri, db)
}

// IsZero reports whether the target was never initialized.
func (t Target) IsZero() bool {
	return t.normalized == ""
}
