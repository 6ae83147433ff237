package internal

import "github.com/ValentinKolb/rkv/lib/store"

// Query defines the structure for lookup requests (read-only) sent via SyncRead or StaleRead
type Query struct {
	DB  int           // The logical database.
	Cmd store.Command // A read-only command.
}

// QueryResult is the result of a Query.
// Command errors are part of the result, errors returned by Lookup are failures of the lookup itself.
type QueryResult struct {
	Value any
	Err   error
}
