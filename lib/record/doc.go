// Package record maps application objects to store keys on top of the
// connection resolution of package conn.
//
// A Record is a hash of named fields plus any number of owned data types
// (ListKey, HashKey, SetKey, SortedSetKey, Counter) stored under
// "<record key>:<name>". Its chain is
//
//	reentrant atomic, cached ad hoc, provider (optional), standalone, create
//
// Owned data types resolve through their owner:
//
//	reentrant atomic, cached ad hoc, owner
//
// so commands of owned types issued inside an atomic or batch block of the
// record become part of that scope. Data types created with NewList, NewHash,
// ... have no owner and resolve on their own.
//
// Connections can be supplied per instance: WithConn overrides resolution and
// allows every scope, WithPinned shares one long-lived connection which allows
// no scope (atomic and batch operations follow the fallback mode of package conn).
package record
