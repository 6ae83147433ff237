// Package unix plugs unix domain sockets into the base transport. Client
// endpoints and the server endpoint are socket paths. A stale socket file is
// removed before listening.
package unix
