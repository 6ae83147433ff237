// Package http is the HTTP transport of rkv.
//
// The client POSTs a serialized message to <endpoint>/<shard id>, picking
// endpoints round robin. A request is sent exactly once, failed requests are
// not retried because an atomic unit must not be applied twice. The server
// routes the request to the registered handler by the shard id in the path
// and logs every request at debug level. Close shuts the server down
// gracefully.
//
// Use it where a stream transport is not an option (proxies, load balancers).
// The tcp transport has considerably less overhead per request.
package http
