// Package tcp plugs tcp sockets into the base transport. It applies the
// TCPConf socket options (TCP_NODELAY, keepalive, linger) and the SocketConf
// buffer sizes to every dialed and accepted connection. Framing, request
// correlation and re-dialing are implemented in package base.
package tcp
