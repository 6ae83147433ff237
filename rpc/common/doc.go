// Package common provides core data structures and utilities shared across
// the rkv RPC system. It defines the wire protocol, the configuration
// structures and the logger used by the other packages.
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication. A request
//     carries a logical database and a list of store commands, its MsgType
//     decides how they run on the server (a single command, an atomic unit or
//     a batch). A response carries one typed Result per command, or a message
//     level error (Err, Code) if the commands could not run at all.
//
//   - Result: Tagged wire form of a store.Reply (nil, string, int, array or
//     error with its store.RetCode). NewResult and Result.Reply convert in
//     both directions.
//
//   - ServerConfig: Configuration of a server node: shards (mem or raft), RAFT
//     parameters, transport options and the optional metrics endpoint.
//     Provides utilities for converting to Dragonboat-specific configurations.
//
//   - ClientConfig: Configuration of the client transport (endpoints,
//     connections per endpoint, re-dial attempts, socket options).
//
//   - Logger: InitLoggers installs a zerolog backed factory into Dragonboat's
//     logger registry, so every package logger (logger.GetLogger("conn"),
//     "store", "rpc", ...) shares one output format and a configurable level.
package common
