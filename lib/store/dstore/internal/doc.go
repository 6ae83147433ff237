// Package internal provides the communication protocol structures and serialization
// logic for the dstore package. It defines the wire format used to transmit operations
// between the store connection and the distributed state machine.
//
// This package is intended for internal use by the dstore implementation and should
// not be imported directly by external code.
//
// The package consists of three main components:
//
//   - Command System: Defines proposals that modify the state of the engine. A proposal
//     carries one or more store commands and the mode they are applied in (single,
//     atomic or batch). Proposals are serialized and proposed to the RAFT cluster and
//     applied by the state machine of every replica.
//
//   - Reply Encoding: The replies of an applied proposal are returned as result data of
//     the raft entry (EncodeReplies, DecodeReplies).
//
//   - Query System: Defines read-only commands that are executed locally on the state
//     machine and therefore do not require serialization.
//
// Command Format:
//
//	Commands are serialized into a binary format with the following structure:
//
//	- 1 byte: Mode (Single, Atomic, Batch)
//	- 4 bytes: Logical database (uint32, big endian)
//	- 8 bytes: Proposer time in unix milliseconds (int64, big endian)
//	- 4 bytes: Number of commands
//	- per command: 4 bytes name length, name, 4 bytes argument count and
//	  per argument 4 bytes length + data
//
//	The proposer time makes expiration deterministic: every replica applies an entry
//	with the same notion of "now".
//
// Reply Format:
//
//	- 4 bytes: Number of replies
//	- per reply: 1 byte tag followed by the payload
//	  (nil: none, string: length + data, int: 8 bytes, array: count + values,
//	  error: 1 byte return code + length + message)
//
// Thread Safety:
//
//	The types in this package are not thread-safe and should not be shared
//	across goroutines without external synchronization. However, this is not
//	typically an issue as the RAFT protocol ensures sequential processing of
//	commands on the state machine.
package internal
