// Package dstore implements a raft replicated store shard using the Dragonboat
// RAFT consensus library. It provides a strongly consistent implementation of the
// store.IConn interface that can operate across multiple nodes while maintaining
// linearizable consistency.
//
// Architecture:
//
// The dstore implementation consists of three main components:
//
//   - Connection: Implements the store.IConn interface and communicates with the RAFT
//     cluster. Commands are serialized into proposals, sent to the consensus layer and the
//     replies are decoded from the entry result.
//
//   - State Machine: A Dragonboat IConcurrentStateMachine implementation that applies
//     proposals on each node. Every state machine owns an in-process engine
//     (memstore.Engine) holding the actual data.
//
//   - Communication Protocol: Defined in the internal package, this consists of the
//     Command (proposal), Query and reply encoding.
//
// Write Operations:
//
//	All write commands, atomic and batch scopes follow this flow:
//
//	1. The commands are serialized into one Command (single, atomic or batch mode)
//	2. The Command is proposed to the RAFT cluster via SyncPropose
//	3. The leader node replicates the command to a majority of followers
//	4. Once committed, the command is applied to the engine on each node (Update method in statemachine.go)
//	5. The encoded replies are returned to the client
//
//	An atomic scope is a single raft entry and is applied by the engine as one
//	indivisible unit, so MULTI/EXEC semantics hold on every replica.
//	Expiration uses the time of the proposer that is part of the entry, so all
//	replicas make the same decisions.
//
// Read Operations:
//
//	Read-only commands (GET, HGETALL, TTL, ...) outside a scope use SyncRead, which
//	ensures that the node processing the read has applied all committed log entries
//	locally before processing the request.
//
// Error Handling and Retries:
//
//	- System Busy: When Dragonboat returns ErrSystemBusy, the proposal was not accepted
//	  and is retried after a short delay, up to 5 attempts.
//
//	- Timeouts: All operations have a configurable timeout. If consensus cannot be
//	  reached within this period, the operation fails with an internal error.
//
//	- Command Errors: Errors of single commands (wrong type, not an integer, ...) are
//	  part of the replies. An atomic proposal with an unknown command is rejected as a
//	  whole (EXECABORT) without applying anything.
//
// Snapshotting and Recovery:
//
//   - Snapshots: The state machine saves the engine (memstore.Engine.Save) while all
//     engine shards are locked.
//
//   - Recovery: On startup or when joining a cluster, nodes first restore their state
//     from the most recent snapshot. Then, they receive all RAFT log entries that were
//     committed after the snapshot was created from other nodes in the cluster.
//
// Usage:
//
//	// Create NodeHost (RAFT client)
//	nh, err := dragonboat.NewNodeHost(nodeHostConfig)
//	if err != nil { ... }
//
//	// Create and start shard (RAFT server)
//	err := nh.StartConcurrentReplica(
//	    clusterMembers,
//	    false,
//	    dstore.CreateStateMachineFactory(),
//	    shardConfig)
//	if err != nil { ... }
//
//	// Create a connection to logical database 0 of the shard
//	conn := dstore.NewConn(nh, shardID, 0, target, 5*time.Second)
//
// Limitations:
//
//   - Majority Requirement: Operations cannot proceed if a majority of nodes are unavailable
//   - Leader Dependency: Write operations require the leader to be available
//   - Consistency vs. Performance: The strong consistency model introduces performance overhead
//
// For scenarios where distributed consensus is not required, use the memstore
// package, which provides a single-node not-persistent implementation of the same interface.
package dstore
