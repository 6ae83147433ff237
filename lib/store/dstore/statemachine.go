package dstore

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/rkv/lib/store"
	"github.com/ValentinKolb/rkv/lib/store/dstore/internal"
	"github.com/ValentinKolb/rkv/lib/store/memstore"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// KVStateMachine is a state machine implementation for Dragonboat RAFT
type KVStateMachine struct {
	replicaID uint64
	shardID   uint64
	engine    *memstore.Engine // the actual data storage
}

// CreateStateMachineFactory returns a function that can be used by dragonboat to create a new state machine for a node host.
// Every state machine owns its own in-process engine. Background expiration is disabled,
// expired keys are only removed by applied entries (using the time of the proposal) so all replicas stay identical.
func CreateStateMachineFactory() func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &KVStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			engine:    memstore.NewEngine(&memstore.Config{GCInterval: -1}),
		}
	}
}

// Lookup handles read-only queries, they never modify the engine (expired keys are hidden, not removed).
func (fsm *KVStateMachine) Lookup(itf interface{}) (interface{}, error) {
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("invalid Query type: %T", itf))
	}
	if !memstore.IsReadOnly(q.Cmd.Name) {
		return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("%s is not a read-only command", q.Cmd.Name))
	}
	v, err := fsm.engine.Query(q.DB, q.Cmd)
	return internal.QueryResult{Value: v, Err: err}, nil
}

// Update applies proposals to the engine.
// All proposals are serialized into []byte and are accessible via the entries struct
func (fsm *KVStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {

	// Nothing to do
	if len(entries) == 0 {
		return entries, nil
	}

	// Stats
	start := time.Now()

	for idx, e := range entries {
		if len(e.Cmd) == 0 {
			entries[idx].Result = sm.Result{Value: uint64(store.RetCInvalidOperation), Data: []byte("empty command ignored")}
			continue
		}

		// Deserialize the command
		cmd := internal.Command{}
		if err := cmd.Deserialize(e.Cmd); err != nil {
			entries[idx].Result = sm.Result{Value: uint64(store.RetCInternalError), Data: []byte(fmt.Sprintf("failed to deserialize command: %v", err))}
			continue
		}

		var atomicExec bool
		switch cmd.Mode {
		case internal.ModeSingle, internal.ModeBatch:
		case internal.ModeAtomic:
			atomicExec = true
		default:
			entries[idx].Result = sm.Result{
				Value: uint64(store.RetCInvalidOperation),
				Data:  []byte(fmt.Sprintf("unknown Command mode: %s", cmd.Mode)),
			}
			continue
		}

		replies, err := fsm.engine.Apply(time.UnixMilli(cmd.Now), int(cmd.DB), atomicExec, cmd.Cmds)
		if err != nil {
			entries[idx].Result = sm.Result{Value: uint64(store.CodeOf(err)), Data: []byte(errMessage(err))}
			continue
		}
		entries[idx].Result = sm.Result{Value: uint64(store.RetCSuccess), Data: internal.EncodeReplies(replies)}
	}

	// Log if the update took long
	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("State machine took long to update. Batch updated %d entries, took %.2fms", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

// PrepareSnapshot is not used. We don't need to prepare anything since the engine is locked while saving
func (fsm *KVStateMachine) PrepareSnapshot() (interface{}, error) {
	return nil, nil
}

// SaveSnapshot saves an engine snapshot to the writer
func (fsm *KVStateMachine) SaveSnapshot(_ interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	return fsm.engine.Save(writer)
}

// RecoverFromSnapshot replaces the engine content with a snapshot
func (fsm *KVStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	return fsm.engine.Load(r)
}

// Close performs any necessary cleanup.
func (fsm *KVStateMachine) Close() error {
	return fsm.engine.Close()
}

// errMessage returns the message of a store error without the code prefix
func errMessage(err error) string {
	var e *store.Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return err.Error()
}
