package memstore

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
)

// snapshotVersion is increased whenever the snapshot layout changes
const snapshotVersion = 1

// snapshot is the gob encoded form of the whole engine
type snapshot struct {
	Version int
	DBs     map[int]map[string]*entry
}

// Save writes a consistent snapshot of all logical databases to w.
// All shards are locked while the snapshot is taken.
func (e *Engine) Save(w io.Writer) error {
	e.lockAll()
	snap := snapshot{Version: snapshotVersion, DBs: make(map[int]map[string]*entry)}
	for _, s := range e.shards {
		for db, keys := range s.dbs {
			m, ok := snap.DBs[db]
			if !ok {
				m = make(map[string]*entry, len(keys))
				snap.DBs[db] = m
			}
			for k, ent := range keys {
				m[k] = ent
			}
		}
	}

	// Encode while still holding the locks, the entries are shared
	bw := bufio.NewWriter(w)
	err := gob.NewEncoder(bw).Encode(&snap)
	e.unlockAll()
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return bw.Flush()
}

// Load replaces the content of the engine with a snapshot written by Save.
func (e *Engine) Load(r io.Reader) error {
	var snap snapshot
	if err := gob.NewDecoder(bufio.NewReader(r)).Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d (expected %d)", snap.Version, snapshotVersion)
	}

	e.lockAll()
	defer e.unlockAll()

	// Drop the current content and redistribute the keys over the shards
	for _, s := range e.shards {
		s.dbs = make(map[int]map[string]*entry)
	}
	for db, keys := range snap.DBs {
		for k, ent := range keys {
			s := e.shards[e.shardIndex(k)]
			m, ok := s.dbs[db]
			if !ok {
				m = make(map[string]*entry)
				s.dbs[db] = m
			}
			m[k] = ent
		}
	}
	return nil
}
