package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cognicore/abl/pkg/abl/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu         sync.RWMutex
	snapshots  map[string]store.Snapshot
	abductions map[string][]store.Record
}

var _ store.Store = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		snapshots:  make(map[string]store.Snapshot),
		abductions: make(map[string][]store.Record),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// SaveKB replaces the snapshot stored under name.
func (s *Store) SaveKB(ctx context.Context, name string, snap store.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[name] = copySnapshot(snap)
	return nil
}

// LoadKB returns a copy of the snapshot stored under name.
func (s *Store) LoadKB(ctx context.Context, name string) (store.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[name]
	if !ok {
		return store.Snapshot{}, false, nil
	}
	return copySnapshot(snap), true, nil
}

func copySnapshot(snap store.Snapshot) store.Snapshot {
	cp := make([]store.Entry, len(snap.Entries))
	for i, e := range snap.Entries {
		e.Seq = e.Seq.Clone()
		cp[i] = e
	}
	return store.Snapshot{Fingerprint: snap.Fingerprint, Entries: cp}
}

// RecordAbduction appends r to its batch.
func (s *Store) RecordAbduction(ctx context.Context, r store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.abductions[r.BatchID] = append(s.abductions[r.BatchID], copyRecord(r))
	return nil
}

// Abductions returns the records of a batch ordered by ID.
func (s *Store) Abductions(ctx context.Context, batchID string) ([]store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.abductions[batchID]
	out := make([]store.Record, len(records))
	for i, r := range records {
		out[i] = copyRecord(r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func copyRecord(r store.Record) store.Record {
	r.Pred = r.Pred.Clone()
	r.Abduced = r.Abduced.Clone()
	if r.Cost != nil {
		c := *r.Cost
		r.Cost = &c
	}
	return r
}
