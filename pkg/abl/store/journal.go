package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Journal stamps abduction records with monotonic ULIDs and writes them to
// a Store. It is safe for concurrent use.
type Journal struct {
	st Store

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// NewJournal creates a journal writing to st.
func NewJournal(st Store) *Journal {
	return &Journal{
		st:      st,
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// NewID returns a fresh ULID. IDs issued by one journal sort in issue order.
func (j *Journal) NewID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(j.now()), j.entropy).String()
}

// Record stamps r with an ID and creation time when unset and persists it.
func (j *Journal) Record(ctx context.Context, r Record) (Record, error) {
	if r.BatchID == "" {
		return Record{}, fmt.Errorf("journal record without batch id")
	}
	if r.ID == "" {
		r.ID = j.NewID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = j.now().UTC()
	}
	if err := j.st.RecordAbduction(ctx, r); err != nil {
		return Record{}, fmt.Errorf("journal %s: %w", r.ID, err)
	}
	return r, nil
}

// Batch returns the records of one batch in ID order.
func (j *Journal) Batch(ctx context.Context, batchID string) ([]Record, error) {
	return j.st.Abductions(ctx, batchID)
}
