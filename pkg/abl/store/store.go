// Package store persists knowledge base snapshots and the abduction
// journal. Implementations live in the sqlite and memstore subpackages.
package store

import (
	"context"
	"time"

	"github.com/cognicore/abl/pkg/abl/oracle"
	"github.com/cognicore/abl/pkg/abl/symbol"
)

// Store persists knowledge base snapshots and the abduction journal.
type Store interface {
	Close() error

	// Knowledge base snapshots, keyed by name. SaveKB replaces any
	// snapshot stored under the same name.
	SaveKB(ctx context.Context, name string, snap Snapshot) error
	LoadKB(ctx context.Context, name string) (Snapshot, bool, error)

	// Journal
	RecordAbduction(ctx context.Context, r Record) error
	Abductions(ctx context.Context, batchID string) ([]Record, error)
}

// Snapshot is a materialized knowledge base. Fingerprint identifies the
// configuration that built it; a reader whose configuration differs must
// not reuse the entries.
type Snapshot struct {
	Fingerprint string
	Entries     []Entry
}

// Entry is one stored knowledge base sequence. Invalid values are kept.
type Entry struct {
	Length int
	Seq    symbol.Sequence
	Value  oracle.Value
}

// Record is one journaled abduction.
type Record struct {
	ID         string // ULID
	BatchID    string
	SampleID   string
	Pred       symbol.Sequence
	Abduced    symbol.Sequence // nil when no candidate was found
	Target     oracle.Value
	Candidates int
	Cost       *float64 // nil when selection needed no cost
	CreatedAt  time.Time
}
