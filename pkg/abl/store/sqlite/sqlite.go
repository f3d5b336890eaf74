package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/abl/pkg/abl/internalerr"
	"github.com/cognicore/abl/pkg/abl/oracle"
	"github.com/cognicore/abl/pkg/abl/store"
	"github.com/cognicore/abl/pkg/abl/symbol"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates the
// schema if needed.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", path, internalerr.ErrStoreUnavailable, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w: %w", path, internalerr.ErrStoreUnavailable, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS kb_snapshots (
	name TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL DEFAULT '',
	entries INTEGER NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS kb_entries (
	kb TEXT NOT NULL,
	pos INTEGER NOT NULL,
	length INTEGER NOT NULL,
	seq TEXT NOT NULL,
	value REAL,
	PRIMARY KEY(kb, pos),
	FOREIGN KEY(kb) REFERENCES kb_snapshots(name) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_kb_entries_length ON kb_entries(kb, length);

CREATE TABLE IF NOT EXISTS abductions (
	id TEXT PRIMARY KEY,
	batch_id TEXT NOT NULL,
	sample_id TEXT,
	pred TEXT NOT NULL,
	abduced TEXT,
	target REAL,
	candidates INTEGER NOT NULL,
	cost REAL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_abductions_batch ON abductions(batch_id);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveKB replaces the snapshot stored under name in one transaction.
func (s *sqliteStore) SaveKB(ctx context.Context, name string, snap store.Snapshot) error {
	entries := snap.Entries
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// foreign_keys is per connection, so cascade cannot be relied on
	if _, err := tx.ExecContext(ctx, `DELETE FROM kb_entries WHERE kb = ?`, name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM kb_snapshots WHERE name = ?`, name); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO kb_snapshots (name, fingerprint, entries, created_at) VALUES (?, ?, ?, ?)`,
		name, snap.Fingerprint, len(entries), time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO kb_entries (kb, pos, length, seq, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range entries {
		seq, err := encodeSeq(e.Seq)
		if err != nil {
			return err
		}
		length := e.Length
		if length == 0 {
			length = len(e.Seq)
		}
		if _, err := stmt.ExecContext(ctx, name, i, length, seq, nullValue(e.Value)); err != nil {
			return fmt.Errorf("insert entry %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// LoadKB returns the snapshot stored under name in its saved order.
func (s *sqliteStore) LoadKB(ctx context.Context, name string) (store.Snapshot, bool, error) {
	var (
		n           int
		fingerprint string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, entries FROM kb_snapshots WHERE name = ?`, name).Scan(&fingerprint, &n)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Snapshot{}, false, nil
	}
	if err != nil {
		return store.Snapshot{}, false, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT length, seq, value FROM kb_entries WHERE kb = ? ORDER BY pos`, name)
	if err != nil {
		return store.Snapshot{}, false, err
	}
	defer rows.Close()

	entries := make([]store.Entry, 0, n)
	for rows.Next() {
		var (
			e     store.Entry
			seq   string
			value sql.NullFloat64
		)
		if err := rows.Scan(&e.Length, &seq, &value); err != nil {
			return store.Snapshot{}, false, err
		}
		if e.Seq, err = decodeSeq(seq); err != nil {
			return store.Snapshot{}, false, err
		}
		e.Value = oracle.Invalid
		if value.Valid {
			e.Value = value.Float64
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return store.Snapshot{}, false, err
	}
	return store.Snapshot{Fingerprint: fingerprint, Entries: entries}, true, nil
}

// RecordAbduction inserts one journal record
func (s *sqliteStore) RecordAbduction(ctx context.Context, r store.Record) error {
	pred, err := encodeSeq(r.Pred)
	if err != nil {
		return err
	}
	var abduced sql.NullString
	if r.Abduced != nil {
		enc, err := encodeSeq(r.Abduced)
		if err != nil {
			return err
		}
		abduced = sql.NullString{String: enc, Valid: true}
	}
	var cost sql.NullFloat64
	if r.Cost != nil {
		cost = sql.NullFloat64{Float64: *r.Cost, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO abductions (id, batch_id, sample_id, pred, abduced, target, candidates, cost, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.BatchID,
		r.SampleID,
		pred,
		abduced,
		nullValue(r.Target),
		r.Candidates,
		cost,
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Abductions returns the records of a batch ordered by ID
func (s *sqliteStore) Abductions(ctx context.Context, batchID string) ([]store.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, batch_id, sample_id, pred, abduced, target, candidates, cost, created_at
FROM abductions
WHERE batch_id = ?
ORDER BY id`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		var (
			r        store.Record
			sampleID sql.NullString
			pred     string
			abduced  sql.NullString
			target   sql.NullFloat64
			cost     sql.NullFloat64
			created  string
		)
		if err := rows.Scan(&r.ID, &r.BatchID, &sampleID, &pred, &abduced, &target, &r.Candidates, &cost, &created); err != nil {
			return nil, err
		}
		r.SampleID = sampleID.String
		if r.Pred, err = decodeSeq(pred); err != nil {
			return nil, err
		}
		if abduced.Valid {
			if r.Abduced, err = decodeSeq(abduced.String); err != nil {
				return nil, err
			}
		}
		r.Target = oracle.Invalid
		if target.Valid {
			r.Target = target.Float64
		}
		if cost.Valid {
			c := cost.Float64
			r.Cost = &c
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("record %s: created_at: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func encodeSeq(seq symbol.Sequence) (string, error) {
	if seq == nil {
		seq = symbol.Sequence{}
	}
	b, err := json.Marshal(seq)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeSeq(s string) (symbol.Sequence, error) {
	var seq symbol.Sequence
	if err := json.Unmarshal([]byte(s), &seq); err != nil {
		return nil, fmt.Errorf("decode sequence %q: %w", s, err)
	}
	return seq, nil
}

// nullValue stores invalid oracle values as NULL.
func nullValue(v oracle.Value) sql.NullFloat64 {
	if oracle.IsInvalid(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
