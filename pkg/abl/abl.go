// Package abl wires a knowledge base, a reasoner, persistence and metrics
// into one engine that abduces consistent pseudo-labels for batches of
// perception-model predictions.
package abl

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cognicore/abl/pkg/abl/config"
	"github.com/cognicore/abl/pkg/abl/cost"
	"github.com/cognicore/abl/pkg/abl/data"
	"github.com/cognicore/abl/pkg/abl/internalerr"
	"github.com/cognicore/abl/pkg/abl/kb"
	"github.com/cognicore/abl/pkg/abl/metrics"
	"github.com/cognicore/abl/pkg/abl/optimize"
	"github.com/cognicore/abl/pkg/abl/oracle"
	"github.com/cognicore/abl/pkg/abl/reasoner"
	"github.com/cognicore/abl/pkg/abl/store"
	"github.com/cognicore/abl/pkg/abl/store/memstore"
	"github.com/cognicore/abl/pkg/abl/store/sqlite"
	"github.com/cognicore/abl/pkg/abl/symbol"
)

// Engine is the main abduction facade
type Engine struct {
	cfg      *config.Config
	kb       kb.KnowledgeBase
	reasoner *reasoner.Reasoner
	store    store.Store
	ownStore bool
	journal  *store.Journal
	metrics  *metrics.Metrics
	log      *zap.Logger
	restored bool
}

// Options configures an Engine
type Options struct {
	Config *config.Config

	// Store overrides the store named by Config.Store.Path. The engine
	// does not close a store it was given.
	Store store.Store

	// Registerer receives the engine's collectors; nil disables metrics.
	Registerer prometheus.Registerer
	Logger     *zap.Logger

	// Oracle and Alphabet replace the configured domain.
	Oracle   oracle.Oracle
	Alphabet *symbol.Alphabet

	CostFunc cost.Func

	// Rebuild ignores any stored snapshot and replaces it.
	Rebuild bool
}

// New builds the knowledge base, restoring a stored snapshot when one
// exists, and the reasoner on top of it.
func New(ctx context.Context, opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	e := &Engine{cfg: cfg, log: log}
	if opts.Registerer != nil {
		e.metrics = metrics.New(opts.Registerer)
	}

	switch {
	case opts.Store != nil:
		e.store = opts.Store
	case cfg.Store.Path != "":
		st, err := sqlite.OpenSQLite(ctx, cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		e.store, e.ownStore = st, true
	default:
		e.store, e.ownStore = memstore.New(), true
	}
	e.journal = store.NewJournal(e.store)

	if err := e.buildKB(ctx, opts); err != nil {
		e.Close()
		return nil, err
	}

	r, err := reasoner.New(reasoner.Options{
		KB:                  e.kb,
		Cost:                cost.Mode(cfg.Reasoner.Cost),
		CostFunc:            opts.CostFunc,
		Mapping:             mappingFromConfig(cfg.Reasoner.Mapping),
		MaxRevision:         mustRevision(cfg.Reasoner.MaxRevision),
		RequireMoreRevision: cfg.Reasoner.RequireMoreRevision,
		UseOptimizer:        cfg.Reasoner.UseOptimizer,
		Optimizer:           &optimize.RACOS{Seed: cfg.Reasoner.Seed},
		OptimizerBudget:     cfg.Reasoner.OptimizerBudget,
		Parallel:            cfg.Reasoner.Parallel,
		Logger:              log.Named("reasoner"),
		Metrics:             e.metrics,
	})
	if err != nil {
		e.Close()
		return nil, err
	}
	e.reasoner = r
	return e, nil
}

// domain resolves the alphabet and oracle for the configured domain.
func domain(cfg *config.Config, opts Options) (symbol.Alphabet, oracle.Oracle, error) {
	var (
		a symbol.Alphabet
		o oracle.Oracle
	)
	switch cfg.KB.Domain {
	case "add":
		a, o = symbol.Digits(), oracle.Sum
	case "formula":
		a, o = symbol.Arithmetic(), oracle.Formula
	default:
		return a, nil, fmt.Errorf("unknown domain %q: %w", cfg.KB.Domain, internalerr.ErrInvalidConfig)
	}
	if opts.Alphabet != nil {
		a = *opts.Alphabet
	}
	if opts.Oracle != nil {
		o = opts.Oracle
	}
	return a, o, nil
}

// fingerprint names everything that decides a materialized base's
// entries. A custom oracle cannot be identified, so snapshots built with
// one only match other custom-oracle builds under the same name.
func fingerprint(cfg *config.Config, a symbol.Alphabet, opts Options) string {
	syms := a.Symbols()
	names := make([]string, len(syms))
	for i, s := range syms {
		names[i] = string(s)
	}
	o := "builtin"
	if opts.Oracle != nil {
		o = "custom"
	}
	return fmt.Sprintf("domain=%s;kind=%s;max_len=%d;table=%s;oracle=%s;alphabet=%s",
		cfg.KB.Domain, cfg.KB.Kind, cfg.KB.MaxLen, cfg.KB.Table, o, strings.Join(names, ","))
}

func (e *Engine) buildKB(ctx context.Context, opts Options) error {
	cfg := e.cfg
	a, o, err := domain(cfg, opts)
	if err != nil {
		return err
	}
	kbOpts := kb.Options{
		MaxLen:      cfg.KB.MaxLen,
		Tolerance:   cfg.KB.Tolerance,
		IgnoreInput: opts.Oracle == nil,
		CacheSize:   cfg.KB.CacheSize,
		Logger:      e.log.Named("kb"),
		Metrics:     e.metrics,
	}

	fp := fingerprint(cfg, a, opts)
	if !opts.Rebuild {
		stored, ok, err := e.store.LoadKB(ctx, cfg.KB.Name)
		if err != nil {
			return fmt.Errorf("load snapshot %s: %w", cfg.KB.Name, err)
		}
		if ok && stored.Fingerprint != fp {
			e.log.Info("snapshot stale, rebuilding",
				zap.String("name", cfg.KB.Name),
				zap.String("stored", stored.Fingerprint),
				zap.String("want", fp))
			ok = false
		}
		if ok {
			entries := fromStore(stored.Entries)
			if cfg.KB.Kind == "regression" {
				e.kb, err = kb.NewRegressionKB(a, o, entries, kbOpts)
			} else {
				e.kb, err = kb.NewClassKBFromEntries(a, o, entries, kbOpts)
			}
			if err != nil {
				return fmt.Errorf("restore snapshot %s: %w", cfg.KB.Name, err)
			}
			e.restored = true
			e.log.Info("restored knowledge base", zap.String("name", cfg.KB.Name), zap.Int("entries", len(entries)))
			return nil
		}
	}

	switch {
	case cfg.KB.Kind == "class":
		e.kb, err = kb.NewClassKB(a, o, kbOpts)
	case cfg.KB.Table != "":
		var tbl *config.Table
		if tbl, err = config.LoadTable(cfg.KB.Table); err != nil {
			return fmt.Errorf("load table: %w", err)
		}
		e.kb, err = kb.NewRegressionKB(a, o, fromTable(tbl), kbOpts)
	default:
		e.kb, err = kb.EnumerateRegressionKB(a, o, cfg.KB.MaxLen, kbOpts)
	}
	if err != nil {
		return err
	}

	if snap, ok := e.kb.(interface{ Entries() []kb.Entry }); ok && e.kb.Len() > 0 {
		stored := store.Snapshot{Fingerprint: fp, Entries: toStore(snap.Entries())}
		if err := e.store.SaveKB(ctx, cfg.KB.Name, stored); err != nil {
			return fmt.Errorf("save snapshot %s: %w", cfg.KB.Name, err)
		}
	}
	return nil
}

// Close closes the store if the engine opened it
func (e *Engine) Close() error {
	if e.ownStore && e.store != nil {
		return e.store.Close()
	}
	return nil
}

// KB returns the knowledge base.
func (e *Engine) KB() kb.KnowledgeBase { return e.kb }

// Reasoner returns the reasoner.
func (e *Engine) Reasoner() *reasoner.Reasoner { return e.reasoner }

// Journal returns the abduction journal.
func (e *Engine) Journal() *store.Journal { return e.journal }

// Restored reports whether the knowledge base came from a stored snapshot.
func (e *Engine) Restored() bool { return e.restored }

// Query returns the knowledge base's candidates for key. A lazy base has
// nothing to query and reports ErrNotFound.
func (e *Engine) Query(key oracle.Value, lengths ...int) ([]symbol.Sequence, error) {
	if e.kb.Len() == 0 {
		return nil, fmt.Errorf("knowledge base %s holds no sequences: %w", e.cfg.KB.Name, internalerr.ErrNotFound)
	}
	return e.kb.GetCandidates(key, lengths...), nil
}

// Abduce abduces one sample and journals it under a fresh batch.
func (e *Engine) Abduce(ctx context.Context, s *data.Sample) (symbol.Sequence, error) {
	out, err := e.AbduceBatch(ctx, data.NewBatch(s))
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// AbduceBatch abduces every sample, attaches the results to b and journals
// one record per sample under b.ID, which is assigned when empty.
func (e *Engine) AbduceBatch(ctx context.Context, b *data.Batch) ([]symbol.Sequence, error) {
	if b.ID == "" {
		b.ID = e.journal.NewID()
	}

	results, err := e.reasoner.BatchAbduceResults(ctx, b)
	if err != nil {
		return nil, err
	}

	out := make([]symbol.Sequence, len(results))
	for i, res := range results {
		s := b.At(i)
		rec := store.Record{
			BatchID:    b.ID,
			SampleID:   s.ID,
			Pred:       s.Pred,
			Abduced:    res.Abduced,
			Target:     s.Y,
			Candidates: len(res.Candidates),
		}
		if c, ok := res.Cost(); ok {
			rec.Cost = &c
		}
		if _, err := e.journal.Record(ctx, rec); err != nil {
			return nil, err
		}
		out[i] = res.Abduced
	}

	e.log.Info("abduced batch",
		zap.String("batch", b.ID),
		zap.Int("samples", b.Len()),
	)
	return out, nil
}

func mappingFromConfig(labels []string) map[int]symbol.Symbol {
	if len(labels) == 0 {
		return nil
	}
	m := make(map[int]symbol.Symbol, len(labels))
	for i, l := range labels {
		m[i] = symbol.Symbol(l)
	}
	return m
}

// mustRevision parses a limit already checked by config.Validate.
func mustRevision(s string) reasoner.RevisionLimit {
	l, err := reasoner.ParseRevisionLimit(s)
	if err != nil {
		panic(err)
	}
	return l
}

func toStore(entries []kb.Entry) []store.Entry {
	out := make([]store.Entry, len(entries))
	for i, e := range entries {
		out[i] = store.Entry{Length: len(e.Seq), Seq: e.Seq, Value: e.Value}
	}
	return out
}

func fromStore(entries []store.Entry) []kb.Entry {
	out := make([]kb.Entry, len(entries))
	for i, e := range entries {
		out[i] = kb.Entry{Seq: e.Seq, Value: e.Value}
	}
	return out
}

func fromTable(tbl *config.Table) []kb.Entry {
	out := make([]kb.Entry, len(tbl.Entries))
	for i, e := range tbl.Entries {
		v := oracle.Invalid
		if e.Value != nil {
			v = *e.Value
		}
		out[i] = kb.Entry{Seq: symbol.Of(e.Sequence...), Value: v}
	}
	return out
}
