// Package kb implements knowledge bases over a logical oracle: exact and
// nearest-value candidate retrieval, and revision search around a predicted
// sequence.
//
// Two variants are provided. ClassKB indexes discrete labels and answers
// exact-match queries; RegressionKB keeps values sorted per length and
// answers nearest-match queries. Both delegate revision search to the same
// searcher and differ only in how an evaluated value is matched against a
// target.
//
// A materialized index is built once and never mutated, so a knowledge base
// may be shared by concurrent reasoners without locking.
package kb

import (
	"go.uber.org/zap"

	"github.com/cognicore/abl/pkg/abl/metrics"
	"github.com/cognicore/abl/pkg/abl/oracle"
	"github.com/cognicore/abl/pkg/abl/symbol"
)

// KnowledgeBase answers candidate queries and revision searches.
type KnowledgeBase interface {
	// Alphabet returns the pseudo-label list the base enumerates over.
	Alphabet() symbol.Alphabet

	// GetCandidates returns stored sequences whose value matches key:
	// equal for classification bases, nearest for regression bases.
	// No lengths means every stored length.
	GetCandidates(key oracle.Value, lengths ...int) []symbol.Sequence

	// AllCandidates returns every stored sequence of the given lengths.
	AllCandidates(lengths ...int) []symbol.Sequence

	// ReviseAtIdx enumerates every sequence that differs from seq only at
	// idx and whose value matches target.
	ReviseAtIdx(seq symbol.Sequence, target oracle.Value, input any, idx []int) ([]symbol.Sequence, []oracle.Value)

	// AbduceCandidates searches revision budgets 0..maxRevision and returns
	// the matches of the smallest successful budget plus requireMore
	// further budgets.
	AbduceCandidates(seq symbol.Sequence, target oracle.Value, input any, maxRevision, requireMore int) ([]symbol.Sequence, []oracle.Value)

	// Len counts stored sequences, optionally restricted to lengths.
	Len(lengths ...int) int
}

// Entry is one stored (sequence, value) pair.
type Entry struct {
	Seq   symbol.Sequence
	Value oracle.Value
}

// Kind names a knowledge base variant.
type Kind string

const (
	KindClass      Kind = "class"
	KindRegression Kind = "regression"
)

// DefaultCacheSize bounds the oracle memo cache.
const DefaultCacheSize = 4096

// DefaultTolerance is the regression match tolerance.
const DefaultTolerance = 1e-9

// Options configures a knowledge base.
type Options struct {
	// MaxLen, when positive, materializes every sequence of length
	// 2..MaxLen at construction.
	MaxLen int

	// Tolerance is the accepted absolute error for regression matching.
	// Zero means DefaultTolerance.
	Tolerance float64

	// IgnoreInput declares that the oracle never reads the sample's raw
	// input. Evaluations are then memoized on the sequence alone.
	IgnoreInput bool

	// CacheSize bounds memoized evaluations. Zero means DefaultCacheSize,
	// negative disables the cache.
	CacheSize int

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o Options) tolerance() float64 {
	if o.Tolerance == 0 {
		return DefaultTolerance
	}
	return o.Tolerance
}
