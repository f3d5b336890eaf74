package kb

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/cognicore/abl/pkg/abl/internalerr"
	"github.com/cognicore/abl/pkg/abl/oracle"
	"github.com/cognicore/abl/pkg/abl/symbol"
)

// tieEpsilon separates equally near values in nearest-match queries.
const tieEpsilon = 1e-9

// RegressionKB is a regression-style knowledge base: targets are real
// values and queries return the nearest stored values.
type RegressionKB struct {
	alphabet symbol.Alphabet
	ix       *index
	byValue  map[int]*sorted
	search   *searcher
}

var _ KnowledgeBase = (*RegressionKB)(nil)

// NewRegressionKB indexes the given (sequence, value) pairs. Entries whose
// value is invalid are dropped: they can never be nearest to a finite key.
func NewRegressionKB(a symbol.Alphabet, o oracle.Oracle, entries []Entry, opts Options) (*RegressionKB, error) {
	kb, err := newRegressionKB(a, o, opts)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if oracle.IsInvalid(e.Value) {
			continue
		}
		if err := checkSymbols(a, e.Seq); err != nil {
			return nil, err
		}
		kb.ix.add(e.Seq.Clone(), e.Value)
	}
	kb.seal(opts)
	return kb, nil
}

// EnumerateRegressionKB evaluates every sequence of length 2..maxLen and
// indexes the valid ones.
func EnumerateRegressionKB(a symbol.Alphabet, o oracle.Oracle, maxLen int, opts Options) (*RegressionKB, error) {
	if maxLen < MinEnumeratedLen {
		return nil, fmt.Errorf("max length %d below %d: %w", maxLen, MinEnumeratedLen, internalerr.ErrInvalidConfig)
	}
	kb, err := newRegressionKB(a, o, opts)
	if err != nil {
		return nil, err
	}
	evaluated := 0
	enumerate(a, MinEnumeratedLen, maxLen, func(seq symbol.Sequence) {
		evaluated++
		if v := oracle.Evaluate(o, seq, nil); !oracle.IsInvalid(v) {
			kb.ix.add(seq, v)
		}
	})
	opts.Metrics.AddOracleEvaluations(evaluated, 0)
	kb.seal(opts)
	return kb, nil
}

func newRegressionKB(a symbol.Alphabet, o oracle.Oracle, opts Options) (*RegressionKB, error) {
	if a.Size() == 0 {
		return nil, fmt.Errorf("empty alphabet: %w", internalerr.ErrInvalidConfig)
	}
	if o == nil {
		return nil, fmt.Errorf("nil oracle: %w", internalerr.ErrInvalidConfig)
	}
	s, err := newSearcher(a, o, oracle.Within(opts.tolerance()), opts)
	if err != nil {
		return nil, err
	}
	return &RegressionKB{alphabet: a, ix: newIndex(), search: s}, nil
}

func (kb *RegressionKB) seal(opts Options) {
	kb.byValue = kb.ix.sortedByValue()
	n := kb.ix.count(nil)
	opts.Metrics.SetKBEntries(string(KindRegression), n)
	opts.logger().Info("knowledge base ready",
		zap.String("kind", string(KindRegression)),
		zap.Int("lengths", len(kb.byValue)),
		zap.Int("entries", n),
	)
}

// Alphabet implements KnowledgeBase.
func (kb *RegressionKB) Alphabet() symbol.Alphabet { return kb.alphabet }

// GetCandidates returns the sequences whose value is nearest to key across
// the requested lengths.
//
// For each length the insertion point of key is found by binary search and
// only the values at insertion point-1, insertion point and insertion
// point+1 are inspected. If the global nearest value lies outside that
// window it is missed; the result is the nearest within the window.
func (kb *RegressionKB) GetCandidates(key oracle.Value, lengths ...int) []symbol.Sequence {
	minErr := math.Inf(1)
	var candidates []symbol.Sequence
	for _, l := range kb.ix.resolve(lengths) {
		s, ok := kb.byValue[l]
		if !ok {
			continue
		}
		at := sort.SearchFloat64s(s.values, key)
		begin := max(0, at-1)
		end := min(at+2, len(s.values))
		for i := begin; i < end; i++ {
			err := math.Abs(s.values[i] - key)
			switch {
			case math.Abs(err-minErr) < tieEpsilon:
				candidates = appendClones(candidates, s.seqs[i])
			case err < minErr:
				candidates = appendClones(nil, s.seqs[i])
				minErr = err
			}
		}
	}
	return candidates
}

// AllCandidates implements KnowledgeBase.
func (kb *RegressionKB) AllCandidates(lengths ...int) []symbol.Sequence {
	var out []symbol.Sequence
	for _, l := range kb.ix.resolve(lengths) {
		if s, ok := kb.byValue[l]; ok {
			for _, seqs := range s.seqs {
				out = appendClones(out, seqs)
			}
		}
	}
	return out
}

// ReviseAtIdx implements KnowledgeBase; values match within the tolerance.
func (kb *RegressionKB) ReviseAtIdx(seq symbol.Sequence, target oracle.Value, input any, idx []int) ([]symbol.Sequence, []oracle.Value) {
	return kb.search.reviseAtIdx(seq, target, input, idx)
}

// AbduceCandidates implements KnowledgeBase.
func (kb *RegressionKB) AbduceCandidates(seq symbol.Sequence, target oracle.Value, input any, maxRevision, requireMore int) ([]symbol.Sequence, []oracle.Value) {
	return kb.search.abduce(seq, target, input, maxRevision, requireMore)
}

// Len implements KnowledgeBase.
func (kb *RegressionKB) Len(lengths ...int) int {
	return kb.ix.count(lengths)
}

// Entries exports the index for persistence, ordered by value per length.
func (kb *RegressionKB) Entries() []Entry {
	var out []Entry
	for _, l := range kb.ix.lengths {
		s := kb.byValue[l]
		for i, v := range s.values {
			for _, seq := range s.seqs[i] {
				out = append(out, Entry{Seq: seq.Clone(), Value: v})
			}
		}
	}
	return out
}
