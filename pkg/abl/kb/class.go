package kb

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cognicore/abl/pkg/abl/internalerr"
	"github.com/cognicore/abl/pkg/abl/oracle"
	"github.com/cognicore/abl/pkg/abl/symbol"
)

// ClassKB is a classification-style knowledge base: targets are discrete
// labels matched exactly.
type ClassKB struct {
	alphabet symbol.Alphabet
	maxLen   int
	ix       *index
	search   *searcher
}

var _ KnowledgeBase = (*ClassKB)(nil)

// NewClassKB builds a classification knowledge base over o. With
// opts.MaxLen > 0 every sequence of length 2..MaxLen is evaluated and
// indexed up front; otherwise the base is lazy and only revision search is
// available.
func NewClassKB(a symbol.Alphabet, o oracle.Oracle, opts Options) (*ClassKB, error) {
	if opts.MaxLen > 0 && opts.MaxLen < MinEnumeratedLen {
		return nil, fmt.Errorf("max length %d below %d: %w", opts.MaxLen, MinEnumeratedLen, internalerr.ErrInvalidConfig)
	}
	kb, err := newClassKB(a, o, opts)
	if err != nil {
		return nil, err
	}
	if opts.MaxLen > 0 {
		enumerate(a, MinEnumeratedLen, opts.MaxLen, func(seq symbol.Sequence) {
			kb.ix.add(seq, oracle.Evaluate(o, seq, nil))
		})
		kb.maxLen = opts.MaxLen
		opts.Metrics.AddOracleEvaluations(kb.ix.count(nil), 0)
	}
	kb.published(opts)
	return kb, nil
}

// NewClassKBFromEntries rebuilds a classification base from a stored
// snapshot instead of enumerating. The maximum length is taken from the
// entries.
func NewClassKBFromEntries(a symbol.Alphabet, o oracle.Oracle, entries []Entry, opts Options) (*ClassKB, error) {
	kb, err := newClassKB(a, o, opts)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := checkSymbols(a, e.Seq); err != nil {
			return nil, err
		}
		kb.ix.add(e.Seq.Clone(), e.Value)
		if len(e.Seq) > kb.maxLen {
			kb.maxLen = len(e.Seq)
		}
	}
	kb.published(opts)
	return kb, nil
}

func newClassKB(a symbol.Alphabet, o oracle.Oracle, opts Options) (*ClassKB, error) {
	if a.Size() == 0 {
		return nil, fmt.Errorf("empty alphabet: %w", internalerr.ErrInvalidConfig)
	}
	if o == nil {
		return nil, fmt.Errorf("nil oracle: %w", internalerr.ErrInvalidConfig)
	}
	s, err := newSearcher(a, o, oracle.Exact(), opts)
	if err != nil {
		return nil, err
	}
	return &ClassKB{alphabet: a, ix: newIndex(), search: s}, nil
}

func (kb *ClassKB) published(opts Options) {
	n := kb.ix.count(nil)
	opts.Metrics.SetKBEntries(string(KindClass), n)
	opts.logger().Info("knowledge base ready",
		zap.String("kind", string(KindClass)),
		zap.Int("max_len", kb.maxLen),
		zap.Int("entries", n),
		zap.Bool("lazy", kb.ix.empty()),
	)
}

// Alphabet implements KnowledgeBase.
func (kb *ClassKB) Alphabet() symbol.Alphabet { return kb.alphabet }

// MaxLen is the longest materialized length, zero for a lazy base.
func (kb *ClassKB) MaxLen() int { return kb.maxLen }

// GetCandidates returns the sequences labeled key, in insertion order. A
// lazy base, or a request whose every length exceeds MaxLen, yields nothing.
func (kb *ClassKB) GetCandidates(key oracle.Value, lengths ...int) []symbol.Sequence {
	if kb.ix.empty() {
		return nil
	}
	lengths = kb.ix.resolve(lengths)
	if kb.maxLen < minInt(lengths) {
		return nil
	}
	return kb.ix.lookup(key, lengths)
}

// AllCandidates implements KnowledgeBase.
func (kb *ClassKB) AllCandidates(lengths ...int) []symbol.Sequence {
	return kb.ix.all(lengths)
}

// ReviseAtIdx implements KnowledgeBase.
func (kb *ClassKB) ReviseAtIdx(seq symbol.Sequence, target oracle.Value, input any, idx []int) ([]symbol.Sequence, []oracle.Value) {
	return kb.search.reviseAtIdx(seq, target, input, idx)
}

// AbduceCandidates implements KnowledgeBase.
func (kb *ClassKB) AbduceCandidates(seq symbol.Sequence, target oracle.Value, input any, maxRevision, requireMore int) ([]symbol.Sequence, []oracle.Value) {
	return kb.search.abduce(seq, target, input, maxRevision, requireMore)
}

// Len implements KnowledgeBase.
func (kb *ClassKB) Len(lengths ...int) int {
	return kb.ix.count(lengths)
}

// Entries exports the index for persistence.
func (kb *ClassKB) Entries() []Entry {
	return kb.ix.entries()
}

func checkSymbols(a symbol.Alphabet, seq symbol.Sequence) error {
	for _, s := range seq {
		if !a.Contains(s) {
			return fmt.Errorf("symbol %q not in alphabet: %w", s, internalerr.ErrInvalidInput)
		}
	}
	return nil
}

func minInt(xs []int) int {
	m := 0
	for i, x := range xs {
		if i == 0 || x < m {
			m = x
		}
	}
	return m
}
