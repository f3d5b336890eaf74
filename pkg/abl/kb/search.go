package kb

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cognicore/abl/pkg/abl/metrics"
	"github.com/cognicore/abl/pkg/abl/oracle"
	"github.com/cognicore/abl/pkg/abl/symbol"
)

// searcher runs revision search for a knowledge base. It is the only part
// of a variant that evaluates the oracle at query time.
type searcher struct {
	alphabet    symbol.Alphabet
	oracle      oracle.Oracle
	match       oracle.Matcher
	ignoreInput bool
	cache       *lru.Cache[string, oracle.Value]
	metrics     *metrics.Metrics
}

func newSearcher(a symbol.Alphabet, o oracle.Oracle, m oracle.Matcher, opts Options) (*searcher, error) {
	s := &searcher{
		alphabet:    a,
		oracle:      o,
		match:       m,
		ignoreInput: opts.IgnoreInput,
		metrics:     opts.Metrics,
	}
	size := opts.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	if size > 0 && opts.IgnoreInput {
		c, err := lru.New[string, oracle.Value](size)
		if err != nil {
			return nil, err
		}
		s.cache = c
	}
	return s, nil
}

// evalCounter tallies oracle activity for one query so metrics are
// published once per call.
type evalCounter struct {
	evaluated int
	cached    int
}

func (s *searcher) evaluate(seq symbol.Sequence, input any, c *evalCounter) oracle.Value {
	if s.ignoreInput {
		input = nil
	}
	if s.cache == nil {
		c.evaluated++
		return oracle.Evaluate(s.oracle, seq, input)
	}
	key := seq.Key()
	if v, ok := s.cache.Get(key); ok {
		c.cached++
		return v
	}
	c.evaluated++
	v := oracle.Evaluate(s.oracle, seq, input)
	s.cache.Add(key, v)
	return v
}

func (s *searcher) publish(c *evalCounter) {
	s.metrics.AddOracleEvaluations(c.evaluated, c.cached)
}

// reviseAtIdx walks the |alphabet|^|idx| assignments of the positions in idx
// in product order, the last position varying fastest. Out-of-range or
// repeated positions yield no candidates.
func (s *searcher) reviseAtIdx(seq symbol.Sequence, target oracle.Value, input any, idx []int) ([]symbol.Sequence, []oracle.Value) {
	var c evalCounter
	defer s.publish(&c)
	return s.revise(seq, target, input, idx, &c)
}

func (s *searcher) revise(seq symbol.Sequence, target oracle.Value, input any, idx []int, c *evalCounter) ([]symbol.Sequence, []oracle.Value) {
	if !validPositions(idx, len(seq)) {
		return nil, nil
	}

	var (
		candidates []symbol.Sequence
		results    []oracle.Value
	)
	size := s.alphabet.Size()
	digits := make([]int, len(idx))
	work := seq.Clone()
	for {
		for i, pos := range idx {
			work[pos] = s.alphabet.At(digits[i])
		}
		if v := s.evaluate(work, input, c); s.match.Match(v, target) {
			candidates = append(candidates, work.Clone())
			results = append(results, v)
		}

		// advance the odometer
		i := len(digits) - 1
		for ; i >= 0; i-- {
			digits[i]++
			if digits[i] < size {
				break
			}
			digits[i] = 0
		}
		if i < 0 {
			break
		}
	}
	return candidates, results
}

// revision collects the matches of every revision mask of exactly k
// positions, masks in lexicographic order.
func (s *searcher) revision(k int, seq symbol.Sequence, target oracle.Value, input any, c *evalCounter) ([]symbol.Sequence, []oracle.Value) {
	var (
		candidates []symbol.Sequence
		results    []oracle.Value
	)
	combinations(len(seq), k, func(idx []int) {
		cs, rs := s.revise(seq, target, input, idx, c)
		candidates = append(candidates, cs...)
		results = append(results, rs...)
	})
	return candidates, results
}

// abduce escalates the revision budget from zero. Once budget k0 yields a
// match, budgets k0+1..k0+requireMore are searched as well, never beyond
// maxRevision.
func (s *searcher) abduce(seq symbol.Sequence, target oracle.Value, input any, maxRevision, requireMore int) ([]symbol.Sequence, []oracle.Value) {
	var c evalCounter
	defer s.publish(&c)

	var (
		candidates []symbol.Sequence
		results    []oracle.Value
	)
	found := -1
	for k := 0; k <= len(seq); k++ {
		cs, rs := s.revision(k, seq, target, input, &c)
		candidates = append(candidates, cs...)
		results = append(results, rs...)
		if len(candidates) > 0 {
			found = k
			break
		}
		if k >= maxRevision {
			return nil, nil
		}
	}
	if found < 0 {
		return nil, nil
	}

	for k := found + 1; k <= found+requireMore && k <= maxRevision; k++ {
		cs, rs := s.revision(k, seq, target, input, &c)
		candidates = append(candidates, cs...)
		results = append(results, rs...)
	}
	return candidates, results
}

// combinations calls fn with every k-subset of 0..n-1 in lexicographic
// order. fn must not retain idx.
func combinations(n, k int, fn func(idx []int)) {
	if k < 0 || k > n {
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		fn(idx)

		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

func validPositions(idx []int, n int) bool {
	seen := make(map[int]struct{}, len(idx))
	for _, pos := range idx {
		if pos < 0 || pos >= n {
			return false
		}
		if _, dup := seen[pos]; dup {
			return false
		}
		seen[pos] = struct{}{}
	}
	return true
}
