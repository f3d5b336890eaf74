package kb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/abl/pkg/abl/oracle"
	"github.com/cognicore/abl/pkg/abl/symbol"
)

func TestCombinations(t *testing.T) {
	var got [][]int
	combinations(4, 2, func(idx []int) {
		got = append(got, append([]int(nil), idx...))
	})
	assert.Equal(t, [][]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}, got)

	calls := 0
	combinations(3, 0, func(idx []int) {
		calls++
		assert.Empty(t, idx)
	})
	assert.Equal(t, 1, calls)

	combinations(2, 3, func([]int) { t.Error("k > n must not call fn") })
}

func TestReviseAtIdx(t *testing.T) {
	kb := newAddKB(t, -1)

	cands, vals := kb.ReviseAtIdx(symbol.Of("3", "4"), 10, nil, []int{0})
	assert.Equal(t, []symbol.Sequence{symbol.Of("6", "4")}, cands)
	assert.Equal(t, []oracle.Value{10}, vals)

	cands, _ = kb.ReviseAtIdx(symbol.Of("3", "4"), 10, nil, []int{0, 1})
	require.Len(t, cands, 9)
	assert.Equal(t, symbol.Of("1", "9"), cands[0])
	assert.Equal(t, symbol.Of("9", "1"), cands[8])

	// no positions: only the prediction itself is checked
	cands, _ = kb.ReviseAtIdx(symbol.Of("3", "4"), 7, nil, nil)
	assert.Equal(t, []symbol.Sequence{symbol.Of("3", "4")}, cands)

	cands, _ = kb.ReviseAtIdx(symbol.Of("3", "4"), 10, nil, []int{2})
	assert.Empty(t, cands)
	cands, _ = kb.ReviseAtIdx(symbol.Of("3", "4"), 10, nil, []int{0, 0})
	assert.Empty(t, cands)
}

func TestReviseAtIdxLeavesInputUntouched(t *testing.T) {
	kb := newAddKB(t, -1)
	seq := symbol.Of("3", "4")

	kb.ReviseAtIdx(seq, 10, nil, []int{0, 1})
	assert.Equal(t, symbol.Of("3", "4"), seq)
}

func TestAbduceSumScenario(t *testing.T) {
	kb := newAddKB(t, -1)

	cands, vals := kb.AbduceCandidates(symbol.Of("3", "4"), 10, nil, 1, 0)
	assert.Equal(t, []symbol.Sequence{symbol.Of("6", "4"), symbol.Of("3", "7")}, cands)
	assert.Equal(t, []oracle.Value{10, 10}, vals)
}

func TestAbduceZeroBudget(t *testing.T) {
	kb := newAddKB(t, -1)

	for target := 0.0; target <= 18; target++ {
		cands, _ := kb.AbduceCandidates(symbol.Of("3", "4"), target, nil, 0, 0)
		if target == 7 {
			assert.Equal(t, []symbol.Sequence{symbol.Of("3", "4")}, cands)
		} else {
			assert.Empty(t, cands, "target %v", target)
		}
	}
}

func TestAbduceBudgetExhausted(t *testing.T) {
	kb := newAddKB(t, -1)

	cands, _ := kb.AbduceCandidates(symbol.Of("0", "0"), 18, nil, 1, 0)
	assert.Empty(t, cands)

	cands, _ = kb.AbduceCandidates(symbol.Of("0", "0"), 18, nil, 2, 0)
	assert.Equal(t, []symbol.Sequence{symbol.Of("9", "9")}, cands)

	// unreachable target even at full budget
	cands, _ = kb.AbduceCandidates(symbol.Of("0", "0"), 19, nil, 5, 3)
	assert.Empty(t, cands)
}

func TestAbduceRequireMoreIsSuperset(t *testing.T) {
	kb := newAddKB(t, -1)
	seq := symbol.Of("3", "4", "5")

	base, _ := kb.AbduceCandidates(seq, 15, nil, 3, 0)
	require.NotEmpty(t, base)

	for more := 1; more <= 3; more++ {
		wider, vals := kb.AbduceCandidates(seq, 15, nil, 3, more)
		require.GreaterOrEqual(t, len(wider), len(base))
		assert.Equal(t, base, wider[:len(base)], "require_more=%d must extend, not replace", more)
		for i, c := range wider {
			assert.Equal(t, 15.0, vals[i])
			assert.Equal(t, 15.0, oracle.Evaluate(oracle.Sum, c, nil))
		}
	}

	// extra budgets stop at maxRevision
	capped, _ := kb.AbduceCandidates(seq, 15, nil, 1, 5)
	assert.Equal(t, base, capped)
}

func TestAbduceSurvivesPanickingOracle(t *testing.T) {
	div := oracle.Func(func(seq symbol.Sequence, _ any) (oracle.Value, error) {
		a := int(seq[0][0] - '0')
		b := int(seq[1][0] - '0')
		return oracle.Value(a / b), nil // panics on b == 0
	})
	kb, err := NewClassKB(symbol.Digits(), div, Options{})
	require.NoError(t, err)

	cands, _ := kb.AbduceCandidates(symbol.Of("8", "0"), 4, nil, 1, 0)
	assert.Equal(t, []symbol.Sequence{symbol.Of("8", "2")}, cands)
}
