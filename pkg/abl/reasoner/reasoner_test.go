package reasoner

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cognicore/abl/pkg/abl/cost"
	"github.com/cognicore/abl/pkg/abl/data"
	"github.com/cognicore/abl/pkg/abl/internalerr"
	"github.com/cognicore/abl/pkg/abl/kb"
	"github.com/cognicore/abl/pkg/abl/metrics"
	"github.com/cognicore/abl/pkg/abl/optimize"
	"github.com/cognicore/abl/pkg/abl/oracle"
	"github.com/cognicore/abl/pkg/abl/symbol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func addKB(t *testing.T) *kb.ClassKB {
	t.Helper()
	k, err := kb.NewClassKB(symbol.Digits(), oracle.Sum, kb.Options{IgnoreInput: true})
	require.NoError(t, err)
	return k
}

func newReasoner(t *testing.T, opts Options) *Reasoner {
	t.Helper()
	if opts.KB == nil {
		opts.KB = addKB(t)
	}
	r, err := New(opts)
	require.NoError(t, err)
	return r
}

// row builds a ten-class confidence row.
func row(p map[int]float64) []float64 {
	out := make([]float64, 10)
	for i, v := range p {
		out[i] = v
	}
	return out
}

func TestAbduceSumScenarioHamming(t *testing.T) {
	r := newReasoner(t, Options{Cost: cost.ModeHamming, MaxRevision: Count(1)})

	got, err := r.Abduce(context.Background(), &data.Sample{Pred: symbol.Of("3", "4"), Y: 10})
	require.NoError(t, err)
	assert.Equal(t, symbol.Of("6", "4"), got)
}

func TestAbduceConfidence(t *testing.T) {
	r := newReasoner(t, Options{MaxRevision: Count(1)})

	s := &data.Sample{
		Pred: symbol.Of("3", "4"),
		Y:    10,
		Prob: [][]float64{row(map[int]float64{3: 0.5, 6: 0.05}), row(map[int]float64{4: 0.5, 7: 0.4})},
	}
	res, err := r.AbduceResult(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, symbol.Of("3", "7"), res.Abduced)
	require.Len(t, res.Costs, 2)
	assert.InDelta(t, 0.975, res.Costs[0], 1e-12)
	assert.InDelta(t, 0.8, res.Costs[1], 1e-12)

	c, ok := res.Cost()
	assert.True(t, ok)
	assert.InDelta(t, 0.8, c, 1e-12)
}

func TestAbduceConfidenceNeedsProb(t *testing.T) {
	r := newReasoner(t, Options{MaxRevision: Count(1)})

	_, err := r.Abduce(context.Background(), &data.Sample{Pred: symbol.Of("3", "4"), Y: 10})
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
}

func TestAbduceSingleCandidateSkipsCost(t *testing.T) {
	r := newReasoner(t, Options{
		CostFunc: func(*data.Sample, []symbol.Sequence, [][]int, []oracle.Value) ([]float64, error) {
			panic("cost must not be computed for a single candidate")
		},
	})

	res, err := r.AbduceResult(context.Background(), &data.Sample{Pred: symbol.Of("3", "4"), Y: 0})
	require.NoError(t, err)
	assert.Equal(t, symbol.Of("0", "0"), res.Abduced)
	assert.Nil(t, res.Costs)

	_, ok := res.Cost()
	assert.False(t, ok)
}

func TestAbduceNoCandidate(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	m := metrics.New(prometheus.NewRegistry())
	r := newReasoner(t, Options{Cost: cost.ModeHamming, Logger: zap.New(core), Metrics: m})

	got, err := r.Abduce(context.Background(), &data.Sample{ID: "s1", Pred: symbol.Of("3", "4"), Y: 19})
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Equal(t, 1, logs.FilterMessage("no consistent candidate").Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Abductions.WithLabelValues(metrics.OutcomeNoCandidate)))
}

func TestAbduceOutcomes(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := newReasoner(t, Options{Cost: cost.ModeHamming, Metrics: m})
	ctx := context.Background()

	_, err := r.Abduce(ctx, &data.Sample{Pred: symbol.Of("3", "4"), Y: 7})
	require.NoError(t, err)
	_, err = r.Abduce(ctx, &data.Sample{Pred: symbol.Of("3", "4"), Y: 8})
	require.NoError(t, err)
	_, err = r.Abduce(ctx, &data.Sample{})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Abductions.WithLabelValues(metrics.OutcomeUnchanged)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Abductions.WithLabelValues(metrics.OutcomeRevised)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Abductions.WithLabelValues(metrics.OutcomeError)))
}

func TestAbduceUserCost(t *testing.T) {
	var gotIdxs [][]int
	var gotValues []oracle.Value
	r := newReasoner(t, Options{
		MaxRevision: Count(1),
		CostFunc: func(s *data.Sample, cands []symbol.Sequence, idxs [][]int, values []oracle.Value) ([]float64, error) {
			gotIdxs, gotValues = idxs, values
			// Prefer keeping the first symbol.
			out := make([]float64, len(cands))
			for i, c := range cands {
				if c[0] != s.Pred[0] {
					out[i] = 1
				}
			}
			return out, nil
		},
	})

	got, err := r.Abduce(context.Background(), &data.Sample{Pred: symbol.Of("3", "4"), Y: 10})
	require.NoError(t, err)
	assert.Equal(t, symbol.Of("3", "7"), got)
	assert.Equal(t, [][]int{{6, 4}, {3, 7}}, gotIdxs)
	assert.Equal(t, []oracle.Value{10, 10}, gotValues)
}

func TestAbduceUserCostLengthMismatch(t *testing.T) {
	r := newReasoner(t, Options{
		MaxRevision: Count(1),
		CostFunc: func(*data.Sample, []symbol.Sequence, [][]int, []oracle.Value) ([]float64, error) {
			return []float64{0}, nil
		},
	})

	_, err := r.Abduce(context.Background(), &data.Sample{Pred: symbol.Of("3", "4"), Y: 10})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestAbduceUserCostError(t *testing.T) {
	boom := errors.New("boom")
	r := newReasoner(t, Options{
		MaxRevision: Count(1),
		CostFunc: func(*data.Sample, []symbol.Sequence, [][]int, []oracle.Value) ([]float64, error) {
			return nil, boom
		},
	})

	_, err := r.Abduce(context.Background(), &data.Sample{Pred: symbol.Of("3", "4"), Y: 10})
	assert.ErrorIs(t, err, boom)
}

func TestAbduceCustomMapping(t *testing.T) {
	reversed := make(map[int]symbol.Symbol, 10)
	for i, s := range symbol.Digits().Symbols() {
		reversed[9-i] = s
	}
	prob := [][]float64{row(map[int]float64{3: 0.05, 6: 0.5}), row(map[int]float64{5: 0.5, 2: 0.4})}
	s := &data.Sample{Pred: symbol.Of("3", "4"), Y: 10, Prob: prob}

	r := newReasoner(t, Options{MaxRevision: Count(1), Mapping: reversed})
	got, err := r.Abduce(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, symbol.Of("3", "7"), got)
	assert.Equal(t, reversed, r.Mapping())

	r = newReasoner(t, Options{MaxRevision: Count(1)})
	got, err = r.Abduce(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, symbol.Of("6", "4"), got)
}

func TestNewValidation(t *testing.T) {
	k := addKB(t)
	tests := []struct {
		name string
		opts Options
	}{
		{"nil kb", Options{}},
		{"unknown cost", Options{KB: k, Cost: "entropy"}},
		{"mapping value outside alphabet", Options{KB: k, Mapping: map[int]symbol.Symbol{0: "x"}}},
		{"mapping not injective", Options{KB: k, Mapping: map[int]symbol.Symbol{0: "1", 1: "1"}}},
		{"negative mapping index", Options{KB: k, Mapping: map[int]symbol.Symbol{-1: "1"}}},
		{"negative count", Options{KB: k, MaxRevision: Count(-2)}},
		{"fraction above one", Options{KB: k, MaxRevision: Fraction(1.5)}},
		{"negative require more", Options{KB: k, RequireMoreRevision: -1}},
		{"negative optimizer budget", Options{KB: k, OptimizerBudget: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
		})
	}
}

func TestNewDefaultMapping(t *testing.T) {
	r := newReasoner(t, Options{})
	m := r.Mapping()
	require.Len(t, m, 10)
	assert.Equal(t, symbol.Symbol("0"), m[0])
	assert.Equal(t, symbol.Symbol("9"), m[9])
}

func TestUnmappedSymbolFailsAtCost(t *testing.T) {
	r := newReasoner(t, Options{
		MaxRevision: Count(1),
		Mapping:     map[int]symbol.Symbol{0: "3", 1: "4"},
	})

	_, err := r.Abduce(context.Background(), &data.Sample{
		Pred: symbol.Of("3", "4"),
		Y:    10,
		Prob: [][]float64{{0.5, 0.5}, {0.5, 0.5}},
	})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestAbduceRequireMoreRevision(t *testing.T) {
	r := newReasoner(t, Options{Cost: cost.ModeHamming, RequireMoreRevision: 1})

	res, err := r.AbduceResult(context.Background(), &data.Sample{Pred: symbol.Of("3", "4"), Y: 10})
	require.NoError(t, err)
	// k=1 finds two, k=2 adds all nine ordered pairs summing to ten.
	assert.Len(t, res.Candidates, 11)
	assert.Equal(t, symbol.Of("6", "4"), res.Abduced)
}

func TestAbduceCancelled(t *testing.T) {
	r := newReasoner(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Abduce(ctx, &data.Sample{Pred: symbol.Of("3", "4"), Y: 10})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAbduceWithOptimizer(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := newReasoner(t, Options{
		Cost:         cost.ModeHamming,
		MaxRevision:  Count(1),
		UseOptimizer: true,
		Optimizer:    &optimize.RACOS{Seed: 3},
		Metrics:      m,
	})

	got, err := r.Abduce(context.Background(), &data.Sample{Pred: symbol.Of("3", "4"), Y: 10})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 10.0, oracle.Evaluate(oracle.Sum, got, nil))
	assert.Equal(t, 1, symbol.Hamming(symbol.Of("3", "4"), got))
	assert.Positive(t, testutil.ToFloat64(m.OptimizerEvaluations))
}

func TestAbduceWithOptimizerNoConsistentMask(t *testing.T) {
	r := newReasoner(t, Options{
		Cost:         cost.ModeHamming,
		MaxRevision:  Count(0),
		UseOptimizer: true,
	})

	got, err := r.Abduce(context.Background(), &data.Sample{Pred: symbol.Of("3", "4"), Y: 10})
	require.NoError(t, err)
	assert.Nil(t, got)
}

type stubMinimizer struct {
	sol optimize.Solution
	err error
}

func (s stubMinimizer) Minimize(context.Context, optimize.Problem) (optimize.Solution, error) {
	return s.sol, s.err
}

func TestAbduceOptimizerErrors(t *testing.T) {
	sample := &data.Sample{Pred: symbol.Of("3", "4"), Y: 10}

	r := newReasoner(t, Options{UseOptimizer: true, Optimizer: stubMinimizer{err: optimize.ErrInfeasible}})
	got, err := r.Abduce(context.Background(), sample)
	require.NoError(t, err)
	assert.Nil(t, got)

	boom := errors.New("boom")
	r = newReasoner(t, Options{UseOptimizer: true, Optimizer: stubMinimizer{err: boom}})
	_, err = r.Abduce(context.Background(), sample)
	assert.ErrorIs(t, err, boom)
}

func TestBatchAbduce(t *testing.T) {
	r := newReasoner(t, Options{Cost: cost.ModeHamming, MaxRevision: Count(1), Parallel: 2})

	b := data.NewBatch(
		&data.Sample{Pred: symbol.Of("3", "4"), Y: 10},
		&data.Sample{Pred: symbol.Of("1", "1"), Y: 2},
		&data.Sample{Pred: symbol.Of("1", "1"), Y: 18},
		&data.Sample{Pred: symbol.Of("1", "2", "3"), Y: 7},
	)
	got, err := r.BatchAbduce(context.Background(), b)
	require.NoError(t, err)

	want := []symbol.Sequence{
		symbol.Of("6", "4"),
		symbol.Of("1", "1"),
		nil,
		symbol.Of("2", "2", "3"),
	}
	assert.Equal(t, want, got)
	assert.Equal(t, want, b.Abduced())
}

func TestBatchAbduceMatchesSequential(t *testing.T) {
	k := addKB(t)
	seq := newReasoner(t, Options{KB: k, Cost: cost.ModeHamming})
	par := newReasoner(t, Options{KB: k, Cost: cost.ModeHamming, Parallel: 4})

	var samples, copies []*data.Sample
	for i := 0; i < 20; i++ {
		s := &data.Sample{Pred: symbol.Of("3", "4", "5"), Y: float64(i)}
		samples = append(samples, s)
		c := *s
		copies = append(copies, &c)
	}

	want, err := seq.BatchAbduce(context.Background(), data.NewBatch(samples...))
	require.NoError(t, err)
	got, err := par.BatchAbduce(context.Background(), data.NewBatch(copies...))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBatchAbduceError(t *testing.T) {
	r := newReasoner(t, Options{Cost: cost.ModeHamming, Parallel: 2})

	b := data.NewBatch(
		&data.Sample{Pred: symbol.Of("3", "4"), Y: 10},
		&data.Sample{},
	)
	_, err := r.BatchAbduce(context.Background(), b)
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
	assert.Nil(t, b.Abduced()[0])
}
