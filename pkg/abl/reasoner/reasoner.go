// Package reasoner reconciles a perception model's predicted pseudo-labels
// with a knowledge base by abduction: it searches for the consistent
// sequence that revises the prediction least, then breaks ties by cost.
package reasoner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/abl/pkg/abl/cost"
	"github.com/cognicore/abl/pkg/abl/data"
	"github.com/cognicore/abl/pkg/abl/internalerr"
	"github.com/cognicore/abl/pkg/abl/kb"
	"github.com/cognicore/abl/pkg/abl/metrics"
	"github.com/cognicore/abl/pkg/abl/optimize"
	"github.com/cognicore/abl/pkg/abl/oracle"
	"github.com/cognicore/abl/pkg/abl/symbol"
)

// DefaultOptimizerBudget is the objective evaluation budget per sample.
const DefaultOptimizerBudget = 100

// Options configures a Reasoner.
type Options struct {
	KB kb.KnowledgeBase

	// Cost picks a predefined cost; empty means confidence. CostFunc, when
	// set, takes precedence.
	Cost     cost.Mode
	CostFunc cost.Func

	// Mapping maps model label indices to symbols. Nil maps index i to the
	// i-th alphabet symbol.
	Mapping map[int]symbol.Symbol

	MaxRevision         RevisionLimit
	RequireMoreRevision int

	// UseOptimizer searches revision masks with Optimizer instead of
	// enumerating every budget.
	UseOptimizer    bool
	Optimizer       optimize.Minimizer
	OptimizerBudget int

	// Parallel bounds concurrent samples in BatchAbduce; values below two
	// run sequentially.
	Parallel int

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Reasoner selects one abduced sequence per sample.
type Reasoner struct {
	kb          kb.KnowledgeBase
	mode        cost.Mode
	costFunc    cost.Func
	mapping     map[int]symbol.Symbol
	remapping   map[symbol.Symbol]int
	maxRevision RevisionLimit
	requireMore int
	useOpt      bool
	optimizer   optimize.Minimizer
	optBudget   int
	parallel    int
	log         *zap.Logger
	metrics     *metrics.Metrics
}

// Result describes one abduction.
type Result struct {
	// Abduced is the selected sequence, nil when nothing consistent was
	// found within the budget.
	Abduced    symbol.Sequence
	Candidates []symbol.Sequence
	Values     []oracle.Value

	// Costs is nil when selection did not need them.
	Costs  []float64
	Budget int
}

// Cost returns the selected candidate's cost and whether it was computed.
func (r Result) Cost() (float64, bool) {
	if r.Costs == nil || r.Abduced == nil {
		return 0, false
	}
	for i, c := range r.Candidates {
		if c.Equal(r.Abduced) {
			return r.Costs[i], true
		}
	}
	return 0, false
}

// New validates opts and builds a Reasoner. Every configuration error is
// reported here rather than on first use.
func New(opts Options) (*Reasoner, error) {
	if opts.KB == nil {
		return nil, fmt.Errorf("nil knowledge base: %w", internalerr.ErrInvalidConfig)
	}

	mode := opts.Cost
	if opts.CostFunc == nil {
		if mode == "" {
			mode = cost.ModeConfidence
		}
		if _, err := cost.ParseMode(string(mode)); err != nil {
			return nil, err
		}
	}

	mapping, remapping, err := buildMapping(opts.KB.Alphabet(), opts.Mapping)
	if err != nil {
		return nil, err
	}

	if err := opts.MaxRevision.Validate(); err != nil {
		return nil, err
	}
	if opts.RequireMoreRevision < 0 {
		return nil, fmt.Errorf("require more revision %d must be non-negative: %w", opts.RequireMoreRevision, internalerr.ErrInvalidConfig)
	}

	budget := opts.OptimizerBudget
	if budget == 0 {
		budget = DefaultOptimizerBudget
	}
	if budget < 0 {
		return nil, fmt.Errorf("optimizer budget %d must be positive: %w", budget, internalerr.ErrInvalidConfig)
	}
	optimizer := opts.Optimizer
	if optimizer == nil {
		optimizer = &optimize.RACOS{}
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Reasoner{
		kb:          opts.KB,
		mode:        mode,
		costFunc:    opts.CostFunc,
		mapping:     mapping,
		remapping:   remapping,
		maxRevision: opts.MaxRevision,
		requireMore: opts.RequireMoreRevision,
		useOpt:      opts.UseOptimizer,
		optimizer:   optimizer,
		optBudget:   budget,
		parallel:    opts.Parallel,
		log:         log,
		metrics:     opts.Metrics,
	}, nil
}

// buildMapping validates a label mapping and derives its inverse.
func buildMapping(a symbol.Alphabet, m map[int]symbol.Symbol) (map[int]symbol.Symbol, map[symbol.Symbol]int, error) {
	if m == nil {
		m = make(map[int]symbol.Symbol, a.Size())
		for i, s := range a.Symbols() {
			m[i] = s
		}
	}
	inverse := make(map[symbol.Symbol]int, len(m))
	for idx, s := range m {
		if idx < 0 {
			return nil, nil, fmt.Errorf("mapping index %d must be non-negative: %w", idx, internalerr.ErrInvalidConfig)
		}
		if !a.Contains(s) {
			return nil, nil, fmt.Errorf("mapping value %q not in alphabet: %w", s, internalerr.ErrInvalidConfig)
		}
		if prev, dup := inverse[s]; dup {
			return nil, nil, fmt.Errorf("mapping indices %d and %d both map to %q: %w", min(prev, idx), max(prev, idx), s, internalerr.ErrInvalidConfig)
		}
		inverse[s] = idx
	}
	out := make(map[int]symbol.Symbol, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out, inverse, nil
}

// Mapping returns a copy of the index to symbol mapping.
func (r *Reasoner) Mapping() map[int]symbol.Symbol {
	out := make(map[int]symbol.Symbol, len(r.mapping))
	for k, v := range r.mapping {
		out[k] = v
	}
	return out
}

// Abduce returns the abduced sequence for one sample, or nil when no
// consistent sequence exists within the revision budget.
func (r *Reasoner) Abduce(ctx context.Context, s *data.Sample) (symbol.Sequence, error) {
	res, err := r.AbduceResult(ctx, s)
	return res.Abduced, err
}

// AbduceResult is Abduce with the candidate set and costs.
func (r *Reasoner) AbduceResult(ctx context.Context, s *data.Sample) (Result, error) {
	start := time.Now()
	res, err := r.abduce(ctx, s)

	outcome := metrics.OutcomeRevised
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
	case res.Abduced == nil:
		outcome = metrics.OutcomeNoCandidate
		r.log.Warn("no consistent candidate",
			zap.String("sample", s.ID),
			zap.Stringer("pred", s.Pred),
			zap.Float64("target", s.Y),
			zap.Int("budget", res.Budget),
		)
	case res.Abduced.Equal(s.Pred):
		outcome = metrics.OutcomeUnchanged
	}
	r.metrics.RecordAbduction(outcome, len(res.Candidates), res.Budget, time.Since(start))
	return res, err
}

func (r *Reasoner) abduce(ctx context.Context, s *data.Sample) (Result, error) {
	if err := s.Validate(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	n := s.Len()
	res := Result{Budget: r.maxRevision.Resolve(n)}

	var err error
	if r.useOpt {
		res.Candidates, res.Values, err = r.optimizeCandidates(ctx, s, res.Budget)
		if err != nil {
			return res, err
		}
	} else {
		res.Candidates, res.Values = r.kb.AbduceCandidates(s.Pred, s.Y, s.X, res.Budget, r.requireMore)
	}

	switch len(res.Candidates) {
	case 0:
	case 1:
		res.Abduced = res.Candidates[0]
	default:
		res.Costs, err = r.costs(s, res.Candidates, res.Values)
		if err != nil {
			return res, err
		}
		res.Abduced = res.Candidates[cost.Argmin(res.Costs)]
	}

	r.log.Debug("abduced",
		zap.String("sample", s.ID),
		zap.Int("budget", res.Budget),
		zap.Int("candidates", len(res.Candidates)),
		zap.Stringer("pred", s.Pred),
		zap.Stringer("abduced", res.Abduced),
	)
	return res, nil
}

// costs scores every candidate under the configured mode.
func (r *Reasoner) costs(s *data.Sample, candidates []symbol.Sequence, values []oracle.Value) ([]float64, error) {
	if r.costFunc == nil && r.mode == cost.ModeHamming {
		return cost.Hamming(s.Pred, candidates), nil
	}

	idxs, err := r.remap(candidates)
	if err != nil {
		return nil, err
	}
	if r.costFunc == nil {
		if s.Prob == nil {
			return nil, fmt.Errorf("sample %q: confidence cost needs probabilities: %w", s.ID, internalerr.ErrInvalidInput)
		}
		return cost.Confidence(s.Prob, idxs)
	}

	costs, err := r.costFunc(s, candidates, idxs, values)
	if err != nil {
		return nil, fmt.Errorf("cost function: %w", err)
	}
	if len(costs) != len(candidates) {
		return nil, fmt.Errorf("cost function returned %d costs for %d candidates: %w",
			len(costs), len(candidates), internalerr.ErrInvalidConfig)
	}
	return costs, nil
}

func (r *Reasoner) remap(candidates []symbol.Sequence) ([][]int, error) {
	idxs := make([][]int, len(candidates))
	for i, c := range candidates {
		row := make([]int, len(c))
		for pos, sym := range c {
			label, ok := r.remapping[sym]
			if !ok {
				return nil, fmt.Errorf("symbol %q has no model index: %w", sym, internalerr.ErrInvalidConfig)
			}
			row[pos] = label
		}
		idxs[i] = row
	}
	return idxs, nil
}

// optimizeCandidates searches revision masks with the black-box optimizer.
// A mask's score is the cheapest candidate it reaches, or the symbol count
// when it reaches none; masks revising more than budget symbols are
// infeasible.
func (r *Reasoner) optimizeCandidates(ctx context.Context, s *data.Sample, budget int) ([]symbol.Sequence, []oracle.Value, error) {
	n := s.Len()
	penalty := float64(n)

	var objErr error
	p := optimize.Problem{
		Dim: n,
		Objective: func(x []bool) float64 {
			candidates, values := r.kb.ReviseAtIdx(s.Pred, s.Y, s.X, optimize.Mask(x))
			if len(candidates) == 0 {
				return penalty
			}
			costs, err := r.costs(s, candidates, values)
			if err != nil {
				if objErr == nil {
					objErr = err
				}
				return penalty
			}
			return cost.Min(costs)
		},
		Constraint: optimize.AtMost(budget),
		Budget:     r.optBudget,
		Init:       [][]bool{make([]bool, n)},
	}

	sol, err := r.optimizer.Minimize(ctx, p)
	r.metrics.AddOptimizerEvaluations(sol.Evaluations)
	if objErr != nil {
		return nil, nil, objErr
	}
	if errors.Is(err, optimize.ErrInfeasible) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("optimize revision mask: %w", err)
	}

	r.log.Debug("optimizer finished",
		zap.String("sample", s.ID),
		zap.Int("evaluations", sol.Evaluations),
		zap.Float64("score", sol.Value),
		zap.Ints("mask", optimize.Mask(sol.X)),
	)
	candidates, values := r.kb.ReviseAtIdx(s.Pred, s.Y, s.X, optimize.Mask(sol.X))
	return candidates, values, nil
}

// BatchAbduce abduces every sample of b, attaches the results to the batch
// and returns them in sample order.
func (r *Reasoner) BatchAbduce(ctx context.Context, b *data.Batch) ([]symbol.Sequence, error) {
	results, err := r.BatchAbduceResults(ctx, b)
	if err != nil {
		return nil, err
	}
	out := make([]symbol.Sequence, len(results))
	for i, res := range results {
		out[i] = res.Abduced
	}
	return out, nil
}

// BatchAbduceResults is BatchAbduce with per-sample detail. Samples are
// independent; with Parallel > 1 they run concurrently.
func (r *Reasoner) BatchAbduceResults(ctx context.Context, b *data.Batch) ([]Result, error) {
	results := make([]Result, b.Len())

	g, gCtx := errgroup.WithContext(ctx)
	if r.parallel > 1 {
		g.SetLimit(r.parallel)
	} else {
		g.SetLimit(1)
	}
	for i := range b.Samples {
		g.Go(func() error {
			res, err := r.AbduceResult(gCtx, b.At(i))
			if err != nil {
				return fmt.Errorf("sample %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	abduced := make([]symbol.Sequence, len(results))
	for i, res := range results {
		abduced[i] = res.Abduced
	}
	if err := b.SetAbduced(abduced); err != nil {
		return nil, err
	}
	return results, nil
}
