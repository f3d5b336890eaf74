package optimize

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
)

// RACOS is a sequential randomized coordinate-shrinking minimizer for
// binary problems. It keeps a few best points as positives and the rest of
// a training set as negatives; each step fixes coordinates of a random
// positive until no negative remains in the region, then samples inside the
// region.
//
// The zero value is usable; unset fields take defaults sized for budgets
// around one hundred evaluations.
type RACOS struct {
	Seed uint64

	// TrainSize is the number of points kept for region learning.
	// Default 22.
	TrainSize int

	// PositiveSize is how many of them count as positives. Default 2.
	PositiveSize int

	// UncertainBits caps the free coordinates of a learned region.
	// Default 1.
	UncertainBits int

	// Exploration is the probability of sampling the whole cube instead
	// of a learned region. Zero means the default 0.01; any negative
	// value disables exploration once the training set is drawn.
	Exploration float64

	// MaxResample bounds consecutive rejected samples (infeasible or
	// already evaluated) before the search stops early. Default 1000.
	MaxResample int
}

var _ Minimizer = (*RACOS)(nil)

type point struct {
	x []bool
	v float64
}

// Minimize implements Minimizer.
func (r *RACOS) Minimize(ctx context.Context, p Problem) (Solution, error) {
	if p.Dim <= 0 {
		return Solution{}, fmt.Errorf("dimension %d must be positive", p.Dim)
	}
	if p.Objective == nil {
		return Solution{}, fmt.Errorf("nil objective")
	}
	if p.Budget <= 0 {
		return Solution{}, fmt.Errorf("budget %d must be positive", p.Budget)
	}

	s := r.newRun(p)

	for _, x := range p.Init {
		if len(x) != p.Dim {
			return Solution{}, fmt.Errorf("initial point has %d coordinates, want %d", len(x), p.Dim)
		}
		if err := ctx.Err(); err != nil {
			return Solution{}, err
		}
		s.try(append([]bool(nil), x...))
	}

	// training set from the whole cube
	for len(s.train) < s.trainSize && s.canContinue() {
		if err := ctx.Err(); err != nil {
			return Solution{}, err
		}
		s.try(s.uniform())
	}
	s.split()

	for s.canContinue() {
		if err := ctx.Err(); err != nil {
			return Solution{}, err
		}
		var x []bool
		if s.rng.Float64() < s.exploration || len(s.pos) == 0 {
			x = s.uniform()
		} else {
			x = s.sampleRegion()
		}
		if pt, ok := s.try(x); ok {
			s.update(pt)
		}
	}

	if s.best == nil {
		return Solution{Evaluations: s.evals}, ErrInfeasible
	}
	return Solution{X: s.best.x, Value: s.best.v, Evaluations: s.evals}, nil
}

type run struct {
	p           Problem
	rng         *rand.Rand
	trainSize   int
	posSize     int
	uncertain   int
	exploration float64
	maxResample int

	seen     map[string]struct{}
	train    []point
	pos      []point
	neg      []point
	best     *point
	evals    int
	rejected int
}

func (r *RACOS) newRun(p Problem) *run {
	s := &run{
		p:           p,
		rng:         rand.New(rand.NewPCG(r.Seed, r.Seed^0x9e3779b97f4a7c15)),
		trainSize:   orDefault(r.TrainSize, 22),
		posSize:     orDefault(r.PositiveSize, 2),
		uncertain:   orDefault(r.UncertainBits, 1),
		exploration: r.Exploration,
		maxResample: orDefault(r.MaxResample, 1000),
		seen:        make(map[string]struct{}),
	}
	switch {
	case s.exploration == 0:
		s.exploration = 0.01
	case s.exploration < 0:
		s.exploration = 0
	}
	if s.posSize >= s.trainSize {
		s.posSize = s.trainSize - 1
	}
	if s.posSize < 1 {
		s.posSize = 1
	}
	return s
}

func (s *run) canContinue() bool {
	return s.evals < s.p.Budget && s.rejected < s.maxResample
}

// try evaluates x unless it is infeasible or already evaluated.
func (s *run) try(x []bool) (point, bool) {
	key := bitKey(x)
	if _, dup := s.seen[key]; dup || !s.p.feasible(x) {
		s.rejected++
		return point{}, false
	}
	s.seen[key] = struct{}{}
	s.rejected = 0

	pt := point{x: x, v: s.p.Objective(x)}
	s.evals++
	if s.best == nil || pt.v < s.best.v {
		cp := pt
		s.best = &cp
	}
	if s.pos == nil && s.neg == nil {
		s.train = append(s.train, pt)
	}
	return pt, true
}

// split partitions the training set once it is complete.
func (s *run) split() {
	sort.SliceStable(s.train, func(i, j int) bool { return s.train[i].v < s.train[j].v })
	n := min(s.posSize, len(s.train))
	s.pos = append([]point(nil), s.train[:n]...)
	s.neg = append([]point(nil), s.train[n:]...)
	if s.pos == nil {
		s.pos = []point{}
	}
	if s.neg == nil {
		s.neg = []point{}
	}
}

// update folds a new point into the positive and negative sets: it either
// displaces the worst positive, which becomes a negative, or replaces the
// worst negative if it beats it.
func (s *run) update(pt point) {
	if len(s.pos) == 0 {
		s.pos = append(s.pos, pt)
		return
	}
	worstPos := argmax(s.pos)
	if pt.v < s.pos[worstPos].v {
		displaced := s.pos[worstPos]
		s.pos[worstPos] = pt
		pt = displaced
	}
	if len(s.neg) < s.trainSize-len(s.pos) {
		s.neg = append(s.neg, pt)
		return
	}
	if len(s.neg) == 0 {
		return
	}
	if worst := argmax(s.neg); pt.v < s.neg[worst].v {
		s.neg[worst] = pt
	}
}

// uniform draws from the whole cube. Each draw picks its own bit density so
// sparse and dense points are both likely.
func (s *run) uniform() []bool {
	density := s.rng.Float64()
	x := make([]bool, s.p.Dim)
	for i := range x {
		x[i] = s.rng.Float64() < density
	}
	return x
}

// sampleRegion learns a region around a random positive that excludes
// every negative, then draws inside it.
func (s *run) sampleRegion() []bool {
	center := s.pos[s.rng.IntN(len(s.pos))].x
	fixed := make([]bool, s.p.Dim)

	inside := make([]point, len(s.neg))
	copy(inside, s.neg)
	for len(inside) > 0 {
		k := s.rng.IntN(len(inside))
		neg := inside[k].x

		var diff []int
		for i := range neg {
			if !fixed[i] && neg[i] != center[i] {
				diff = append(diff, i)
			}
		}
		if len(diff) > 0 {
			fixed[diff[s.rng.IntN(len(diff))]] = true
		}

		// keep only negatives still inside the region
		kept := inside[:0]
		for _, n := range inside {
			if agreesOnFixed(n.x, center, fixed) && !identical(n.x, center) {
				kept = append(kept, n)
			}
		}
		inside = kept
	}

	var free []int
	for i, f := range fixed {
		if !f {
			free = append(free, i)
		}
	}
	for len(free) > s.uncertain {
		k := s.rng.IntN(len(free))
		fixed[free[k]] = true
		free = append(free[:k], free[k+1:]...)
	}

	if len(free) == 0 {
		// the region collapsed onto center; step to a neighbour
		free = []int{s.rng.IntN(s.p.Dim)}
	}

	x := append([]bool(nil), center...)
	for _, i := range free {
		x[i] = s.rng.IntN(2) == 1
	}
	if identical(x, center) {
		i := free[s.rng.IntN(len(free))]
		x[i] = !x[i]
	}
	return x
}

func agreesOnFixed(x, center, fixed []bool) bool {
	for i, f := range fixed {
		if f && x[i] != center[i] {
			return false
		}
	}
	return true
}

func identical(a, b []bool) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func argmax(pts []point) int {
	w := 0
	for i, p := range pts {
		if p.v > pts[w].v {
			w = i
		}
	}
	return w
}

func bitKey(x []bool) string {
	var b strings.Builder
	b.Grow(len(x))
	for _, v := range x {
		if v {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
