// Package optimize is the derivative-free minimizer boundary used when
// revision masks are searched instead of enumerated.
//
// A Problem is passed by value into a single Minimize call; minimizers keep
// no state between calls.
package optimize

import (
	"context"
	"errors"
)

// ErrInfeasible is returned when no feasible point could be sampled.
var ErrInfeasible = errors.New("no feasible solution sampled")

// Problem is a minimization over the binary cube {0,1}^Dim.
type Problem struct {
	Dim int

	// Objective scores a feasible point; lower is better.
	Objective func(x []bool) float64

	// Constraint reports feasibility. Infeasible points are discarded
	// without calling Objective. Nil accepts every point.
	Constraint func(x []bool) bool

	// Budget is the number of Objective calls allowed.
	Budget int

	// Init lists points to evaluate before sampling starts.
	Init [][]bool
}

func (p Problem) feasible(x []bool) bool {
	return p.Constraint == nil || p.Constraint(x)
}

// Solution is the best point found.
type Solution struct {
	X           []bool
	Value       float64
	Evaluations int
}

// Minimizer is any black-box optimizer honoring the Problem contract.
type Minimizer interface {
	Minimize(ctx context.Context, p Problem) (Solution, error)
}

// Mask decodes a point into the positions set to true.
func Mask(x []bool) []int {
	var idx []int
	for i, b := range x {
		if b {
			idx = append(idx, i)
		}
	}
	return idx
}

// Count returns the number of set positions.
func Count(x []bool) int {
	n := 0
	for _, b := range x {
		if b {
			n++
		}
	}
	return n
}

// AtMost is the cardinality constraint Count(x) <= k.
func AtMost(k int) func([]bool) bool {
	return func(x []bool) bool { return Count(x) <= k }
}
