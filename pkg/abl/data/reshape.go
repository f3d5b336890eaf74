package data

import (
	"fmt"

	"github.com/cognicore/abl/pkg/abl/internalerr"
	"github.com/cognicore/abl/pkg/abl/symbol"
)

// Flatten concatenates per-sample groups so a perception model can score
// them in one call. marks records each group's length for Reshape.
func Flatten[T any](groups [][]T) (flat []T, marks []int) {
	marks = make([]int, len(groups))
	for i, g := range groups {
		marks[i] = len(g)
		flat = append(flat, g...)
	}
	return flat, marks
}

// Reshape splits flat back into groups of the given lengths.
func Reshape[T any](flat []T, marks []int) ([][]T, error) {
	total := 0
	for _, m := range marks {
		if m < 0 {
			return nil, fmt.Errorf("negative mark %d: %w", m, internalerr.ErrInvalidInput)
		}
		total += m
	}
	if total != len(flat) {
		return nil, fmt.Errorf("marks cover %d elements, have %d: %w", total, len(flat), internalerr.ErrInvalidInput)
	}

	out := make([][]T, len(marks))
	begin := 0
	for i, m := range marks {
		out[i] = flat[begin : begin+m : begin+m]
		begin += m
	}
	return out, nil
}

// Argmax turns per-position confidence rows into pseudo-labels using the
// model-index to label mapping.
func Argmax(prob [][]float64, labels map[int]symbol.Symbol) (symbol.Sequence, error) {
	seq := make(symbol.Sequence, len(prob))
	for pos, row := range prob {
		if len(row) == 0 {
			return nil, fmt.Errorf("position %d: empty confidence row: %w", pos, internalerr.ErrInvalidInput)
		}
		best := 0
		for i, p := range row {
			if p > row[best] {
				best = i
			}
		}
		label, ok := labels[best]
		if !ok {
			return nil, fmt.Errorf("position %d: no label for index %d: %w", pos, best, internalerr.ErrInvalidInput)
		}
		seq[pos] = label
	}
	return seq, nil
}
