// Package cost ranks consistent candidates against the original prediction.
package cost

import (
	"fmt"
	"math"

	"github.com/cognicore/abl/pkg/abl/data"
	"github.com/cognicore/abl/pkg/abl/internalerr"
	"github.com/cognicore/abl/pkg/abl/oracle"
	"github.com/cognicore/abl/pkg/abl/symbol"
)

// Mode selects a predefined cost.
type Mode string

const (
	// ModeHamming counts symbols that differ from the prediction.
	ModeHamming Mode = "hamming"
	// ModeConfidence scores candidates by the model's own confidence.
	ModeConfidence Mode = "confidence"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeHamming, ModeConfidence:
		return m, nil
	}
	return "", fmt.Errorf("cost mode %q (want %q or %q): %w", s, ModeHamming, ModeConfidence, internalerr.ErrInvalidConfig)
}

// Func is a user-supplied cost. It receives the sample, the candidates,
// the candidates remapped to model label indices and their oracle values,
// and returns one cost per candidate.
type Func func(sample *data.Sample, candidates []symbol.Sequence, idxs [][]int, results []oracle.Value) ([]float64, error)

// probFloor keeps a zero probability from collapsing a product.
const probFloor = 1e-9

// Hamming returns the mismatch count of each candidate against pred.
func Hamming(pred symbol.Sequence, candidates []symbol.Sequence) []float64 {
	costs := make([]float64, len(candidates))
	for i, c := range candidates {
		costs[i] = float64(symbol.Hamming(pred, c))
	}
	return costs
}

// Confidence returns 1 minus the joint probability the model assigned to
// each candidate, with probabilities clipped to [1e-9, 1]. prob[pos] is the
// confidence row for one position; idxs holds candidates as label indices.
func Confidence(prob [][]float64, idxs [][]int) ([]float64, error) {
	costs := make([]float64, len(idxs))
	for i, c := range idxs {
		if len(c) != len(prob) {
			return nil, fmt.Errorf("candidate %d has %d symbols, confidence has %d rows: %w",
				i, len(c), len(prob), internalerr.ErrInvalidInput)
		}
		joint := 1.0
		for pos, label := range c {
			row := prob[pos]
			if label < 0 || label >= len(row) {
				return nil, fmt.Errorf("candidate %d position %d: label index %d outside %d classes: %w",
					i, pos, label, len(row), internalerr.ErrInvalidInput)
			}
			joint *= clip(row[label])
		}
		costs[i] = 1 - joint
	}
	return costs, nil
}

func clip(p float64) float64 {
	return math.Min(math.Max(p, probFloor), 1)
}

// Argmin returns the index of the smallest cost, the first one on ties,
// or -1 for no costs.
func Argmin(costs []float64) int {
	best := -1
	for i, c := range costs {
		if best < 0 || c < costs[best] {
			best = i
		}
	}
	return best
}

// Min returns the smallest cost, +Inf for none.
func Min(costs []float64) float64 {
	if i := Argmin(costs); i >= 0 {
		return costs[i]
	}
	return math.Inf(1)
}
