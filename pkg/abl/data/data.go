// Package data holds the per-sample records that flow from a perception
// model through the reasoner, and the batch container around them.
package data

import (
	"fmt"

	"github.com/cognicore/abl/pkg/abl/internalerr"
	"github.com/cognicore/abl/pkg/abl/oracle"
	"github.com/cognicore/abl/pkg/abl/symbol"
)

// Sample is one instance: the perception model's prediction and confidence,
// the raw input and the value the oracle must reproduce.
type Sample struct {
	ID      string          `json:"id,omitempty"`
	Pred    symbol.Sequence `json:"pred"`
	Prob    [][]float64     `json:"prob,omitempty"` // Prob[pos][label index]
	X       any             `json:"x,omitempty"`
	Y       oracle.Value    `json:"y"`
	Abduced symbol.Sequence `json:"abduced,omitempty"`
}

// Len is the number of predicted symbols.
func (s *Sample) Len() int { return len(s.Pred) }

// Validate checks the sample is usable for abduction.
func (s *Sample) Validate() error {
	if len(s.Pred) == 0 {
		return fmt.Errorf("sample %q: empty prediction: %w", s.ID, internalerr.ErrInvalidInput)
	}
	if s.Prob != nil && len(s.Prob) != len(s.Pred) {
		return fmt.Errorf("sample %q: %d confidence rows for %d symbols: %w",
			s.ID, len(s.Prob), len(s.Pred), internalerr.ErrInvalidInput)
	}
	return nil
}

// Batch is a record-oriented container of samples with named per-sample
// fields. The abduced labels land in the Abduced field of each sample; any
// other field can be attached with Set.
type Batch struct {
	ID      string
	Samples []*Sample
	fields  map[string][]any
}

// NewBatch wraps samples.
func NewBatch(samples ...*Sample) *Batch {
	return &Batch{Samples: samples}
}

// Len returns the number of samples.
func (b *Batch) Len() int { return len(b.Samples) }

// At returns the i-th sample.
func (b *Batch) At(i int) *Sample { return b.Samples[i] }

// Preds returns the predicted sequences in sample order.
func (b *Batch) Preds() []symbol.Sequence {
	out := make([]symbol.Sequence, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = s.Pred
	}
	return out
}

// Targets returns the target values in sample order.
func (b *Batch) Targets() []oracle.Value {
	out := make([]oracle.Value, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = s.Y
	}
	return out
}

// Abduced returns the abduced sequences in sample order.
func (b *Batch) Abduced() []symbol.Sequence {
	out := make([]symbol.Sequence, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = s.Abduced
	}
	return out
}

// SetAbduced attaches one abduced sequence per sample.
func (b *Batch) SetAbduced(seqs []symbol.Sequence) error {
	if len(seqs) != len(b.Samples) {
		return fmt.Errorf("%d abduced sequences for %d samples: %w", len(seqs), len(b.Samples), internalerr.ErrInvalidInput)
	}
	for i, s := range b.Samples {
		s.Abduced = seqs[i]
	}
	return nil
}

// Set attaches a named per-sample field.
func (b *Batch) Set(name string, values []any) error {
	if len(values) != len(b.Samples) {
		return fmt.Errorf("field %q: %d values for %d samples: %w", name, len(values), len(b.Samples), internalerr.ErrInvalidInput)
	}
	if b.fields == nil {
		b.fields = make(map[string][]any)
	}
	b.fields[name] = values
	return nil
}

// Field returns a field attached with Set.
func (b *Batch) Field(name string) ([]any, bool) {
	v, ok := b.fields[name]
	return v, ok
}
