// Package symbol defines the pseudo-label vocabulary shared by knowledge
// bases, oracles and the reasoner.
package symbol

import (
	"fmt"
	"strings"

	"github.com/cognicore/abl/pkg/abl/internalerr"
)

// Symbol is one pseudo-label, e.g. "7" or "+".
type Symbol string

// Sequence is an ordered labeling of one data sample.
type Sequence []Symbol

// keySep never occurs inside a symbol of the built-in alphabets.
const keySep = "\x1f"

// Of builds a sequence from plain strings.
func Of(symbols ...string) Sequence {
	seq := make(Sequence, len(symbols))
	for i, s := range symbols {
		seq[i] = Symbol(s)
	}
	return seq
}

// Clone returns an independent copy.
func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}
	out := make(Sequence, len(s))
	copy(out, s)
	return out
}

// Equal reports element-wise equality.
func (s Sequence) Equal(other Sequence) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Key returns a stable string form used for memoization and persistence.
func (s Sequence) Key() string {
	parts := make([]string, len(s))
	for i, sym := range s {
		parts[i] = string(sym)
	}
	return strings.Join(parts, keySep)
}

// String renders the sequence as space-free concatenation, e.g. "1+1".
func (s Sequence) String() string {
	var b strings.Builder
	for _, sym := range s {
		b.WriteString(string(sym))
	}
	return b.String()
}

// ParseSequence inverts Key.
func ParseSequence(key string) Sequence {
	if key == "" {
		return Sequence{}
	}
	return Of(strings.Split(key, keySep)...)
}

// Hamming counts the positions where a and b differ. Sequences of different
// lengths are never compared; the result for them is -1.
func Hamming(a, b Sequence) int {
	if len(a) != len(b) {
		return -1
	}
	n := 0
	for i := range a {
		if a[i] != b[i] {
			n++
		}
	}
	return n
}

// Alphabet is the ordered, finite pseudo-label list.
type Alphabet struct {
	symbols []Symbol
	index   map[Symbol]int
}

// NewAlphabet validates and builds an alphabet. Order is significant: it
// drives enumeration order and the default label mapping.
func NewAlphabet(symbols ...Symbol) (Alphabet, error) {
	if len(symbols) == 0 {
		return Alphabet{}, fmt.Errorf("empty alphabet: %w", internalerr.ErrInvalidInput)
	}
	idx := make(map[Symbol]int, len(symbols))
	for i, s := range symbols {
		if _, dup := idx[s]; dup {
			return Alphabet{}, fmt.Errorf("duplicate symbol %q: %w", s, internalerr.ErrInvalidInput)
		}
		idx[s] = i
	}
	cp := make([]Symbol, len(symbols))
	copy(cp, symbols)
	return Alphabet{symbols: cp, index: idx}, nil
}

// MustAlphabet is NewAlphabet for static definitions.
func MustAlphabet(symbols ...Symbol) Alphabet {
	a, err := NewAlphabet(symbols...)
	if err != nil {
		panic(err)
	}
	return a
}

// Digits is 0..9.
func Digits() Alphabet {
	return MustAlphabet("0", "1", "2", "3", "4", "5", "6", "7", "8", "9")
}

// Arithmetic is the handwritten-formula alphabet: digits plus + - * /.
func Arithmetic() Alphabet {
	return MustAlphabet("0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "+", "-", "*", "/")
}

// Size returns the number of symbols.
func (a Alphabet) Size() int { return len(a.symbols) }

// Symbols returns a copy of the symbols in order.
func (a Alphabet) Symbols() []Symbol {
	out := make([]Symbol, len(a.symbols))
	copy(out, a.symbols)
	return out
}

// At returns the i-th symbol.
func (a Alphabet) At(i int) Symbol { return a.symbols[i] }

// Index returns the position of s, or -1.
func (a Alphabet) Index(s Symbol) int {
	if i, ok := a.index[s]; ok {
		return i
	}
	return -1
}

// Contains reports membership.
func (a Alphabet) Contains(s Symbol) bool {
	_, ok := a.index[s]
	return ok
}
