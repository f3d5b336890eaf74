// Package oracle defines the logical forward function a knowledge base is
// built over, and the built-in problem domains.
package oracle

import (
	"fmt"
	"math"

	"github.com/cognicore/abl/pkg/abl/symbol"
)

// Value is the derived label of a sequence. Discrete labels are carried as
// whole numbers.
type Value = float64

// Invalid marks a sequence the oracle cannot interpret.
var Invalid = math.Inf(1)

// IsInvalid reports whether v is the invalid sentinel (or NaN, which the
// arithmetic domains can produce and which no target ever equals).
func IsInvalid(v Value) bool {
	return math.IsInf(v, 0) || math.IsNaN(v)
}

// Oracle maps a symbol sequence, plus the sample's raw input for domains
// that need it, to a value. Implementations must be deterministic and free of
// side effects: knowledge bases precompute and memoize over them.
type Oracle interface {
	Forward(seq symbol.Sequence, input any) (Value, error)
}

// Func adapts a plain function to Oracle.
type Func func(seq symbol.Sequence, input any) (Value, error)

// Forward implements Oracle.
func (f Func) Forward(seq symbol.Sequence, input any) (Value, error) {
	return f(seq, input)
}

// Evaluate runs o and folds every failure, returned or panicked, into
// Invalid.
func Evaluate(o Oracle, seq symbol.Sequence, input any) (v Value) {
	defer func() {
		if r := recover(); r != nil {
			v = Invalid
		}
	}()

	v, err := o.Forward(seq, input)
	if err != nil || math.IsNaN(v) {
		return Invalid
	}
	if v == 0 {
		v = 0 // fold -0
	}
	return v
}

// Matcher decides whether an evaluated value satisfies a target.
type Matcher struct {
	tol float64
}

// Exact matches classification-style labels.
func Exact() Matcher { return Matcher{} }

// Within matches regression-style values up to tol.
func Within(tol float64) Matcher {
	if tol < 0 {
		tol = -tol
	}
	return Matcher{tol: tol}
}

// Tolerance returns the accepted absolute error.
func (m Matcher) Tolerance() float64 { return m.tol }

// Match reports whether got satisfies want. Invalid never matches.
func (m Matcher) Match(got, want Value) bool {
	if IsInvalid(got) || math.IsNaN(want) {
		return false
	}
	if m.tol == 0 {
		return got == want
	}
	return math.Abs(got-want) <= m.tol
}

func (m Matcher) String() string {
	if m.tol == 0 {
		return "exact"
	}
	return fmt.Sprintf("within(%g)", m.tol)
}
