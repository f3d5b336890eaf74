package reasoner

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cognicore/abl/pkg/abl/internalerr"
)

type limitKind int

const (
	limitNone limitKind = iota
	limitCount
	limitFraction
)

// RevisionLimit bounds how many predicted symbols one abduction may change.
// The zero value means no limit.
type RevisionLimit struct {
	kind  limitKind
	count int
	frac  float64
}

// NoLimit allows revising every symbol.
func NoLimit() RevisionLimit { return RevisionLimit{} }

// Count allows at most n revisions. Count(-1) is NoLimit.
func Count(n int) RevisionLimit {
	if n == -1 {
		return NoLimit()
	}
	return RevisionLimit{kind: limitCount, count: n}
}

// Fraction allows revising round(f * length) symbols, f in [0, 1].
func Fraction(f float64) RevisionLimit {
	return RevisionLimit{kind: limitFraction, frac: f}
}

// ParseRevisionLimit reads "-1", an integer count or a decimal fraction
// such as "0.5".
func ParseRevisionLimit(s string) (RevisionLimit, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NoLimit(), nil
	}
	if strings.ContainsAny(s, ".eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return RevisionLimit{}, fmt.Errorf("max revision %q: %w", s, internalerr.ErrInvalidConfig)
		}
		l := Fraction(f)
		return l, l.Validate()
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return RevisionLimit{}, fmt.Errorf("max revision %q: %w", s, internalerr.ErrInvalidConfig)
	}
	l := Count(n)
	return l, l.Validate()
}

// Validate rejects negative counts and fractions outside [0, 1].
func (l RevisionLimit) Validate() error {
	switch l.kind {
	case limitCount:
		if l.count < 0 {
			return fmt.Errorf("max revision count %d must be non-negative or -1: %w", l.count, internalerr.ErrInvalidConfig)
		}
	case limitFraction:
		if math.IsNaN(l.frac) || l.frac < 0 || l.frac > 1 {
			return fmt.Errorf("max revision fraction %v must be within [0, 1]: %w", l.frac, internalerr.ErrInvalidConfig)
		}
	}
	return nil
}

// Resolve returns the revision budget for a sequence of n symbols.
// Fractions round half to even.
func (l RevisionLimit) Resolve(n int) int {
	switch l.kind {
	case limitCount:
		return l.count
	case limitFraction:
		return int(math.RoundToEven(float64(n) * l.frac))
	default:
		return n
	}
}

func (l RevisionLimit) String() string {
	switch l.kind {
	case limitCount:
		return strconv.Itoa(l.count)
	case limitFraction:
		return strconv.FormatFloat(l.frac, 'g', -1, 64)
	default:
		return "-1"
	}
}
