package oracle

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/cognicore/abl/pkg/abl/symbol"
)

var errDivByZero = errors.New("division by zero")

// Sum adds digit symbols: the MNIST-addition domain.
var Sum Oracle = Func(func(seq symbol.Sequence, _ any) (Value, error) {
	total := 0
	for i, s := range seq {
		n, err := strconv.Atoi(string(s))
		if err != nil {
			return Invalid, fmt.Errorf("position %d: %w", i, err)
		}
		total += n
	}
	return Value(total), nil
})

// Formula evaluates handwritten formulas such as 1+2*3. A well-formed
// formula has odd length, digits at even positions and operators at odd
// positions. Multiplication and division bind tighter than addition and
// subtraction, division is real-valued and results are rounded to two
// decimals, halves to even.
var Formula Oracle = Func(func(seq symbol.Sequence, _ any) (Value, error) {
	if !ValidFormula(seq) {
		return Invalid, fmt.Errorf("malformed formula %q", seq.String())
	}
	v, err := evalFormula(seq)
	if err != nil {
		return Invalid, err
	}
	return math.RoundToEven(v*100) / 100, nil
})

// ValidFormula checks formula syntax without evaluating it.
func ValidFormula(seq symbol.Sequence) bool {
	if len(seq)%2 == 0 {
		return false
	}
	for i, s := range seq {
		if i%2 == 0 && !isDigit(s) {
			return false
		}
		if i%2 != 0 && !isOperator(s) {
			return false
		}
	}
	return true
}

func isDigit(s symbol.Symbol) bool {
	return len(s) == 1 && s[0] >= '0' && s[0] <= '9'
}

func isOperator(s symbol.Symbol) bool {
	switch s {
	case "+", "-", "*", "/":
		return true
	}
	return false
}

// evalFormula assumes ValidFormula holds. It folds each multiplicative run
// into a term and sums the terms.
func evalFormula(seq symbol.Sequence) (float64, error) {
	digit := func(i int) float64 { return float64(seq[i][0] - '0') }

	sum := 0.0
	sign := 1.0
	term := digit(0)
	for i := 1; i < len(seq); i += 2 {
		rhs := digit(i + 1)
		switch seq[i] {
		case "*":
			term *= rhs
		case "/":
			if rhs == 0 {
				return 0, errDivByZero
			}
			term /= rhs
		case "+", "-":
			sum += sign * term
			sign = 1
			if seq[i] == "-" {
				sign = -1
			}
			term = rhs
		}
	}
	return sum + sign*term, nil
}
