package symbol

import (
	"errors"
	"testing"

	"github.com/cognicore/abl/pkg/abl/internalerr"
)

func TestNewAlphabetRejectsDuplicates(t *testing.T) {
	_, err := NewAlphabet("a", "b", "a")
	if !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	if _, err := NewAlphabet(); err == nil {
		t.Error("empty alphabet should be rejected")
	}
}

func TestAlphabetIndex(t *testing.T) {
	a := Arithmetic()
	if a.Size() != 14 {
		t.Fatalf("expected 14 symbols, got %d", a.Size())
	}
	if a.Index("+") != 10 {
		t.Errorf("expected + at 10, got %d", a.Index("+"))
	}
	if a.Index("x") != -1 {
		t.Error("unknown symbol should map to -1")
	}
	if !a.Contains("9") || a.Contains("=") {
		t.Error("Contains mismatch")
	}
}

func TestSequenceKeyRoundTrip(t *testing.T) {
	seq := Of("1", "+", "1")
	back := ParseSequence(seq.Key())
	if !seq.Equal(back) {
		t.Errorf("round trip mismatch: %v vs %v", seq, back)
	}
	if seq.String() != "1+1" {
		t.Errorf("String() = %q", seq.String())
	}
}

func TestHamming(t *testing.T) {
	tests := []struct {
		a, b Sequence
		want int
	}{
		{Of("3", "4"), Of("3", "4"), 0},
		{Of("3", "4"), Of("6", "4"), 1},
		{Of("3", "4"), Of("1", "2"), 2},
		{Of("3"), Of("3", "4"), -1},
	}
	for _, tc := range tests {
		if got := Hamming(tc.a, tc.b); got != tc.want {
			t.Errorf("Hamming(%v, %v) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	seq := Of("1", "2")
	cp := seq.Clone()
	cp[0] = "9"
	if seq[0] != "1" {
		t.Error("Clone shares storage")
	}
}
