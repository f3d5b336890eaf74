package kb

import (
	"sort"

	"github.com/cognicore/abl/pkg/abl/oracle"
	"github.com/cognicore/abl/pkg/abl/symbol"
)

// group holds the sequences of one length, bucketed by value in first-seen
// order.
type group struct {
	order   []oracle.Value
	buckets map[oracle.Value][]symbol.Sequence
	n       int
}

func newGroup() *group {
	return &group{buckets: make(map[oracle.Value][]symbol.Sequence)}
}

func (g *group) add(seq symbol.Sequence, v oracle.Value) {
	if _, ok := g.buckets[v]; !ok {
		g.order = append(g.order, v)
	}
	g.buckets[v] = append(g.buckets[v], seq)
	g.n++
}

func (g *group) all() []symbol.Sequence {
	out := make([]symbol.Sequence, 0, g.n)
	for _, v := range g.order {
		out = append(out, g.buckets[v]...)
	}
	return out
}

// index groups entries by length, then by value. It is only written while
// the owning knowledge base is constructed.
type index struct {
	lengths []int
	groups  map[int]*group
}

func newIndex() *index {
	return &index{groups: make(map[int]*group)}
}

func (ix *index) add(seq symbol.Sequence, v oracle.Value) {
	g, ok := ix.groups[len(seq)]
	if !ok {
		g = newGroup()
		ix.groups[len(seq)] = g
		ix.lengths = append(ix.lengths, len(seq))
	}
	g.add(seq, v)
}

func (ix *index) empty() bool { return len(ix.lengths) == 0 }

// resolve returns the requested lengths, or every stored length.
func (ix *index) resolve(lengths []int) []int {
	if len(lengths) == 0 {
		return ix.lengths
	}
	return lengths
}

func (ix *index) lookup(key oracle.Value, lengths []int) []symbol.Sequence {
	var out []symbol.Sequence
	for _, l := range ix.resolve(lengths) {
		if g, ok := ix.groups[l]; ok {
			out = appendClones(out, g.buckets[key])
		}
	}
	return out
}

func (ix *index) all(lengths []int) []symbol.Sequence {
	var out []symbol.Sequence
	for _, l := range ix.resolve(lengths) {
		if g, ok := ix.groups[l]; ok {
			out = appendClones(out, g.all())
		}
	}
	return out
}

// appendClones appends copies of src so callers never hold the index's
// own sequences.
func appendClones(dst, src []symbol.Sequence) []symbol.Sequence {
	for _, seq := range src {
		dst = append(dst, seq.Clone())
	}
	return dst
}

func (ix *index) count(lengths []int) int {
	n := 0
	for _, l := range ix.resolve(lengths) {
		if g, ok := ix.groups[l]; ok {
			n += g.n
		}
	}
	return n
}

func (ix *index) entries() []Entry {
	out := make([]Entry, 0, ix.count(nil))
	for _, l := range ix.lengths {
		g := ix.groups[l]
		for _, v := range g.order {
			for _, seq := range g.buckets[v] {
				out = append(out, Entry{Seq: seq.Clone(), Value: v})
			}
		}
	}
	return out
}

// sorted is the per-length nearest-value structure: unique values ascending,
// with the sequences for each value in a parallel slice.
type sorted struct {
	values []oracle.Value
	seqs   [][]symbol.Sequence
}

func (ix *index) sortedByValue() map[int]*sorted {
	out := make(map[int]*sorted, len(ix.groups))
	for l, g := range ix.groups {
		vals := make([]oracle.Value, len(g.order))
		copy(vals, g.order)
		sort.Float64s(vals)

		s := &sorted{values: vals, seqs: make([][]symbol.Sequence, len(vals))}
		for i, v := range vals {
			s.seqs[i] = g.buckets[v]
		}
		out[l] = s
	}
	return out
}
