package kb

import (
	"github.com/cognicore/abl/pkg/abl/symbol"
)

// MinEnumeratedLen is the shortest length materialized by enumeration.
const MinEnumeratedLen = 2

// enumerate calls fn with every sequence of length minLen..maxLen over the
// alphabet, shorter lengths first and, within a length, in product order.
// fn owns the sequence it receives.
func enumerate(a symbol.Alphabet, minLen, maxLen int, fn func(symbol.Sequence)) {
	size := a.Size()
	for l := minLen; l <= maxLen; l++ {
		digits := make([]int, l)
		for {
			seq := make(symbol.Sequence, l)
			for i, d := range digits {
				seq[i] = a.At(d)
			}
			fn(seq)

			i := l - 1
			for ; i >= 0; i-- {
				digits[i]++
				if digits[i] < size {
					break
				}
				digits[i] = 0
			}
			if i < 0 {
				break
			}
		}
	}
}
