package data

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/abl/pkg/abl/internalerr"
	"github.com/cognicore/abl/pkg/abl/symbol"
)

func TestBatchFields(t *testing.T) {
	b := NewBatch(
		&Sample{Pred: symbol.Of("3", "4"), Y: 10},
		&Sample{Pred: symbol.Of("1", "1"), Y: 2},
	)

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, []symbol.Sequence{symbol.Of("3", "4"), symbol.Of("1", "1")}, b.Preds())
	assert.Equal(t, []float64{10, 2}, b.Targets())

	require.NoError(t, b.SetAbduced([]symbol.Sequence{symbol.Of("6", "4"), symbol.Of("1", "1")}))
	assert.Equal(t, symbol.Of("6", "4"), b.At(0).Abduced)

	err := b.SetAbduced([]symbol.Sequence{symbol.Of("6", "4")})
	assert.True(t, errors.Is(err, internalerr.ErrInvalidInput))

	require.NoError(t, b.Set("cost", []any{1.0, 0.0}))
	v, ok := b.Field("cost")
	assert.True(t, ok)
	assert.Equal(t, []any{1.0, 0.0}, v)
	_, ok = b.Field("missing")
	assert.False(t, ok)
	assert.Error(t, b.Set("bad", []any{1}))
}

func TestSampleValidate(t *testing.T) {
	assert.Error(t, (&Sample{}).Validate())
	assert.Error(t, (&Sample{Pred: symbol.Of("1"), Prob: [][]float64{{1}, {1}}}).Validate())
	assert.NoError(t, (&Sample{Pred: symbol.Of("1")}).Validate())
}

func TestFlattenReshape(t *testing.T) {
	groups := [][]int{{1, 2}, {3}, {}, {4, 5, 6}}
	flat, marks := Flatten(groups)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, flat)
	assert.Equal(t, []int{2, 1, 0, 3}, marks)

	back, err := Reshape(flat, marks)
	require.NoError(t, err)
	assert.Equal(t, groups, back)

	_, err = Reshape(flat, []int{2, 2})
	assert.Error(t, err)
}

func TestArgmax(t *testing.T) {
	labels := map[int]symbol.Symbol{0: "a", 1: "b", 2: "c"}
	seq, err := Argmax([][]float64{{0.1, 0.7, 0.2}, {0.5, 0.2, 0.3}}, labels)
	require.NoError(t, err)
	assert.Equal(t, symbol.Of("b", "a"), seq)

	_, err = Argmax([][]float64{{0, 0, 0, 1}}, labels)
	assert.Error(t, err)
}

func TestReadAdditionTask(t *testing.T) {
	in := "0 1 7\n\n# comment\n2 3 10\n"
	samples, err := ReadAdditionTask(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, []int{0, 1}, samples[0].X)
	assert.Equal(t, 7.0, samples[0].Y)
	assert.Equal(t, "1", samples[1].ID)
	assert.Equal(t, 10.0, samples[1].Y)

	_, err = ReadAdditionTask(strings.NewReader("1 x 3\n"))
	assert.Error(t, err)
	_, err = ReadAdditionTask(strings.NewReader("7\n"))
	assert.Error(t, err)
}

func TestJSONLinesRoundTrip(t *testing.T) {
	samples := []*Sample{
		{ID: "a", Pred: symbol.Of("3", "4"), Prob: [][]float64{{0.9, 0.1}, {0.2, 0.8}}, Y: 10},
		{ID: "b", Pred: symbol.Of("1", "+", "1"), Y: 2, Abduced: symbol.Of("1", "+", "1")},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteJSONLines(&buf, samples))

	back, err := ReadJSONLines(&buf)
	require.NoError(t, err)
	assert.Equal(t, samples, back)

	_, err = ReadJSONLines(strings.NewReader("{not json}\n"))
	assert.Error(t, err)
}
