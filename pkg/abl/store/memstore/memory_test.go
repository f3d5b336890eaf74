package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/abl/pkg/abl/store"
	"github.com/cognicore/abl/pkg/abl/symbol"
)

func TestSnapshotIsCopied(t *testing.T) {
	ctx := context.Background()
	s := New()

	entries := []store.Entry{{Length: 2, Seq: symbol.Of("1", "2"), Value: 3}}
	require.NoError(t, s.SaveKB(ctx, "add", store.Snapshot{Fingerprint: "add", Entries: entries}))
	entries[0].Seq[0] = "9"

	got, ok, err := s.LoadKB(ctx, "add")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "add", got.Fingerprint)
	assert.Equal(t, symbol.Of("1", "2"), got.Entries[0].Seq)

	got.Entries[0].Seq[1] = "9"
	again, _, _ := s.LoadKB(ctx, "add")
	assert.Equal(t, symbol.Of("1", "2"), again.Entries[0].Seq)
}

func TestLoadKBMissing(t *testing.T) {
	_, ok, err := New().LoadKB(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJournalOrder(t *testing.T) {
	ctx := context.Background()
	j := store.NewJournal(New())

	batch := j.NewID()
	for _, id := range []string{"a", "b", "c"} {
		_, err := j.Record(ctx, store.Record{BatchID: batch, SampleID: id, Pred: symbol.Of(id)})
		require.NoError(t, err)
	}

	got, err := j.Batch(ctx, batch)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, id := range []string{"a", "b", "c"} {
		assert.Equal(t, id, got[i].SampleID)
		assert.NotEmpty(t, got[i].ID)
		assert.False(t, got[i].CreatedAt.IsZero())
	}

	other, err := j.Batch(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestJournalRequiresBatch(t *testing.T) {
	_, err := store.NewJournal(New()).Record(context.Background(), store.Record{})
	assert.Error(t, err)
}
