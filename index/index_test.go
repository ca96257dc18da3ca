package index

import (
	"testing"

	"github.com/poiesic/atlas/core"
	"github.com/poiesic/atlas/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorIndex(t *testing.T) {
	t.Run("search ranks by cosine similarity", func(t *testing.T) {
		idx := NewVectorIndex()
		require.NoError(t, idx.Upsert(1, []float32{1, 0, 0}))
		require.NoError(t, idx.Upsert(2, []float32{0.9, 0.1, 0}))
		require.NoError(t, idx.Upsert(3, []float32{0, 1, 0}))

		matches, err := idx.Search([]float32{1, 0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, core.ID(1), matches[0].Id)
		assert.Equal(t, core.ID(2), matches[1].Id)
		assert.InDelta(t, 1.0, float64(matches[0].Score), 1e-5)
	})

	t.Run("k larger than index", func(t *testing.T) {
		idx := NewVectorIndex()
		require.NoError(t, idx.Upsert(1, []float32{1, 0}))

		matches, err := idx.Search([]float32{1, 0}, 10)
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})

	t.Run("upsert replaces", func(t *testing.T) {
		idx := NewVectorIndex()
		require.NoError(t, idx.Upsert(1, []float32{1, 0}))
		require.NoError(t, idx.Upsert(1, []float32{0, 1}))
		assert.Equal(t, 1, idx.Len())

		matches, err := idx.Search([]float32{0, 1}, 1)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, float64(matches[0].Score), 1e-5)
	})

	t.Run("delete", func(t *testing.T) {
		idx := NewVectorIndex()
		require.NoError(t, idx.Upsert(1, []float32{1, 0}))
		idx.Delete(1)
		idx.Delete(99) // no-op
		assert.Equal(t, 0, idx.Len())
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		idx := NewVectorIndex()
		require.NoError(t, idx.Upsert(1, []float32{1, 0, 0}))
		assert.ErrorIs(t, idx.Upsert(2, []float32{1, 0}), ErrDimensionMismatch)

		_, err := idx.Search([]float32{1, 0}, 1)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("empty and zero vectors rejected", func(t *testing.T) {
		idx := NewVectorIndex()
		assert.ErrorIs(t, idx.Upsert(1, nil), ErrEmptyVector)
		assert.ErrorIs(t, idx.Upsert(1, []float32{0, 0}), ErrEmptyVector)
	})

	t.Run("deterministic tie break on id", func(t *testing.T) {
		idx := NewVectorIndex()
		require.NoError(t, idx.Upsert(7, []float32{1, 0}))
		require.NoError(t, idx.Upsert(3, []float32{1, 0}))
		require.NoError(t, idx.Upsert(5, []float32{1, 0}))

		for range 5 {
			matches, err := idx.Search([]float32{1, 0}, 3)
			require.NoError(t, err)
			assert.Equal(t, core.ID(3), matches[0].Id)
			assert.Equal(t, core.ID(5), matches[1].Id)
			assert.Equal(t, core.ID(7), matches[2].Id)
		}
	})

	t.Run("closed index is unavailable", func(t *testing.T) {
		idx := NewVectorIndex()
		require.NoError(t, idx.Upsert(1, []float32{1, 0}))
		idx.Close()

		_, err := idx.Search([]float32{1, 0}, 1)
		assert.ErrorIs(t, err, storage.ErrUnavailable)
		assert.ErrorIs(t, idx.Upsert(2, []float32{0, 1}), storage.ErrUnavailable)
	})

	t.Run("zero k", func(t *testing.T) {
		idx := NewVectorIndex()
		require.NoError(t, idx.Upsert(1, []float32{1, 0}))
		matches, err := idx.Search([]float32{1, 0}, 0)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}
