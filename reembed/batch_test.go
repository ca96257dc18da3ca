package reembed

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/poiesic/atlas/ai/mock"
	"github.com/poiesic/atlas/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchProcessorUpdatesStoreAndIndex(t *testing.T) {
	repo := newTestRepo(t)
	entities := seedEntities(t, repo, 3)

	idx := index.NewVectorIndex()
	embedder := mock.NewMockEmbedder()

	bp := NewBatchProcessor(repo, idx, embedder, 3, time.Millisecond)
	require.NoError(t, bp.Process(context.Background(), entities))

	assert.Equal(t, 3, idx.Len())

	stored, err := repo.GetEntity(context.Background(), entities[0].Id)
	require.NoError(t, err)
	require.Len(t, stored.Vector, 384)

	// Stored vectors come back unit length.
	var sumSquares float64
	for _, v := range stored.Vector {
		sumSquares += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-4)
}

func TestBatchProcessorNilIndex(t *testing.T) {
	repo := newTestRepo(t)
	entities := seedEntities(t, repo, 2)

	bp := NewBatchProcessor(repo, nil, mock.NewMockEmbedder(), 3, time.Millisecond)
	require.NoError(t, bp.Process(context.Background(), entities))
}

func TestBatchProcessorEmptyBatch(t *testing.T) {
	repo := newTestRepo(t)
	embedder := mock.NewMockEmbedder()

	bp := NewBatchProcessor(repo, index.NewVectorIndex(), embedder, 3, time.Millisecond)
	require.NoError(t, bp.Process(context.Background(), nil))
	assert.Zero(t, embedder.CallCount())
}

func TestBatchProcessorCountMismatch(t *testing.T) {
	repo := newTestRepo(t)
	entities := seedEntities(t, repo, 3)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 0, 0}}, nil
	}

	bp := NewBatchProcessor(repo, index.NewVectorIndex(), embedder, 3, time.Millisecond)
	err := bp.Process(context.Background(), entities)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}
