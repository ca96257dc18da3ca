package reembed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/atlas/ai/mock"
	"github.com/poiesic/atlas/core"
	"github.com/poiesic/atlas/index"
	"github.com/poiesic/atlas/storage"
	"github.com/poiesic/atlas/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) storage.EntityRepository {
	t.Helper()
	repo, backend, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	return repo
}

func seedEntities(t *testing.T, repo storage.EntityRepository, n int) []*core.GeoEntity {
	t.Helper()
	entities := make([]*core.GeoEntity, n)
	for i := range entities {
		entities[i] = &core.GeoEntity{
			Id:     core.ID(i + 1),
			Title:  fmt.Sprintf("Site %d", i+1),
			Text:   fmt.Sprintf("Description of site %d", i+1),
			Vector: []float32{0, 0, 1},
		}
	}
	require.NoError(t, repo.PutEntities(context.Background(), entities...))
	return entities
}

func TestReembedderRun(t *testing.T) {
	repo := newTestRepo(t)
	seedEntities(t, repo, 25)

	idx := index.NewVectorIndex()
	embedder := mock.NewMockEmbedder()

	var buf bytes.Buffer
	config := &Config{BatchSize: 10, ReportInterval: 10, MaxRetries: 3, RetryDelay: time.Millisecond}
	r := NewReembedder(repo, idx, embedder, config, &buf)

	require.NoError(t, r.Run(context.Background()))

	// Every entity got a fresh vector and an index entry.
	assert.Equal(t, 25, idx.Len())
	entity, err := repo.GetEntity(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, entity.Vector, 384)

	assert.Contains(t, buf.String(), "Starting reembedding of 25 entities")
	assert.Contains(t, buf.String(), "Reembedding complete")
}

func TestReembedderEmptyStore(t *testing.T) {
	repo := newTestRepo(t)

	var buf bytes.Buffer
	r := NewReembedder(repo, index.NewVectorIndex(), mock.NewMockEmbedder(), nil, &buf)

	require.NoError(t, r.Run(context.Background()))
	assert.Contains(t, buf.String(), "No entities found")
}

func TestReembedderEmbeddingFailure(t *testing.T) {
	repo := newTestRepo(t)
	seedEntities(t, repo, 5)

	embedder := mock.NewMockEmbedder()
	boom := errors.New("embedding host down")
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, boom
	}

	var buf bytes.Buffer
	config := &Config{BatchSize: 10, ReportInterval: 10, MaxRetries: 2, RetryDelay: time.Millisecond}
	r := NewReembedder(repo, index.NewVectorIndex(), embedder, config, &buf)

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	// Failed batch leaves stored vectors untouched.
	entity, getErr := repo.GetEntity(context.Background(), 1)
	require.NoError(t, getErr)
	assert.Equal(t, []float32{0, 0, 1}, entity.Vector)
}

func TestReembedderRetriesTransientFailure(t *testing.T) {
	repo := newTestRepo(t)
	seedEntities(t, repo, 3)

	embedder := mock.NewMockEmbedder()
	calls := 0
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient")
		}
		vectors := make([][]float32, len(texts))
		for i := range texts {
			vectors[i] = []float32{1, 0, 0}
		}
		return vectors, nil
	}

	var buf bytes.Buffer
	config := &Config{BatchSize: 10, ReportInterval: 10, MaxRetries: 3, RetryDelay: time.Millisecond}
	r := NewReembedder(repo, index.NewVectorIndex(), embedder, config, &buf)

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 2, calls)
}
