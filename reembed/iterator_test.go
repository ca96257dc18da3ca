package reembed

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/atlas/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityIteratorBatches(t *testing.T) {
	repo := newTestRepo(t)
	seedEntities(t, repo, 25)

	it := NewEntityIterator(repo, 10)

	var batchSizes []int
	seen := make(map[core.ID]bool)
	err := it.ForEach(context.Background(), func(batch []*core.GeoEntity) error {
		batchSizes = append(batchSizes, len(batch))
		for _, e := range batch {
			seen[e.Id] = true
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int{10, 10, 5}, batchSizes)
	assert.Len(t, seen, 25, "every entity visited exactly once")
}

func TestEntityIteratorEmpty(t *testing.T) {
	repo := newTestRepo(t)

	it := NewEntityIterator(repo, 10)
	called := false
	err := it.ForEach(context.Background(), func(batch []*core.GeoEntity) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestEntityIteratorStopsOnError(t *testing.T) {
	repo := newTestRepo(t)
	seedEntities(t, repo, 25)

	boom := errors.New("stop here")
	it := NewEntityIterator(repo, 10)

	batches := 0
	err := it.ForEach(context.Background(), func(batch []*core.GeoEntity) error {
		batches++
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, batches)
}

func TestEntityIteratorContextCancellation(t *testing.T) {
	repo := newTestRepo(t)
	seedEntities(t, repo, 25)

	ctx, cancel := context.WithCancel(context.Background())
	it := NewEntityIterator(repo, 10)

	batches := 0
	err := it.ForEach(ctx, func(batch []*core.GeoEntity) error {
		batches++
		cancel()
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, batches)
}

func TestEntityIteratorDefaultBatchSize(t *testing.T) {
	repo := newTestRepo(t)
	it := NewEntityIterator(repo, 0)
	assert.Equal(t, DefaultBatchSize, it.batchSize)
}
