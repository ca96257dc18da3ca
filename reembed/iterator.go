// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"

	"github.com/poiesic/atlas/core"
	"github.com/poiesic/atlas/storage"
)

const (
	// DefaultBatchSize is the default number of entities to process in each batch
	DefaultBatchSize = 100
)

// EntityIterator iterates over all stored entities in batches.
type EntityIterator struct {
	repo      storage.EntityRepository
	batchSize int
}

// NewEntityIterator creates a new entity iterator.
// batchSize: number of entities to collect per batch (must be > 0)
func NewEntityIterator(repo storage.EntityRepository, batchSize int) *EntityIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &EntityIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach iterates over all stored entities, calling fn for each batch.
// Iteration stops on first error from fn or when all entities are processed.
// Context cancellation is checked between batches.
func (it *EntityIterator) ForEach(ctx context.Context, fn func([]*core.GeoEntity) error) error {
	batch := make([]*core.GeoEntity, 0, it.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		batch = make([]*core.GeoEntity, 0, it.batchSize)

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}

	err := it.repo.ForEachEntity(ctx, func(entity *core.GeoEntity) error {
		batch = append(batch, entity)
		if len(batch) >= it.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}

	return flush()
}
