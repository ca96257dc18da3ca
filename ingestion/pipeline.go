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


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/atlas/ai"
	"github.com/poiesic/atlas/core"
	"github.com/poiesic/atlas/index"
	"github.com/poiesic/atlas/metrics"
	"github.com/poiesic/atlas/storage"
)

const (
	defaultBatchSize = 32

	// lockStripes is the number of id-striped write locks. Writes to the
	// same entity id always contend on the same stripe.
	lockStripes = 64
)

// Pipeline is the write path for geo entities. It batches embedding work
// over an ants pool and commits store and index updates together so a stored
// entity is always searchable and a deleted one never resurfaces.
type Pipeline struct {
	entities  storage.EntityRepository
	idx       *index.VectorIndex
	embedder  ai.Embedder
	pool      *ants.Pool
	batchSize int
	locks     [lockStripes]sync.Mutex
	recorder  metrics.Recorder
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for batch embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many texts are embedded per pool task. Default is 32.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size > 0 {
			p.batchSize = size
		}
		return nil
	}
}

// WithMetrics sets the metrics recorder. Default is the noop recorder.
func WithMetrics(recorder metrics.Recorder) Option {
	return func(p *Pipeline) error {
		if recorder != nil {
			p.recorder = recorder
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger != nil {
			p.logger = logger.With("component", "ingestion")
		}
		return nil
	}
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(
	entities storage.EntityRepository,
	idx *index.VectorIndex,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if entities == nil {
		return nil, ErrEntityRepositoryRequired
	}
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		entities:  entities,
		idx:       idx,
		embedder:  provider.Embedder(),
		pool:      pool,
		batchSize: defaultBatchSize,
		recorder:  metrics.Noop(),
		logger:    slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Ingest validates, embeds, and stores the given entities. Entities that
// already carry a vector are not re-embedded. An entity with a zero Id gets
// a stable id derived from its content, so re-ingesting the same source
// replaces the previous record instead of duplicating it. Ingest returns
// only once every entity is durably stored and indexed.
func (p *Pipeline) Ingest(ctx context.Context, entities ...*core.GeoEntity) error {
	if len(entities) == 0 {
		return nil
	}
	started := time.Now()

	for _, entity := range entities {
		if err := core.ValidateEntity(entity); err != nil {
			return err
		}
		if entity.Id == 0 {
			entity.Id = deriveID(entity)
		}
	}

	if err := p.embedMissing(ctx, entities); err != nil {
		p.recorder.ObserveIngest(len(entities), false, time.Since(started).Seconds())
		return err
	}

	if err := p.commit(ctx, entities); err != nil {
		p.recorder.ObserveIngest(len(entities), false, time.Since(started).Seconds())
		return err
	}

	p.logger.Info("ingested entities", "entities", len(entities), "elapsed", time.Since(started))
	p.recorder.ObserveIngest(len(entities), true, time.Since(started).Seconds())
	return nil
}

// Delete removes entities from the store and the vector index as one logical
// operation. A deleted id can never come back from a search. Missing ids
// surface storage.ErrNotFound after all the given ids have been processed.
func (p *Pipeline) Delete(ctx context.Context, ids ...core.ID) error {
	var errs []error
	for _, id := range ids {
		lock := p.stripe(id)
		lock.Lock()
		// Index first, so a concurrent search cannot return an id the
		// store no longer has.
		p.idx.Delete(id)
		if err := p.entities.DeleteEntities(ctx, id); err != nil {
			errs = append(errs, err)
		}
		lock.Unlock()
	}
	return errors.Join(errs...)
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// embedMissing fills in vectors for entities that lack one, batching texts
// over the worker pool.
func (p *Pipeline) embedMissing(ctx context.Context, entities []*core.GeoEntity) error {
	var missing []*core.GeoEntity
	for _, entity := range entities {
		if len(entity.Vector) == 0 {
			missing = append(missing, entity)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	p.logger.Debug("embedding entities", "entities", len(missing), "batch_size", p.batchSize)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for start := 0; start < len(missing); start += p.batchSize {
		batch := missing[start:min(start+p.batchSize, len(missing))]
		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			if err := p.embedBatch(ctx, batch); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, submitErr)
			mu.Unlock()
			break
		}
	}
	wg.Wait()
	return errors.Join(errs...)
}

// embedBatch embeds one batch of entities and writes the vectors in place.
// Each batch is owned by exactly one pool task.
func (p *Pipeline) embedBatch(ctx context.Context, batch []*core.GeoEntity) error {
	texts := make([]string, len(batch))
	for i, entity := range batch {
		texts[i] = entity.Text
	}
	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding batch: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingMismatch, len(batch), len(vectors))
	}
	for i := range vectors {
		batch[i].Vector = vectors[i]
	}
	return nil
}

// commit writes each entity to the store and the index under its id stripe.
// A store write whose index update fails is rolled back so the two never
// drift apart: a replaced entity comes back as its prior version, a new one
// is removed.
func (p *Pipeline) commit(ctx context.Context, entities []*core.GeoEntity) error {
	for _, entity := range entities {
		lock := p.stripe(entity.Id)
		lock.Lock()
		prior, err := p.priorVersion(ctx, entity.Id)
		if err == nil {
			if err = p.entities.PutEntities(ctx, entity); err == nil {
				if err = p.idx.Upsert(entity.Id, entity.Vector); err != nil {
					if rbErr := p.rollback(ctx, entity.Id, prior); rbErr != nil {
						p.logger.Error("rollback after index failure", "id", entity.Id, "err", rbErr)
					}
					err = fmt.Errorf("indexing entity %d: %w", entity.Id, err)
				}
			}
		}
		lock.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// priorVersion fetches the stored entity about to be replaced, or nil for a
// first write.
func (p *Pipeline) priorVersion(ctx context.Context, id core.ID) (*core.GeoEntity, error) {
	prior, err := p.entities.GetEntity(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return prior, err
}

// rollback undoes a store write whose index update failed.
func (p *Pipeline) rollback(ctx context.Context, id core.ID, prior *core.GeoEntity) error {
	if prior == nil {
		return p.entities.DeleteEntities(ctx, id)
	}
	return p.entities.PutEntities(ctx, prior)
}

func (p *Pipeline) stripe(id core.ID) *sync.Mutex {
	return &p.locks[uint64(id)%lockStripes]
}

// deriveID computes a stable id for an entity without one. The title is the
// preferred source key; untitled entities fall back to their text.
func deriveID(entity *core.GeoEntity) core.ID {
	if entity.Title != "" {
		return core.IDFromContent(entity.Title)
	}
	return core.IDFromContent(entity.Text)
}
