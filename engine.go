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


// Package atlas is a hybrid spatiotemporal retrieval and grounded answering
// engine. Entities carry text, an embedding, optional geometry, and an
// optional era; queries blend semantic similarity with spatial and temporal
// filters and stream grounded, attributed answers.
package atlas

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/atlas/ai"
	"github.com/poiesic/atlas/ai/openai"
	"github.com/poiesic/atlas/answer"
	"github.com/poiesic/atlas/core"
	"github.com/poiesic/atlas/index"
	"github.com/poiesic/atlas/ingestion"
	"github.com/poiesic/atlas/metrics"
	"github.com/poiesic/atlas/reembed"
	"github.com/poiesic/atlas/search"
	"github.com/poiesic/atlas/storage"
	"github.com/poiesic/atlas/storage/badger"
)

// Engine owns the store, the vector index, and the AI provider, and wires
// the search, ingestion, and answering components over them. The index is
// rebuilt from the store at open.
type Engine struct {
	backend      *badger.Backend
	entities     storage.EntityRepository
	idx          *index.VectorIndex
	provider     ai.AIProvider
	searcher     *search.Searcher
	pipeline     *ingestion.Pipeline
	orchestrator *answer.Orchestrator
	recorder     metrics.Recorder
	logger       *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig      *ai.Config
	provider      ai.AIProvider
	weights       *search.Weights
	recorder      metrics.Recorder
	branchTimeout time.Duration
	tokenBudget   int
	idleTimeout   time.Duration
	inMemory      bool
}

// WithAIConfig sets the AI provider configuration. Ignored when a provider
// is supplied directly.
func WithAIConfig(config *ai.Config) EngineOption {
	return func(o *engineOptions) {
		if config != nil {
			o.aiConfig = config
		}
	}
}

// WithAIProvider supplies a ready provider instead of constructing the
// OpenAI-compatible one. Used by tests with the mock provider.
func WithAIProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithWeights sets the hybrid ranking weights.
func WithWeights(weights search.Weights) EngineOption {
	return func(o *engineOptions) {
		o.weights = &weights
	}
}

// WithMetrics sets the metrics recorder shared by every component.
// Default is the noop recorder.
func WithMetrics(recorder metrics.Recorder) EngineOption {
	return func(o *engineOptions) {
		if recorder != nil {
			o.recorder = recorder
		}
	}
}

// WithBranchTimeout bounds each retrieval branch of a search.
func WithBranchTimeout(timeout time.Duration) EngineOption {
	return func(o *engineOptions) {
		if timeout > 0 {
			o.branchTimeout = timeout
		}
	}
}

// WithTokenBudget caps the token size of the context bundle fed to the
// generator.
func WithTokenBudget(budget int) EngineOption {
	return func(o *engineOptions) {
		if budget > 0 {
			o.tokenBudget = budget
		}
	}
}

// WithIdleTimeout sets how long a generation stream may stay silent before
// it is treated as failed.
func WithIdleTimeout(timeout time.Duration) EngineOption {
	return func(o *engineOptions) {
		if timeout > 0 {
			o.idleTimeout = timeout
		}
	}
}

// WithInMemoryStore keeps the store in memory. Used by tests.
func WithInMemoryStore() EngineOption {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// Open opens or creates the engine at filePath.
func Open(filePath string, opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{
		aiConfig: ai.DefaultConfig(),
		recorder: metrics.Noop(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	entities, err := badger.NewEntityRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	idx := index.NewVectorIndex()
	if err := idx.Rebuild(context.Background(), entities); err != nil {
		entities.Close()
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			entities.Close()
			backend.Close()
			return nil, err
		}
	}

	searchOpts := []search.Option{search.WithMetrics(options.recorder)}
	if options.weights != nil {
		searchOpts = append(searchOpts, search.WithWeights(*options.weights))
	}
	if options.branchTimeout > 0 {
		searchOpts = append(searchOpts, search.WithBranchTimeout(options.branchTimeout))
	}
	searcher, err := search.NewSearcher(entities, idx, provider, searchOpts...)
	if err != nil {
		provider.Close()
		entities.Close()
		backend.Close()
		return nil, err
	}

	pipeline, err := ingestion.NewPipeline(entities, idx, provider,
		ingestion.WithMetrics(options.recorder))
	if err != nil {
		provider.Close()
		entities.Close()
		backend.Close()
		return nil, err
	}

	answerOpts := []answer.OrchestratorOption{answer.WithMetrics(options.recorder)}
	if options.tokenBudget > 0 {
		answerOpts = append(answerOpts, answer.WithAssembler(answer.NewAssembler(
			answer.WithTokenBudget(options.tokenBudget),
			answer.WithTokenModel(options.aiConfig.GeneratorModel),
		)))
	}
	if options.idleTimeout > 0 {
		answerOpts = append(answerOpts, answer.WithIdleTimeout(options.idleTimeout))
	}
	orchestrator, err := answer.NewOrchestrator(searcher, entities, provider, answerOpts...)
	if err != nil {
		pipeline.Release()
		provider.Close()
		entities.Close()
		backend.Close()
		return nil, err
	}

	return &Engine{
		backend:      backend,
		entities:     entities,
		idx:          idx,
		provider:     provider,
		searcher:     searcher,
		pipeline:     pipeline,
		orchestrator: orchestrator,
		recorder:     options.recorder,
		logger:       slog.Default().With("component", "engine"),
	}, nil
}

// Search runs a hybrid query and returns ranked results.
func (e *Engine) Search(ctx context.Context, query *core.Query) ([]core.RankedResult, error) {
	return e.searcher.Search(ctx, query)
}

// Answer retrieves context for the query and streams a grounded answer.
func (e *Engine) Answer(ctx context.Context, query *core.Query) (<-chan answer.Chunk, error) {
	return e.orchestrator.Answer(ctx, query)
}

// Ingest validates, embeds, and stores entities.
func (e *Engine) Ingest(ctx context.Context, entities ...*core.GeoEntity) error {
	return e.pipeline.Ingest(ctx, entities...)
}

// Delete removes entities from the store and the index.
func (e *Engine) Delete(ctx context.Context, ids ...core.ID) error {
	return e.pipeline.Delete(ctx, ids...)
}

// Reembed regenerates every stored embedding and refreshes the index.
// progress receives human-readable status lines.
func (e *Engine) Reembed(ctx context.Context, config *reembed.Config, progress io.Writer) error {
	r := reembed.NewReembedder(e.entities, e.idx, e.provider.Embedder(), config, progress)
	return r.Run(ctx)
}

// EntityRepository exposes the underlying entity store.
func (e *Engine) EntityRepository() storage.EntityRepository {
	return e.entities
}

// Close releases every component. The engine must not be used afterwards.
func (e *Engine) Close() error {
	e.pipeline.Release()
	e.idx.Close()

	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}
	if err := e.entities.Close(); err != nil {
		e.logger.Error("error closing entity repository", "err", err)
		return err
	}
	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}
