package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/atlas/ai"
	"github.com/poiesic/atlas/core"
	"github.com/poiesic/atlas/index"
	"github.com/poiesic/atlas/metrics"
	"github.com/poiesic/atlas/storage"
)

const (
	defaultBranchTimeout  = 5 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 100 * time.Millisecond

	// backfillCeiling caps how far the semantic k doubles when the eligible
	// intersection keeps coming up short.
	backfillCeiling = 1024
)

// Searcher provides hybrid semantic plus spatial-temporal retrieval over
// geographic entities.
type Searcher struct {
	entities       storage.EntityRepository
	idx            *index.VectorIndex
	embedder       ai.Embedder
	weights        Weights
	branchTimeout  time.Duration
	retryAttempts  int
	retryBaseDelay time.Duration
	recorder       metrics.Recorder
	logger         *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithWeights sets the rank blend weights. Default is DefaultWeights().
func WithWeights(weights Weights) Option {
	return func(s *Searcher) error {
		if err := weights.Validate(); err != nil {
			return err
		}
		s.weights = weights
		return nil
	}
}

// WithBranchTimeout sets the independent timeout of each retrieval branch.
func WithBranchTimeout(timeout time.Duration) Option {
	return func(s *Searcher) error {
		if timeout > 0 {
			s.branchTimeout = timeout
		}
		return nil
	}
}

// WithRetry sets the transient-failure retry policy for both branches.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(s *Searcher) error {
		if attempts > 0 {
			s.retryAttempts = attempts
		}
		if baseDelay > 0 {
			s.retryBaseDelay = baseDelay
		}
		return nil
	}
}

// WithMetrics sets the metrics recorder. Default is the noop recorder.
func WithMetrics(recorder metrics.Recorder) Option {
	return func(s *Searcher) error {
		if recorder != nil {
			s.recorder = recorder
		}
		return nil
	}
}

// NewSearcher creates a new hybrid searcher.
func NewSearcher(
	entities storage.EntityRepository,
	idx *index.VectorIndex,
	provider ai.AIProvider,
	opts ...Option,
) (*Searcher, error) {
	if entities == nil {
		return nil, ErrEntityRepositoryRequired
	}
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		entities:       entities,
		idx:            idx,
		embedder:       provider.Embedder(),
		weights:        DefaultWeights(),
		branchTimeout:  defaultBranchTimeout,
		retryAttempts:  defaultRetryAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
		recorder:       metrics.Noop(),
		logger:         slog.Default().With("component", "searcher"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search retrieves the TopK entities best matching the query.
func (s *Searcher) Search(ctx context.Context, query *core.Query) ([]core.RankedResult, error) {
	return s.SearchWithMonitor(ctx, query, nil)
}

// SearchWithMonitor retrieves the TopK entities best matching the query,
// reporting each retrieval stage to the monitor.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query *core.Query, monitor SearchMonitor) ([]core.RankedResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	if err := core.ValidateQuery(query); err != nil {
		return nil, err
	}

	started := time.Now()
	queryID := uuid.NewString()
	logger := s.logger.With("query_id", queryID)
	monitor.Start(query)

	vector, err := s.embedder.EmbedText(ctx, query.Text)
	if err != nil {
		logger.Error("error generating embedding for query", "err", err)
		s.recorder.ObserveQuery("embed_error", time.Since(started).Seconds(), 0)
		return nil, err
	}

	// Semantic and predicate branches run concurrently with independent
	// timeouts and join before ranking.
	type semanticResult struct {
		matches []core.SimilarityMatch
		err     error
	}
	type eligibleResult struct {
		set *core.EligibleSet
		err error
	}

	semanticCh := make(chan semanticResult, 1)
	eligibleCh := make(chan eligibleResult, 1)

	go func() {
		branchCtx, cancel := context.WithTimeout(ctx, s.branchTimeout)
		defer cancel()
		matches, err := s.searchIndex(branchCtx, vector, query.TopK)
		semanticCh <- semanticResult{matches: matches, err: err}
	}()

	go func() {
		branchCtx, cancel := context.WithTimeout(ctx, s.branchTimeout)
		defer cancel()
		var set *core.EligibleSet
		err := retryTransient(branchCtx, func() error {
			var opErr error
			set, opErr = s.entities.Eligible(branchCtx, &storage.EligibleFilter{
				Geo:      query.GeoFilter,
				Time:     query.TimeFilter,
				Category: query.Category,
			})
			return opErr
		}, s.retryAttempts, s.retryBaseDelay)
		eligibleCh <- eligibleResult{set: set, err: err}
	}()

	semantic := <-semanticCh
	eligible := <-eligibleCh

	if semantic.err != nil {
		logger.Error("semantic branch failed", "err", semantic.err)
		s.recorder.ObserveQuery("retrieval_error", time.Since(started).Seconds(), 0)
		return nil, wrapRetrieval(semantic.err)
	}
	if eligible.err != nil {
		logger.Error("predicate branch failed", "err", eligible.err)
		s.recorder.ObserveQuery("retrieval_error", time.Since(started).Seconds(), 0)
		return nil, wrapRetrieval(eligible.err)
	}

	monitor.AfterSemanticSearch(semantic.matches)
	monitor.AfterEligibility(eligible.set)

	// A filter that admits nothing yields an empty result, not an error.
	if eligible.set.Empty() {
		logger.Debug("eligible set is empty", "duration", time.Since(started))
		s.recorder.ObserveQuery("ok", time.Since(started).Seconds(), 0)
		monitor.Finish(nil)
		return []core.RankedResult{}, nil
	}

	kept, err := s.intersectWithBackfill(ctx, vector, query.TopK, semantic.matches, eligible.set, monitor, logger)
	if err != nil {
		s.recorder.ObserveQuery("retrieval_error", time.Since(started).Seconds(), 0)
		return nil, wrapRetrieval(err)
	}

	results, err := s.rank(ctx, query, kept, monitor)
	if err != nil {
		logger.Error("ranking failed", "err", err)
		s.recorder.ObserveQuery("rank_error", time.Since(started).Seconds(), 0)
		return nil, err
	}

	logger.Debug("search complete",
		"semantic_hits", len(semantic.matches),
		"results", len(results),
		"duration", time.Since(started))
	s.recorder.ObserveQuery("ok", time.Since(started).Seconds(), len(results))
	monitor.Finish(results)
	return results, nil
}

// searchIndex queries the vector index with transient-failure retry.
func (s *Searcher) searchIndex(ctx context.Context, vector []float32, k int) ([]core.SimilarityMatch, error) {
	var matches []core.SimilarityMatch
	err := retryTransient(ctx, func() error {
		var opErr error
		matches, opErr = s.idx.Search(vector, k)
		return opErr
	}, s.retryAttempts, s.retryBaseDelay)
	return matches, err
}

// intersectWithBackfill keeps the semantic matches that pass the predicate.
// When fewer than topK survive and the index still has deeper matches, the
// search is repeated with doubled k up to a ceiling.
func (s *Searcher) intersectWithBackfill(
	ctx context.Context,
	vector []float32,
	topK int,
	matches []core.SimilarityMatch,
	set *core.EligibleSet,
	monitor SearchMonitor,
	logger *slog.Logger,
) ([]core.SimilarityMatch, error) {
	k := topK
	for {
		kept := make([]core.SimilarityMatch, 0, topK)
		for _, m := range matches {
			if set.Contains(m.Id) {
				kept = append(kept, m)
			}
		}
		if len(kept) >= topK {
			return kept[:topK], nil
		}
		// len(matches) < k means the index is exhausted
		if len(matches) < k || k >= backfillCeiling {
			return kept, nil
		}

		k *= 2
		if k > backfillCeiling {
			k = backfillCeiling
		}
		monitor.BackfillAttempt(k, len(kept))
		logger.Debug("backfilling semantic search", "k", k, "have", len(kept))

		var err error
		matches, err = s.searchIndex(ctx, vector, k)
		if err != nil {
			return nil, err
		}
	}
}

// rank scores the surviving matches on all three axes and orders them
// deterministically.
func (s *Searcher) rank(ctx context.Context, query *core.Query, kept []core.SimilarityMatch, monitor SearchMonitor) ([]core.RankedResult, error) {
	if len(kept) == 0 {
		return []core.RankedResult{}, nil
	}

	ids := make([]core.ID, len(kept))
	for i, m := range kept {
		ids[i] = m.Id
	}
	entities, err := s.entities.GetEntities(ctx, ids...)
	if err != nil {
		return nil, err
	}
	monitor.AfterEntityRetrieval(entities)

	byID := make(map[core.ID]*core.GeoEntity, len(entities))
	for _, e := range entities {
		byID[e.Id] = e
	}

	results := make([]core.RankedResult, 0, len(kept))
	for _, m := range kept {
		entity, ok := byID[m.Id]
		if !ok {
			// Deleted between index search and retrieval
			continue
		}
		spatial := spatialScore(entity, query.GeoFilter)
		temporal := temporalScore(entity, query.TimeFilter)
		results = append(results, core.RankedResult{
			Id:            m.Id,
			SemanticScore: m.Score,
			SpatialScore:  spatial,
			TemporalScore: temporal,
			CombinedScore: s.weights.Combine(m.Score, spatial, temporal),
		})
	}

	slices.SortFunc(results, func(a, b core.RankedResult) int {
		if a.CombinedScore != b.CombinedScore {
			if a.CombinedScore > b.CombinedScore {
				return -1
			}
			return 1
		}
		if a.SemanticScore != b.SemanticScore {
			if a.SemanticScore > b.SemanticScore {
				return -1
			}
			return 1
		}
		if a.Id < b.Id {
			return -1
		}
		if a.Id > b.Id {
			return 1
		}
		return 0
	})

	if len(results) > query.TopK {
		results = results[:query.TopK]
	}
	return results, nil
}

// wrapRetrieval marks exhausted-retry transient failures as retrieval
// failures. Other errors (cancellation, invalid input) pass through.
func wrapRetrieval(err error) error {
	if errors.Is(err, storage.ErrUnavailable) {
		return fmt.Errorf("%w: %w", ErrRetrievalFailed, err)
	}
	return err
}
