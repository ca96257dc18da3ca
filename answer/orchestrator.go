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


package answer

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/poiesic/atlas/ai"
	"github.com/poiesic/atlas/core"
	"github.com/poiesic/atlas/metrics"
	"github.com/poiesic/atlas/search"
	"github.com/poiesic/atlas/storage"
)

const defaultIdleTimeout = 30 * time.Second

// Chunk is one frame of a streamed answer.
type Chunk struct {
	// Text is an incremental piece of the answer body.
	Text string

	// Sources is set on the leading chunk only: every context entry shown
	// to the model, in rank order.
	Sources []Attribution

	// Final marks the terminal chunk. A final chunk carries either the
	// cited Attribution list or Err, never more text.
	Final bool

	// Attribution lists the sources the answer actually cited. When the
	// answer carries no recognizable citations it falls back to every
	// bundle entry in rank order.
	Attribution []Attribution

	// Err is set on a final chunk when the stream terminated abnormally.
	// Text emitted before the failure stands.
	Err error
}

// Orchestrator drives retrieval, context assembly, and streamed generation
// for one query at a time. Safe for concurrent use.
type Orchestrator struct {
	searcher    *search.Searcher
	entities    storage.EntityRepository
	generator   ai.Generator
	assembler   *Assembler
	idleTimeout time.Duration
	recorder    metrics.Recorder
	logger      *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithAssembler sets a custom context assembler.
func WithAssembler(assembler *Assembler) OrchestratorOption {
	return func(o *Orchestrator) {
		if assembler != nil {
			o.assembler = assembler
		}
	}
}

// WithIdleTimeout sets the per-chunk idle timeout. A stream that produces
// nothing for this long is treated as failed.
func WithIdleTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.idleTimeout = timeout
		}
	}
}

// WithMetrics sets the metrics recorder. Default is the noop recorder.
func WithMetrics(recorder metrics.Recorder) OrchestratorOption {
	return func(o *Orchestrator) {
		if recorder != nil {
			o.recorder = recorder
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator creates a generation orchestrator.
func NewOrchestrator(
	searcher *search.Searcher,
	entities storage.EntityRepository,
	provider ai.AIProvider,
	opts ...OrchestratorOption,
) (*Orchestrator, error) {
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	if entities == nil {
		return nil, ErrEntityRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	o := &Orchestrator{
		searcher:    searcher,
		entities:    entities,
		generator:   provider.Generator(),
		assembler:   NewAssembler(),
		idleTimeout: defaultIdleTimeout,
		recorder:    metrics.Noop(),
		logger:      slog.Default().With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Answer retrieves context for the query and streams a grounded answer.
// Retrieval and assembly run synchronously: an invalid query or failed
// retrieval returns an error and no channel. Once the channel is returned
// the stream always terminates with a final chunk, and the channel closes
// after it. Cancel ctx to abandon the stream.
func (o *Orchestrator) Answer(ctx context.Context, query *core.Query) (<-chan Chunk, error) {
	results, err := o.searcher.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	ids := make([]core.ID, len(results))
	for i, r := range results {
		ids[i] = r.Id
	}
	entities, err := o.entities.GetEntities(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("retrieving context entities: %w", err)
	}

	bundle := o.assembler.Assemble(results, entities)
	o.logger.Debug("context assembled",
		"results", len(results),
		"excerpts", len(bundle.Excerpts),
		"truncated", bundle.Truncated)

	ch := make(chan Chunk, 16)
	go o.stream(ctx, query, bundle, ch)
	return ch, nil
}

type generationResult struct {
	text string
	err  error
}

// stream runs the generator and forwards its output. The leading chunk
// lists the sources, then text chunks follow, then exactly one final chunk.
func (o *Orchestrator) stream(ctx context.Context, query *core.Query, bundle *ContextBundle, ch chan<- Chunk) {
	defer close(ch)
	started := time.Now()

	if !o.send(ctx, ch, Chunk{Sources: bundle.Attributions}) {
		o.recorder.ObserveGeneration("canceled", time.Since(started).Seconds())
		return
	}

	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	activity := make(chan struct{}, 1)
	onDelta := func(dctx context.Context, chunk []byte) error {
		select {
		case activity <- struct{}{}:
		default:
		}
		select {
		case ch <- Chunk{Text: string(chunk)}:
			return nil
		case <-dctx.Done():
			return dctx.Err()
		}
	}

	done := make(chan generationResult, 1)
	go func() {
		text, err := o.generator.Generate(genCtx, &ai.GenerationRequest{
			Question: query.Text,
			Context:  bundle.Render(),
		}, onDelta)
		done <- generationResult{text: text, err: err}
	}()

	idle := time.NewTimer(o.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-activity:
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(o.idleTimeout)

		case <-idle.C:
			cancel()
			<-done
			o.logger.Warn("generation stalled", "idle_timeout", o.idleTimeout)
			o.recorder.ObserveGeneration("error", time.Since(started).Seconds())
			o.send(context.Background(), ch, Chunk{Final: true, Err: ErrGenerationStalled})
			return

		case <-ctx.Done():
			cancel()
			<-done
			o.recorder.ObserveGeneration("canceled", time.Since(started).Seconds())
			return

		case result := <-done:
			if result.err != nil {
				o.logger.Error("generation failed", "err", result.err)
				o.recorder.ObserveGeneration("error", time.Since(started).Seconds())
				o.send(ctx, ch, Chunk{Final: true, Err: fmt.Errorf("%w: %w", ErrGeneration, result.err)})
				return
			}
			o.recorder.ObserveGeneration("ok", time.Since(started).Seconds())
			o.send(ctx, ch, Chunk{Final: true, Attribution: citedAttributions(result.text, bundle)})
			return
		}
	}
}

// send delivers a chunk unless the context is gone.
func (o *Orchestrator) send(ctx context.Context, ch chan<- Chunk, chunk Chunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// citedAttributions extracts the sources the answer cites by number.
// Answers without recognizable citations attribute every bundle entry.
func citedAttributions(text string, bundle *ContextBundle) []Attribution {
	matches := citationPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return bundle.Attributions
	}

	seen := make(map[int]bool)
	var cited []Attribution
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(bundle.Attributions) || seen[n] {
			continue
		}
		seen[n] = true
		cited = append(cited, bundle.Attributions[n-1])
	}
	if len(cited) == 0 {
		return bundle.Attributions
	}
	return cited
}
