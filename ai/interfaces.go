package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// DeltaFunc receives incremental answer text as the model produces it.
// Returning an error aborts the stream.
type DeltaFunc func(ctx context.Context, chunk []byte) error

// Generator produces answers grounded in an attributed context block.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate streams an answer to the request's question, invoking onDelta
	// for each incremental piece of text, and returns the complete answer.
	// When the request carries no context the answer must state explicitly
	// that no grounded information was found, not improvise one.
	// A nil onDelta disables streaming; the full answer is still returned.
	Generate(ctx context.Context, req *GenerationRequest, onDelta DeltaFunc) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and Generator instances, ensuring
// they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Generator returns the grounded answer generation service.
	// The returned Generator is safe for concurrent use.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
