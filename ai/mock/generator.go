package mock

import (
	"context"

	"github.com/poiesic/atlas/ai"
)

// NoInformationAnswer is the canned reply the default mock emits when the
// request carries no context, matching the refusal policy of the production
// generator prompt.
const NoInformationAnswer = "No grounded information was found for this question."

// MockGenerator is a test double for ai.Generator.
// It allows custom behavior injection via function fields.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, uses default deterministic behavior.
	GenerateFunc func(ctx context.Context, req *ai.GenerationRequest, onDelta ai.DeltaFunc) (string, error)

	callCount int
}

// NewMockGenerator creates a mock generator with default deterministic behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Generate emits a deterministic answer. With no context it emits
// NoInformationAnswer; otherwise a short grounded reply citing source [1].
// The answer is streamed to onDelta in two chunks so streaming paths get
// exercised.
func (m *MockGenerator) Generate(ctx context.Context, req *ai.GenerationRequest, onDelta ai.DeltaFunc) (string, error) {
	m.callCount++

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req, onDelta)
	}

	answer := NoInformationAnswer
	if req.HasContext() {
		answer = "According to the sources, " + req.Question + " [1]"
	}

	if onDelta != nil {
		half := len(answer) / 2
		for _, part := range []string{answer[:half], answer[half:]} {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			if err := onDelta(ctx, []byte(part)); err != nil {
				return "", err
			}
		}
	}

	return answer, nil
}

// CallCount returns the number of times Generate was called.
func (m *MockGenerator) CallCount() int {
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockGenerator) Reset() {
	m.callCount = 0
	m.GenerateFunc = nil
}
