package ai

// GenerationRequest carries a question together with the attributed context
// block the answer must be grounded in.
type GenerationRequest struct {
	// Question is the user's natural-language question.
	Question string

	// Context is the assembled context block: numbered source excerpts with
	// attribution lines. Empty when retrieval produced nothing.
	Context string
}

// HasContext reports whether the request carries any grounding material.
func (r *GenerationRequest) HasContext() bool {
	return r.Context != ""
}
