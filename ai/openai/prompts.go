package openai

import (
	"fmt"

	"github.com/poiesic/atlas/ai"
)

const groundedAnswerPrompt = `You are a precise assistant answering questions about places and their history.

You are given numbered source excerpts, each with a title and, where known, a
location and a period. Answer the question using ONLY these sources.

Rules:
- Base every statement on the sources. Do not use outside knowledge.
- Cite sources inline with their numbers, e.g. [1] or [2][3].
- If the sources disagree, say so and cite both.
- If the sources do not contain the answer, say plainly that the available
  information does not cover it. Do not guess.
- Keep the answer focused on the question; do not summarize unrelated sources.`

const noContextPrompt = `You are a precise assistant answering questions about places and their history.

No source material matched this question's constraints. Reply with a single
short statement that no grounded information was found for the question, and
nothing else. Do not answer from your own knowledge.`

// buildUserMessage renders the user message for a request. An empty context
// selects the refusal prompt so the model never improvises an unsourced
// answer.
func buildUserMessage(req *ai.GenerationRequest) string {
	if !req.HasContext() {
		return req.Question
	}
	return fmt.Sprintf("Sources:\n\n%s\n\nQuestion: %s", req.Context, req.Question)
}

func systemPromptFor(req *ai.GenerationRequest) string {
	if !req.HasContext() {
		return noContextPrompt
	}
	return groundedAnswerPrompt
}
