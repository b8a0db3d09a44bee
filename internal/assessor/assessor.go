// Package assessor turns a rating set into a personality narrative.
//
// Go code builds the prompt and transports it; the writeup itself is
// entirely the model's. Each request is a single user message and a single
// blocking call. Generator wraps an Assessor with a timeout and the static
// fallback text so callers never see an error.
package assessor

import (
	"context"

	"github.com/timvw/persona-survey/internal/model"
)

// Assessor sends a prompt to an LLM and returns its reply.
type Assessor interface {
	// Assess sends the prompt as one user message and returns the reply text.
	Assess(ctx context.Context, prompt string) (*model.Narrative, error)

	// Provider returns the provider name (e.g., "openai", "anthropic").
	Provider() string

	// Model returns the model name used for assessments.
	Model() string
}
