package assessor

import (
	"context"
	"errors"
	"time"

	"github.com/timvw/persona-survey/internal/logger"
	"github.com/timvw/persona-survey/internal/model"
	"github.com/timvw/persona-survey/internal/otel"
	"github.com/timvw/persona-survey/internal/questions"
)

// FallbackText replaces the narrative whenever the LLM call fails.
const FallbackText = "Could not retrieve assessment due to an error."

// DefaultTimeout bounds a single assessment call.
const DefaultTimeout = 2 * time.Minute

// Generator produces a narrative for a rating set. It never returns an
// error: failures are logged and replaced by FallbackText.
type Generator struct {
	Assessor Assessor
	Cache    *Cache
	Metrics  *otel.Metrics
	Logger   *logger.Logger
	// Timeout bounds the LLM call. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Generate renders the prompt for ratings against set and asks the
// assessor for a narrative.
func (g *Generator) Generate(ctx context.Context, set *questions.Set, ratings model.RatingSet) model.Narrative {
	prompt := BuildPrompt(set, ratings)
	log := g.log().With("provider", g.Assessor.Provider(), "model", g.Assessor.Model(), "ratings", len(ratings))

	if n, ok := g.Cache.Lookup(prompt); ok {
		log.Debug("assessment served from cache")
		g.Metrics.RecordAssessment(ctx, otel.OutcomeCache, 0)
		return *n
	}

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	n, err := g.Assessor.Assess(callCtx, prompt)
	elapsed := time.Since(start)
	if err == nil && n == nil {
		err = errors.New("assessor returned no narrative")
	}
	if err != nil {
		log.Error("assessment failed", "error", err, "elapsed", elapsed)
		g.Metrics.RecordAssessment(ctx, otel.OutcomeFallback, elapsed.Seconds())
		return model.Narrative{
			Text:       FallbackText,
			Fallback:   true,
			Provider:   g.Assessor.Provider(),
			Model:      g.Assessor.Model(),
			DurationMs: elapsed.Milliseconds(),
		}
	}

	g.Metrics.RecordAssessment(ctx, otel.OutcomeLLM, elapsed.Seconds())
	g.Metrics.RecordTokens(ctx, n.Provider, n.Model, n.Usage.InputTokens, n.Usage.OutputTokens)
	log.Info("assessment ready",
		"input_tokens", n.Usage.InputTokens,
		"output_tokens", n.Usage.OutputTokens,
		"elapsed", elapsed)

	g.Cache.Store(prompt, *n)
	return *n
}

func (g *Generator) log() *logger.Logger {
	if g.Logger == nil {
		return logger.Nop()
	}
	return g.Logger
}
