package assessor

import (
	"context"
	"encoding/json"

	"github.com/timvw/persona-survey/internal/model"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("persona-survey/assessor")

func defaultMaxTokens(n int64) int64 {
	if n <= 0 {
		return 4096
	}
	return n
}

// startGeneration opens a GenAI client span named "chat {model}" and
// records the request message.
func startGeneration(ctx context.Context, provider, modelName string, maxTokens int64, prompt string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "chat "+modelName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "chat"),
			attribute.String("gen_ai.provider.name", provider),
			attribute.String("gen_ai.request.model", modelName),
			attribute.Int64("gen_ai.request.max_tokens", maxTokens),
			attribute.String("langfuse.observation.type", "generation"),
		),
	)
	msgs := []map[string]string{{"role": "user", "content": prompt}}
	if raw, err := json.Marshal(msgs); err == nil {
		span.SetAttributes(attribute.String("gen_ai.input.messages", string(raw)))
	}
	return ctx, span
}

func endGeneration(span trace.Span, respModel, finish, text string, usage model.TokenUsage) {
	span.SetAttributes(
		attribute.String("gen_ai.response.model", respModel),
		attribute.Int64("gen_ai.usage.input_tokens", usage.InputTokens),
		attribute.Int64("gen_ai.usage.output_tokens", usage.OutputTokens),
	)
	if finish != "" {
		span.SetAttributes(attribute.StringSlice("gen_ai.response.finish_reasons", []string{finish}))
	}
	msgs := []map[string]string{{"role": "assistant", "content": text}}
	if raw, err := json.Marshal(msgs); err == nil {
		span.SetAttributes(attribute.String("gen_ai.output.messages", string(raw)))
	}
}
