package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "persona-survey"

// Assessment outcomes recorded by RecordAssessment.
const (
	OutcomeLLM      = "llm"
	OutcomeCache    = "cache"
	OutcomeFallback = "fallback"
)

// Metrics holds the metric instruments. All counters are cumulative and
// safe for concurrent use. Methods are nil-safe.
type Metrics struct {
	InputTokens  metric.Int64Counter
	OutputTokens metric.Int64Counter

	// Assessments is partitioned by outcome: llm, cache, fallback.
	Assessments metric.Int64Counter
	// AssessmentDuration is the wall-clock time of LLM calls.
	AssessmentDuration metric.Float64Histogram

	Submissions  metric.Int64Counter
	ExportedRows metric.Int64Counter
	// ExportErrors counts stored rows whose ratings blob could not be decoded.
	ExportErrors metric.Int64Counter
	// Emails is partitioned by outcome: sent, failed.
	Emails metric.Int64Counter
}

// NewMetrics creates all metric instruments. Returns no-op instruments
// when no MeterProvider is registered.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.InputTokens, err = meter.Int64Counter("llm.tokens.input",
		metric.WithDescription("Total LLM input tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	m.OutputTokens, err = meter.Int64Counter("llm.tokens.output",
		metric.WithDescription("Total LLM output tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	m.Assessments, err = meter.Int64Counter("assessments.total",
		metric.WithDescription("Personality assessments partitioned by outcome (llm, cache, fallback)"))
	if err != nil {
		return nil, err
	}

	m.AssessmentDuration, err = meter.Float64Histogram("assessments.duration",
		metric.WithDescription("Wall-clock duration of LLM assessment calls"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.Submissions, err = meter.Int64Counter("submissions.total",
		metric.WithDescription("Survey submissions written to the record store"))
	if err != nil {
		return nil, err
	}

	m.ExportedRows, err = meter.Int64Counter("export.rows",
		metric.WithDescription("Rows written to CSV exports"))
	if err != nil {
		return nil, err
	}

	m.ExportErrors, err = meter.Int64Counter("export.row_errors",
		metric.WithDescription("Stored rows whose ratings could not be decoded during export"))
	if err != nil {
		return nil, err
	}

	m.Emails, err = meter.Int64Counter("emails.total",
		metric.WithDescription("Export e-mails partitioned by outcome (sent, failed)"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordTokens records LLM token usage.
func (m *Metrics) RecordTokens(ctx context.Context, provider, model string, input, output int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model),
	)
	m.InputTokens.Add(ctx, input, attrs)
	m.OutputTokens.Add(ctx, output, attrs)
}

// RecordAssessment records one assessment with its outcome and duration.
func (m *Metrics) RecordAssessment(ctx context.Context, outcome string, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("assessment.outcome", outcome))
	m.Assessments.Add(ctx, 1, attrs)
	if outcome != OutcomeCache {
		m.AssessmentDuration.Record(ctx, seconds, attrs)
	}
}

// RecordSubmission records a stored submission.
func (m *Metrics) RecordSubmission(ctx context.Context) {
	if m == nil {
		return
	}
	m.Submissions.Add(ctx, 1)
}

// RecordExport records an export of rows, of which errors failed to decode.
func (m *Metrics) RecordExport(ctx context.Context, rows, errors int) {
	if m == nil {
		return
	}
	m.ExportedRows.Add(ctx, int64(rows))
	if errors > 0 {
		m.ExportErrors.Add(ctx, int64(errors))
	}
}

// RecordEmail records an e-mail attempt.
func (m *Metrics) RecordEmail(ctx context.Context, sent bool) {
	if m == nil {
		return
	}
	outcome := "sent"
	if !sent {
		outcome = "failed"
	}
	m.Emails.Add(ctx, 1, metric.WithAttributes(attribute.String("email.outcome", outcome)))
}
