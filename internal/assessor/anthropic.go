package assessor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/timvw/persona-survey/internal/model"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultAnthropicModel is used when no model is configured for anthropic.
const DefaultAnthropicModel = "claude-sonnet-4-5"

// AnthropicAssessor calls the Anthropic Messages API.
type AnthropicAssessor struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// AnthropicConfig holds configuration for the Anthropic assessor.
type AnthropicConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	MaxTokens    int64
	ExtraHeaders map[string]string
}

// NewAnthropicAssessor creates an Anthropic assessor.
func NewAnthropicAssessor(cfg AnthropicConfig) *AnthropicAssessor {
	// One request per assessment; a failure goes straight to the fallback.
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	for k, v := range cfg.ExtraHeaders {
		opts = append(opts, option.WithHeader(k, v))
	}

	m := cfg.Model
	if m == "" {
		m = DefaultAnthropicModel
	}

	return &AnthropicAssessor{
		client:    anthropic.NewClient(opts...),
		model:     m,
		maxTokens: defaultMaxTokens(cfg.MaxTokens),
	}
}

func (a *AnthropicAssessor) Provider() string { return "anthropic" }

func (a *AnthropicAssessor) Model() string { return a.model }

// Assess sends the prompt as a single user message. Text blocks of the
// reply are concatenated.
func (a *AnthropicAssessor) Assess(ctx context.Context, prompt string) (*model.Narrative, error) {
	ctx, span := startGeneration(ctx, a.Provider(), a.model, a.maxTokens, prompt)
	defer span.End()

	start := time.Now()
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		span.SetAttributes(attribute.String("error.type", "api_error"))
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}
	if len(resp.Content) == 0 {
		span.SetAttributes(attribute.String("error.type", "empty_response"))
		return nil, fmt.Errorf("anthropic API returned empty response")
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	usage := model.TokenUsage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	endGeneration(span, string(resp.Model), string(resp.StopReason), text, usage)
	if text == "" {
		return nil, fmt.Errorf("anthropic API returned empty content")
	}

	return &model.Narrative{
		Text:       text,
		Provider:   a.Provider(),
		Model:      a.model,
		Usage:      usage,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}
