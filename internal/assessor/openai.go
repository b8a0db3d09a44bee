package assessor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/timvw/persona-survey/internal/model"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultOpenAIModel is used when no model is configured for openai.
const DefaultOpenAIModel = "gpt-4o"

// OpenAIAssessor calls an OpenAI-compatible Chat Completions API.
type OpenAIAssessor struct {
	client    openai.Client
	model     string
	maxTokens int64
}

// OpenAIConfig holds configuration for the OpenAI assessor.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	// Model defaults to DefaultOpenAIModel.
	Model string
	// MaxTokens caps completion tokens. The four-section writeup needs
	// headroom, so zero means 4096.
	MaxTokens    int64
	ExtraHeaders map[string]string
}

// NewOpenAIAssessor creates an OpenAI-compatible assessor.
func NewOpenAIAssessor(cfg OpenAIConfig) *OpenAIAssessor {
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
		m = DefaultOpenAIModel
	}

	return &OpenAIAssessor{
		client:    openai.NewClient(opts...),
		model:     m,
		maxTokens: defaultMaxTokens(cfg.MaxTokens),
	}
}

func (a *OpenAIAssessor) Provider() string { return "openai" }

func (a *OpenAIAssessor) Model() string { return a.model }

// Assess sends the prompt as a single user message.
func (a *OpenAIAssessor) Assess(ctx context.Context, prompt string) (*model.Narrative, error) {
	ctx, span := startGeneration(ctx, a.Provider(), a.model, a.maxTokens, prompt)
	defer span.End()

	start := time.Now()
	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: a.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(a.maxTokens),
	})
	if err != nil {
		span.SetAttributes(attribute.String("error.type", "api_error"))
		return nil, fmt.Errorf("openai API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		span.SetAttributes(attribute.String("error.type", "empty_response"))
		return nil, fmt.Errorf("openai API returned empty response")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	usage := model.TokenUsage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	span.SetAttributes(attribute.String("gen_ai.response.id", resp.ID))
	endGeneration(span, resp.Model, string(resp.Choices[0].FinishReason), text, usage)
	if text == "" {
		return nil, fmt.Errorf("openai API returned empty content")
	}

	return &model.Narrative{
		Text:       text,
		Provider:   a.Provider(),
		Model:      a.model,
		Usage:      usage,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}
