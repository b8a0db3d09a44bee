package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/timvw/persona-survey/internal/assessor"
	"github.com/timvw/persona-survey/internal/config"
	"github.com/timvw/persona-survey/internal/logger"
)

// Version is injected at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var (
	// Global flags. Zero values leave the config file and environment alone.
	flagProvider  string
	flagModel     string
	flagBaseURL   string
	flagAPIKey    string
	flagMaxTokens int64
	flagQuestions string
	flagDBDriver  string
	flagDBDSN     string
	flagLogMode   string
	flagVerbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "persona-survey",
	Short: "Self-rating questionnaire with an LLM personality assessment",
	Long: `persona-survey collects numeric self-ratings on a fixed questionnaire,
asks an LLM for a Big Five personality narrative, stores every submission
and mails a CSV export of all submissions when a respondent finishes.

The writeup is entirely the model's. Go code only loads the questionnaire,
builds the prompt and moves data between the form, the store and SMTP.

Configuration is loaded from .persona-survey.yaml, ~/.config/persona-survey/config.yaml
and PERSONA_SURVEY_* environment variables. Flags override both.`,
	SilenceUsage: true,
	Version:      Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagProvider, "provider", "", "LLM provider: openai, anthropic (default: openai)")
	pf.StringVar(&flagModel, "model", "", "LLM model name (default: gpt-4o for openai, claude-sonnet-4-5 for anthropic)")
	pf.StringVar(&flagBaseURL, "base-url", "", "override LLM API base URL")
	pf.StringVar(&flagAPIKey, "api-key", "", "override LLM API key")
	pf.Int64Var(&flagMaxTokens, "max-tokens", 0, "max completion tokens (default: 4096)")
	pf.StringVar(&flagQuestions, "questions", "", "questionnaire file: .csv, .tsv or .xlsx (default: questions.csv)")
	pf.StringVar(&flagDBDriver, "db-driver", "", "record store driver: sqlite, postgres (default: sqlite)")
	pf.StringVar(&flagDBDSN, "db-dsn", "", "sqlite file or postgres connection URL (default: data.db)")
	pf.StringVar(&flagLogMode, "log-mode", "", "log format: dev, prod")
	pf.BoolVar(&flagVerbose, "verbose", false, "log every SQL statement")
}

// loadConfig layers the command-line flags over config.Load.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if flagProvider != "" && !strings.EqualFold(flagProvider, cfg.Provider) {
		// Model and fallback key resolved for the other provider do not carry over.
		if flagModel == "" {
			cfg.Model = ""
		}
		if cfg.APIKey == providerKey(cfg.Provider) {
			cfg.APIKey = providerKey(flagProvider)
		}
		cfg.Provider = flagProvider
	}
	if flagModel != "" {
		cfg.Model = flagModel
	}
	if flagBaseURL != "" {
		cfg.BaseURL = flagBaseURL
	}
	if flagAPIKey != "" {
		cfg.APIKey = flagAPIKey
	}
	if flagMaxTokens > 0 {
		cfg.MaxTokens = flagMaxTokens
	}
	if flagQuestions != "" {
		cfg.Questions = flagQuestions
	}
	if flagDBDriver != "" {
		cfg.Database.Driver = flagDBDriver
	}
	if flagDBDSN != "" {
		cfg.Database.DSN = flagDBDSN
	}
	if flagLogMode != "" {
		cfg.LogMode = flagLogMode
	}
	return cfg, nil
}

func providerKey(provider string) string {
	if strings.EqualFold(provider, "anthropic") {
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return os.Getenv("OPENAI_API_KEY")
}

// newLogger returns the zap logger for non-interactive commands. The TUI
// builds its own because it owns the terminal.
func newLogger(cfg *config.Config) (*logger.Logger, error) {
	if cfg.LogFile != "" {
		return logger.ToFile(cfg.LogFile)
	}
	return logger.New(cfg.LogMode)
}

// getAssessor returns the configured LLM assessor.
func getAssessor(cfg *config.Config) (assessor.Assessor, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai", "":
		return newOpenAIAssessor(cfg)
	case "anthropic":
		return newAnthropicAssessor(cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q (supported: openai, anthropic)", cfg.Provider)
	}
}

// newOpenAIAssessor creates an OpenAI assessor with the resolved config.
func newOpenAIAssessor(cfg *config.Config) (assessor.Assessor, error) {
	model := cfg.Model
	if model == "" {
		model = assessor.DefaultOpenAIModel
	}

	baseURL := cfg.BaseURL
	apiKey := cfg.APIKey
	extraHeaders := map[string]string{}

	if baseURL == "" {
		if resourceName := os.Getenv("AZURE_RESOURCE_NAME"); resourceName != "" {
			baseURL = fmt.Sprintf("https://%s.openai.azure.com/openai/v1", resourceName)
		}
	}
	if apiKey == "" {
		apiKey = os.Getenv("AZURE_OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key found. Set PERSONA_SURVEY_API_KEY, AZURE_OPENAI_API_KEY, or OPENAI_API_KEY")
	}

	if os.Getenv("AZURE_RESOURCE_NAME") != "" || isAzureEndpoint(baseURL) {
		extraHeaders["api-key"] = apiKey
	}

	return assessor.NewOpenAIAssessor(assessor.OpenAIConfig{
		BaseURL:      baseURL,
		APIKey:       apiKey,
		Model:        model,
		MaxTokens:    cfg.MaxTokens,
		ExtraHeaders: extraHeaders,
	}), nil
}

// newAnthropicAssessor creates an Anthropic assessor with the resolved config.
func newAnthropicAssessor(cfg *config.Config) (assessor.Assessor, error) {
	model := cfg.Model
	if model == "" || model == assessor.DefaultOpenAIModel {
		// gpt-4o is the config default, not a choice for this provider.
		model = assessor.DefaultAnthropicModel
	}

	baseURL := cfg.BaseURL
	apiKey := cfg.APIKey
	extraHeaders := map[string]string{}

	if baseURL == "" {
		if resourceName := os.Getenv("AZURE_RESOURCE_NAME"); resourceName != "" {
			// The SDK appends v1/messages to the base URL.
			baseURL = fmt.Sprintf("https://%s.services.ai.azure.com/anthropic/", resourceName)
		}
	}
	if apiKey == "" {
		apiKey = os.Getenv("AZURE_OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key found. Set PERSONA_SURVEY_API_KEY, AZURE_OPENAI_API_KEY, or ANTHROPIC_API_KEY")
	}

	// Azure AI Foundry wants "api-key" next to the SDK's "x-api-key".
	if os.Getenv("AZURE_RESOURCE_NAME") != "" || isAzureEndpoint(baseURL) {
		extraHeaders["api-key"] = apiKey
	}

	return assessor.NewAnthropicAssessor(assessor.AnthropicConfig{
		BaseURL:      baseURL,
		APIKey:       apiKey,
		Model:        model,
		MaxTokens:    cfg.MaxTokens,
		ExtraHeaders: extraHeaders,
	}), nil
}

// isAzureEndpoint checks if a URL is an Azure endpoint.
func isAzureEndpoint(url string) bool {
	return strings.Contains(url, ".azure.com") || strings.Contains(url, ".azure.us")
}
