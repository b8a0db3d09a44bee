// Package config loads persona-survey configuration from file and environment.
//
// Precedence (highest to lowest):
//  1. Command-line flags (applied by cmd)
//  2. Environment variables (PERSONA_SURVEY_*)
//  3. Config file
//  4. Built-in defaults
//
// Config file search order:
//  1. .persona-survey.yaml in current directory
//  2. ~/.config/persona-survey/config.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const fileName = ".persona-survey.yaml"

// Config holds all persona-survey configuration.
type Config struct {
	// LLM settings
	Provider          string `yaml:"provider"`
	Model             string `yaml:"model"`
	BaseURL           string `yaml:"base_url"`
	APIKey            string `yaml:"api_key"`
	MaxTokens         int64  `yaml:"max_tokens"`
	AssessmentTimeout string `yaml:"assessment_timeout"` // Go duration string, e.g. "2m"
	CacheTTL          string `yaml:"cache_ttl"`          // "0" disables the assessment cache

	// Questions is the questionnaire file (.csv, .tsv or .xlsx).
	Questions string `yaml:"questions"`
	// ExportPath is the temporary export written on finish.
	ExportPath string `yaml:"export_path"`

	Database Database `yaml:"database"`
	SMTP     SMTP     `yaml:"smtp"`

	// Web front end
	Listen     string `yaml:"listen"`
	SessionTTL string `yaml:"session_ttl"`

	// Logging: "dev" or "prod". LogFile, when set, receives the log
	// instead of stderr.
	LogMode string `yaml:"log_mode"`
	LogFile string `yaml:"log_file"`

	// OTEL
	OTELEndpoint string `yaml:"otel_endpoint"`
	OTELHeaders  string `yaml:"otel_headers"` // Comma-separated key=value pairs

	// Parsed durations (not from YAML, set after loading)
	AssessmentTimeoutDuration time.Duration `yaml:"-"`
	CacheTTLDuration          time.Duration `yaml:"-"`
	SessionTTLDuration        time.Duration `yaml:"-"`
	SMTPTimeoutDuration       time.Duration `yaml:"-"`

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-"`
}

// Database selects the record store backend.
type Database struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`
}

// SMTP configures the export e-mail.
type SMTP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	TLS      string `yaml:"tls"` // "ssl", "starttls" or "none"
	From     string `yaml:"from"`
	To       string `yaml:"to"`
	Subject  string `yaml:"subject"`
	Body     string `yaml:"body"`
	Timeout  string `yaml:"timeout"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		Provider:          "openai",
		Model:             "gpt-4o",
		MaxTokens:         4096,
		AssessmentTimeout: "2m",
		CacheTTL:          "0",
		Questions:         "questions.csv",
		ExportPath:        "personality_assessment_data.csv",
		Database: Database{
			Driver: "sqlite",
			DSN:    "data.db",
		},
		SMTP: SMTP{
			Host:    "smtp.gmail.com",
			Port:    465,
			TLS:     "ssl",
			Subject: "File from Website",
			Body:    "File Attached",
			Timeout: "30s",
		},
		Listen:     ":8080",
		SessionTTL: "1h",
		LogMode:    "dev",
	}
}

// Load reads configuration from file and environment variables.
// Environment variables always override file values.
func Load() (*Config, error) {
	cfg := Defaults()

	if path, data, err := findConfigFile(); err == nil {
		if err := mergeFile(cfg, data); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		cfg.ConfigFile = path
	}

	if err := mergeEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile searches for a config file and returns its path and contents.
func findConfigFile() (string, []byte, error) {
	if data, err := os.ReadFile(fileName); err == nil {
		return fileName, data, nil
	}
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "persona-survey", "config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}
	return "", nil, errors.New("no config file found")
}

// mergeFile decodes YAML on top of cfg. Keys absent from the file keep
// their current value.
func mergeFile(cfg *Config, data []byte) error {
	return yaml.Unmarshal(data, cfg)
}

// mergeEnv applies environment variables onto cfg. Env always wins.
func mergeEnv(cfg *Config) error {
	str := map[string]*string{
		"PERSONA_SURVEY_PROVIDER":           &cfg.Provider,
		"PERSONA_SURVEY_MODEL":              &cfg.Model,
		"PERSONA_SURVEY_BASE_URL":           &cfg.BaseURL,
		"PERSONA_SURVEY_API_KEY":            &cfg.APIKey,
		"PERSONA_SURVEY_ASSESSMENT_TIMEOUT": &cfg.AssessmentTimeout,
		"PERSONA_SURVEY_CACHE_TTL":          &cfg.CacheTTL,
		"PERSONA_SURVEY_QUESTIONS":          &cfg.Questions,
		"PERSONA_SURVEY_EXPORT_PATH":        &cfg.ExportPath,
		"PERSONA_SURVEY_DB_DRIVER":          &cfg.Database.Driver,
		"PERSONA_SURVEY_DB_DSN":             &cfg.Database.DSN,
		"PERSONA_SURVEY_SMTP_HOST":          &cfg.SMTP.Host,
		"PERSONA_SURVEY_SMTP_USERNAME":      &cfg.SMTP.Username,
		"PERSONA_SURVEY_SMTP_PASSWORD":      &cfg.SMTP.Password,
		"PERSONA_SURVEY_SMTP_TLS":           &cfg.SMTP.TLS,
		"PERSONA_SURVEY_SMTP_FROM":          &cfg.SMTP.From,
		"PERSONA_SURVEY_SMTP_TO":            &cfg.SMTP.To,
		"PERSONA_SURVEY_SMTP_TIMEOUT":       &cfg.SMTP.Timeout,
		"PERSONA_SURVEY_LISTEN":             &cfg.Listen,
		"PERSONA_SURVEY_SESSION_TTL":        &cfg.SessionTTL,
		"PERSONA_SURVEY_LOG_MODE":           &cfg.LogMode,
		"PERSONA_SURVEY_LOG_FILE":           &cfg.LogFile,
		"OTEL_EXPORTER_OTLP_ENDPOINT":       &cfg.OTELEndpoint,
		"OTEL_EXPORTER_OTLP_HEADERS":        &cfg.OTELHeaders,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("PERSONA_SURVEY_MAX_TOKENS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid PERSONA_SURVEY_MAX_TOKENS %q: %w", v, err)
		}
		cfg.MaxTokens = n
	}
	if v := os.Getenv("PERSONA_SURVEY_SMTP_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PERSONA_SURVEY_SMTP_PORT %q: %w", v, err)
		}
		cfg.SMTP.Port = n
	}

	// Provider-specific API key fallbacks
	if cfg.APIKey == "" {
		switch strings.ToLower(cfg.Provider) {
		case "anthropic":
			cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		default:
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	return nil
}

// parseDurations fills the *Duration fields from their string forms.
func (c *Config) parseDurations() error {
	durations := []struct {
		name     string
		raw      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"assessment timeout", c.AssessmentTimeout, 2 * time.Minute, &c.AssessmentTimeoutDuration},
		{"cache TTL", c.CacheTTL, 0, &c.CacheTTLDuration},
		{"session TTL", c.SessionTTL, time.Hour, &c.SessionTTLDuration},
		{"smtp timeout", c.SMTP.Timeout, 30 * time.Second, &c.SMTPTimeoutDuration},
	}
	for _, d := range durations {
		v, err := parseDurationOrDisable(d.raw, d.fallback)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, d.raw, err)
		}
		*d.dst = v
	}
	return nil
}

// parseDurationOrDisable parses a duration string. "0", "off", "disable" return 0.
// Empty string returns the fallback value.
func parseDurationOrDisable(s string, fallback time.Duration) (time.Duration, error) {
	switch strings.TrimSpace(s) {
	case "":
		return fallback, nil
	case "0", "off", "disable":
		return 0, nil
	}
	return time.ParseDuration(strings.TrimSpace(s))
}
