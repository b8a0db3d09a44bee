package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/timvw/persona-survey/internal/assessor"
	"github.com/timvw/persona-survey/internal/config"
	"github.com/timvw/persona-survey/internal/logger"
	"github.com/timvw/persona-survey/internal/notify"
	telem "github.com/timvw/persona-survey/internal/otel"
	"github.com/timvw/persona-survey/internal/questions"
	"github.com/timvw/persona-survey/internal/store"
	"github.com/timvw/persona-survey/internal/survey"
)

// app holds the process-wide collaborators, built once per command.
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	tel   *telem.Telemetry
	store *store.Store
	cache *assessor.Cache
	svc   *survey.Service
}

// appOptions selects which collaborators a command needs.
type appOptions struct {
	// NeedAssessor fails startup when no LLM credentials are configured.
	NeedAssessor bool
	// SkipStore leaves the record store closed.
	SkipStore bool
}

// newApp loads the questionnaire and opens the record store, the assessor
// and the mailer. A questionnaire that fails to load stops the process.
func newApp(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, log: logg}

	if cfg.ConfigFile != "" {
		logg.Info("config loaded", "path", cfg.ConfigFile)
	}

	// Wire build version into OTEL service metadata
	telem.Version = Version
	tel, err := telem.Init(ctx, telem.OTELConfig{
		Endpoint: cfg.OTELEndpoint,
		Headers:  cfg.OTELHeaders,
	})
	if err != nil {
		logg.Warn("otel init failed", "error", err)
	}
	a.tel = tel
	var metrics *telem.Metrics
	if tel != nil {
		metrics = tel.Metrics
	}

	set, err := questions.Load(cfg.Questions)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("questionnaire: %w", err)
	}
	logg.Info("questionnaire loaded", "path", cfg.Questions, "questions", set.Len())

	var recorder survey.Recorder
	if !opts.SkipStore {
		st, err := store.Open(ctx, store.Options{
			Driver:  cfg.Database.Driver,
			DSN:     cfg.Database.DSN,
			Verbose: flagVerbose,
			Logger:  logg,
		})
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.store = st
		recorder = st
	}

	var gen *assessor.Generator
	ast, err := getAssessor(cfg)
	switch {
	case err == nil:
		a.cache = assessor.NewCache(cfg.CacheTTLDuration)
		gen = &assessor.Generator{
			Assessor: ast,
			Cache:    a.cache,
			Metrics:  metrics,
			Logger:   logg,
			Timeout:  cfg.AssessmentTimeoutDuration,
		}
	case opts.NeedAssessor:
		a.Close(ctx)
		return nil, err
	default:
		logg.Warn("assessments disabled", "error", err)
	}

	mailer, err := newMailer(cfg, logg)
	if err != nil {
		logg.Warn("export e-mail disabled", "error", err)
	}

	a.svc = survey.New(survey.Deps{
		Questions:  set,
		Generator:  gen,
		Store:      recorder,
		Mailer:     mailer,
		ExportPath: cfg.ExportPath,
		Metrics:    metrics,
		Logger:     logg,
	})
	return a, nil
}

func newMailer(cfg *config.Config, logg *logger.Logger) (notify.Mailer, error) {
	m, err := notify.NewSMTPMailer(notify.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		TLS:      cfg.SMTP.TLS,
		From:     cfg.SMTP.From,
		To:       cfg.SMTP.To,
		Subject:  cfg.SMTP.Subject,
		Body:     cfg.SMTP.Body,
		Timeout:  cfg.SMTPTimeoutDuration,
	}, logg)
	if err != nil {
		// keep the interface nil, not a typed nil *SMTPMailer
		return nil, err
	}
	return m, nil
}

// Close releases the store and flushes telemetry.
func (a *app) Close(ctx context.Context) {
	if a.cache.Enabled() {
		st := a.cache.Stats()
		a.log.Info("assessment cache", "entries", st.Entries, "hits", st.Hits, "misses", st.Misses)
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("closing store", "error", err)
		}
	}
	if a.tel != nil {
		if err := a.tel.Shutdown(ctx); err != nil {
			a.log.Warn("flushing telemetry", "error", err)
		}
	}
	a.log.Sync()
}

// withHint prints a remedy for well-known startup errors and returns err.
func withHint(err error) error {
	if errors.Is(err, questions.ErrNotFound) {
		fmt.Fprintln(os.Stderr, "hint: point --questions or PERSONA_SURVEY_QUESTIONS at the questionnaire file")
	}
	return err
}
