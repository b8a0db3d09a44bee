// Package survey ties the form session to the assessment generator, the
// record store and the export e-mail. Front ends (TUI, HTTP) call Assess and
// Finish; they never touch the store or mailer directly.
package survey

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/timvw/persona-survey/internal/assessor"
	"github.com/timvw/persona-survey/internal/export"
	"github.com/timvw/persona-survey/internal/logger"
	"github.com/timvw/persona-survey/internal/model"
	"github.com/timvw/persona-survey/internal/notify"
	otelpkg "github.com/timvw/persona-survey/internal/otel"
	"github.com/timvw/persona-survey/internal/questions"
	"github.com/timvw/persona-survey/internal/session"
)

// Completion messages shown to the respondent.
const (
	ThankYou     = "Thank you for your participation! "
	EmailSent    = "Email sent successfully!"
	emailFailure = "Error sending email: "
)

var tracer = otel.Tracer("persona-survey/survey")

// Recorder persists submissions. *store.Store implements it.
type Recorder interface {
	Add(ctx context.Context, timestamp string, ratings model.RatingSet, narrative string) (*model.Submission, error)
	All(ctx context.Context) ([]model.Submission, error)
}

// Deps are the collaborators of a Service, built once at startup.
type Deps struct {
	Questions *questions.Set
	// Generator may be nil when no LLM credentials are configured.
	Generator *assessor.Generator
	Store     Recorder
	// Mailer may be nil; Finish then reports the e-mail step as failed.
	Mailer notify.Mailer
	// ExportPath defaults to export.DefaultFileName.
	ExportPath string
	Metrics    *otelpkg.Metrics
	Logger     *logger.Logger
}

// Service runs the assess and finish workflows.
type Service struct {
	deps Deps
	log  *logger.Logger
	now  func() time.Time

	// exportMu serialises read-all, CSV write, send and delete so two
	// finishing sessions never share the export file.
	exportMu sync.Mutex
}

func New(deps Deps) *Service {
	if deps.ExportPath == "" {
		deps.ExportPath = export.DefaultFileName
	}
	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{deps: deps, log: logg.With("service", "Survey"), now: time.Now}
}

// Questions returns the questionnaire the service was built with.
func (s *Service) Questions() *questions.Set { return s.deps.Questions }

// Result is the outcome of a finished session.
type Result struct {
	Message    string            `json:"message"`
	EmailSent  bool              `json:"email_sent"`
	Warnings   []string          `json:"warnings,omitempty"`
	Submission *model.Submission `json:"submission,omitempty"`
}

// Assess requests a narrative for the session's ratings. The session lock is
// released while the LLM call runs; concurrent callers get session.ErrBusy.
func (s *Service) Assess(ctx context.Context, sess *session.Session) (*model.Narrative, error) {
	sess.Lock()
	ratings, err := sess.BeginAssessment()
	sess.Unlock()
	if err != nil {
		return nil, err
	}

	n := s.Narrate(ctx, ratings)

	sess.Lock()
	sess.CompleteAssessment(&n)
	sess.Unlock()
	return &n, nil
}

// Narrate produces a narrative for ratings without touching any session.
// Without a generator every narrative is the fallback text.
func (s *Service) Narrate(ctx context.Context, ratings model.RatingSet) model.Narrative {
	if s.deps.Generator == nil {
		s.log.Warn("no assessor configured, using fallback narrative")
		s.deps.Metrics.RecordAssessment(ctx, otelpkg.OutcomeFallback, 0)
		return model.Narrative{Text: assessor.FallbackText, Fallback: true}
	}
	return s.deps.Generator.Generate(ctx, s.deps.Questions, ratings)
}

// Finish stores the session's submission, exports and mails the full
// table, and resets the session. It returns session.ErrNotReady without
// writing anything when no narrative has been produced. A failing e-mail
// step is reported in the Result; the stored row is kept.
func (s *Service) Finish(ctx context.Context, sess *session.Session) (*Result, error) {
	sess.Lock()
	defer sess.Unlock()
	return s.FinishLocked(ctx, sess)
}

// FinishLocked is Finish for callers that already hold the session lock.
func (s *Service) FinishLocked(ctx context.Context, sess *session.Session) (*Result, error) {
	if err := sess.CanFinish(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "survey.finish")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sess.ID))

	ratings := sess.Ratings()
	narrative := sess.Narrative()
	sub, err := s.deps.Store.Add(ctx, model.FormatTimestamp(s.now()), ratings, narrative.Text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store")
		return nil, fmt.Errorf("save submission: %w", err)
	}
	s.deps.Metrics.RecordSubmission(ctx)
	s.log.Info("submission stored", "id", sub.ID, "session", sess.ID)

	res := &Result{Submission: sub}
	emailErr := s.exportAndSend(ctx, res)
	if emailErr != nil {
		span.RecordError(emailErr)
		res.Message = ThankYou + emailFailure + emailErr.Error()
	} else {
		res.EmailSent = true
		res.Message = ThankYou + EmailSent
	}
	span.SetAttributes(attribute.Bool("email.sent", res.EmailSent))

	sess.Reset()
	return res, nil
}

// exportAndSend writes the CSV, mails it and removes it. Row decode
// problems are added to res.Warnings.
func (s *Service) exportAndSend(ctx context.Context, res *Result) error {
	s.exportMu.Lock()
	defer s.exportMu.Unlock()

	table, err := s.writeExport(ctx, s.deps.ExportPath)
	defer s.removeExport(s.deps.ExportPath)
	if table != nil {
		for _, re := range table.Errors {
			res.Warnings = append(res.Warnings, "could not read stored ratings for "+re.Error())
		}
	}
	if err != nil {
		s.deps.Metrics.RecordEmail(ctx, false)
		return err
	}

	if s.deps.Mailer == nil {
		s.deps.Metrics.RecordEmail(ctx, false)
		return notify.ErrNotConfigured
	}
	if err := s.deps.Mailer.Send(ctx, s.deps.ExportPath); err != nil {
		s.log.Error("export e-mail failed", "error", err)
		s.deps.Metrics.RecordEmail(ctx, false)
		return err
	}
	s.deps.Metrics.RecordEmail(ctx, true)
	return nil
}

// Export writes the flattened table to path and returns it. It shares the
// export lock with Finish.
func (s *Service) Export(ctx context.Context, path string) (*export.Table, error) {
	s.exportMu.Lock()
	defer s.exportMu.Unlock()
	return s.writeExport(ctx, path)
}

// ExportAndSend writes the table to the configured export path, mails it
// and removes the file, as Finish does.
func (s *Service) ExportAndSend(ctx context.Context) (*Result, error) {
	res := &Result{}
	if err := s.exportAndSend(ctx, res); err != nil {
		res.Message = emailFailure + err.Error()
		return res, err
	}
	res.EmailSent = true
	res.Message = EmailSent
	return res, nil
}

func (s *Service) writeExport(ctx context.Context, path string) (*export.Table, error) {
	subs, err := s.deps.Store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("read submissions: %w", err)
	}
	table := export.Flatten(subs, s.deps.Questions)
	for _, re := range table.Errors {
		s.log.Warn("skipping ratings of malformed row", "id", re.ID, "error", re.Err)
	}
	s.deps.Metrics.RecordExport(ctx, len(table.Rows), len(table.Errors))

	if err := export.Write(path, table); err != nil {
		return table, err
	}
	return table, nil
}

func (s *Service) removeExport(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("could not remove export", "path", path, "error", err)
	}
}
