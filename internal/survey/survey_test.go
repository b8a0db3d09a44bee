package survey

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/timvw/persona-survey/internal/assessor"
	"github.com/timvw/persona-survey/internal/model"
	"github.com/timvw/persona-survey/internal/notify"
	"github.com/timvw/persona-survey/internal/questions"
	"github.com/timvw/persona-survey/internal/session"
)

type fakeAssessor struct {
	reply string
	err   error
}

func (f *fakeAssessor) Assess(ctx context.Context, prompt string) (*model.Narrative, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Narrative{Text: f.reply, Provider: "fake", Model: "fake-1"}, nil
}
func (f *fakeAssessor) Provider() string { return "fake" }
func (f *fakeAssessor) Model() string    { return "fake-1" }

type memStore struct {
	mu   sync.Mutex
	rows []model.Submission
	err  error
}

func (m *memStore) Add(ctx context.Context, ts string, r model.RatingSet, narrative string) (*model.Submission, error) {
	if m.err != nil {
		return nil, m.err
	}
	blob, err := r.Encode()
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := model.Submission{ID: int64(len(m.rows) + 1), CurrentDate: ts, Ratings: blob, Assessment: narrative}
	m.rows = append(m.rows, sub)
	return &sub, nil
}

func (m *memStore) All(ctx context.Context) ([]model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Submission(nil), m.rows...), nil
}

// fakeMailer captures the attachment contents at send time.
type fakeMailer struct {
	mu       sync.Mutex
	err      error
	sent     [][][]string
	inFlight int
	maxSeen  int
}

func (f *fakeMailer) Send(ctx context.Context, path string) error {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return err
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.sent = append(f.sent, records)
	f.mu.Unlock()
	return f.err
}

func testSet(t *testing.T) *questions.Set {
	t.Helper()
	set, err := questions.New("test", []model.Question{
		{ID: "Q1", Statement: "I enjoy social gatherings.", Min: 0, Max: 10, MinAnchor: "Strongly Disagree", MaxAnchor: "Strongly Agree"},
		{ID: "Q2", Statement: "I keep my workspace tidy.", Min: 0, Max: 5, MinAnchor: "Never", MaxAnchor: "Always"},
	})
	if err != nil {
		t.Fatalf("questions.New: %v", err)
	}
	return set
}

type fixture struct {
	svc    *Service
	set    *questions.Set
	store  *memStore
	mailer *fakeMailer
	path   string
}

func newFixture(t *testing.T, reply string) *fixture {
	t.Helper()
	set := testSet(t)
	f := &fixture{
		set:    set,
		store:  &memStore{},
		mailer: &fakeMailer{},
		path:   filepath.Join(t.TempDir(), "personality_assessment_data.csv"),
	}
	f.svc = New(Deps{
		Questions:  set,
		Generator:  &assessor.Generator{Assessor: &fakeAssessor{reply: reply}},
		Store:      f.store,
		Mailer:     f.mailer,
		ExportPath: f.path,
	})
	f.svc.now = func() time.Time { return time.Date(2026, 3, 1, 9, 15, 42, 0, time.Local) }
	return f
}

func readySession(t *testing.T, f *fixture, q1, q2 int) *session.Session {
	t.Helper()
	sess := session.New("s1", f.set)
	if _, err := sess.Set("Q1", q1); err != nil {
		t.Fatal(err)
	}
	if _, err := sess.Set("Q2", q2); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Assess(context.Background(), sess); err != nil {
		t.Fatalf("Assess: %v", err)
	}
	return sess
}

func TestAssess_CachesNarrativeInSession(t *testing.T) {
	f := newFixture(t, "You are sociable.")
	sess := readySession(t, f, 7, 2)

	if sess.State() != session.StateAssessmentReady {
		t.Errorf("state = %v, want assessment_ready", sess.State())
	}
	if n := sess.Narrative(); n == nil || n.Text != "You are sociable." {
		t.Errorf("narrative = %+v", n)
	}
}

func TestAssess_FallbackStillReady(t *testing.T) {
	f := newFixture(t, "")
	f.svc.deps.Generator = &assessor.Generator{Assessor: &fakeAssessor{err: errors.New("network down")}}
	sess := readySession(t, f, 3, 3)

	if n := sess.Narrative(); n == nil || n.Text != assessor.FallbackText {
		t.Errorf("narrative = %+v, want fallback", n)
	}
	if err := sess.CanFinish(); err != nil {
		t.Errorf("CanFinish = %v, want nil", err)
	}
}

func TestNarrate_NoGeneratorFallsBack(t *testing.T) {
	f := newFixture(t, "")
	f.svc.deps.Generator = nil

	n := f.svc.Narrate(context.Background(), f.set.Defaults())
	if !n.Fallback || n.Text != assessor.FallbackText {
		t.Errorf("narrative = %+v, want fallback", n)
	}
}

func TestFinish_NotReady(t *testing.T) {
	f := newFixture(t, "x")
	sess := session.New("s1", f.set)
	_, _ = sess.Set("Q1", 4)

	_, err := f.svc.Finish(context.Background(), sess)
	if !errors.Is(err, session.ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
	if len(f.store.rows) != 0 {
		t.Error("no record should be written")
	}
}

func TestFinish_StoresExportsMailsAndResets(t *testing.T) {
	f := newFixture(t, "You are sociable.")
	sess := readySession(t, f, 7, 2)

	res, err := f.svc.Finish(context.Background(), sess)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if res.Message != "Thank you for your participation! Email sent successfully!" {
		t.Errorf("Message = %q", res.Message)
	}
	if !res.EmailSent {
		t.Error("EmailSent = false")
	}

	want := []model.Submission{{ID: 1, CurrentDate: "2026-03-01 09:15", Ratings: `{"Q1":7,"Q2":2}`, Assessment: "You are sociable."}}
	if diff := cmp.Diff(want, f.store.rows); diff != "" {
		t.Errorf("stored rows mismatch (-want +got):\n%s", diff)
	}

	if len(f.mailer.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(f.mailer.sent))
	}
	wantCSV := [][]string{
		{"id", "current_date", "personality_assessment", "Q1", "Q2"},
		{"1", "2026-03-01 09:15", "You are sociable.", "7", "2"},
	}
	if diff := cmp.Diff(wantCSV, f.mailer.sent[0]); diff != "" {
		t.Errorf("attachment mismatch (-want +got):\n%s", diff)
	}

	if _, err := os.Stat(f.path); !os.IsNotExist(err) {
		t.Errorf("export file should be removed, stat err = %v", err)
	}

	if sess.State() != session.StateIdle || sess.Narrative() != nil {
		t.Errorf("session not reset: state=%v narrative=%v", sess.State(), sess.Narrative())
	}
	if diff := cmp.Diff(f.set.Defaults(), sess.Ratings()); diff != "" {
		t.Errorf("ratings not reset (-want +got):\n%s", diff)
	}
}

func TestFinish_EmailFailureKeepsRecord(t *testing.T) {
	f := newFixture(t, "n")
	f.mailer.err = errors.New("535 authentication failed")
	sess := readySession(t, f, 1, 1)

	res, err := f.svc.Finish(context.Background(), sess)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if !strings.HasPrefix(res.Message, "Thank you for your participation! Error sending email: ") ||
		!strings.Contains(res.Message, "535 authentication failed") {
		t.Errorf("Message = %q", res.Message)
	}
	if res.EmailSent {
		t.Error("EmailSent = true")
	}
	if len(f.store.rows) != 1 {
		t.Error("record should survive an e-mail failure")
	}
	if _, err := os.Stat(f.path); !os.IsNotExist(err) {
		t.Error("export file should be removed after a failed send")
	}
	if sess.State() != session.StateIdle {
		t.Error("session should reset after a failed send")
	}
}

func TestFinish_NoMailer(t *testing.T) {
	f := newFixture(t, "n")
	f.svc.deps.Mailer = nil
	sess := readySession(t, f, 1, 1)

	res, err := f.svc.Finish(context.Background(), sess)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if !strings.Contains(res.Message, notify.ErrNotConfigured.Error()) {
		t.Errorf("Message = %q", res.Message)
	}
}

func TestFinish_StoreFailureDoesNotReset(t *testing.T) {
	f := newFixture(t, "n")
	sess := readySession(t, f, 1, 1)
	f.store.err = errors.New("disk full")

	if _, err := f.svc.Finish(context.Background(), sess); err == nil {
		t.Fatal("expected error")
	}
	if sess.State() != session.StateAssessmentReady {
		t.Errorf("state = %v, want assessment_ready", sess.State())
	}
	if len(f.mailer.sent) != 0 {
		t.Error("nothing should be mailed")
	}
}

func TestFinish_MalformedRowIsWarning(t *testing.T) {
	f := newFixture(t, "n")
	f.store.rows = append(f.store.rows, model.Submission{ID: 1, CurrentDate: "old", Ratings: "{oops", Assessment: "legacy"})
	sess := readySession(t, f, 7, 2)

	res, err := f.svc.Finish(context.Background(), sess)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "row 1") {
		t.Errorf("Warnings = %v", res.Warnings)
	}
	if !res.EmailSent {
		t.Error("a malformed row should not stop the e-mail")
	}
	rows := f.mailer.sent[0]
	if len(rows) != 3 {
		t.Fatalf("got %d csv lines, want header + 2 rows", len(rows))
	}
	if diff := cmp.Diff([]string{"2", "2026-03-01 09:15", "n", "7", "2"}, rows[2]); diff != "" {
		t.Errorf("good row mismatch (-want +got):\n%s", diff)
	}
}

func TestFinish_ConcurrentExportsAreSerialised(t *testing.T) {
	f := newFixture(t, "n")
	var sessions []*session.Session
	for i := 0; i < 5; i++ {
		sess := session.New("s", f.set)
		_, _ = sess.Set("Q1", i)
		if _, err := f.svc.Assess(context.Background(), sess); err != nil {
			t.Fatal(err)
		}
		sessions = append(sessions, sess)
	}

	var wg sync.WaitGroup
	for _, sess := range sessions {
		wg.Add(1)
		go func(sess *session.Session) {
			defer wg.Done()
			if _, err := f.svc.Finish(context.Background(), sess); err != nil {
				t.Errorf("Finish: %v", err)
			}
		}(sess)
	}
	wg.Wait()

	if f.mailer.maxSeen != 1 {
		t.Errorf("max concurrent sends = %d, want 1", f.mailer.maxSeen)
	}
	if len(f.mailer.sent) != 5 {
		t.Errorf("sent %d mails, want 5", len(f.mailer.sent))
	}
}

func TestExport_WritesFile(t *testing.T) {
	f := newFixture(t, "n")
	sess := readySession(t, f, 7, 2)
	if _, err := f.svc.Finish(context.Background(), sess); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "out.csv")
	table, err := f.svc.Export(context.Background(), path)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(table.Rows) != 1 {
		t.Errorf("got %d rows, want 1", len(table.Rows))
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("export file missing: %v", err)
	}
}
