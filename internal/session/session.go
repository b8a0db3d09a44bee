// Package session holds the per-respondent form state: one bounded rating
// control per question plus the cached narrative, driven through the
// Idle → RatingsEntered → AssessmentRequested → AssessmentReady → Idle cycle.
//
// A Session is not safe for concurrent use on its own; callers that share one
// across goroutines (the HTTP front end) hold its lock via Lock/Unlock.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/timvw/persona-survey/internal/model"
	"github.com/timvw/persona-survey/internal/questions"
)

// State is a step in the survey cycle.
type State int

const (
	StateIdle State = iota
	StateRatingsEntered
	StateAssessmentRequested
	StateAssessmentReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRatingsEntered:
		return "ratings_entered"
	case StateAssessmentRequested:
		return "assessment_requested"
	case StateAssessmentReady:
		return "assessment_ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	// ErrNoRatings is returned when an assessment is requested without any ratings.
	ErrNoRatings = errors.New("please answer the questions before getting an assessment")
	// ErrNotReady is returned when finishing before a narrative exists.
	ErrNotReady = errors.New("please get your personality assessment before finishing the session")
	// ErrBusy is returned while an assessment request is in flight.
	ErrBusy = errors.New("an assessment is already in progress")
	// ErrUnknownQuestion is returned when setting a rating for an unknown item.
	ErrUnknownQuestion = errors.New("unknown question")
)

// Session is one respondent's in-progress survey.
type Session struct {
	mu sync.Mutex

	ID        string
	CreatedAt time.Time

	questions *questions.Set
	values    model.RatingSet
	state     State
	narrative *model.Narrative
	touched   time.Time
}

// New creates a session with every control at its midpoint.
func New(id string, set *questions.Set) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		questions: set,
		values:    set.Defaults(),
		touched:   now,
	}
}

// Lock serializes access for callers sharing the session between goroutines.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the lock taken by Lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// Questions returns the questionnaire backing the form.
func (s *Session) Questions() *questions.Set { return s.questions }

// State returns the current step of the cycle.
func (s *Session) State() State { return s.state }

// Value returns the current rating for id.
func (s *Session) Value(id string) (int, bool) {
	v, ok := s.values[id]
	return v, ok
}

// Ratings returns a copy of the current ratings.
func (s *Session) Ratings() model.RatingSet { return s.values.Clone() }

// Narrative returns the cached narrative, or nil when none exists.
func (s *Session) Narrative() *model.Narrative { return s.narrative }

// LastActivity returns the time of the last interaction.
func (s *Session) LastActivity() time.Time { return s.touched }

// Set changes the rating for id, clamped to the question's bounds, and
// returns the stored value.
func (s *Session) Set(id string, v int) (int, error) {
	q, ok := s.questions.Get(id)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownQuestion, id)
	}
	if s.state == StateAssessmentRequested {
		return s.values[id], ErrBusy
	}
	v = q.Clamp(v)
	s.values[id] = v
	s.touched = time.Now()
	if s.state == StateIdle || s.state == StateAssessmentReady {
		s.state = StateRatingsEntered
	}
	return v, nil
}

// Adjust moves the rating for id by delta within its bounds.
func (s *Session) Adjust(id string, delta int) (int, error) {
	cur, ok := s.values[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownQuestion, id)
	}
	return s.Set(id, cur+delta)
}

// Increment raises the rating for id by one step.
func (s *Session) Increment(id string) (int, error) { return s.Adjust(id, 1) }

// Decrement lowers the rating for id by one step.
func (s *Session) Decrement(id string) (int, error) { return s.Adjust(id, -1) }

// BeginAssessment moves the session to AssessmentRequested and returns the
// ratings to assess.
func (s *Session) BeginAssessment() (model.RatingSet, error) {
	if s.state == StateAssessmentRequested {
		return nil, ErrBusy
	}
	if len(s.values) == 0 {
		return nil, ErrNoRatings
	}
	s.state = StateAssessmentRequested
	s.touched = time.Now()
	return s.values.Clone(), nil
}

// CompleteAssessment caches the narrative and makes the session ready to finish.
func (s *Session) CompleteAssessment(n *model.Narrative) {
	if s.state != StateAssessmentRequested {
		return
	}
	s.narrative = n
	s.state = StateAssessmentReady
	s.touched = time.Now()
}

// CanFinish reports whether the session may be finished.
func (s *Session) CanFinish() error {
	if s.state != StateAssessmentReady || s.narrative == nil {
		return ErrNotReady
	}
	return nil
}

// Reset returns every control to its midpoint and clears the narrative.
func (s *Session) Reset() {
	s.values = s.questions.Defaults()
	s.narrative = nil
	s.state = StateIdle
	s.touched = time.Now()
}

// Snapshot is a point-in-time view of a session, safe to serialize.
type Snapshot struct {
	ID        string           `json:"id"`
	State     State            `json:"state"`
	Ratings   model.RatingSet  `json:"ratings"`
	Narrative *model.Narrative `json:"narrative,omitempty"`
	CanFinish bool             `json:"can_finish"`

	// CreatedAt and LastActivity let clients show how long a form has been open.
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Snapshot captures the current session state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:        s.ID,
		State:     s.state,
		Ratings:   s.values.Clone(),
		CanFinish: s.CanFinish() == nil,

		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity(),
	}
	if s.narrative != nil {
		n := *s.narrative
		snap.Narrative = &n
	}
	return snap
}
