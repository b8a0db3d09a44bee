package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/timvw/persona-survey/internal/questions"
)

// Registry keeps the sessions of the HTTP front end, keyed by a random ID.
// Sessions idle for longer than the TTL are dropped on the next access.
type Registry struct {
	mu        sync.Mutex
	ttl       time.Duration
	questions *questions.Set
	data      map[string]*Session
	now       func() time.Time
}

// NewRegistry creates a registry for the given questionnaire.
// A TTL of 0 keeps sessions until the process exits.
func NewRegistry(set *questions.Set, ttl time.Duration) *Registry {
	return &Registry{
		ttl:       ttl,
		questions: set,
		data:      make(map[string]*Session),
		now:       time.Now,
	}
}

// Create starts a new session with default ratings.
func (r *Registry) Create() *Session {
	s := New(uuid.NewString(), r.questions)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(r.now())
	r.data[s.ID] = s
	return s
}

// Get returns the session with the given ID if it exists and has not expired.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(r.now())
	s, ok := r.data[id]
	return s, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(r.now())
	return len(r.data)
}

// IDs returns the live session IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(r.now())
	ids := make([]string, 0, len(r.data))
	for id := range r.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Prune drops expired sessions and returns how many remain.
func (r *Registry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(r.now())
	return len(r.data)
}

func (r *Registry) pruneLocked(now time.Time) {
	if r.ttl <= 0 {
		return
	}
	for id, s := range r.data {
		if !s.mu.TryLock() {
			// In use by a handler, so not idle.
			continue
		}
		idle := now.Sub(s.touched)
		s.mu.Unlock()
		if idle > r.ttl {
			delete(r.data, id)
		}
	}
}
