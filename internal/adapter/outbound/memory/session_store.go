// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark-ai1/Break-Management/internal/domain/breaks"
)

// SessionStore implements breaks.SessionStore with in-memory maps.
// One mutex serializes every capacity check and transition, so the
// admission check-and-insert and the from-state guard are atomic by
// construction. State is lost on restart; use the sqlite store for
// durability.
type SessionStore struct {
	mu sync.RWMutex
	// sessions holds every session ever created, keyed by id.
	sessions map[string]*breaks.Session
	// openBySubject indexes the single open session id per subject.
	openBySubject map[string]string
	// openByCategory counts open sessions per category.
	openByCategory map[string]int
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions:       make(map[string]*breaks.Session),
		openBySubject:  make(map[string]string),
		openByCategory: make(map[string]int),
	}
}

// Create atomically checks the single-session and capacity invariants
// and inserts the session.
func (s *SessionStore) Create(ctx context.Context, sess *breaks.Session, capacity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, open := s.openBySubject[sess.SubjectID]; open {
		return breaks.ErrDuplicateOpenSession
	}
	if s.openByCategory[sess.Category] >= capacity {
		return fmt.Errorf("%w: %q is limited to %d concurrent breaks", breaks.ErrCapacityExceeded, sess.Category, capacity)
	}

	stored := sess.Clone()
	s.sessions[stored.ID] = stored
	s.openBySubject[stored.SubjectID] = stored.ID
	s.openByCategory[stored.Category]++
	return nil
}

// Transition applies a guarded state change.
func (s *SessionStore) Transition(ctx context.Context, id string, from []breaks.State, to breaks.State, mutate breaks.Mutation) (*breaks.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, breaks.ErrNotFound
	}

	if !stateIn(sess.State, from) {
		return nil, fmt.Errorf("%w: session %s is %s", breaks.ErrInvalidTransition, id, sess.State)
	}

	updated := sess.Clone()
	if mutate != nil {
		mutate(updated)
	}
	updated.State = to

	if sess.State.Open() && !to.Open() {
		delete(s.openBySubject, sess.SubjectID)
		s.openByCategory[sess.Category]--
	}
	s.sessions[id] = updated

	return updated.Clone(), nil
}

// ActiveCount returns the number of open sessions in a category.
func (s *SessionStore) ActiveCount(ctx context.Context, category string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.openByCategory[category], nil
}

// FindOpenSession returns the subject's open session, if any.
func (s *SessionStore) FindOpenSession(ctx context.Context, subjectID string) (*breaks.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.openBySubject[subjectID]
	if !ok {
		return nil, breaks.ErrNotFound
	}
	return s.sessions[id].Clone(), nil
}

// Get returns the session with the given id.
func (s *SessionStore) Get(ctx context.Context, id string) (*breaks.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, breaks.ErrNotFound
	}
	return sess.Clone(), nil
}

// Size returns the total number of sessions held, open and terminal.
// Useful for tests.
func (s *SessionStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func stateIn(state breaks.State, set []breaks.State) bool {
	for _, s := range set {
		if s == state {
			return true
		}
	}
	return false
}

// Compile-time interface verification.
var _ breaks.SessionStore = (*SessionStore)(nil)
