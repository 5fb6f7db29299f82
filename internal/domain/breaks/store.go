package breaks

import "context"

// Mutation adjusts session fields as part of a guarded transition.
// It runs while the store holds the session exclusively; it must not
// change ID, SubjectID, Category, or State.
type Mutation func(*Session)

// SessionStore is the authoritative view of session state and the
// single choke point for the capacity and single-session invariants.
// This interface is defined in the domain to avoid circular imports.
// Implementations: in-memory (default), SQLite (durable).
type SessionStore interface {
	// Create atomically checks and inserts a new Active session.
	// Fails with ErrDuplicateOpenSession if the subject already has an
	// open session, and with ErrCapacityExceeded if the category
	// already has capacity open sessions. The check and the insert are
	// a single atomic step with respect to concurrent Creates.
	Create(ctx context.Context, sess *Session, capacity int) error

	// Transition moves a session to a new state if and only if its
	// current state is in from. The optional mutation runs atomically
	// with the state change. Returns the updated session, or
	// ErrInvalidTransition when the current state is not in from, or
	// ErrNotFound when the id is unknown.
	Transition(ctx context.Context, id string, from []State, to State, mutate Mutation) (*Session, error)

	// ActiveCount returns the number of open sessions in a category.
	// Consistent with the admission decision at all times.
	ActiveCount(ctx context.Context, category string) (int, error)

	// FindOpenSession returns the subject's current open session, or
	// ErrNotFound when the subject has none.
	FindOpenSession(ctx context.Context, subjectID string) (*Session, error)

	// Get returns the session with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
}
