package breaks

import "errors"

// Expected, recoverable denials. All of these are surfaced to the
// caller as typed results, never as process failures.
var (
	// ErrUnknownCategory is returned for category names that were not
	// registered at startup.
	ErrUnknownCategory = errors.New("unknown break category")

	// ErrCapacityExceeded is returned when a category has no free slot.
	ErrCapacityExceeded = errors.New("break category at capacity")

	// ErrDuplicateOpenSession is the store-level error for a subject
	// that already has an open session.
	ErrDuplicateOpenSession = errors.New("subject already has an open session")

	// ErrAlreadyOnBreak is the engine-level denial for a second Admit
	// while a session is open.
	ErrAlreadyOnBreak = errors.New("subject is already on break")

	// ErrNotOnBreak is returned for a Return with no open session.
	ErrNotOnBreak = errors.New("subject is not on break")

	// ErrInvalidTransition is returned when the session's current state
	// is not in the allowed from-set. Guards double returns, double
	// adjudications, and timers racing a return.
	ErrInvalidTransition = errors.New("invalid session state transition")

	// ErrNotFound is returned when no session exists for the given id.
	ErrNotFound = errors.New("session not found")

	// ErrReasonRequired is returned when a reason submission is empty.
	ErrReasonRequired = errors.New("a reason is required")

	// ErrUnknownVerdict is returned for verdicts other than approve or
	// reject.
	ErrUnknownVerdict = errors.New("unknown verdict")
)

// ErrStoreUnavailable is the only fatal-class failure: the persistence
// backend cannot uphold its guarantees. Operations fail closed.
var ErrStoreUnavailable = errors.New("session store unavailable")
