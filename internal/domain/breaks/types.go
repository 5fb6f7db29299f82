// Package breaks contains the domain model for break sessions: the
// session lifecycle states, the category registry, and the store
// contract the engine operates against.
package breaks

import "time"

// State is a session lifecycle state.
type State string

const (
	// StateActive means the subject is currently on break within the
	// allowed duration.
	StateActive State = "ACTIVE"
	// StateReturnedOnTime means the subject returned before the break
	// allowance elapsed. Terminal.
	StateReturnedOnTime State = "RETURNED_ON_TIME"
	// StateOverdue means the break allowance elapsed without a return.
	StateOverdue State = "OVERDUE"
	// StatePendingReason means the subject returned late and owes an
	// explanation.
	StatePendingReason State = "PENDING_REASON"
	// StatePendingAdjudication means a reason was submitted and an
	// operator verdict is outstanding.
	StatePendingAdjudication State = "PENDING_ADJUDICATION"
	// StateCleared means the operator accepted the reason. Terminal.
	StateCleared State = "CLEARED"
	// StateFined means the operator rejected the reason and a fine was
	// applied. Terminal.
	StateFined State = "FINED"
)

// Terminal reports whether the state is final and immutable.
func (s State) Terminal() bool {
	switch s {
	case StateReturnedOnTime, StateCleared, StateFined:
		return true
	}
	return false
}

// Open reports whether the state occupies a category slot.
// Open and Terminal are complementary over the valid states.
func (s State) Open() bool {
	switch s {
	case StateActive, StateOverdue, StatePendingReason, StatePendingAdjudication:
		return true
	}
	return false
}

// OpenStates returns the set of slot-occupying states.
func OpenStates() []State {
	return []State{StateActive, StateOverdue, StatePendingReason, StatePendingAdjudication}
}

// Verdict is an operator decision on a pending adjudication.
type Verdict string

const (
	// VerdictApprove accepts the reason; the session closes as Cleared.
	VerdictApprove Verdict = "APPROVE"
	// VerdictReject rejects the reason; the session closes as Fined.
	VerdictReject Verdict = "REJECT"
)

// ReturnOutcome describes what a successful return produced.
type ReturnOutcome string

const (
	// OutcomeReturnedOnTime means the session closed cleanly.
	OutcomeReturnedOnTime ReturnOutcome = "RETURNED_ON_TIME"
	// OutcomeNeedsReason means the subject was overdue and must now
	// submit a reason.
	OutcomeNeedsReason ReturnOutcome = "NEEDS_REASON"
)

// Well-known reason codes offered to late subjects. Free text is also
// accepted; these are the choices surfaced by default.
const (
	ReasonEmergency       = "Emergency"
	ReasonManagerApproved = "ManagerApproved"
	ReasonLostTime        = "LostTime"
	ReasonOther           = "Other"
)

// Category maps a break category name to its concurrency limit.
// Immutable after registry construction.
type Category struct {
	Name     string
	Capacity int
}

// Session is one break taken by one subject.
type Session struct {
	// ID is an opaque unique identifier for this session instance.
	ID string
	// SubjectID identifies the person on break. A subject has at most
	// one session in an open state at any time.
	SubjectID string
	// Category is the break category name.
	Category string
	// State is the current lifecycle state.
	State State
	// StartedAt is set at admission (UTC).
	StartedAt time.Time
	// EndedAt is set on return; zero while the subject is out.
	EndedAt time.Time
	// Reason is the explanation submitted for a late return.
	Reason string
	// FineAmount is the penalty applied when the session is Fined.
	FineAmount int
}

// Clone returns a deep copy. Stores hand out copies so callers can
// never mutate authoritative state.
func (s *Session) Clone() *Session {
	c := *s
	return &c
}
