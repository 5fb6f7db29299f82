package breaks

import "time"

// EventKind identifies a session lifecycle event.
type EventKind string

const (
	// EventStarted fires on a successful admission.
	EventStarted EventKind = "started"
	// EventReturnedOnTime fires when a session closes before timeout.
	EventReturnedOnTime EventKind = "returned_on_time"
	// EventOverdue fires on the first Active -> Overdue transition.
	// It fires at most once per session.
	EventOverdue EventKind = "overdue"
	// EventReasonSubmitted fires when a late subject explains.
	EventReasonSubmitted EventKind = "reason_submitted"
	// EventCleared fires when an operator approves the reason.
	EventCleared EventKind = "cleared"
	// EventFined fires when an operator rejects the reason.
	EventFined EventKind = "fined"
)

// Event is a fact about a session transition, published by the engine
// to subscribers (statistics, metrics).
type Event struct {
	Kind      EventKind
	SessionID string
	SubjectID string
	Category  string
	At        time.Time
}
