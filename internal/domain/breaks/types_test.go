package breaks

import (
	"testing"
	"time"
)

func TestState_TerminalAndOpen(t *testing.T) {
	t.Parallel()

	open := map[State]bool{
		StateActive:              true,
		StateOverdue:             true,
		StatePendingReason:       true,
		StatePendingAdjudication: true,
		StateReturnedOnTime:      false,
		StateCleared:             false,
		StateFined:               false,
	}

	for state, wantOpen := range open {
		if got := state.Open(); got != wantOpen {
			t.Errorf("%s.Open() = %v, want %v", state, got, wantOpen)
		}
		if got := state.Terminal(); got == wantOpen {
			t.Errorf("%s.Terminal() = %v, want %v", state, got, !wantOpen)
		}
	}

	if got := len(OpenStates()); got != 4 {
		t.Errorf("len(OpenStates()) = %d, want 4", got)
	}
}

func TestSession_Clone(t *testing.T) {
	t.Parallel()

	orig := &Session{
		ID:        "s-1",
		SubjectID: "emp-1",
		Category:  "Toilet",
		State:     StateActive,
		StartedAt: time.Now().UTC(),
	}

	c := orig.Clone()
	c.State = StateFined
	c.Reason = "changed"

	if orig.State != StateActive || orig.Reason != "" {
		t.Errorf("Clone() shares memory with original: %+v", orig)
	}
}
