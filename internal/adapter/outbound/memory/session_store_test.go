package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mark-ai1/Break-Management/internal/domain/breaks"
)

func newSession(id, subject, category string) *breaks.Session {
	return &breaks.Session{
		ID:        id,
		SubjectID: subject,
		Category:  category,
		State:     breaks.StateActive,
		StartedAt: time.Now().UTC(),
	}
}

func TestSessionStore_CreateAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore()

	if err := store.Create(ctx, newSession("s-1", "emp-1", "Toilet"), 2); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	got, err := store.Get(ctx, "s-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.SubjectID != "emp-1" || got.Category != "Toilet" || got.State != breaks.StateActive {
		t.Errorf("Get() = %+v, want emp-1/Toilet/ACTIVE", got)
	}

	// Stores hand out copies.
	got.State = breaks.StateFined
	again, _ := store.Get(ctx, "s-1")
	if again.State != breaks.StateActive {
		t.Error("mutation of returned session leaked into the store")
	}
}

func TestSessionStore_GetNonExistent(t *testing.T) {
	t.Parallel()

	store := NewSessionStore()
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, breaks.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestSessionStore_DuplicateOpenSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore()

	if err := store.Create(ctx, newSession("s-1", "emp-1", "Toilet"), 2); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	err := store.Create(ctx, newSession("s-2", "emp-1", "Drink"), 2)
	if !errors.Is(err, breaks.ErrDuplicateOpenSession) {
		t.Errorf("Create() error = %v, want ErrDuplicateOpenSession", err)
	}
}

func TestSessionStore_CapacityExceeded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore()

	if err := store.Create(ctx, newSession("s-1", "emp-1", "Toilet"), 1); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	err := store.Create(ctx, newSession("s-2", "emp-2", "Toilet"), 1)
	if !errors.Is(err, breaks.ErrCapacityExceeded) {
		t.Errorf("Create() error = %v, want ErrCapacityExceeded", err)
	}

	// Zero-capacity categories admit nobody.
	err = store.Create(ctx, newSession("s-3", "emp-3", "Closed"), 0)
	if !errors.Is(err, breaks.ErrCapacityExceeded) {
		t.Errorf("Create() error = %v, want ErrCapacityExceeded for capacity 0", err)
	}
}

func TestSessionStore_TransitionGuard(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore()

	if err := store.Create(ctx, newSession("s-1", "emp-1", "Toilet"), 2); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	ended := time.Now().UTC()
	got, err := store.Transition(ctx, "s-1",
		[]breaks.State{breaks.StateActive}, breaks.StateReturnedOnTime,
		func(s *breaks.Session) { s.EndedAt = ended })
	if err != nil {
		t.Fatalf("Transition() error: %v", err)
	}
	if got.State != breaks.StateReturnedOnTime || !got.EndedAt.Equal(ended) {
		t.Errorf("Transition() = %+v, want RETURNED_ON_TIME with EndedAt set", got)
	}

	// Terminal sessions reject further transitions.
	_, err = store.Transition(ctx, "s-1",
		[]breaks.State{breaks.StateActive}, breaks.StateOverdue, nil)
	if !errors.Is(err, breaks.ErrInvalidTransition) {
		t.Errorf("Transition() error = %v, want ErrInvalidTransition", err)
	}

	_, err = store.Transition(ctx, "missing",
		[]breaks.State{breaks.StateActive}, breaks.StateOverdue, nil)
	if !errors.Is(err, breaks.ErrNotFound) {
		t.Errorf("Transition() error = %v, want ErrNotFound", err)
	}
}

func TestSessionStore_TerminalFreesSlot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore()

	if err := store.Create(ctx, newSession("s-1", "emp-1", "Toilet"), 1); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if count, _ := store.ActiveCount(ctx, "Toilet"); count != 1 {
		t.Fatalf("ActiveCount = %d, want 1", count)
	}

	// Overdue still occupies the slot.
	if _, err := store.Transition(ctx, "s-1", []breaks.State{breaks.StateActive}, breaks.StateOverdue, nil); err != nil {
		t.Fatalf("Transition() error: %v", err)
	}
	if count, _ := store.ActiveCount(ctx, "Toilet"); count != 1 {
		t.Errorf("ActiveCount after Overdue = %d, want 1", count)
	}
	if _, err := store.FindOpenSession(ctx, "emp-1"); err != nil {
		t.Errorf("FindOpenSession() during Overdue error: %v", err)
	}

	// Walk to a terminal state; the slot and the subject free up.
	if _, err := store.Transition(ctx, "s-1", []breaks.State{breaks.StateOverdue}, breaks.StatePendingReason, nil); err != nil {
		t.Fatalf("Transition() error: %v", err)
	}
	if _, err := store.Transition(ctx, "s-1", []breaks.State{breaks.StatePendingReason}, breaks.StatePendingAdjudication, nil); err != nil {
		t.Fatalf("Transition() error: %v", err)
	}
	if _, err := store.Transition(ctx, "s-1", []breaks.State{breaks.StatePendingAdjudication}, breaks.StateFined, nil); err != nil {
		t.Fatalf("Transition() error: %v", err)
	}

	if count, _ := store.ActiveCount(ctx, "Toilet"); count != 0 {
		t.Errorf("ActiveCount after terminal = %d, want 0", count)
	}
	if _, err := store.FindOpenSession(ctx, "emp-1"); !errors.Is(err, breaks.ErrNotFound) {
		t.Errorf("FindOpenSession() after terminal error = %v, want ErrNotFound", err)
	}
	// The historical record remains.
	if _, err := store.Get(ctx, "s-1"); err != nil {
		t.Errorf("Get() after terminal error: %v", err)
	}
}

func TestSessionStore_ConcurrentCreate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore()
	const capacity = 3
	const contenders = 40

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0

	wg.Add(contenders)
	for i := 0; i < contenders; i++ {
		go func(n int) {
			defer wg.Done()
			sess := newSession(
				"s-"+string(rune('a'+n%26))+string(rune('0'+n/26)),
				"emp-"+string(rune('a'+n%26))+string(rune('0'+n/26)),
				"Toilet",
			)
			if err := store.Create(ctx, sess, capacity); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if created != capacity {
		t.Errorf("created = %d, want %d", created, capacity)
	}
	if count, _ := store.ActiveCount(ctx, "Toilet"); count != capacity {
		t.Errorf("ActiveCount = %d, want %d", count, capacity)
	}
}
