package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mark-ai1/Break-Management/internal/adapter/outbound/memory"
	"github.com/mark-ai1/Break-Management/internal/clock"
	"github.com/mark-ai1/Break-Management/internal/domain/breaks"
	"github.com/mark-ai1/Break-Management/internal/port/outbound"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// spyNotifier records notifications for assertions.
type spyNotifier struct {
	mu   sync.Mutex
	sent []outbound.Notification
	fail bool
}

func (s *spyNotifier) Notify(ctx context.Context, n outbound.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("delivery failed")
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *spyNotifier) byKind(kind outbound.NotificationKind) []outbound.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []outbound.Notification
	for _, n := range s.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type engineFixture struct {
	engine   *Engine
	store    *memory.SessionStore
	clock    *clock.Fake
	notifier *spyNotifier
	stats    *StatsService
}

func newFixture(t *testing.T, categories ...breaks.Category) *engineFixture {
	t.Helper()

	if len(categories) == 0 {
		categories = []breaks.Category{
			{Name: "Toilet", Capacity: 2},
			{Name: "Drink", Capacity: 2},
		}
	}
	registry, err := breaks.NewRegistry(categories)
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	store := memory.NewSessionStore()
	notifier := &spyNotifier{}

	engine := NewEngine(store, registry, clk, notifier, logger, EngineConfig{
		BreakDuration: 900 * time.Second,
		GracePeriod:   300 * time.Second,
		PenaltyAmount: 100,
	})

	stats := NewStatsService(registry, clk, logger, DefaultWindow)
	engine.Subscribe(stats)

	return &engineFixture{engine: engine, store: store, clock: clk, notifier: notifier, stats: stats}
}

func TestAdmit_UnknownCategory(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.engine.Admit(context.Background(), "emp-1", "Nap")
	if !errors.Is(err, breaks.ErrUnknownCategory) {
		t.Errorf("Admit() error = %v, want ErrUnknownCategory", err)
	}
}

func TestAdmit_SecondAdmitDenied(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.Admit(ctx, "emp-1", "Toilet"); err != nil {
		t.Fatalf("first Admit() error: %v", err)
	}
	_, err := f.engine.Admit(ctx, "emp-1", "Drink")
	if !errors.Is(err, breaks.ErrAlreadyOnBreak) {
		t.Errorf("second Admit() error = %v, want ErrAlreadyOnBreak", err)
	}
}

// Scenario A: capacity 2; third admit denied until a slot frees up.
func TestAdmit_CapacityGate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.Admit(ctx, "emp-1", "Toilet"); err != nil {
		t.Fatalf("Admit(emp-1) error: %v", err)
	}
	if _, err := f.engine.Admit(ctx, "emp-2", "Toilet"); err != nil {
		t.Fatalf("Admit(emp-2) error: %v", err)
	}

	_, err := f.engine.Admit(ctx, "emp-3", "Toilet")
	if !errors.Is(err, breaks.ErrCapacityExceeded) {
		t.Fatalf("Admit(emp-3) error = %v, want ErrCapacityExceeded", err)
	}

	outcome, _, err := f.engine.Return(ctx, "emp-1")
	if err != nil {
		t.Fatalf("Return(emp-1) error: %v", err)
	}
	if outcome != breaks.OutcomeReturnedOnTime {
		t.Fatalf("Return outcome = %s, want %s", outcome, breaks.OutcomeReturnedOnTime)
	}

	if _, err := f.engine.Admit(ctx, "emp-3", "Toilet"); err != nil {
		t.Errorf("Admit(emp-3) after free slot error: %v", err)
	}
}

// Scenario D: return before the allowance closes cleanly.
func TestReturn_OnTime(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	id, err := f.engine.Admit(ctx, "emp-1", "Drink")
	if err != nil {
		t.Fatalf("Admit() error: %v", err)
	}

	f.clock.Advance(500 * time.Second)

	outcome, sessionID, err := f.engine.Return(ctx, "emp-1")
	if err != nil {
		t.Fatalf("Return() error: %v", err)
	}
	if outcome != breaks.OutcomeReturnedOnTime {
		t.Errorf("outcome = %s, want %s", outcome, breaks.OutcomeReturnedOnTime)
	}
	if sessionID != id {
		t.Errorf("sessionID = %s, want %s", sessionID, id)
	}

	sess, err := f.engine.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if sess.State != breaks.StateReturnedOnTime {
		t.Errorf("state = %s, want %s", sess.State, breaks.StateReturnedOnTime)
	}
	if sess.EndedAt.IsZero() {
		t.Error("EndedAt not set on return")
	}

	if got := f.notifier.byKind(outbound.NotifyOverdue); len(got) != 0 {
		t.Errorf("overdue notifications = %d, want 0", len(got))
	}

	snap := f.stats.Snapshot()["Drink"]
	if snap.Started != 1 || snap.ReturnedOnTime != 1 || snap.Late != 0 {
		t.Errorf("counters = %+v, want started=1 returned=1 late=0", snap)
	}
}

func TestReturn_NotOnBreak(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, _, err := f.engine.Return(context.Background(), "ghost")
	if !errors.Is(err, breaks.ErrNotOnBreak) {
		t.Errorf("Return() error = %v, want ErrNotOnBreak", err)
	}
}

// Scenario B: timeout, late return, reason, approve.
func TestEscalation_Approve(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	id, err := f.engine.Admit(ctx, "emp-1", "Toilet")
	if err != nil {
		t.Fatalf("Admit() error: %v", err)
	}

	// Allowance elapses without a return.
	f.clock.Advance(900 * time.Second)

	sess, _ := f.engine.Get(ctx, id)
	if sess.State != breaks.StateOverdue {
		t.Fatalf("state after timeout = %s, want %s", sess.State, breaks.StateOverdue)
	}
	if got := f.notifier.byKind(outbound.NotifyOverdue); len(got) != 1 {
		t.Fatalf("overdue notifications = %d, want 1", len(got))
	}

	outcome, _, err := f.engine.Return(ctx, "emp-1")
	if err != nil {
		t.Fatalf("Return() error: %v", err)
	}
	if outcome != breaks.OutcomeNeedsReason {
		t.Fatalf("outcome = %s, want %s", outcome, breaks.OutcomeNeedsReason)
	}

	if err := f.engine.SubmitReason(ctx, id, breaks.ReasonEmergency); err != nil {
		t.Fatalf("SubmitReason() error: %v", err)
	}
	if got := f.notifier.byKind(outbound.NotifyAdjudicationNeeded); len(got) != 1 {
		t.Fatalf("adjudication notifications = %d, want 1", len(got))
	} else if got[0].Reason != breaks.ReasonEmergency {
		t.Errorf("notification reason = %q, want %q", got[0].Reason, breaks.ReasonEmergency)
	}

	if err := f.engine.Adjudicate(ctx, id, breaks.VerdictApprove); err != nil {
		t.Fatalf("Adjudicate() error: %v", err)
	}

	sess, _ = f.engine.Get(ctx, id)
	if sess.State != breaks.StateCleared {
		t.Errorf("state = %s, want %s", sess.State, breaks.StateCleared)
	}
	if sess.FineAmount != 0 {
		t.Errorf("FineAmount = %d, want 0", sess.FineAmount)
	}

	snap := f.stats.Snapshot()["Toilet"]
	if snap.Late != 1 || snap.Fined != 0 {
		t.Errorf("counters = %+v, want late=1 fined=0", snap)
	}
}

// Scenario C: as B but reject -> fined.
func TestEscalation_Reject(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	id, err := f.engine.Admit(ctx, "emp-1", "Toilet")
	if err != nil {
		t.Fatalf("Admit() error: %v", err)
	}
	f.clock.Advance(900 * time.Second)

	if _, _, err := f.engine.Return(ctx, "emp-1"); err != nil {
		t.Fatalf("Return() error: %v", err)
	}
	if err := f.engine.SubmitReason(ctx, id, breaks.ReasonOther); err != nil {
		t.Fatalf("SubmitReason() error: %v", err)
	}
	if err := f.engine.Adjudicate(ctx, id, breaks.VerdictReject); err != nil {
		t.Fatalf("Adjudicate() error: %v", err)
	}

	sess, _ := f.engine.Get(ctx, id)
	if sess.State != breaks.StateFined {
		t.Errorf("state = %s, want %s", sess.State, breaks.StateFined)
	}
	if sess.FineAmount != 100 {
		t.Errorf("FineAmount = %d, want 100", sess.FineAmount)
	}

	fined := f.notifier.byKind(outbound.NotifyFined)
	if len(fined) != 1 {
		t.Fatalf("fined notifications = %d, want 1", len(fined))
	}
	if fined[0].FineAmount != 100 {
		t.Errorf("notification fine = %d, want 100", fined[0].FineAmount)
	}

	snap := f.stats.Snapshot()["Toilet"]
	if snap.Late != 1 || snap.Fined != 1 {
		t.Errorf("counters = %+v, want late=1 fined=1", snap)
	}
}

// A timer firing after the session returned on time must be a no-op.
func TestHandleTimeout_IdempotentAfterReturn(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	id, err := f.engine.Admit(ctx, "emp-1", "Drink")
	if err != nil {
		t.Fatalf("Admit() error: %v", err)
	}
	if _, _, err := f.engine.Return(ctx, "emp-1"); err != nil {
		t.Fatalf("Return() error: %v", err)
	}

	// Fire the scheduled timeout well after the return.
	f.clock.Advance(2 * time.Hour)

	sess, _ := f.engine.Get(ctx, id)
	if sess.State != breaks.StateReturnedOnTime {
		t.Errorf("state = %s, want %s", sess.State, breaks.StateReturnedOnTime)
	}
	if got := f.notifier.byKind(outbound.NotifyOverdue); len(got) != 0 {
		t.Errorf("overdue notifications = %d, want 0", len(got))
	}
	// Direct invocation is equally a no-op.
	if err := f.engine.HandleTimeout(ctx, id); err != nil {
		t.Errorf("HandleTimeout() error = %v, want nil", err)
	}
}

func TestHandleTimeout_FiresOnceAndReminds(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	id, err := f.engine.Admit(ctx, "emp-1", "Drink")
	if err != nil {
		t.Fatalf("Admit() error: %v", err)
	}

	f.clock.Advance(900 * time.Second)
	// Grace elapses with the subject still out: admin gets a reminder.
	f.clock.Advance(300 * time.Second)

	if got := f.notifier.byKind(outbound.NotifyStillOut); len(got) != 1 {
		t.Errorf("still_out notifications = %d, want 1", len(got))
	}

	// Late counter must not double-count on repeat timeouts.
	if err := f.engine.HandleTimeout(ctx, id); err != nil {
		t.Fatalf("HandleTimeout() error: %v", err)
	}
	snap := f.stats.Snapshot()["Drink"]
	if snap.Late != 1 {
		t.Errorf("Late = %d, want 1", snap.Late)
	}
}

func TestReminder_SkippedAfterReturn(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.Admit(ctx, "emp-1", "Drink"); err != nil {
		t.Fatalf("Admit() error: %v", err)
	}
	f.clock.Advance(900 * time.Second)

	// Subject returns during the grace period.
	if _, _, err := f.engine.Return(ctx, "emp-1"); err != nil {
		t.Fatalf("Return() error: %v", err)
	}
	f.clock.Advance(300 * time.Second)

	if got := f.notifier.byKind(outbound.NotifyStillOut); len(got) != 0 {
		t.Errorf("still_out notifications = %d, want 0", len(got))
	}
}

func TestAdjudicate_NoDoubleVerdict(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	id, err := f.engine.Admit(ctx, "emp-1", "Toilet")
	if err != nil {
		t.Fatalf("Admit() error: %v", err)
	}
	f.clock.Advance(900 * time.Second)
	if _, _, err := f.engine.Return(ctx, "emp-1"); err != nil {
		t.Fatalf("Return() error: %v", err)
	}
	if err := f.engine.SubmitReason(ctx, id, breaks.ReasonLostTime); err != nil {
		t.Fatalf("SubmitReason() error: %v", err)
	}
	if err := f.engine.Adjudicate(ctx, id, breaks.VerdictApprove); err != nil {
		t.Fatalf("first Adjudicate() error: %v", err)
	}

	before := f.stats.Snapshot()["Toilet"]

	err = f.engine.Adjudicate(ctx, id, breaks.VerdictReject)
	if !errors.Is(err, breaks.ErrInvalidTransition) {
		t.Errorf("second Adjudicate() error = %v, want ErrInvalidTransition", err)
	}

	after := f.stats.Snapshot()["Toilet"]
	if before != after {
		t.Errorf("counters changed on rejected double verdict: %+v -> %+v", before, after)
	}
	sess, _ := f.engine.Get(ctx, id)
	if sess.State != breaks.StateCleared {
		t.Errorf("state = %s, want %s", sess.State, breaks.StateCleared)
	}
}

func TestSubmitReason_Validation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	id, err := f.engine.Admit(ctx, "emp-1", "Toilet")
	if err != nil {
		t.Fatalf("Admit() error: %v", err)
	}

	if err := f.engine.SubmitReason(ctx, id, ""); !errors.Is(err, breaks.ErrReasonRequired) {
		t.Errorf("empty reason error = %v, want ErrReasonRequired", err)
	}
	// Session is Active, not PendingReason.
	if err := f.engine.SubmitReason(ctx, id, breaks.ReasonOther); !errors.Is(err, breaks.ErrInvalidTransition) {
		t.Errorf("premature reason error = %v, want ErrInvalidTransition", err)
	}
	if err := f.engine.SubmitReason(ctx, "no-such-id", breaks.ReasonOther); !errors.Is(err, breaks.ErrNotFound) {
		t.Errorf("unknown session error = %v, want ErrNotFound", err)
	}
}

func TestNotifierFailure_DoesNotAffectState(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.notifier.fail = true
	ctx := context.Background()

	id, err := f.engine.Admit(ctx, "emp-1", "Toilet")
	if err != nil {
		t.Fatalf("Admit() error: %v", err)
	}
	f.clock.Advance(900 * time.Second)

	sess, _ := f.engine.Get(ctx, id)
	if sess.State != breaks.StateOverdue {
		t.Errorf("state = %s, want %s despite notifier failure", sess.State, breaks.StateOverdue)
	}
}

// Capacity invariant under concurrent admission pressure: with
// capacity 2 and many contenders, exactly 2 admits succeed and the
// rest all observe ErrCapacityExceeded.
func TestAdmit_ConcurrentCapacityInvariant(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	const contenders = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted, denied := 0, 0

	wg.Add(contenders)
	for i := 0; i < contenders; i++ {
		go func(n int) {
			defer wg.Done()
			_, err := f.engine.Admit(ctx, subjectName(n), "Toilet")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case errors.Is(err, breaks.ErrCapacityExceeded):
				denied++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if admitted != 2 {
		t.Errorf("admitted = %d, want 2", admitted)
	}
	if denied != contenders-2 {
		t.Errorf("denied = %d, want %d", denied, contenders-2)
	}

	count, err := f.store.ActiveCount(ctx, "Toilet")
	if err != nil {
		t.Fatalf("ActiveCount() error: %v", err)
	}
	if count != 2 {
		t.Errorf("ActiveCount = %d, want 2", count)
	}
}

// started >= returnedOnTime + late must hold after any mix of
// operations.
func TestStats_Consistency(t *testing.T) {
	t.Parallel()

	f := newFixture(t, breaks.Category{Name: "Drink", Capacity: 10})
	ctx := context.Background()

	// Three on-time, two late (one fined, one still pending), one out.
	for i := 0; i < 3; i++ {
		if _, err := f.engine.Admit(ctx, subjectName(i), "Drink"); err != nil {
			t.Fatalf("Admit() error: %v", err)
		}
		if _, _, err := f.engine.Return(ctx, subjectName(i)); err != nil {
			t.Fatalf("Return() error: %v", err)
		}
	}
	lateIDs := make([]string, 2)
	for i := 3; i < 5; i++ {
		id, err := f.engine.Admit(ctx, subjectName(i), "Drink")
		if err != nil {
			t.Fatalf("Admit() error: %v", err)
		}
		lateIDs[i-3] = id
	}
	f.clock.Advance(900 * time.Second)
	for i := 3; i < 5; i++ {
		if _, _, err := f.engine.Return(ctx, subjectName(i)); err != nil {
			t.Fatalf("Return() error: %v", err)
		}
	}
	if err := f.engine.SubmitReason(ctx, lateIDs[0], breaks.ReasonOther); err != nil {
		t.Fatalf("SubmitReason() error: %v", err)
	}
	if err := f.engine.Adjudicate(ctx, lateIDs[0], breaks.VerdictReject); err != nil {
		t.Fatalf("Adjudicate() error: %v", err)
	}
	if _, err := f.engine.Admit(ctx, subjectName(5), "Drink"); err != nil {
		t.Fatalf("Admit() error: %v", err)
	}

	c := f.stats.Snapshot()["Drink"]
	if c.Started != 6 || c.ReturnedOnTime != 3 || c.Late != 2 || c.Fined != 1 {
		t.Errorf("counters = %+v, want started=6 returned=3 late=2 fined=1", c)
	}
	if c.Started < c.ReturnedOnTime+c.Late {
		t.Errorf("started (%d) < returnedOnTime+late (%d)", c.Started, c.ReturnedOnTime+c.Late)
	}
	if c.Late < c.Fined {
		t.Errorf("late (%d) < fined (%d)", c.Late, c.Fined)
	}
}

func subjectName(n int) string {
	return "emp-" + string(rune('A'+n%26)) + string(rune('0'+n/26))
}
