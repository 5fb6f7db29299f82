// Package service contains application services.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mark-ai1/Break-Management/internal/clock"
	"github.com/mark-ai1/Break-Management/internal/domain/breaks"
	"github.com/mark-ai1/Break-Management/internal/port/outbound"
)

// Default engine timings, matching the classic 15 minute allowance
// with a 5 minute escalation grace.
const (
	DefaultBreakDuration = 15 * time.Minute
	DefaultGracePeriod   = 5 * time.Minute
	DefaultPenaltyAmount = 100
)

// EngineConfig holds engine tuning. Zero values fall back to defaults.
type EngineConfig struct {
	// BreakDuration is the nominal allowance D; a session still Active
	// when it elapses becomes Overdue.
	BreakDuration time.Duration
	// GracePeriod is how long after going Overdue the admin gets a
	// "still out" reminder if the subject has not returned.
	GracePeriod time.Duration
	// PenaltyAmount is the fixed fine applied on a rejected verdict.
	PenaltyAmount int
}

// Subscriber receives engine transition events. Handlers must be fast;
// they run inline on the transitioning goroutine.
type Subscriber interface {
	HandleEvent(evt breaks.Event)
}

// Engine is the break session state machine. It admits, returns,
// times out, and advances sessions through escalation, delegating all
// invariant enforcement to the store's atomic operations.
type Engine struct {
	store    breaks.SessionStore
	registry *breaks.Registry
	clock    clock.Clock
	notifier outbound.Notifier
	logger   *slog.Logger

	breakDuration time.Duration
	gracePeriod   time.Duration
	penaltyAmount int

	mu          sync.RWMutex
	subscribers []Subscriber
}

// NewEngine creates an engine over the given store, registry and clock.
func NewEngine(store breaks.SessionStore, registry *breaks.Registry, clk clock.Clock, notifier outbound.Notifier, logger *slog.Logger, cfg EngineConfig) *Engine {
	if cfg.BreakDuration == 0 {
		cfg.BreakDuration = DefaultBreakDuration
	}
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.PenaltyAmount == 0 {
		cfg.PenaltyAmount = DefaultPenaltyAmount
	}
	return &Engine{
		store:         store,
		registry:      registry,
		clock:         clk,
		notifier:      notifier,
		logger:        logger,
		breakDuration: cfg.BreakDuration,
		gracePeriod:   cfg.GracePeriod,
		penaltyAmount: cfg.PenaltyAmount,
	}
}

// Subscribe registers a transition event subscriber.
func (e *Engine) Subscribe(sub Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, sub)
}

// Admit starts a break for a subject in the given category.
// Returns the new session id, or ErrUnknownCategory, ErrAlreadyOnBreak
// or ErrCapacityExceeded. On success a timeout fires independently at
// StartedAt + BreakDuration.
func (e *Engine) Admit(ctx context.Context, subjectID, category string) (string, error) {
	capacity, err := e.registry.CapacityOf(category)
	if err != nil {
		return "", err
	}

	sess := &breaks.Session{
		ID:        uuid.NewString(),
		SubjectID: subjectID,
		Category:  category,
		State:     breaks.StateActive,
		StartedAt: e.clock.Now(),
	}

	if err := e.store.Create(ctx, sess, capacity); err != nil {
		if errors.Is(err, breaks.ErrDuplicateOpenSession) {
			return "", fmt.Errorf("%w: subject %s", breaks.ErrAlreadyOnBreak, subjectID)
		}
		return "", err
	}

	// Fire-and-forget: Admit returns immediately, the timeout re-enters
	// the engine through the guarded transition path.
	e.clock.AfterFunc(e.breakDuration, func() {
		if err := e.HandleTimeout(context.Background(), sess.ID); err != nil {
			e.logger.Error("timeout handling failed", "session_id", sess.ID, "error", err)
		}
	})

	e.logger.Info("break admitted",
		"session_id", sess.ID,
		"subject_id", subjectID,
		"category", category,
	)
	e.publish(breaks.Event{Kind: breaks.EventStarted, SessionID: sess.ID, SubjectID: subjectID, Category: category, At: sess.StartedAt})

	return sess.ID, nil
}

// HandleTimeout marks a still-Active session Overdue. Invoked by the
// clock; idempotent. A session that already returned on time makes
// this a no-op, never an error.
func (e *Engine) HandleTimeout(ctx context.Context, sessionID string) error {
	sess, err := e.store.Transition(ctx, sessionID, []breaks.State{breaks.StateActive}, breaks.StateOverdue, nil)
	if err != nil {
		if errors.Is(err, breaks.ErrInvalidTransition) || errors.Is(err, breaks.ErrNotFound) {
			// Lost the race with a return. That is success.
			e.logger.Debug("timeout no-op", "session_id", sessionID)
			return nil
		}
		return err
	}

	e.logger.Warn("break overdue",
		"session_id", sess.ID,
		"subject_id", sess.SubjectID,
		"category", sess.Category,
	)
	e.publish(breaks.Event{Kind: breaks.EventOverdue, SessionID: sess.ID, SubjectID: sess.SubjectID, Category: sess.Category, At: e.clock.Now()})
	e.notify(ctx, outbound.Notification{
		Audience:  outbound.Admin(),
		Kind:      outbound.NotifyOverdue,
		SessionID: sess.ID,
		SubjectID: sess.SubjectID,
		Category:  sess.Category,
	})

	// Second phase: remind the admin if the subject is still out after
	// the grace period.
	e.clock.AfterFunc(e.gracePeriod, func() {
		e.handleReminder(context.Background(), sess.ID)
	})

	return nil
}

// handleReminder escalates a session that is still Overdue after the
// grace period. No state change; idempotent via a state check.
func (e *Engine) handleReminder(ctx context.Context, sessionID string) {
	sess, err := e.store.Get(ctx, sessionID)
	if err != nil {
		e.logger.Error("reminder lookup failed", "session_id", sessionID, "error", err)
		return
	}
	if sess.State != breaks.StateOverdue {
		return
	}

	e.notify(ctx, outbound.Notification{
		Audience:  outbound.Admin(),
		Kind:      outbound.NotifyStillOut,
		SessionID: sess.ID,
		SubjectID: sess.SubjectID,
		Category:  sess.Category,
	})
}

// Return ends the subject's open break. An Active session closes as
// ReturnedOnTime; an Overdue one moves to PendingReason and the caller
// must collect a reason. Returns ErrNotOnBreak when the subject has no
// open session.
func (e *Engine) Return(ctx context.Context, subjectID string) (breaks.ReturnOutcome, string, error) {
	open, err := e.store.FindOpenSession(ctx, subjectID)
	if err != nil {
		if errors.Is(err, breaks.ErrNotFound) {
			return "", "", fmt.Errorf("%w: subject %s", breaks.ErrNotOnBreak, subjectID)
		}
		return "", "", err
	}

	endedAt := e.clock.Now()
	setEnded := func(s *breaks.Session) { s.EndedAt = endedAt }

	// Try the on-time close first; if the timeout won the race the
	// session is Overdue and takes the escalation path instead.
	sess, err := e.store.Transition(ctx, open.ID, []breaks.State{breaks.StateActive}, breaks.StateReturnedOnTime, setEnded)
	if err == nil {
		e.logger.Info("returned on time",
			"session_id", sess.ID,
			"subject_id", subjectID,
			"category", sess.Category,
		)
		e.publish(breaks.Event{Kind: breaks.EventReturnedOnTime, SessionID: sess.ID, SubjectID: subjectID, Category: sess.Category, At: endedAt})
		return breaks.OutcomeReturnedOnTime, sess.ID, nil
	}
	if !errors.Is(err, breaks.ErrInvalidTransition) {
		return "", "", err
	}

	sess, err = e.store.Transition(ctx, open.ID, []breaks.State{breaks.StateOverdue}, breaks.StatePendingReason, setEnded)
	if err != nil {
		if errors.Is(err, breaks.ErrInvalidTransition) {
			// A concurrent return already resolved the session.
			return "", "", fmt.Errorf("%w: subject %s", breaks.ErrNotOnBreak, subjectID)
		}
		return "", "", err
	}

	e.logger.Info("returned late, reason required",
		"session_id", sess.ID,
		"subject_id", subjectID,
		"category", sess.Category,
	)
	return breaks.OutcomeNeedsReason, sess.ID, nil
}

// SubmitReason records a late subject's explanation and hands the
// session to adjudication. Fails with ErrInvalidTransition unless the
// session is PendingReason.
func (e *Engine) SubmitReason(ctx context.Context, sessionID, reason string) error {
	if reason == "" {
		return breaks.ErrReasonRequired
	}

	sess, err := e.store.Transition(ctx, sessionID,
		[]breaks.State{breaks.StatePendingReason}, breaks.StatePendingAdjudication,
		func(s *breaks.Session) { s.Reason = reason })
	if err != nil {
		return err
	}

	e.publish(breaks.Event{Kind: breaks.EventReasonSubmitted, SessionID: sess.ID, SubjectID: sess.SubjectID, Category: sess.Category, At: e.clock.Now()})
	e.notify(ctx, outbound.Notification{
		Audience:  outbound.Admin(),
		Kind:      outbound.NotifyAdjudicationNeeded,
		SessionID: sess.ID,
		SubjectID: sess.SubjectID,
		Category:  sess.Category,
		Reason:    reason,
	})
	return nil
}

// Adjudicate applies an operator verdict to a pending session.
// Approve closes it as Cleared; Reject closes it as Fined with the
// fixed penalty. Fails with ErrInvalidTransition unless the session is
// PendingAdjudication, so a session is never adjudicated twice.
func (e *Engine) Adjudicate(ctx context.Context, sessionID string, verdict breaks.Verdict) error {
	var (
		to     breaks.State
		mutate breaks.Mutation
	)
	switch verdict {
	case breaks.VerdictApprove:
		to = breaks.StateCleared
	case breaks.VerdictReject:
		to = breaks.StateFined
		mutate = func(s *breaks.Session) { s.FineAmount = e.penaltyAmount }
	default:
		return fmt.Errorf("%w: %q", breaks.ErrUnknownVerdict, verdict)
	}

	sess, err := e.store.Transition(ctx, sessionID, []breaks.State{breaks.StatePendingAdjudication}, to, mutate)
	if err != nil {
		return err
	}

	now := e.clock.Now()
	if to == breaks.StateCleared {
		e.logger.Info("reason approved", "session_id", sess.ID, "subject_id", sess.SubjectID)
		e.publish(breaks.Event{Kind: breaks.EventCleared, SessionID: sess.ID, SubjectID: sess.SubjectID, Category: sess.Category, At: now})
		e.notify(ctx, outbound.Notification{
			Audience:  outbound.Subject(sess.SubjectID),
			Kind:      outbound.NotifyCleared,
			SessionID: sess.ID,
			SubjectID: sess.SubjectID,
			Category:  sess.Category,
			Reason:    sess.Reason,
		})
		return nil
	}

	e.logger.Info("fine applied",
		"session_id", sess.ID,
		"subject_id", sess.SubjectID,
		"amount", sess.FineAmount,
	)
	e.publish(breaks.Event{Kind: breaks.EventFined, SessionID: sess.ID, SubjectID: sess.SubjectID, Category: sess.Category, At: now})
	e.notify(ctx, outbound.Notification{
		Audience:   outbound.Subject(sess.SubjectID),
		Kind:       outbound.NotifyFined,
		SessionID:  sess.ID,
		SubjectID:  sess.SubjectID,
		Category:   sess.Category,
		Reason:     sess.Reason,
		FineAmount: sess.FineAmount,
	})
	return nil
}

// Get returns a session by id.
func (e *Engine) Get(ctx context.Context, sessionID string) (*breaks.Session, error) {
	return e.store.Get(ctx, sessionID)
}

// publish delivers an event to all subscribers.
func (e *Engine) publish(evt breaks.Event) {
	e.mu.RLock()
	subs := e.subscribers
	e.mu.RUnlock()

	for _, sub := range subs {
		sub.HandleEvent(evt)
	}
}

// notify delivers best-effort; failures are logged and never affect
// session state.
func (e *Engine) notify(ctx context.Context, n outbound.Notification) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.logger.Error("notification delivery failed",
			"kind", string(n.Kind),
			"session_id", n.SessionID,
			"error", err,
		)
	}
}
