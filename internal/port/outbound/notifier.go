// Package outbound defines the ports the engine calls out through.
package outbound

import "context"

// AudienceKind selects who a notification is addressed to.
type AudienceKind string

const (
	// AudienceAdmin addresses the adjudicating operator channel.
	AudienceAdmin AudienceKind = "admin"
	// AudienceSubject addresses the person on break.
	AudienceSubject AudienceKind = "subject"
)

// Audience is the recipient of a notification.
type Audience struct {
	Kind AudienceKind
	// SubjectID is set when Kind is AudienceSubject.
	SubjectID string
}

// Admin returns the operator audience.
func Admin() Audience {
	return Audience{Kind: AudienceAdmin}
}

// Subject returns the audience for one subject.
func Subject(id string) Audience {
	return Audience{Kind: AudienceSubject, SubjectID: id}
}

// NotificationKind identifies what happened.
type NotificationKind string

const (
	// NotifyOverdue tells the admin a subject exceeded the allowance.
	NotifyOverdue NotificationKind = "overdue"
	// NotifyStillOut tells the admin a subject is still out after the
	// grace period elapsed on an overdue session.
	NotifyStillOut NotificationKind = "still_out"
	// NotifyAdjudicationNeeded tells the admin a reason awaits a verdict.
	NotifyAdjudicationNeeded NotificationKind = "adjudication_needed"
	// NotifyCleared tells the subject their reason was accepted.
	NotifyCleared NotificationKind = "cleared"
	// NotifyFined tells the subject a fine was applied.
	NotifyFined NotificationKind = "fined"
)

// Notification is a human-readable event for delivery to a channel.
type Notification struct {
	Audience   Audience
	Kind       NotificationKind
	SessionID  string
	SubjectID  string
	Category   string
	Reason     string
	FineAmount int
}

// Notifier delivers notifications. Delivery is best-effort: a failed
// Notify never rolls back the state transition that produced it.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
