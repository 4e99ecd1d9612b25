package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventRegistered           ActivityEventType = "account.registered"
	ActivityEventEmailVerified        ActivityEventType = "account.email.verified"
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
	ActivityEventLogout               ActivityEventType = "auth.logout"
	ActivityEventPasswordResetRequest ActivityEventType = "auth.password.reset.requested"
	ActivityEventPasswordResetSuccess ActivityEventType = "auth.password.reset"
	ActivityEventReviewEnqueued       ActivityEventType = "beta.review.enqueued"
	ActivityEventBetaApproved         ActivityEventType = "beta.approved"
	ActivityEventBetaDenied           ActivityEventType = "beta.denied"
	ActivityEventReapplyBlocked       ActivityEventType = "beta.reapply.blocked"
)

// ActorRef identifies who triggered an action: the account itself, a beta
// reviewer clicking a decision link, or an automated process.
type ActorRef struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type,omitempty"`
}

const (
	ActorTypeAccount  = "account"
	ActorTypeReviewer = "reviewer"
	ActorTypeSystem   = "system"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType `json:"event_type"`
	Actor      ActorRef          `json:"actor,omitempty"`
	AccountID  string            `json:"account_id,omitempty"`
	FromState  ReviewState       `json:"from_state,omitempty"`
	ToState    ReviewState       `json:"to_state,omitempty"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
