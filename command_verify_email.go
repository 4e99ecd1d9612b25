package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type VerifyEmailMessage struct {
	Token      string `json:"token"`
	OnResponse func(resp *VerifyEmailResponse)
}

func (e VerifyEmailMessage) Type() string { return "account.verify_email" }

type VerifyEmailResponse struct {
	Account *Account
	Success bool
}

// VerifyEmailHandler consumes the verification token, marks the email as
// proven, and puts the application in front of the reviewer. The flag flip
// and the token consume are one statement, so a second click of the same
// link fails like any bad token.
type VerifyEmailHandler struct {
	repo RepositoryManager
	gate BetaStateMachine
	sink ActivitySink
	now  func() time.Time
}

func NewVerifyEmailHandler(repo RepositoryManager, gate BetaStateMachine, sink ActivitySink) *VerifyEmailHandler {
	return &VerifyEmailHandler{
		repo: repo,
		gate: gate,
		sink: normalizeActivitySink(sink),
		now:  time.Now,
	}
}

// WithClock injects a custom clock (useful for tests).
func (h *VerifyEmailHandler) WithClock(now func() time.Time) *VerifyEmailHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Token == "" {
		return ErrTokenInvalid
	}

	account, err := h.repo.Accounts().ConsumeVerificationToken(ctx, HashToken(event.Token), h.now())
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrTokenInvalid
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume verification token")
	}

	event2 := ActivityEvent{
		EventType:  ActivityEventEmailVerified,
		Actor:      ActorRef{ID: account.ID.String(), Type: ActorTypeAccount},
		AccountID:  account.ID.String(),
		OccurredAt: h.now(),
	}
	_ = h.sink.Record(ctx, event2)

	// only a first-time applicant enters the review queue; an account that
	// already holds a decision keeps it, and the verification still counts
	if account.BetaAccess().State() == BetaStateUnset {
		if err := h.gate.EnqueueReview(ctx, account); err != nil {
			return err
		}
	}

	if event.OnResponse != nil {
		event.OnResponse(&VerifyEmailResponse{Account: account, Success: true})
	}

	return nil
}
