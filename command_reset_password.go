package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type ResetPasswordMessage struct {
	Token      string `json:"token"`
	Password   string `json:"password"`
	OnResponse func(resp *ResetPasswordResponse)
}

func (e ResetPasswordMessage) Type() string { return "auth.password_reset" }

type ResetPasswordResponse struct {
	Account *Account
	Success bool
}

// ResetPasswordHandler swaps the password for a valid reset token. The
// password write and the token consume are one statement, so the token is
// single-use even when two submissions race.
type ResetPasswordHandler struct {
	repo     RepositoryManager
	notifier *LifecycleNotifier
	sink     ActivitySink
	now      func() time.Time
}

func NewResetPasswordHandler(repo RepositoryManager, notifier *LifecycleNotifier, sink ActivitySink) *ResetPasswordHandler {
	return &ResetPasswordHandler{
		repo:     repo,
		notifier: notifier,
		sink:     normalizeActivitySink(sink),
		now:      time.Now,
	}
}

// WithClock injects a custom clock (useful for tests).
func (h *ResetPasswordHandler) WithClock(now func() time.Time) *ResetPasswordHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *ResetPasswordHandler) Execute(ctx context.Context, event ResetPasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResetPasswordHandler) execute(ctx context.Context, event ResetPasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Token == "" {
		return ErrTokenInvalid
	}

	hash, err := HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	account, err := h.repo.Accounts().ConsumeResetToken(ctx, HashToken(event.Token), hash, h.now())
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrTokenInvalid
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume reset token")
	}

	_ = h.sink.Record(ctx, ActivityEvent{
		EventType:  ActivityEventPasswordResetSuccess,
		Actor:      ActorRef{ID: account.ID.String(), Type: ActorTypeAccount},
		AccountID:  account.ID.String(),
		OccurredAt: h.now(),
	})

	if err := h.notifier.SendResetConfirmation(ctx, account); err != nil {
		return dispatchError(err)
	}

	if event.OnResponse != nil {
		event.OnResponse(&ResetPasswordResponse{Account: account, Success: true})
	}

	return nil
}
