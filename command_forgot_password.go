package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type ForgotPasswordMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *ForgotPasswordResponse)
}

func (e ForgotPasswordMessage) Type() string { return "auth.password_forgot" }

type ForgotPasswordResponse struct {
	Account *Account
	Success bool
}

// ForgotPasswordHandler mints a short-lived reset token and emails the
// link. A denied account inside its cooldown does not get a reset link;
// the reviewer gets re-alerted instead.
type ForgotPasswordHandler struct {
	repo     RepositoryManager
	gate     BetaStateMachine
	issuer   *TokenIssuer
	notifier *LifecycleNotifier
	sink     ActivitySink
}

func NewForgotPasswordHandler(repo RepositoryManager, gate BetaStateMachine, issuer *TokenIssuer, notifier *LifecycleNotifier, sink ActivitySink) *ForgotPasswordHandler {
	return &ForgotPasswordHandler{
		repo:     repo,
		gate:     gate,
		issuer:   issuer,
		notifier: notifier,
		sink:     normalizeActivitySink(sink),
	}
}

func (h *ForgotPasswordHandler) Execute(ctx context.Context, event ForgotPasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ForgotPasswordHandler) execute(ctx context.Context, event ForgotPasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := h.repo.Accounts().GetByEmail(ctx, event.Email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	// the gate decides whether a denial cooldown blocks this; nil falls
	// through to the normal reset flow
	if err := h.gate.BlockReapply(ctx, account); err != nil {
		return err
	}

	token, err := h.issuer.Issue(TokenKindPasswordReset)
	if err != nil {
		return err
	}

	account.SetTokenSlot(TokenKindPasswordReset, token.Hash, token.ExpiresAt)

	if _, err := h.repo.Accounts().SaveTokenSlot(ctx, account, TokenKindPasswordReset); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist reset token")
	}

	_ = h.sink.Record(ctx, ActivityEvent{
		EventType:  ActivityEventPasswordResetRequest,
		Actor:      ActorRef{ID: account.ID.String(), Type: ActorTypeAccount},
		AccountID:  account.ID.String(),
		OccurredAt: time.Now(),
	})

	// token already persisted, a dispatch failure must not roll it back
	if err := h.notifier.SendResetLink(ctx, account, token.Plaintext); err != nil {
		return dispatchError(err)
	}

	if event.OnResponse != nil {
		event.OnResponse(&ForgotPasswordResponse{Account: account, Success: true})
	}

	return nil
}
