package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type RequestAccessMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *RequestAccessResponse)
}

func (e RequestAccessMessage) Type() string { return "beta.request_access" }

type RequestAccessResponse struct {
	Account *Account
	Success bool
}

// RequestAccessHandler restarts an application: resends the verification
// email for an unverified account, or lets a lapsed denial apply again.
// A fresh token overwrites the old slot, so earlier links go dead.
type RequestAccessHandler struct {
	repo RepositoryManager
	gate BetaStateMachine
}

func NewRequestAccessHandler(repo RepositoryManager, gate BetaStateMachine) *RequestAccessHandler {
	return &RequestAccessHandler{repo: repo, gate: gate}
}

func (h *RequestAccessHandler) Execute(ctx context.Context, event RequestAccessMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during access request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestAccessHandler) execute(ctx context.Context, event RequestAccessMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := h.repo.Accounts().GetByEmail(ctx, event.Email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	if err := h.gate.BlockReapply(ctx, account); err != nil {
		return err
	}

	if account.BetaAccess().State() == BetaStateApproved {
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"reason": "account already approved",
		})
	}

	if account.EmailVerified {
		// email already proven, go straight back into the review queue
		if err := h.gate.EnqueueReview(ctx, account); err != nil {
			return err
		}
	} else if err := h.gate.RequestAccess(ctx, account); err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(&RequestAccessResponse{Account: account, Success: true})
	}

	return nil
}
