package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Decision values carried by BetaDecisionMessage.
const (
	DecisionApprove = "approve"
	DecisionDeny    = "deny"
)

type BetaDecisionMessage struct {
	Token      string `json:"token"`
	Decision   string `json:"decision"`
	Actor      ActorRef
	OnResponse func(resp *BetaDecisionResponse)
}

func (e BetaDecisionMessage) Type() string { return "beta.decision" }

type BetaDecisionResponse struct {
	Account  *Account
	Decision string
	Success  bool
}

// BetaDecisionHandler applies a reviewer's click. Approve and deny arrive
// through different endpoints but carry the same single-use token, so
// whichever lands first wins and the second click fails like any bad token.
type BetaDecisionHandler struct {
	gate BetaStateMachine
}

func NewBetaDecisionHandler(gate BetaStateMachine) *BetaDecisionHandler {
	return &BetaDecisionHandler{gate: gate}
}

func (h *BetaDecisionHandler) Execute(ctx context.Context, event BetaDecisionMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during beta decision",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *BetaDecisionHandler) execute(ctx context.Context, event BetaDecisionMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Token == "" {
		return ErrTokenInvalid
	}

	actor := event.Actor
	if actor == (ActorRef{}) {
		actor = ActorRef{Type: ActorTypeReviewer}
	}

	var account *Account
	var err error

	switch event.Decision {
	case DecisionApprove:
		account, err = h.gate.Approve(ctx, actor, HashToken(event.Token))
	case DecisionDeny:
		account, err = h.gate.Deny(ctx, actor, HashToken(event.Token))
	default:
		return goerrors.New("unknown beta decision", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"decision": event.Decision})
	}

	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(&BetaDecisionResponse{
			Account:  account,
			Decision: event.Decision,
			Success:  true,
		})
	}

	return nil
}
