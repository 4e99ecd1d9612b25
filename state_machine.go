package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const textCodeInvalidTransition = "INVALID_BETA_TRANSITION"

// ErrInvalidTransition is returned when a requested beta access change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid beta access transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// GateMode controls whether the beta program gates authentication.
type GateMode string

const (
	// GateModeBeta enforces the beta program: only approved accounts log in.
	GateModeBeta GateMode = "beta"
	// GateModeOpen bypasses every gate check.
	GateModeOpen GateMode = "open"
)

// GateModeFromRelease maps the configured release mode to a gate mode.
// Anything other than "beta" runs open.
func GateModeFromRelease(release string) GateMode {
	if release == string(GateModeBeta) {
		return GateModeBeta
	}
	return GateModeOpen
}

// BetaStore is what the state machine needs from the record store.
type BetaStore interface {
	AccountMutator
	TokenConsumer
}

// BetaStateMachine drives the beta access lifecycle: verification and
// decision token minting, reviewer notification, approval and denial, and
// the gate checks that block unapproved accounts.
type BetaStateMachine interface {
	CurrentState(account *Account) ReviewState
	CheckGate(account *Account) error
	RequestAccess(ctx context.Context, account *Account) error
	EnqueueReview(ctx context.Context, account *Account) error
	Approve(ctx context.Context, actor ActorRef, tokenHash string) (*Account, error)
	Deny(ctx context.Context, actor ActorRef, tokenHash string) (*Account, error)
	BlockReapply(ctx context.Context, account *Account) error
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*betaStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *betaStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineMode sets the gate mode. Defaults to GateModeBeta.
func WithStateMachineMode(mode GateMode) StateMachineOption {
	return func(sm *betaStateMachine) {
		if mode != "" {
			sm.mode = mode
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish lifecycle events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *betaStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *betaStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithDenialCooldown overrides how long a denial blocks reapplication.
func WithDenialCooldown(d time.Duration) StateMachineOption {
	return func(sm *betaStateMachine) {
		if d > 0 {
			sm.cooldown = d
		}
	}
}

// NewBetaStateMachine returns the default implementation backed by the
// provided store, token issuer, and notifier.
func NewBetaStateMachine(store BetaStore, issuer *TokenIssuer, notifier *LifecycleNotifier, opts ...StateMachineOption) BetaStateMachine {
	sm := &betaStateMachine{
		store:    store,
		issuer:   issuer,
		notifier: notifier,
		transitions: map[ReviewState]map[ReviewState]struct{}{
			ReviewStateUnverified: {
				ReviewStatePending: {},
			},
			ReviewStatePending: {
				ReviewStateApproved: {},
				ReviewStateDenied:   {},
			},
			ReviewStateReapplicable: {
				ReviewStateUnverified: {},
				ReviewStatePending:    {},
			},
		},
		mode:         GateModeBeta,
		cooldown:     BetaDenialCooldown,
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type betaStateMachine struct {
	store        BetaStore
	issuer       *TokenIssuer
	notifier     *LifecycleNotifier
	transitions  map[ReviewState]map[ReviewState]struct{}
	mode         GateMode
	cooldown     time.Duration
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
}

func (sm *betaStateMachine) CurrentState(account *Account) ReviewState {
	if account == nil {
		return ""
	}
	return account.ReviewState(sm.now())
}

// CheckGate reports why an account may not act, nil when it may. When more
// than one gate applies the most specific wins: an active denial beats the
// unverified email beats the pending review.
func (sm *betaStateMachine) CheckGate(account *Account) error {
	if sm.mode == GateModeOpen {
		return nil
	}

	access := account.BetaAccess()
	now := sm.now()

	if access.CooldownActive(now) {
		return ErrGateAccessDenied.WithMetadata(map[string]any{
			"denied_until": access.DeniedUntil(),
		})
	}

	if access.State() == BetaStateApproved {
		return nil
	}

	// unset, or a denial whose cooldown lapsed: back to the applicant queue
	if !account.EmailVerified {
		return ErrGateEmailUnverified
	}

	return ErrGatePendingReview
}

// RequestAccess starts (or restarts) the application: mints a verification
// token into the account's slot and emails the applicant. Re-requesting
// overwrites the previous token, which invalidates the old link.
func (sm *betaStateMachine) RequestAccess(ctx context.Context, account *Account) error {
	access := account.BetaAccess()
	if sm.mode != GateModeOpen && access.CooldownActive(sm.now()) {
		return ErrGateAccessDenied.WithMetadata(map[string]any{
			"denied_until": access.DeniedUntil(),
		})
	}

	token, err := sm.issuer.Issue(TokenKindEmailVerification)
	if err != nil {
		return err
	}

	account.SetTokenSlot(TokenKindEmailVerification, token.Hash, token.ExpiresAt)

	if _, err := sm.store.SaveTokenSlot(ctx, account, TokenKindEmailVerification); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist verification token")
	}

	// state is already persisted, a dispatch failure must not roll it back
	if err := sm.notifier.SendVerification(ctx, account, token.Plaintext); err != nil {
		return dispatchError(err)
	}

	return nil
}

// EnqueueReview puts a freshly verified account in front of the reviewer:
// mints the decision token and emails the reviewer one message carrying both
// the approve and the deny link.
func (sm *betaStateMachine) EnqueueReview(ctx context.Context, account *Account) error {
	if sm.mode == GateModeOpen {
		// nobody reviews applications in open mode
		return nil
	}

	from := sm.CurrentState(account)
	if !account.EmailVerified || (from != ReviewStatePending && !sm.canTransition(from, ReviewStatePending)) {
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"from": from,
			"to":   ReviewStatePending,
		})
	}

	token, err := sm.issuer.Issue(TokenKindBetaDecision)
	if err != nil {
		return err
	}

	account.SetTokenSlot(TokenKindBetaDecision, token.Hash, token.ExpiresAt)

	if _, err := sm.store.SaveTokenSlot(ctx, account, TokenKindBetaDecision); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist decision token")
	}

	sm.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventReviewEnqueued,
		Actor:     ActorRef{ID: account.ID.String(), Type: ActorTypeAccount},
		AccountID: account.ID.String(),
		FromState: from,
		ToState:   ReviewStatePending,
	})

	if err := sm.notifier.SendReviewRequest(ctx, account, token.Plaintext); err != nil {
		return dispatchError(err)
	}

	return nil
}

// Approve consumes the decision token, grants access, and sends the
// applicant an approval email carrying a password reset link so they can
// pick their credentials. The consume is a single statement keyed on the
// token hash, so the second click of either decision link finds nothing.
func (sm *betaStateMachine) Approve(ctx context.Context, actor ActorRef, tokenHash string) (*Account, error) {
	account, err := sm.store.ConsumeDecisionToken(ctx, tokenHash, BetaAccessApproved(), sm.now())
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrTokenInvalid
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume decision token")
	}

	sm.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventBetaApproved,
		Actor:     actor,
		AccountID: account.ID.String(),
		FromState: ReviewStatePending,
		ToState:   ReviewStateApproved,
	})

	reset, err := sm.issuer.Issue(TokenKindPasswordReset)
	if err != nil {
		return account, err
	}

	account.SetTokenSlot(TokenKindPasswordReset, reset.Hash, reset.ExpiresAt)

	if _, err := sm.store.SaveTokenSlot(ctx, account, TokenKindPasswordReset); err != nil {
		return account, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist reset token")
	}

	if err := sm.notifier.SendApproval(ctx, account, reset.Plaintext); err != nil {
		return account, dispatchError(err)
	}

	return account, nil
}

// Deny consumes the decision token and starts the denial cooldown. The
// applicant is told when they may apply again.
func (sm *betaStateMachine) Deny(ctx context.Context, actor ActorRef, tokenHash string) (*Account, error) {
	reapplyAt := sm.now().Add(sm.cooldown)

	account, err := sm.store.ConsumeDecisionToken(ctx, tokenHash, BetaAccessDenied(reapplyAt), sm.now())
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrTokenInvalid
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume decision token")
	}

	sm.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventBetaDenied,
		Actor:     actor,
		AccountID: account.ID.String(),
		FromState: ReviewStatePending,
		ToState:   ReviewStateDenied,
		Metadata:  map[string]any{"reapply_at": reapplyAt},
	})

	if err := sm.notifier.SendDenial(ctx, account, reapplyAt); err != nil {
		return account, dispatchError(err)
	}

	return account, nil
}

// BlockReapply handles a denied account knocking during its cooldown. The
// reviewer gets re-alerted with a fresh decision token so they can overturn
// the denial early; the caller still gets the denial gate error. Returns nil
// when no cooldown applies, or in open mode where no denial gates anything,
// so callers delegate the decision and fall through on nil.
func (sm *betaStateMachine) BlockReapply(ctx context.Context, account *Account) error {
	if sm.mode == GateModeOpen {
		return nil
	}

	access := account.BetaAccess()
	if !access.CooldownActive(sm.now()) {
		return nil
	}

	token, err := sm.issuer.Issue(TokenKindBetaDecision)
	if err != nil {
		return err
	}

	account.SetTokenSlot(TokenKindBetaDecision, token.Hash, token.ExpiresAt)

	if _, err := sm.store.SaveTokenSlot(ctx, account, TokenKindBetaDecision); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist decision token")
	}

	sm.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventReapplyBlocked,
		Actor:     ActorRef{ID: account.ID.String(), Type: ActorTypeAccount},
		AccountID: account.ID.String(),
		FromState: ReviewStateDenied,
		ToState:   ReviewStateDenied,
	})

	if err := sm.notifier.SendReviewRequest(ctx, account, token.Plaintext); err != nil {
		sm.logger.Warn("reviewer re-alert failed: %v", err)
	}

	return ErrGateAccessDenied.WithMetadata(map[string]any{
		"denied_until": access.DeniedUntil(),
	})
}

func (sm *betaStateMachine) canTransition(from, to ReviewState) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (sm *betaStateMachine) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: ActorTypeSystem}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = sm.now()
	}

	sink := normalizeActivitySink(sm.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		sm.logger.Warn("state machine activity sink error: %v", err)
	}
}

func dispatchError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, "notification dispatch failed").
		WithTextCode(TextCodeDispatchFailed)
}
