package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

type RegisterAccountMessage struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	UseHashid  bool
	OnResponse func(resp *RegisterAccountResponse)
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

type RegisterAccountResponse struct {
	Account *Account
	Success bool
}

// RegisterAccountHandler creates the account and starts its beta
// application: the new account gets a verification email right away.
type RegisterAccountHandler struct {
	repo RepositoryManager
	gate BetaStateMachine
	sink ActivitySink
}

func NewRegisterAccountHandler(repo RepositoryManager, gate BetaStateMachine, sink ActivitySink) *RegisterAccountHandler {
	return &RegisterAccountHandler{
		repo: repo,
		gate: gate,
		sink: normalizeActivitySink(sink),
	}
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Email == "" {
		return goerrors.New("email is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	// every existing email is a plain conflict, whatever its beta state:
	// an anonymous registrant must not learn more than "taken"
	if _, err := h.repo.Accounts().GetByEmail(ctx, event.Email); err == nil {
		return ErrEmailTaken
	} else if !goerrors.IsNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing account")
	}

	hash, err := HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	account := &Account{
		FirstName:    event.FirstName,
		LastName:     event.LastName,
		Email:        event.Email,
		PasswordHash: hash,
	}

	if event.UseHashid {
		if id, err := hashid.NewUUID(event.Email); err == nil {
			account.ID = id
		}
	}

	account, err = h.repo.Accounts().Register(ctx, account)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
	}

	h.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventRegistered,
		Actor:     ActorRef{ID: account.ID.String(), Type: ActorTypeAccount},
		AccountID: account.ID.String(),
	})

	if err := h.gate.RequestAccess(ctx, account); err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(&RegisterAccountResponse{Account: account, Success: true})
	}

	return nil
}

func (h *RegisterAccountHandler) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	_ = h.sink.Record(ctx, event)
}
