package auth_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/driftnote/auth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newForgotPasswordHandler(store *MockAccounts, gate *stubGate, mailer *captureMailer, sink *captureSink) *auth.ForgotPasswordHandler {
	issuer := auth.NewTokenIssuer(auth.WithTokenIssuerRand(&staticRand{}))
	var activitySink auth.ActivitySink
	if sink != nil {
		activitySink = sink
	}
	return auth.NewForgotPasswordHandler(
		&MockRepositoryManager{AccountsRepo: store},
		gate,
		issuer,
		testNotifier(mailer),
		activitySink,
	)
}

func TestForgotPasswordSendsResetLink(t *testing.T) {
	account := &auth.Account{ID: uuid.New(), Email: "ada@example.com", FirstName: "Ada"}

	store := &MockAccounts{}
	store.On("GetByEmail", mock.Anything, "ada@example.com").Return(account, nil).Once()
	store.On("SaveTokenSlot", mock.Anything, account, auth.TokenKindPasswordReset).
		Return(account, nil).Once()

	mailer := &captureMailer{}
	sink := &captureSink{}
	handler := newForgotPasswordHandler(store, &stubGate{}, mailer, sink)

	err := handler.Execute(context.Background(), auth.ForgotPasswordMessage{Email: "ada@example.com"})
	require.NoError(t, err)

	mail := mailer.Last()
	assert.Equal(t, "ada@example.com", mail.To)
	assert.Equal(t, auth.SubjectPasswordReset, mail.Subject)
	assert.Contains(t, mail.Body, "/auth/reset-password?token=")

	// the slot holds the hash of the mailed token
	token := extractToken(t, mail.Body, "/auth/reset-password?token=")
	assert.Equal(t, auth.HashToken(token), account.TokenSlot(auth.TokenKindPasswordReset).Hash)

	assert.Contains(t, sink.Types(), auth.ActivityEventPasswordResetRequest)
	store.AssertExpectations(t)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	store := &MockAccounts{}
	store.On("GetByEmail", mock.Anything, "ghost@example.com").
		Return(nil, repository.NewRecordNotFound()).Once()

	mailer := &captureMailer{}
	handler := newForgotPasswordHandler(store, &stubGate{}, mailer, nil)

	err := handler.Execute(context.Background(), auth.ForgotPasswordMessage{Email: "ghost@example.com"})
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)
	assert.True(t, goerrors.IsNotFound(err))
	assert.Zero(t, mailer.Count())
}

func TestForgotPasswordDeniedCooldownGetsNoResetLink(t *testing.T) {
	cooldownEnd := time.Now().Add(time.Hour)
	account := &auth.Account{
		ID:              uuid.New(),
		Email:           "ada@example.com",
		BetaState:       auth.BetaStateDenied,
		BetaDeniedUntil: &cooldownEnd,
	}

	store := &MockAccounts{}
	store.On("GetByEmail", mock.Anything, "ada@example.com").Return(account, nil).Once()

	gate := &stubGate{blockErr: auth.ErrGateAccessDenied}
	mailer := &captureMailer{}
	handler := newForgotPasswordHandler(store, gate, mailer, nil)

	err := handler.Execute(context.Background(), auth.ForgotPasswordMessage{Email: "ada@example.com"})
	assert.ErrorIs(t, err, auth.ErrGateAccessDenied)
	assert.Equal(t, 1, gate.blockCalls)
	assert.Zero(t, mailer.Count())
	store.AssertNotCalled(t, "SaveTokenSlot", mock.Anything, mock.Anything, mock.Anything)
}

func TestForgotPasswordLapsedDenialProceeds(t *testing.T) {
	lapsed := time.Now().Add(-time.Hour)
	account := &auth.Account{
		ID:              uuid.New(),
		Email:           "ada@example.com",
		BetaState:       auth.BetaStateDenied,
		BetaDeniedUntil: &lapsed,
	}

	store := &MockAccounts{}
	store.On("GetByEmail", mock.Anything, "ada@example.com").Return(account, nil).Once()
	store.On("SaveTokenSlot", mock.Anything, account, auth.TokenKindPasswordReset).
		Return(account, nil).Once()

	gate := &stubGate{}
	mailer := &captureMailer{}
	handler := newForgotPasswordHandler(store, gate, mailer, nil)

	err := handler.Execute(context.Background(), auth.ForgotPasswordMessage{Email: "ada@example.com"})
	require.NoError(t, err)
	// the gate is always consulted and waves a lapsed denial through
	assert.Equal(t, 1, gate.blockCalls)
	assert.Equal(t, 1, mailer.Count())
}

func TestForgotPasswordOpenModeDeniedGetsResetLink(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cooldownEnd := now.Add(48 * time.Hour)
	account := &auth.Account{
		ID:              uuid.New(),
		Email:           "ada@example.com",
		BetaState:       auth.BetaStateDenied,
		BetaDeniedUntil: &cooldownEnd,
	}

	store := &MockAccounts{}
	store.On("GetByEmail", mock.Anything, "ada@example.com").Return(account, nil).Once()
	store.On("SaveTokenSlot", mock.Anything, account, auth.TokenKindPasswordReset).
		Return(account, nil).Once()

	mailer := &captureMailer{}
	issuer := auth.NewTokenIssuer(auth.WithTokenIssuerRand(&staticRand{}))
	gate := auth.NewBetaStateMachine(store, issuer, testNotifier(mailer),
		auth.WithStateMachineClock(fixedClock(now)),
		auth.WithStateMachineMode(auth.GateModeOpen))

	handler := auth.NewForgotPasswordHandler(
		&MockRepositoryManager{AccountsRepo: store},
		gate,
		issuer,
		testNotifier(mailer),
		nil,
	)

	// once the gate runs open, a leftover denial no longer blocks a reset
	err := handler.Execute(context.Background(), auth.ForgotPasswordMessage{Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, mailer.Count())
	assert.Contains(t, mailer.Last().Body, "/auth/reset-password?token=")
	store.AssertExpectations(t)
}

func TestForgotPasswordDispatchFailureKeepsToken(t *testing.T) {
	account := &auth.Account{ID: uuid.New(), Email: "ada@example.com"}

	store := &MockAccounts{}
	store.On("GetByEmail", mock.Anything, "ada@example.com").Return(account, nil).Once()
	store.On("SaveTokenSlot", mock.Anything, account, auth.TokenKindPasswordReset).
		Return(account, nil).Once()

	mailer := &captureMailer{Err: assert.AnError}
	handler := newForgotPasswordHandler(store, &stubGate{}, mailer, nil)

	err := handler.Execute(context.Background(), auth.ForgotPasswordMessage{Email: "ada@example.com"})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, auth.TextCodeDispatchFailed, richErr.TextCode)
	assert.False(t, account.TokenSlot(auth.TokenKindPasswordReset).Empty())
}

func TestResetPasswordConsumesTokenAndConfirms(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	account := &auth.Account{ID: uuid.New(), Email: "ada@example.com", FirstName: "Ada"}

	store := &MockAccounts{}
	store.On("ConsumeResetToken", mock.Anything, auth.HashToken("tok-123"), mock.MatchedBy(func(hash string) bool {
		return auth.ComparePasswordAndHash("n3w-password!!", hash) == nil
	}), now).Return(account, nil).Once()

	mailer := &captureMailer{}
	sink := &captureSink{}

	var resp *auth.ResetPasswordResponse
	handler := auth.NewResetPasswordHandler(&MockRepositoryManager{AccountsRepo: store}, testNotifier(mailer), sink).
		WithClock(fixedClock(now))

	err := handler.Execute(context.Background(), auth.ResetPasswordMessage{
		Token:    "tok-123",
		Password: "n3w-password!!",
		OnResponse: func(r *auth.ResetPasswordResponse) {
			resp = r
		},
	})
	require.NoError(t, err)

	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.Equal(t, auth.SubjectPasswordChanged, mailer.Last().Subject)
	assert.Contains(t, sink.Types(), auth.ActivityEventPasswordResetSuccess)
	store.AssertExpectations(t)
}

func TestResetPasswordUniformTokenFailure(t *testing.T) {
	store := &MockAccounts{}
	store.On("ConsumeResetToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, repository.NewRecordNotFound())

	handler := auth.NewResetPasswordHandler(&MockRepositoryManager{AccountsRepo: store}, testNotifier(&captureMailer{}), nil)

	err := handler.Execute(context.Background(), auth.ResetPasswordMessage{
		Token:    "spent",
		Password: "n3w-password!!",
	})
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)

	err = handler.Execute(context.Background(), auth.ResetPasswordMessage{Password: "n3w-password!!"})
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestResetPasswordEmptyPassword(t *testing.T) {
	store := &MockAccounts{}
	handler := auth.NewResetPasswordHandler(&MockRepositoryManager{AccountsRepo: store}, testNotifier(&captureMailer{}), nil)

	err := handler.Execute(context.Background(), auth.ResetPasswordMessage{Token: "tok-123"})
	assert.ErrorIs(t, err, auth.ErrNoEmptyString)
	store.AssertNotCalled(t, "ConsumeResetToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
