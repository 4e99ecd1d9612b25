package auth_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/driftnote/auth"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type autherFixture struct {
	store    *MockAccounts
	sessions *auth.MemorySessionStore
	tokens   auth.TokenService
	gate     *stubGate
	sink     *captureSink
	auther   *auth.Auther
}

func newAutherFixture(t *testing.T, now time.Time, opts ...auth.AutherOption) *autherFixture {
	t.Helper()

	f := &autherFixture{
		store:    &MockAccounts{},
		sessions: auth.NewMemorySessionStore(auth.WithMemorySessionClock(fixedClock(now))),
		tokens:   newTestTokenService(auth.WithTokenServiceClock(fixedClock(now))),
		gate:     &stubGate{},
		sink:     &captureSink{},
	}

	provider := auth.NewAccountProvider(f.store)

	base := []auth.AutherOption{
		auth.WithAutherClock(fixedClock(now)),
		auth.WithAutherActivitySink(f.sink),
	}

	f.auther = auth.NewAuther(f.store, provider, f.sessions, f.tokens, f.gate, append(base, opts...)...)
	return f
}

func TestLoginEstablishesSession(t *testing.T) {
	now := time.Now()
	f := newAutherFixture(t, now)

	account := hashedAccount(t, "correct-horse-battery")
	account.BetaState = auth.BetaStateApproved
	account.EmailVerified = true

	f.store.On("GetByEmail", mock.Anything, "ada@example.com").Return(account, nil)
	f.store.On("TrackSucccessfulLogin", mock.Anything, account).Return(nil).Once()

	result, err := f.auther.Login(context.Background(), "ada@example.com", "correct-horse-battery")
	require.NoError(t, err)

	assert.Equal(t, account.ID.String(), result.Principal.AccountID)
	assert.Equal(t, auth.ViaSession, result.Principal.Via)
	assert.Empty(t, result.BearerToken)

	stored, err := f.sessions.Get(context.Background(), result.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, account.ID.String(), stored.AccountID)

	assert.Contains(t, f.sink.Types(), auth.ActivityEventLoginSuccess)
}

func TestLoginWithRememberMintsBearer(t *testing.T) {
	now := time.Now()
	f := newAutherFixture(t, now)

	account := hashedAccount(t, "correct-horse-battery")
	account.BetaState = auth.BetaStateApproved

	f.store.On("GetByEmail", mock.Anything, "ada@example.com").Return(account, nil)
	f.store.On("TrackSucccessfulLogin", mock.Anything, account).Return(nil).Once()

	result, err := f.auther.Login(context.Background(), "ada@example.com", "correct-horse-battery",
		auth.WithRememberToken())
	require.NoError(t, err)
	require.NotEmpty(t, result.BearerToken)

	claims, err := f.tokens.Validate(result.BearerToken)
	require.NoError(t, err)
	assert.Equal(t, account.ID.String(), claims.AccountID())
}

func TestLoginUnknownEmailStaysGeneric(t *testing.T) {
	now := time.Now()
	f := newAutherFixture(t, now)

	f.store.On("GetByEmail", mock.Anything, "ghost@example.com").
		Return(nil, repository.NewRecordNotFound())

	_, err := f.auther.Login(context.Background(), "ghost@example.com", "whatever")
	assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	assert.False(t, auth.IsGatingError(err), "unknown emails must not leak gate state")
}

func TestLoginGateBeatsPasswordCheck(t *testing.T) {
	now := time.Now()
	f := newAutherFixture(t, now)
	f.gate.gateErr = auth.ErrGatePendingReview

	account := hashedAccount(t, "correct-horse-battery")
	f.store.On("GetByEmail", mock.Anything, "ada@example.com").Return(account, nil)

	// even the wrong password reports the gate error for a known account
	_, err := f.auther.Login(context.Background(), "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, auth.ErrGatePendingReview)
	f.store.AssertNotCalled(t, "TrackAttemptedLogin", mock.Anything, mock.Anything)
}

func TestLoginWithTokenReChecksGate(t *testing.T) {
	now := time.Now()
	f := newAutherFixture(t, now)

	account := hashedAccount(t, "irrelevant")
	f.store.On("GetByAccountID", mock.Anything, account.ID.String()).Return(account, nil)

	token, _, err := f.tokens.Mint(auth.IdentityFromAccount(account))
	require.NoError(t, err)

	// access was revoked after the token was minted
	f.gate.gateErr = auth.ErrGateAccessDenied
	_, err = f.auther.LoginWithToken(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrGateAccessDenied)

	f.gate.gateErr = nil
	result, err := f.auther.LoginWithToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, auth.ViaSession, result.Principal.Via)
}

func TestLoginWithTokenUnknownAccount(t *testing.T) {
	now := time.Now()
	f := newAutherFixture(t, now)

	account := &auth.Account{ID: uuid.New(), Email: "gone@example.com"}
	f.store.On("GetByAccountID", mock.Anything, account.ID.String()).
		Return(nil, repository.NewRecordNotFound())

	token, _, err := f.tokens.Mint(auth.IdentityFromAccount(account))
	require.NoError(t, err)

	_, err = f.auther.LoginWithToken(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)
}

func TestLoginProvisionsDefaultJournal(t *testing.T) {
	now := time.Now()

	journals := &MockJournals{}
	f := newAutherFixture(t, now, auth.WithAutherJournals(journals))

	account := hashedAccount(t, "correct-horse-battery")
	f.store.On("GetByEmail", mock.Anything, "ada@example.com").Return(account, nil)
	f.store.On("TrackSucccessfulLogin", mock.Anything, account).Return(nil).Once()
	journals.On("ProvisionDefault", mock.Anything, account).
		Return(&auth.Journal{ID: uuid.New(), OwnerID: account.ID, Title: auth.DefaultJournalTitle}, nil).Once()

	_, err := f.auther.Login(context.Background(), "ada@example.com", "correct-horse-battery")
	require.NoError(t, err)
	journals.AssertExpectations(t)
}

func TestResolveSession(t *testing.T) {
	now := time.Now()
	f := newAutherFixture(t, now)

	session := testSession("sess-1", now, time.Hour)
	require.NoError(t, f.sessions.Put(context.Background(), session))

	principal, err := f.auther.ResolveSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.True(t, principal.Authenticated())
	assert.Equal(t, auth.ViaSession, principal.Via)
	assert.Equal(t, "sess-1", principal.SessionID)
}

func TestResolveSessionEmptyIDIsAnonymous(t *testing.T) {
	f := newAutherFixture(t, time.Now())

	principal, err := f.auther.ResolveSession(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, principal.Authenticated())
}

func TestResolveSessionUnknownID(t *testing.T) {
	f := newAutherFixture(t, time.Now())

	_, err := f.auther.ResolveSession(context.Background(), "missing")
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

func TestResolveBearer(t *testing.T) {
	now := time.Now()
	f := newAutherFixture(t, now)

	account := &auth.Account{ID: uuid.New(), Email: "ada@example.com"}
	token, _, err := f.tokens.Mint(auth.IdentityFromAccount(account))
	require.NoError(t, err)

	principal, err := f.auther.ResolveBearer(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, account.ID.String(), principal.AccountID)
	assert.Equal(t, auth.ViaBearer, principal.Via)
}

func TestResolveBearerEmptyIsAnonymous(t *testing.T) {
	f := newAutherFixture(t, time.Now())

	principal, err := f.auther.ResolveBearer(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, principal.Authenticated())
}

func TestResolveBearerInvalidFails(t *testing.T) {
	f := newAutherFixture(t, time.Now())

	_, err := f.auther.ResolveBearer(context.Background(), "garbage")
	assert.Error(t, err)
}

func TestLogout(t *testing.T) {
	now := time.Now()
	f := newAutherFixture(t, now)

	require.NoError(t, f.sessions.Put(context.Background(), testSession("sess-1", now, time.Hour)))
	require.NoError(t, f.auther.Logout(context.Background(), "sess-1"))

	_, err := f.sessions.Get(context.Background(), "sess-1")
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
	assert.Contains(t, f.sink.Types(), auth.ActivityEventLogout)

	// logging out an already-gone session is not an error
	assert.NoError(t, f.auther.Logout(context.Background(), "sess-1"))
	assert.NoError(t, f.auther.Logout(context.Background(), ""))
}

func TestCurrentAccount(t *testing.T) {
	f := newAutherFixture(t, time.Now())

	account := &auth.Account{ID: uuid.New(), Email: "ada@example.com"}
	f.store.On("GetByAccountID", mock.Anything, account.ID.String()).Return(account, nil).Once()

	got, err := f.auther.CurrentAccount(context.Background(), auth.Principal{AccountID: account.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, account, got)

	_, err = f.auther.CurrentAccount(context.Background(), auth.Anonymous())
	assert.ErrorIs(t, err, auth.ErrUnableToFindSession)
}
