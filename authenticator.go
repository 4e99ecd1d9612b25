package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// DefaultSessionTTL is how long a server-side session lives.
var DefaultSessionTTL = 24 * time.Hour

// LoginOption customizes a single login call.
type LoginOption func(*loginOptions)

type loginOptions struct {
	remember bool
}

// WithRememberToken also mints a long-lived bearer token at login.
func WithRememberToken() LoginOption {
	return func(o *loginOptions) {
		o.remember = true
	}
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Principal    Principal
	Session      *SessionObject
	Account      *Account
	BearerToken  string
	BearerExpiry time.Time
}

// Auther implements Authenticator: credential login, bearer login, request
// principal resolution, and logout.
type Auther struct {
	store        AccountResolver
	verifier     CredentialVerifier
	sessions     SessionStore
	tokens       TokenService
	gate         BetaStateMachine
	journals     JournalProvisioner
	sessionTTL   time.Duration
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
}

var _ Authenticator = (*Auther)(nil)

type AutherOption func(*Auther)

func WithAutherClock(now func() time.Time) AutherOption {
	return func(a *Auther) {
		if now != nil {
			a.now = now
		}
	}
}

func WithAutherSessionTTL(ttl time.Duration) AutherOption {
	return func(a *Auther) {
		if ttl > 0 {
			a.sessionTTL = ttl
		}
	}
}

// WithAutherJournals wires the provisioner that creates the default journal
// on first authentication.
func WithAutherJournals(j JournalProvisioner) AutherOption {
	return func(a *Auther) {
		a.journals = j
	}
}

func WithAutherActivitySink(sink ActivitySink) AutherOption {
	return func(a *Auther) {
		a.activitySink = normalizeActivitySink(sink)
	}
}

func WithAutherLogger(l Logger) AutherOption {
	return func(a *Auther) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewAuther(store AccountResolver, verifier CredentialVerifier, sessions SessionStore, tokens TokenService, gate BetaStateMachine, opts ...AutherOption) *Auther {
	auther := &Auther{
		store:        store,
		verifier:     verifier,
		sessions:     sessions,
		tokens:       tokens,
		gate:         gate,
		sessionTTL:   DefaultSessionTTL,
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(auther)
		}
	}
	return auther
}

// Login verifies credentials and establishes a session. Gate errors take
// precedence over the password check so an applicant sees why they are
// blocked, but unknown emails still fail with the generic credential error.
func (a *Auther) Login(ctx context.Context, email, password string, opts ...LoginOption) (*LoginResult, error) {
	options := &loginOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	account, err := a.store.GetByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			a.recordActivity(ctx, ActivityEvent{
				EventType: ActivityEventLoginFailure,
				Metadata:  map[string]any{"reason": "unknown_email"},
			})
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	if err := a.gate.CheckGate(account); err != nil {
		a.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			AccountID: account.ID.String(),
			Metadata:  map[string]any{"reason": "beta_gate"},
		})
		return nil, err
	}

	account, err = a.verifier.VerifyCredentials(ctx, email, password)
	if err != nil {
		a.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Metadata:  map[string]any{"reason": "credentials"},
		})
		return nil, err
	}

	return a.establish(ctx, account, options.remember)
}

// LoginWithToken authenticates with a bearer remember token and establishes
// a fresh session. The gate is re-checked: access revoked after the token
// was minted still blocks the login.
func (a *Auther) LoginWithToken(ctx context.Context, raw string) (*LoginResult, error) {
	claims, err := a.tokens.Validate(raw)
	if err != nil {
		return nil, err
	}

	account, err := a.store.GetByAccountID(ctx, claims.AccountID())
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrTokenMalformed
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	if err := a.gate.CheckGate(account); err != nil {
		return nil, err
	}

	return a.establish(ctx, account, false)
}

func (a *Auther) establish(ctx context.Context, account *Account, remember bool) (*LoginResult, error) {
	if a.journals != nil {
		if _, err := a.journals.ProvisionDefault(ctx, account); err != nil {
			a.logger.Warn("failed to provision default journal: %v", err)
		}
	}

	sessionID, err := newSessionID()
	if err != nil {
		return nil, err
	}

	now := a.now()
	session := &SessionObject{
		ID:        sessionID,
		AccountID: account.ID.String(),
		Email:     account.Email,
		IssuedAt:  now,
		ExpiresAt: now.Add(a.sessionTTL),
	}

	if err := a.sessions.Put(ctx, session); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store session")
	}

	result := &LoginResult{
		Principal: session.Principal(),
		Session:   session,
		Account:   account,
	}

	if remember {
		token, expiry, err := a.tokens.Mint(IdentityFromAccount(account))
		if err != nil {
			return nil, err
		}
		result.BearerToken = token
		result.BearerExpiry = expiry
	}

	a.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: account.ID.String(), Type: ActorTypeAccount},
		AccountID: account.ID.String(),
	})

	return result, nil
}

// ResolveSession turns a session ID into a request principal. An empty ID
// resolves to Anonymous without error; unknown or expired sessions report
// ErrSessionNotFound so the HTTP layer can clear the stale cookie.
func (a *Auther) ResolveSession(ctx context.Context, sessionID string) (Principal, error) {
	if sessionID == "" {
		return Anonymous(), nil
	}

	session, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		return Anonymous(), err
	}

	return session.Principal(), nil
}

// ResolveBearer turns an Authorization token into a request principal. An
// empty token resolves to Anonymous without error; a present but invalid
// token is an authentication failure.
func (a *Auther) ResolveBearer(ctx context.Context, raw string) (Principal, error) {
	if raw == "" {
		return Anonymous(), nil
	}

	claims, err := a.tokens.Validate(raw)
	if err != nil {
		return Anonymous(), err
	}

	return Principal{
		AccountID: claims.AccountID(),
		Email:     claims.Email,
		Via:       ViaBearer,
	}, nil
}

// Logout tears down the server-side session. Bearer tokens are stateless
// and stay valid until they expire.
func (a *Auther) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	session, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		// already gone
		return nil
	}

	if err := a.sessions.Delete(ctx, sessionID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete session")
	}

	a.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLogout,
		Actor:     ActorRef{ID: session.AccountID, Type: ActorTypeAccount},
		AccountID: session.AccountID,
	})

	return nil
}

// CurrentAccount loads the full account record behind a principal.
func (a *Auther) CurrentAccount(ctx context.Context, principal Principal) (*Account, error) {
	if !principal.Authenticated() {
		return nil, ErrUnableToFindSession
	}

	account, err := a.store.GetByAccountID(ctx, principal.AccountID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	return account, nil
}

func (a *Auther) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: ActorTypeSystem}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = a.now()
	}

	sink := normalizeActivitySink(a.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		a.logger.Warn("authenticator activity sink error: %v", err)
	}
}
