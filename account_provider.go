package auth

import (
	"context"

	"github.com/goliatone/go-errors"
)

// MaxLoginAttempts is the maximum number of attempts an account gets
// in a period
var MaxLoginAttempts = 5

// CoolDownPeriod is the period in which we enforce a cool down
var CoolDownPeriod = "24h"

// AccountProvider verifies credentials against the record store, enforcing
// the per-account attempt cooldown. Every credential failure, including an
// unknown email, reports the same generic error.
type AccountProvider struct {
	store  AccountTracker
	logger Logger
}

// NewAccountProvider will create a new AccountProvider
func NewAccountProvider(store AccountTracker) *AccountProvider {
	return &AccountProvider{
		store:  store,
		logger: defLogger{},
	}
}

func (p *AccountProvider) WithLogger(l Logger) *AccountProvider {
	if l != nil {
		p.logger = l
	}
	return p
}

// VerifyCredentials will find the account, compare the password, and return
// the account record
func (p *AccountProvider) VerifyCredentials(ctx context.Context, email, password string) (*Account, error) {
	account, err := p.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account during verification")
	}

	if account.LoginAttemptAt != nil {
		expired, err := IsOutsideThresholdPeriod(*account.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to calculate login attempt cooldown")
		}

		if expired {
			account.LoginAttempts = 0
		}
	}

	// if we have too many attempts in the given window, cool off!
	if account.LoginAttempts > MaxLoginAttempts {
		return nil, ErrTooManyLoginAttempts
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		// We have to increment the login_attempts counter and login_attempt_at
		if err2 := p.store.TrackAttemptedLogin(ctx, account); err2 != nil {
			return nil, errors.Wrap(err2, errors.CategoryInternal, "failed to track login attempt")
		}

		return nil, ErrMismatchedHashAndPassword
	}

	// reset the login_attempts counter and login_attempt_at
	if err := p.store.TrackSucccessfulLogin(ctx, account); err != nil {
		p.logger.Error("failed to track successful login", "error", err)
	}

	return account, nil
}

var _ CredentialVerifier = (*AccountProvider)(nil)

type accountIdentity struct {
	id       string
	email    string
	fullName string
}

func (a accountIdentity) ID() string       { return a.id }
func (a accountIdentity) Email() string    { return a.email }
func (a accountIdentity) FullName() string { return a.fullName }

var _ Identity = accountIdentity{}

// IdentityFromAccount adapts an account record to the Identity interface.
func IdentityFromAccount(account *Account) Identity {
	return accountIdentity{
		id:       account.ID.String(),
		email:    account.Email,
		fullName: account.FullName(),
	}
}
