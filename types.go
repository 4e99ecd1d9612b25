package auth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated identity
type Identity interface {
	ID() string
	Email() string
	FullName() string
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, email, password string, opts ...LoginOption) (*LoginResult, error)
	LoginWithToken(ctx context.Context, raw string) (*LoginResult, error)
	ResolveSession(ctx context.Context, sessionID string) (Principal, error)
	ResolveBearer(ctx context.Context, raw string) (Principal, error)
	Logout(ctx context.Context, sessionID string) error
	CurrentAccount(ctx context.Context, principal Principal) (*Account, error)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetAuthScheme() string
	GetSessionCookieName() string
	GetSessionTTL() time.Duration
	GetBearerTTL() time.Duration
	GetReleaseMode() string
	GetBaseURL() string
	GetReviewerAddress() string
}

// Mailer delivers a single rendered message. Implementations must honor the
// context deadline; callers treat a returned error as a dispatch failure and
// never roll back state that was persisted before the send.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// CredentialVerifier checks a password against the stored hash for an email,
// enforcing the account-level attempt cooldown.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, email, password string) (*Account, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
