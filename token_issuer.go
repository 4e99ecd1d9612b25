package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// TokenKind selects which single-use slot on the account a token occupies.
type TokenKind string

const (
	TokenKindEmailVerification TokenKind = "email_verification"
	TokenKindPasswordReset     TokenKind = "password_reset"
	TokenKindBetaDecision      TokenKind = "beta_decision"
)

// TTL is the validity window for a freshly issued token of this kind.
// Reset tokens are short because the email proves control of the inbox at
// request time; verification and decision links need to survive a week of
// inbox lag.
func (k TokenKind) TTL() time.Duration {
	switch k {
	case TokenKindPasswordReset:
		return 10 * time.Minute
	default:
		return 7 * 24 * time.Hour
	}
}

func (k TokenKind) Valid() bool {
	switch k {
	case TokenKindEmailVerification, TokenKindPasswordReset, TokenKindBetaDecision:
		return true
	}
	return false
}

const tokenByteLength = 32

// IssuedToken is a freshly minted single-use token. Plaintext goes into the
// outbound email only; Hash and ExpiresAt go into the account's slot.
type IssuedToken struct {
	Kind      TokenKind
	Plaintext string
	Hash      string
	ExpiresAt time.Time
}

// HashToken derives the stored lookup hash for a plaintext token.
func HashToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// AccountTokenFinder looks up the account holding a live token of a kind.
// Implementations match on the stored hash and must not return accounts
// whose slot expiry is at or before now.
type AccountTokenFinder interface {
	GetByTokenHash(ctx context.Context, kind TokenKind, hash string, now time.Time) (*Account, error)
}

// TokenIssuer mints and validates opaque single-use tokens. Validation is
// read-only; consuming a token (clearing the slot) is the caller's job so it
// can happen atomically with the action the token authorizes.
type TokenIssuer struct {
	rand   io.Reader
	nowFn  func() time.Time
	logger Logger
}

type TokenIssuerOption func(*TokenIssuer)

func WithTokenIssuerClock(now func() time.Time) TokenIssuerOption {
	return func(t *TokenIssuer) {
		if now != nil {
			t.nowFn = now
		}
	}
}

func WithTokenIssuerRand(r io.Reader) TokenIssuerOption {
	return func(t *TokenIssuer) {
		if r != nil {
			t.rand = r
		}
	}
}

func WithTokenIssuerLogger(l Logger) TokenIssuerOption {
	return func(t *TokenIssuer) {
		if l != nil {
			t.logger = l
		}
	}
}

func NewTokenIssuer(opts ...TokenIssuerOption) *TokenIssuer {
	issuer := &TokenIssuer{
		rand:   rand.Reader,
		nowFn:  time.Now,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(issuer)
		}
	}
	return issuer
}

// Issue mints a token of the given kind with its kind-specific TTL.
func (t *TokenIssuer) Issue(kind TokenKind) (IssuedToken, error) {
	if !kind.Valid() {
		return IssuedToken{}, goerrors.New("unknown token kind", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"kind": string(kind)})
	}

	buf := make([]byte, tokenByteLength)
	if _, err := io.ReadFull(t.rand, buf); err != nil {
		return IssuedToken{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read token entropy")
	}

	plaintext := hex.EncodeToString(buf)

	return IssuedToken{
		Kind:      kind,
		Plaintext: plaintext,
		Hash:      HashToken(plaintext),
		ExpiresAt: t.nowFn().Add(kind.TTL()),
	}, nil
}

// Validate resolves a plaintext token to its account without consuming it.
// Unknown, expired, and already consumed tokens all fail with the same
// error. The lifecycle handlers consume tokens atomically through the
// store's single-statement updates instead; Validate is the read-only
// companion for callers that need to inspect a token first, such as a
// reset-form preflight.
func (t *TokenIssuer) Validate(ctx context.Context, store AccountTokenFinder, kind TokenKind, plaintext string) (*Account, error) {
	if plaintext == "" {
		return nil, ErrTokenInvalid
	}

	account, err := store.GetByTokenHash(ctx, kind, HashToken(plaintext), t.nowFn())
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrTokenInvalid
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up token")
	}

	return account, nil
}
