package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenService mints and validates the signed bearer remember token.
type TokenService interface {
	Mint(identity Identity) (string, time.Time, error)
	Validate(tokenString string) (*BearerClaims, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	nowFn      func() time.Time
	logger     Logger
}

// DefaultBearerTTL is how long a minted bearer token stays valid.
var DefaultBearerTTL = 7 * 24 * time.Hour

type TokenServiceOption func(*TokenServiceImpl)

func WithTokenServiceClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if now != nil {
			ts.nowFn = now
		}
	}
}

func WithTokenServiceTTL(ttl time.Duration) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if ttl > 0 {
			ts.ttl = ttl
		}
	}
}

func WithTokenServiceLogger(l Logger) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if l != nil {
			ts.logger = l
		}
	}
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, issuer string, audience jwt.ClaimStrings, opts ...TokenServiceOption) TokenService {
	ts := &TokenServiceImpl{
		signingKey: signingKey,
		ttl:        DefaultBearerTTL,
		issuer:     issuer,
		audience:   audience,
		nowFn:      time.Now,
		logger:     defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}
	return ts
}

// Mint creates a signed bearer token for the identity, returning the token
// and its expiry.
func (ts *TokenServiceImpl) Mint(identity Identity) (string, time.Time, error) {
	now := ts.nowFn()
	expiresAt := now.Add(ts.ttl)

	claims := &BearerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:   identity.ID(),
		Email: identity.Email(),
	}

	ensureTokenID(&claims.RegisteredClaims)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signed, expiresAt, nil
}

// Validate parses and validates a token string, returning structured claims
func (ts *TokenServiceImpl) Validate(tokenString string) (*BearerClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &BearerClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*BearerClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrTokenMalformed
}
