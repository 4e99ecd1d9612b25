package auth

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes surfaced to API clients alongside the HTTP status. Keep these
// stable; downstream apps branch on them.
const (
	TextCodeInvalidCreds    = "INVALID_CREDENTIALS"
	TextCodeInvalidToken    = "INVALID_OR_EXPIRED_TOKEN"
	TextCodeEmailTaken      = "EMAIL_ALREADY_REGISTERED"
	TextCodeTooManyAttempts = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeBetaUnverified  = "BETA_EMAIL_UNVERIFIED"
	TextCodeBetaPending     = "BETA_PENDING_REVIEW"
	TextCodeBetaDenied      = "BETA_ACCESS_DENIED"
	TextCodeAccountNotFound = "ACCOUNT_NOT_FOUND"
	TextCodeEmptyPassword   = "EMPTY_PASSWORD"
	TextCodeDispatchFailed  = "NOTIFICATION_DISPATCH_FAILED"
)

// ErrMismatchedHashAndPassword is returned for any credential failure,
// including unknown emails, so login never leaks account existence.
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenInvalid is the uniform failure for every single-use token check:
// unknown, expired, or already consumed. One error for all three cases so
// token probing learns nothing.
var ErrTokenInvalid = goerrors.New("the token provided is invalid or has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailTaken is returned when registering an email that already exists.
var ErrEmailTaken = goerrors.New("an account with this email already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrTooManyLoginAttempts signals the account-level attempt cooldown.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts, try again later", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts)

// ErrAccountNotFound is returned when a referenced account does not exist.
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = goerrors.New("password cannot be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// Gating errors block actions for accounts outside the beta program. When
// more than one applies the most specific wins: denied with an active
// cooldown, then unverified email, then pending review.
var (
	ErrGateAccessDenied = goerrors.New("beta access was denied for this account", goerrors.CategoryAuthz).
				WithTextCode(TextCodeBetaDenied).
				WithCode(goerrors.CodeForbidden)

	ErrGateEmailUnverified = goerrors.New("verify your email address to continue", goerrors.CategoryAuthz).
				WithTextCode(TextCodeBetaUnverified).
				WithCode(goerrors.CodeForbidden)

	ErrGatePendingReview = goerrors.New("your beta application is pending review", goerrors.CategoryAuthz).
				WithTextCode(TextCodeBetaPending).
				WithCode(goerrors.CodeForbidden)
)

// ErrTokenExpired is returned for bearer tokens past their expiry.
var ErrTokenExpired = goerrors.New("the bearer token has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for bearer tokens that fail to parse or verify.
var ErrTokenMalformed = goerrors.New("the bearer token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToFindSession is the error when our request has no session cookie
var ErrUnableToFindSession = errors.New("unable to find session")

// ErrSessionNotFound is returned by session stores for unknown or expired IDs
var ErrSessionNotFound = errors.New("session not found")

// IsGatingError reports whether err is one of the beta gating failures.
func IsGatingError(err error) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.Category == goerrors.CategoryAuthz
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
