package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteAuthenticator glues the Authenticator to HTTP: it resolves the
// request principal from the session cookie or the Authorization header and
// manages the cookie lifecycle.
type RouteAuthenticator struct {
	auth         Authenticator
	cfg          Config
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	a := &RouteAuthenticator{
		auth:   auther,
		cfg:    cfg,
		Logger: defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

// Resolve determines the request principal. The session cookie wins over
// the Authorization header; a stale session cookie is cleared and the
// request falls through to the bearer path. An absent bearer resolves to
// Anonymous without error, a present but invalid one is an error.
func (a *RouteAuthenticator) Resolve(c router.Context) (Principal, error) {
	if sessionID := c.Cookies(a.cfg.GetSessionCookieName()); sessionID != "" {
		principal, err := a.auth.ResolveSession(c.Context(), sessionID)
		if err == nil {
			return principal, nil
		}
		if !errors.Is(err, ErrSessionNotFound) {
			return Anonymous(), err
		}
		a.clearSessionCookie(c)
	}

	raw := a.bearerFromHeader(c)
	if raw == "" {
		return Anonymous(), nil
	}

	return a.auth.ResolveBearer(c.Context(), raw)
}

// ProtectedRoute resolves the principal and rejects unauthenticated
// requests. With optionalAuth the request proceeds anonymously when no
// credentials are presented, but presented-and-invalid credentials still
// fail.
func (a *RouteAuthenticator) ProtectedRoute(optionalAuth bool) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			principal, err := a.Resolve(c)
			if err != nil {
				return a.ErrorHandler(c, err)
			}

			if !principal.Authenticated() && !optionalAuth {
				return a.ErrorHandler(c, goerrors.New("authentication required", goerrors.CategoryAuth).
					WithCode(goerrors.CodeUnauthorized))
			}

			c.Locals(PrincipalContextKey, principal)
			c.SetContext(WithPrincipal(c.Context(), principal))

			return hf(c)
		}
	}
}

// Login authenticates credentials and sets the session cookie.
func (a *RouteAuthenticator) Login(c router.Context, email, password string, remember bool) (*LoginResult, error) {
	opts := []LoginOption{}
	if remember {
		opts = append(opts, WithRememberToken())
	}

	result, err := a.auth.Login(c.Context(), email, password, opts...)
	if err != nil {
		a.Logger.Error("Login error: %s", err)
		return nil, err
	}

	a.setSessionCookie(c, result.Session)
	return result, nil
}

// LoginWithToken authenticates a bearer remember token and sets a fresh
// session cookie.
func (a *RouteAuthenticator) LoginWithToken(c router.Context, raw string) (*LoginResult, error) {
	result, err := a.auth.LoginWithToken(c.Context(), raw)
	if err != nil {
		a.Logger.Error("Token login error: %s", err)
		return nil, err
	}

	a.setSessionCookie(c, result.Session)
	return result, nil
}

// Logout tears down the session and clears the cookie.
func (a *RouteAuthenticator) Logout(c router.Context) error {
	sessionID := c.Cookies(a.cfg.GetSessionCookieName())

	if err := a.auth.Logout(c.Context(), sessionID); err != nil {
		return err
	}

	a.clearSessionCookie(c)
	return nil
}

func (a *RouteAuthenticator) bearerFromHeader(c router.Context) string {
	header := c.GetString(router.HeaderAuthorization, "")
	if header == "" {
		return ""
	}

	scheme := a.cfg.GetAuthScheme()
	if scheme == "" {
		scheme = "Bearer"
	}

	if len(header) > len(scheme)+1 && strings.EqualFold(header[:len(scheme)], scheme) {
		return strings.TrimSpace(header[len(scheme):])
	}

	return ""
}

func (a *RouteAuthenticator) setSessionCookie(c router.Context, session *SessionObject) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetSessionCookieName(),
		Value:    session.ID,
		Expires:  session.ExpiresAt,
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) clearSessionCookie(c router.Context) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetSessionCookieName(),
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	a.Logger.Info(
		"Middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	return c.JSON(statusFromError(richErr), errorBody(richErr))
}

func statusFromError(err *goerrors.Error) int {
	if err.Code > 0 {
		return err.Code
	}

	switch err.Category {
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err *goerrors.Error) map[string]any {
	body := map[string]any{
		"error": err.Message,
	}
	if err.TextCode != "" {
		body["text_code"] = err.TextCode
	}
	return body
}
