package auth

import (
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RegisterAuthRoutes mounts the JSON auth endpoints on the given router.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("auth.register")

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("auth.login")

	app.Post(controller.Routes.TokenLogin, controller.TokenLoginPost).
		SetName("auth.token-login")

	app.Post(controller.Routes.Logout, controller.LogoutPost).
		SetName("auth.logout")

	app.Post(controller.Routes.RequestAccess, controller.RequestAccessPost).
		SetName("auth.request-access")

	app.Get(controller.Routes.VerifyEmail, controller.VerifyEmailGet).
		SetName("auth.verify-email")

	app.Post(controller.Routes.ForgotPassword, controller.ForgotPasswordPost).
		SetName("auth.forgot-password")

	app.Post(controller.Routes.ResetPassword, controller.ResetPasswordPost).
		SetName("auth.reset-password")

	app.Get(controller.Routes.BetaApprove, controller.BetaApproveGet).
		SetName("auth.beta.approve")

	app.Get(controller.Routes.BetaDeny, controller.BetaDenyGet).
		SetName("auth.beta.deny")

	app.Get(controller.Routes.Me, controller.MeGet, controller.Auther.ProtectedRoute(false)).
		SetName("auth.me")
}

type AuthControllerRoutes struct {
	Register       string
	Login          string
	TokenLogin     string
	Logout         string
	RequestAccess  string
	VerifyEmail    string
	ForgotPassword string
	ResetPassword  string
	BetaApprove    string
	BetaDeny       string
	Me             string
}

type AuthController struct {
	Debug    bool
	Logger   Logger
	Repo     RepositoryManager
	Gate     BetaStateMachine
	Issuer   *TokenIssuer
	Notifier *LifecycleNotifier
	Sink     ActivitySink
	Auther   *RouteAuthenticator
	Routes   *AuthControllerRoutes
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerGate(gate BetaStateMachine) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Gate = gate
		return c
	}
}

func WithControllerIssuer(issuer *TokenIssuer) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Issuer = issuer
		return c
	}
}

func WithControllerNotifier(notifier *LifecycleNotifier) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Notifier = notifier
		return c
	}
}

func WithControllerSink(sink ActivitySink) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Sink = normalizeActivitySink(sink)
		return c
	}
}

func WithControllerAuther(auther *RouteAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Sink:   noopActivitySink{},
		Routes: &AuthControllerRoutes{
			Register:       "/auth/register",
			Login:          "/auth/login",
			TokenLogin:     "/auth/token-login",
			Logout:         "/auth/logout",
			RequestAccess:  "/auth/request-access",
			VerifyEmail:    "/auth/verify-email",
			ForgotPassword: "/auth/forgot-password",
			ResetPassword:  "/auth/reset-password",
			BetaApprove:    "/auth/beta/approve",
			BetaDeny:       "/auth/beta/deny",
			Me:             "/auth/me",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Gate == nil {
		panic("Missing BetaStateMachine in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	return c
}

// RegistrationCreatePayload is the registration body
type RegistrationCreatePayload struct {
	FirstName       string `form:"first_name" json:"first_name"`
	LastName        string `form:"last_name" json:"last_name"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		return a.respondError(ctx, bindError(err))
	}

	if err := payload.Validate(); err != nil {
		return a.respondValidationError(ctx, err)
	}

	if a.Debug {
		a.Logger.Debug("register payload: %s", print.MaybePrettyJSON(payload))
	}

	var res *RegisterAccountResponse
	req := RegisterAccountMessage{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Password:  payload.Password,
		OnResponse: func(resp *RegisterAccountResponse) {
			res = resp
		},
	}

	handler := NewRegisterAccountHandler(a.Repo, a.Gate, a.Sink)
	if err := handler.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("register error: %s", err)
		return a.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, map[string]any{
		"account": res.Account,
		"message": "check your inbox to confirm your email address",
	})
}

// LoginPayload is the login body
type LoginPayload struct {
	Email      string `form:"email" json:"email"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

// Validate will run validation rules
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.respondError(ctx, bindError(err))
	}

	if err := payload.Validate(); err != nil {
		return a.respondValidationError(ctx, err)
	}

	result, err := a.Auther.Login(ctx, payload.Email, payload.Password, payload.RememberMe)
	if err != nil {
		return a.respondError(ctx, err)
	}

	body := map[string]any{
		"account_id": result.Principal.AccountID,
		"email":      result.Principal.Email,
	}
	if result.BearerToken != "" {
		body["bearer_token"] = result.BearerToken
		body["bearer_expiry"] = result.BearerExpiry
	}

	return ctx.JSON(http.StatusOK, body)
}

// TokenLoginPayload is the bearer login body
type TokenLoginPayload struct {
	Token string `form:"token" json:"token"`
}

func (r TokenLoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

func (a *AuthController) TokenLoginPost(ctx router.Context) error {
	payload := new(TokenLoginPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.respondError(ctx, bindError(err))
	}

	if err := payload.Validate(); err != nil {
		return a.respondValidationError(ctx, err)
	}

	result, err := a.Auther.LoginWithToken(ctx, payload.Token)
	if err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"account_id": result.Principal.AccountID,
		"email":      result.Principal.Email,
	})
}

func (a *AuthController) LogoutPost(ctx router.Context) error {
	if err := a.Auther.Logout(ctx); err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{"success": true})
}

// EmailPayload is the body for flows keyed on an email address
type EmailPayload struct {
	Email string `form:"email" json:"email"`
}

func (r EmailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AuthController) RequestAccessPost(ctx router.Context) error {
	payload := new(EmailPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.respondError(ctx, bindError(err))
	}

	if err := payload.Validate(); err != nil {
		return a.respondValidationError(ctx, err)
	}

	handler := NewRequestAccessHandler(a.Repo, a.Gate)
	if err := handler.Execute(ctx.Context(), RequestAccessMessage{Email: payload.Email}); err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusAccepted, map[string]any{"success": true})
}

func (a *AuthController) VerifyEmailGet(ctx router.Context) error {
	token := ctx.Query("token", "")

	var res *VerifyEmailResponse
	req := VerifyEmailMessage{
		Token: token,
		OnResponse: func(resp *VerifyEmailResponse) {
			res = resp
		},
	}

	handler := NewVerifyEmailHandler(a.Repo, a.Gate, a.Sink)
	if err := handler.Execute(ctx.Context(), req); err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "email confirmed, your application is in the review queue",
		"account": res.Account,
	})
}

func (a *AuthController) ForgotPasswordPost(ctx router.Context) error {
	payload := new(EmailPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.respondError(ctx, bindError(err))
	}

	if err := payload.Validate(); err != nil {
		return a.respondValidationError(ctx, err)
	}

	handler := NewForgotPasswordHandler(a.Repo, a.Gate, a.Issuer, a.Notifier, a.Sink)
	err := handler.Execute(ctx.Context(), ForgotPasswordMessage{Email: payload.Email})
	if err != nil && !goerrors.IsNotFound(err) {
		// unknown emails get the same response as known ones
		return a.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusAccepted, map[string]any{
		"success": true,
		"message": "if that address is registered, a reset link is on its way",
	})
}

// ResetPasswordPayload is the password reset body
type ResetPasswordPayload struct {
	Token           string `form:"token" json:"token"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

func (r ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) ResetPasswordPost(ctx router.Context) error {
	payload := new(ResetPasswordPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.respondError(ctx, bindError(err))
	}

	if err := payload.Validate(); err != nil {
		return a.respondValidationError(ctx, err)
	}

	handler := NewResetPasswordHandler(a.Repo, a.Notifier, a.Sink)
	req := ResetPasswordMessage{
		Token:    payload.Token,
		Password: payload.Password,
	}

	if err := handler.Execute(ctx.Context(), req); err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "password changed, you can log in now",
	})
}

func (a *AuthController) BetaApproveGet(ctx router.Context) error {
	return a.betaDecision(ctx, DecisionApprove)
}

func (a *AuthController) BetaDenyGet(ctx router.Context) error {
	return a.betaDecision(ctx, DecisionDeny)
}

func (a *AuthController) betaDecision(ctx router.Context, decision string) error {
	token := ctx.Query("token", "")

	var res *BetaDecisionResponse
	req := BetaDecisionMessage{
		Token:    token,
		Decision: decision,
		Actor:    ActorRef{Type: ActorTypeReviewer},
		OnResponse: func(resp *BetaDecisionResponse) {
			res = resp
		},
	}

	handler := NewBetaDecisionHandler(a.Gate)
	if err := handler.Execute(ctx.Context(), req); err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"success":  true,
		"decision": res.Decision,
		"email":    res.Account.Email,
	})
}

func (a *AuthController) MeGet(ctx router.Context) error {
	principal, ok := ctx.Locals(PrincipalContextKey).(Principal)
	if !ok {
		return a.respondError(ctx, ErrUnableToFindSession)
	}

	account, err := a.Auther.auth.CurrentAccount(ctx.Context(), principal)
	if err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"account": account,
		"via":     principal.Via,
	})
}

func (a *AuthController) respondError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	return ctx.JSON(statusFromError(richErr), errorBody(richErr))
}

func (a *AuthController) respondValidationError(ctx router.Context, err error) error {
	return ctx.JSON(http.StatusBadRequest, map[string]any{
		"error":      "validation failed",
		"validation": err.Error(),
	})
}

func bindError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
		WithCode(goerrors.CodeBadRequest)
}

// ValidateStringEquals builds an ozzo rule asserting equality with want.
func ValidateStringEquals(want string) validation.RuleFunc {
	return func(value any) error {
		got, _ := value.(string)
		if got != want {
			return fmt.Errorf("values do not match")
		}
		return nil
	}
}
