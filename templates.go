package auth

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Subjects for the lifecycle messages.
const (
	SubjectVerifyEmail     = "Confirm your email address"
	SubjectReviewRequest   = "Beta application waiting for review"
	SubjectBetaApproved    = "You're in! Your beta access was approved"
	SubjectBetaDenied      = "An update on your beta application"
	SubjectPasswordReset   = "Reset your password"
	SubjectPasswordChanged = "Your password was changed"
)

// LifecycleNotifier renders and dispatches the lifecycle emails. It owns the
// action URLs so tokens only ever appear inside outbound messages.
type LifecycleNotifier struct {
	mailer       Mailer
	templates    *template.Template
	baseURL      string
	reviewerAddr string
	logger       Logger
}

type NotifierOption func(*LifecycleNotifier)

func WithNotifierLogger(l Logger) NotifierOption {
	return func(n *LifecycleNotifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithNotifierTemplates overrides the embedded message templates.
func WithNotifierTemplates(t *template.Template) NotifierOption {
	return func(n *LifecycleNotifier) {
		if t != nil {
			n.templates = t
		}
	}
}

func NewLifecycleNotifier(mailer Mailer, baseURL, reviewerAddr string, opts ...NotifierOption) (*LifecycleNotifier, error) {
	templates, err := template.ParseFS(templatesFS, "data/templates/*.html")
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse notification templates")
	}

	notifier := &LifecycleNotifier{
		mailer:       mailer,
		templates:    templates,
		baseURL:      baseURL,
		reviewerAddr: reviewerAddr,
		logger:       defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(notifier)
		}
	}
	return notifier, nil
}

type verifyEmailData struct {
	Name      string
	VerifyURL string
}

type reviewRequestData struct {
	Name       string
	Email      string
	ApproveURL string
	DenyURL    string
}

type betaApprovedData struct {
	Name     string
	ResetURL string
}

type betaDeniedData struct {
	Name      string
	ReapplyAt string
}

type passwordResetData struct {
	Name     string
	ResetURL string
}

type passwordChangedData struct {
	Name string
}

// SendVerification emails the applicant their email verification link.
func (n *LifecycleNotifier) SendVerification(ctx context.Context, account *Account, token string) error {
	body, err := n.render("verify_email.html", verifyEmailData{
		Name:      account.FullName(),
		VerifyURL: n.actionURL("/auth/verify-email", token),
	})
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, account.Email, SubjectVerifyEmail, body)
}

// SendReviewRequest emails the reviewer one message with both decision
// links. The links embed the same token, so either click consumes the slot
// and the other link goes dead.
func (n *LifecycleNotifier) SendReviewRequest(ctx context.Context, account *Account, token string) error {
	body, err := n.render("review_request.html", reviewRequestData{
		Name:       account.FullName(),
		Email:      account.Email,
		ApproveURL: n.actionURL("/auth/beta/approve", token),
		DenyURL:    n.actionURL("/auth/beta/deny", token),
	})
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, n.reviewerAddr, SubjectReviewRequest, body)
}

// SendApproval tells the applicant they are in, with a password reset link
// so they can pick their credentials.
func (n *LifecycleNotifier) SendApproval(ctx context.Context, account *Account, resetToken string) error {
	body, err := n.render("beta_approved.html", betaApprovedData{
		Name:     account.FullName(),
		ResetURL: n.actionURL("/auth/reset-password", resetToken),
	})
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, account.Email, SubjectBetaApproved, body)
}

// SendDenial tells the applicant they were not accepted and when they may
// apply again.
func (n *LifecycleNotifier) SendDenial(ctx context.Context, account *Account, reapplyAt time.Time) error {
	body, err := n.render("beta_denied.html", betaDeniedData{
		Name:      account.FullName(),
		ReapplyAt: reapplyAt.Format("January 2, 2006"),
	})
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, account.Email, SubjectBetaDenied, body)
}

// SendResetLink emails the password reset link.
func (n *LifecycleNotifier) SendResetLink(ctx context.Context, account *Account, token string) error {
	body, err := n.render("password_reset.html", passwordResetData{
		Name:     account.FullName(),
		ResetURL: n.actionURL("/auth/reset-password", token),
	})
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, account.Email, SubjectPasswordReset, body)
}

// SendResetConfirmation notifies the account that its password changed.
func (n *LifecycleNotifier) SendResetConfirmation(ctx context.Context, account *Account) error {
	body, err := n.render("password_changed.html", passwordChangedData{
		Name: account.FullName(),
	})
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, account.Email, SubjectPasswordChanged, body)
}

func (n *LifecycleNotifier) actionURL(path, token string) string {
	return fmt.Sprintf("%s%s?token=%s", n.baseURL, path, url.QueryEscape(token))
}

func (n *LifecycleNotifier) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := n.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render notification template").
			WithMetadata(map[string]any{"template": name})
	}
	return buf.String(), nil
}
