package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ConsumeResetTokenSQL swaps the password and clears the reset slot in one
// statement, keyed on the stored hash. Matching on the hash makes the token
// single-use even under concurrent submissions: the second UPDATE finds no
// row.
var ConsumeResetTokenSQL = `UPDATE "accounts" AS "acc"
SET
	"password_hash" = ?,
	"reset_token_hash" = NULL,
	"reset_token_expiry" = NULL
WHERE
	"acc"."deleted_at" IS NULL
AND "acc"."reset_token_hash" = ?
AND "acc"."reset_token_expiry" > ?
RETURNING *;`

var ConsumeVerificationTokenSQL = `UPDATE "accounts" AS "acc"
SET
	"is_email_verified" = TRUE,
	"verify_email_token_hash" = NULL,
	"verify_email_token_expiry" = NULL
WHERE
	"acc"."deleted_at" IS NULL
AND "acc"."verify_email_token_hash" = ?
AND "acc"."verify_email_token_expiry" > ?
RETURNING *;`

var ConsumeDecisionTokenSQL = `UPDATE "accounts" AS "acc"
SET
	"beta_state" = ?,
	"beta_denied_until" = ?,
	"decision_token_hash" = NULL,
	"decision_token_expiry" = NULL
WHERE
	"acc"."deleted_at" IS NULL
AND "acc"."decision_token_hash" = ?
AND "acc"."decision_token_expiry" > ?
RETURNING *;`

// AccountTracker is a store we can use to verify credentials
type AccountTracker interface {
	GetByEmail(ctx context.Context, email string) (*Account, error)
	TrackAttemptedLogin(ctx context.Context, account *Account) error
	TrackSucccessfulLogin(ctx context.Context, account *Account) error
}

// AccountResolver looks accounts up by their identifiers.
type AccountResolver interface {
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByAccountID(ctx context.Context, id string) (*Account, error)
}

// AccountMutator persists targeted account changes for the lifecycle flows.
type AccountMutator interface {
	SaveTokenSlot(ctx context.Context, account *Account, kind TokenKind) (*Account, error)
	SaveBetaAccess(ctx context.Context, account *Account) (*Account, error)
}

// TokenConsumer performs the single-statement updates that consume a
// single-use token together with the action it authorizes.
type TokenConsumer interface {
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*Account, error)
	ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*Account, error)
	ConsumeDecisionToken(ctx context.Context, tokenHash string, access BetaAccess, now time.Time) (*Account, error)
}

type Accounts interface {
	repository.Repository[*Account]
	AccountTokenFinder
	AccountTracker
	AccountResolver
	AccountMutator
	TokenConsumer

	Register(ctx context.Context, account *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error)
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

func (a *accounts) Register(ctx context.Context, account *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, account)
}

func (a *accounts) RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	return a.CreateTx(ctx, tx, account)
}

func (a *accounts) Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	prepareAccountDefaults(record)

	created, err := a.Repository.CreateTx(ctx, tx, record, criteria...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	return created, nil
}

func (a *accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	record := &Account{}

	err := a.db.NewSelect().Model(record).
		Where("?TableAlias.email = ?", strings.TrimSpace(strings.ToLower(email))).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": email})
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) GetByAccountID(ctx context.Context, id string) (*Account, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id})
	}

	record := &Account{}

	err = a.db.NewSelect().Model(record).
		Where("?TableAlias.id = ?", parsed).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id})
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) GetByTokenHash(ctx context.Context, kind TokenKind, hash string, now time.Time) (*Account, error) {
	hashColumn, expiryColumn, err := tokenColumns(kind)
	if err != nil {
		return nil, err
	}

	record := &Account{}

	err = a.db.NewSelect().Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", hashColumn), hash).
		Where(fmt.Sprintf("?TableAlias.%s > ?", expiryColumn), now).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"kind": string(kind)})
		}
		return nil, err
	}

	return record, nil
}

// SaveTokenSlot persists the slot columns for one kind, leaving the other
// slots untouched.
func (a *accounts) SaveTokenSlot(ctx context.Context, account *Account, kind TokenKind) (*Account, error) {
	hashColumn, expiryColumn, err := tokenColumns(kind)
	if err != nil {
		return nil, err
	}

	slot := account.TokenSlot(kind)

	_, err = a.db.NewUpdate().Model(account).
		Set(fmt.Sprintf("%s = ?", hashColumn), nullableString(slot.Hash)).
		Set(fmt.Sprintf("%s = ?", expiryColumn), slot.Expiry).
		WherePK().
		Exec(ctx)

	if err != nil {
		return nil, err
	}

	return account, nil
}

func (a *accounts) SaveBetaAccess(ctx context.Context, account *Account) (*Account, error) {
	_, err := a.db.NewUpdate().Model(account).
		Set("beta_state = ?", account.BetaState).
		Set("beta_denied_until = ?", account.BetaDeniedUntil).
		WherePK().
		Exec(ctx)

	if err != nil {
		return nil, err
	}

	return account, nil
}

func (a *accounts) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*Account, error) {
	return a.consume(ctx, ConsumeResetTokenSQL, passwordHash, tokenHash, now)
}

func (a *accounts) ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*Account, error) {
	return a.consume(ctx, ConsumeVerificationTokenSQL, tokenHash, now)
}

func (a *accounts) ConsumeDecisionToken(ctx context.Context, tokenHash string, access BetaAccess, now time.Time) (*Account, error) {
	var deniedUntil *time.Time
	if access.State() == BetaStateDenied {
		until := access.DeniedUntil()
		deniedUntil = &until
	}

	return a.consume(ctx, ConsumeDecisionTokenSQL, access.State(), deniedUntil, tokenHash, now)
}

func (a *accounts) consume(ctx context.Context, query string, args ...any) (*Account, error) {
	res, err := a.Repository.RawTx(ctx, a.db, query, args...)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound()
	}

	return res[0], nil
}

func (a *accounts) TrackSucccessfulLogin(ctx context.Context, account *Account) error {
	// NOTE: Updating using the ORM fails due to a bug, it wont reset
	// login_attempt_at, login_attempts fields.
	loggedInAt := time.Now()
	_, err := a.db.NewRaw(`
		UPDATE "accounts" AS "acc"
		SET
			"loggedin_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE
			("acc".id = ?)
			AND "acc"."deleted_at" IS NULL;
	`, loggedInAt, account.ID).Exec(ctx)

	return err
}

func (a *accounts) TrackAttemptedLogin(ctx context.Context, account *Account) error {
	criteria := []repository.UpdateCriteria{
		repository.UpdateByID(account.ID.String()),
	}

	record := &Account{}
	record.ID = account.ID
	record.LoginAttempts = account.LoginAttempts + 1
	now := time.Now()
	record.LoginAttemptAt = &now

	_, err := a.Repository.UpdateTx(ctx, a.db, record, criteria...)

	return err
}

func tokenColumns(kind TokenKind) (hashColumn, expiryColumn string, err error) {
	switch kind {
	case TokenKindEmailVerification:
		return "verify_email_token_hash", "verify_email_token_expiry", nil
	case TokenKindPasswordReset:
		return "reset_token_hash", "reset_token_expiry", nil
	case TokenKindBetaDecision:
		return "decision_token_hash", "decision_token_expiry", nil
	}
	return "", "", fmt.Errorf("unknown token kind: %s", kind)
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	record.Email = strings.TrimSpace(strings.ToLower(record.Email))

	if record.BetaState == "" {
		record.BetaState = BetaStateUnset
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
