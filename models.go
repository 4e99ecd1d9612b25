package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is the account model
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	FirstName     string    `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName      string    `bun:"last_name,notnull" json:"last_name,omitempty"`
	Email         string    `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string    `bun:"password_hash" json:"-"`
	EmailVerified bool      `bun:"is_email_verified" json:"is_email_verified,omitempty"`

	BetaState       BetaState  `bun:"beta_state,notnull,default:'unset'" json:"beta_state,omitempty"`
	BetaDeniedUntil *time.Time `bun:"beta_denied_until,nullzero" json:"beta_denied_until,omitempty"`

	// One single-use token slot per kind. Only the SHA-256 hash of the
	// plaintext is stored; issuing a new token of a kind overwrites the
	// previous one, consuming a token clears the pair.
	VerifyEmailTokenHash   string     `bun:"verify_email_token_hash,nullzero" json:"-"`
	VerifyEmailTokenExpiry *time.Time `bun:"verify_email_token_expiry,nullzero" json:"-"`
	ResetTokenHash         string     `bun:"reset_token_hash,nullzero" json:"-"`
	ResetTokenExpiry       *time.Time `bun:"reset_token_expiry,nullzero" json:"-"`
	DecisionTokenHash      string     `bun:"decision_token_hash,nullzero" json:"-"`
	DecisionTokenExpiry    *time.Time `bun:"decision_token_expiry,nullzero" json:"-"`

	LoginAttempts  int            `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time     `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time     `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	Metadata       map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// FullName joins first and last name for display and email salutations.
func (a *Account) FullName() string {
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	default:
		return a.FirstName + " " + a.LastName
	}
}

// BetaAccess materializes the persisted flag pair into the tri-state view.
func (a *Account) BetaAccess() BetaAccess {
	switch a.BetaState {
	case BetaStateApproved:
		return BetaAccessApproved()
	case BetaStateDenied:
		until := time.Time{}
		if a.BetaDeniedUntil != nil {
			until = *a.BetaDeniedUntil
		}
		return BetaAccessDenied(until)
	default:
		return BetaAccessUnset()
	}
}

// SetBetaAccess writes the tri-state view back to the persisted pair.
func (a *Account) SetBetaAccess(b BetaAccess) {
	a.BetaState = b.State()
	if b.State() == BetaStateDenied {
		until := b.DeniedUntil()
		a.BetaDeniedUntil = &until
	} else {
		a.BetaDeniedUntil = nil
	}
}

// ReviewState derives the account's position in the beta program at now.
func (a *Account) ReviewState(now time.Time) ReviewState {
	access := a.BetaAccess()
	switch access.State() {
	case BetaStateApproved:
		return ReviewStateApproved
	case BetaStateDenied:
		if access.Reapplicable(now) {
			return ReviewStateReapplicable
		}
		return ReviewStateDenied
	default:
		if a.EmailVerified {
			return ReviewStatePending
		}
		return ReviewStateUnverified
	}
}

// TokenSlot is the stored half of a single-use token: lookup hash + expiry.
type TokenSlot struct {
	Hash   string
	Expiry *time.Time
}

func (s TokenSlot) Empty() bool {
	return s.Hash == ""
}

// TokenSlot returns the stored slot for a kind.
func (a *Account) TokenSlot(kind TokenKind) TokenSlot {
	switch kind {
	case TokenKindEmailVerification:
		return TokenSlot{Hash: a.VerifyEmailTokenHash, Expiry: a.VerifyEmailTokenExpiry}
	case TokenKindPasswordReset:
		return TokenSlot{Hash: a.ResetTokenHash, Expiry: a.ResetTokenExpiry}
	case TokenKindBetaDecision:
		return TokenSlot{Hash: a.DecisionTokenHash, Expiry: a.DecisionTokenExpiry}
	}
	return TokenSlot{}
}

// SetTokenSlot overwrites the slot for a kind, invalidating any prior token.
func (a *Account) SetTokenSlot(kind TokenKind, hash string, expiry time.Time) {
	switch kind {
	case TokenKindEmailVerification:
		a.VerifyEmailTokenHash = hash
		a.VerifyEmailTokenExpiry = &expiry
	case TokenKindPasswordReset:
		a.ResetTokenHash = hash
		a.ResetTokenExpiry = &expiry
	case TokenKindBetaDecision:
		a.DecisionTokenHash = hash
		a.DecisionTokenExpiry = &expiry
	}
}

// ClearTokenSlot consumes the slot for a kind.
func (a *Account) ClearTokenSlot(kind TokenKind) {
	switch kind {
	case TokenKindEmailVerification:
		a.VerifyEmailTokenHash = ""
		a.VerifyEmailTokenExpiry = nil
	case TokenKindPasswordReset:
		a.ResetTokenHash = ""
		a.ResetTokenExpiry = nil
	case TokenKindBetaDecision:
		a.DecisionTokenHash = ""
		a.DecisionTokenExpiry = nil
	}
}

// AddMetadata will append information to a metadata attribute
func (a *Account) AddMetadata(key string, val any) *Account {
	if a.Metadata == nil {
		a.Metadata = make(map[string]any)
	}
	a.Metadata[key] = val
	return a
}

// Journal is the journal model. Every account gets a default journal the
// first time it authenticates.
type Journal struct {
	bun.BaseModel `bun:"table:journals,alias:jrn"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	OwnerID       uuid.UUID      `bun:"owner_id,notnull,type:uuid" json:"owner_id,omitempty"`
	Owner         *Account       `bun:"rel:belongs-to,join:owner_id=id" json:"owner,omitempty"`
	Title         string         `bun:"title,notnull" json:"title,omitempty"`
	Config        *JournalConfig `bun:"rel:has-one,join:id=journal_id" json:"config,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// JournalConfig holds per-journal settings.
type JournalConfig struct {
	bun.BaseModel `bun:"table:journal_configs,alias:jcf"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	JournalID     uuid.UUID  `bun:"journal_id,notnull,unique,type:uuid" json:"journal_id,omitempty"`
	Timezone      string     `bun:"timezone,notnull,default:'UTC'" json:"timezone,omitempty"`
	ReminderHour  int        `bun:"reminder_hour,notnull,default:20" json:"reminder_hour,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// DefaultJournalTitle names the journal provisioned on first login.
const DefaultJournalTitle = "Journal"
