package auth

import (
	"time"
)

// AuthVia records which mechanism authenticated a request.
type AuthVia string

const (
	ViaSession AuthVia = "session"
	ViaBearer  AuthVia = "bearer"
)

// Principal is the resolved caller of a request: either Anonymous or an
// authenticated account plus the mechanism that proved it.
type Principal struct {
	AccountID string  `json:"account_id,omitempty"`
	Email     string  `json:"email,omitempty"`
	Via       AuthVia `json:"via,omitempty"`
	SessionID string  `json:"-"`
}

// Anonymous is the zero principal.
func Anonymous() Principal {
	return Principal{}
}

func (p Principal) Authenticated() bool {
	return p.AccountID != ""
}

// SessionObject is the server-side session record. The ID is an opaque
// random handle, never derived from account data.
type SessionObject struct {
	ID        string         `json:"id"`
	AccountID string         `json:"account_id"`
	Email     string         `json:"email"`
	IssuedAt  time.Time      `json:"issued_at"`
	ExpiresAt time.Time      `json:"expires_at"`
	Data      map[string]any `json:"data,omitempty"`
}

func (s *SessionObject) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Principal converts a live session into the request principal.
func (s *SessionObject) Principal() Principal {
	return Principal{
		AccountID: s.AccountID,
		Email:     s.Email,
		Via:       ViaSession,
		SessionID: s.ID,
	}
}
