package auth_test

import (
	"encoding/json"
	"testing"
	"time"

	auth "github.com/driftnote/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrincipalAuthenticated(t *testing.T) {
	assert.False(t, auth.Anonymous().Authenticated())
	assert.True(t, auth.Principal{AccountID: "acct-1"}.Authenticated())
}

func TestSessionObjectExpired(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	session := &auth.SessionObject{ExpiresAt: now.Add(time.Hour)}

	assert.False(t, session.Expired(now))
	assert.True(t, session.Expired(now.Add(time.Hour)))
	assert.True(t, session.Expired(now.Add(2*time.Hour)))
}

func TestSessionObjectPrincipal(t *testing.T) {
	session := &auth.SessionObject{
		ID:        "sess-1",
		AccountID: "acct-1",
		Email:     "ada@example.com",
	}

	principal := session.Principal()
	assert.Equal(t, "acct-1", principal.AccountID)
	assert.Equal(t, "ada@example.com", principal.Email)
	assert.Equal(t, auth.ViaSession, principal.Via)
	assert.Equal(t, "sess-1", principal.SessionID)
}

func TestPrincipalJSONHidesSessionID(t *testing.T) {
	principal := auth.Principal{
		AccountID: "acct-1",
		Email:     "ada@example.com",
		Via:       auth.ViaSession,
		SessionID: "sess-1",
	}

	payload, err := json.Marshal(principal)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "sess-1")
}
