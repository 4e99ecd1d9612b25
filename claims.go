package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// BearerClaims is the JWT payload of the long-lived remember token handed
// out at login. It carries just enough to rebuild a Principal; everything
// else lives on the account record.
type BearerClaims struct {
	jwt.RegisteredClaims
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
}

func (c *BearerClaims) AccountID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims == nil {
		return
	}
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
