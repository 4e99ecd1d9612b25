package auth

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SimpleConfig is a plain struct implementation of Config.
type SimpleConfig struct {
	SigningKey        string
	Issuer            string
	Audience          []string
	AuthScheme        string
	SessionCookieName string
	SessionTTL        time.Duration
	BearerTTL         time.Duration
	ReleaseMode       string
	BaseURL           string
	ReviewerAddress   string
}

var _ Config = (*SimpleConfig)(nil)

func (c *SimpleConfig) GetSigningKey() string        { return c.SigningKey }
func (c *SimpleConfig) GetIssuer() string            { return c.Issuer }
func (c *SimpleConfig) GetAudience() []string        { return c.Audience }
func (c *SimpleConfig) GetAuthScheme() string        { return c.AuthScheme }
func (c *SimpleConfig) GetSessionCookieName() string { return c.SessionCookieName }
func (c *SimpleConfig) GetSessionTTL() time.Duration { return c.SessionTTL }
func (c *SimpleConfig) GetBearerTTL() time.Duration  { return c.BearerTTL }
func (c *SimpleConfig) GetReleaseMode() string       { return c.ReleaseMode }
func (c *SimpleConfig) GetBaseURL() string           { return c.BaseURL }
func (c *SimpleConfig) GetReviewerAddress() string   { return c.ReviewerAddress }

// NewConfigFromEnv builds a SimpleConfig from the environment, loading a
// .env file first when one exists.
func NewConfigFromEnv() *SimpleConfig {
	// missing .env is fine, the environment may be set by the platform
	_ = godotenv.Load()

	return &SimpleConfig{
		SigningKey:        getEnv("AUTH_SIGNING_KEY", ""),
		Issuer:            getEnv("AUTH_ISSUER", "driftnote"),
		Audience:          splitEnv("AUTH_AUDIENCE", "driftnote"),
		AuthScheme:        getEnv("AUTH_SCHEME", "Bearer"),
		SessionCookieName: getEnv("AUTH_SESSION_COOKIE", "driftnote_session"),
		SessionTTL:        getEnvDuration("AUTH_SESSION_TTL", DefaultSessionTTL),
		BearerTTL:         getEnvDuration("AUTH_BEARER_TTL", DefaultBearerTTL),
		ReleaseMode:       getEnv("AUTH_RELEASE_MODE", string(GateModeBeta)),
		BaseURL:           getEnv("AUTH_BASE_URL", "http://localhost:3000"),
		ReviewerAddress:   getEnv("AUTH_REVIEWER_ADDRESS", ""),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitEnv(key, def string) []string {
	raw := getEnv(key, def)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}

	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}

	// plain number of hours
	if hours, err := strconv.Atoi(raw); err == nil && hours > 0 {
		return time.Duration(hours) * time.Hour
	}

	return def
}
