package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the identity provider backing the status engine.
type AuthMode string

const (
	// AuthModeRedis stores accounts and sessions in Redis.
	AuthModeRedis AuthMode = "redis"
	// AuthModeMock uses the in-memory dev provider (for development and tests only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "redis", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: redis, mock)", v)
	}
}

// OAuthConfig contains OAuth/OIDC configuration for popup and redirect sign-in.
// Federated sign-in is enabled when DiscoveryURL is set.
type OAuthConfig struct {
	ProviderID   string `env:"PROVIDER_ID"   envDefault:"oidc"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	// PendingTTL bounds how long a started sign-in waits for its callback.
	PendingTTL time.Duration `env:"PENDING_TTL" envDefault:"10m"`
	// SweepInterval is how often sign-ins past PendingTTL are expired.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
}

// Enabled reports whether federated sign-in is configured.
func (c *OAuthConfig) Enabled() bool {
	return c.DiscoveryURL != ""
}

// DevAuthConfig controls the in-memory dev provider.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	// FailWith makes every provider call fail with this error code.
	FailWith string `env:"FAIL_WITH"`
	// FederatedEmail is the email of identities returned by popup and redirect sign-in.
	FederatedEmail string `env:"FEDERATED_EMAIL" envDefault:"dev@example.com"`
	// Accounts seeds email/password accounts as "email:password" pairs.
	Accounts []string `env:"ACCOUNTS" envSeparator:";"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which identity provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"mock"`

	// ClientID scopes the stored session and change channel (AUTH_MODE=redis).
	// Processes sharing a client ID share one session. Empty means a random ID per process.
	ClientID string `env:"AUTH_CLIENT_ID"`

	// SessionTTL expires stored sessions (AUTH_MODE=redis). Zero keeps them until sign-out.
	SessionTTL time.Duration `env:"AUTH_SESSION_TTL" envDefault:"0s"`

	// KeyPrefix is prepended to Redis keys and channels (AUTH_MODE=redis).
	KeyPrefix string `env:"AUTH_KEY_PREFIX" envDefault:"authstream:"`

	// OAuth configuration for popup and redirect sign-in.
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

// Sanitize normalises auth configuration values.
func (c *AuthConfig) Sanitize() {
	c.ClientID = strings.TrimSpace(c.ClientID)
	if c.SessionTTL < 0 {
		c.SessionTTL = 0
	}
	c.OAuth.DiscoveryURL = strings.TrimSpace(c.OAuth.DiscoveryURL)
	if c.OAuth.ProviderID = strings.TrimSpace(c.OAuth.ProviderID); c.OAuth.ProviderID == "" {
		c.OAuth.ProviderID = "oidc"
	}
	if c.OAuth.PendingTTL <= 0 {
		c.OAuth.PendingTTL = 10 * time.Minute
	}
	if c.OAuth.SweepInterval <= 0 {
		c.OAuth.SweepInterval = time.Minute
	}
}

// DevAccount is a parsed DEV_AUTH_ACCOUNTS entry.
type DevAccount struct {
	Email    string
	Password string
}

// ParseDevAccounts parses "email:password" pairs. The password may itself contain colons.
func (c *DevAuthConfig) ParseDevAccounts() ([]DevAccount, error) {
	accounts := make([]DevAccount, 0, len(c.Accounts))
	for _, raw := range c.Accounts {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		email, password, ok := strings.Cut(entry, ":")
		if !ok || strings.TrimSpace(email) == "" || password == "" {
			return nil, fmt.Errorf("invalid dev account %q (expected email:password)", entry)
		}
		accounts = append(accounts, DevAccount{Email: strings.TrimSpace(email), Password: password})
	}
	return accounts, nil
}
