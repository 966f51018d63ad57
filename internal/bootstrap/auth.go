package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/motorcyclejs/authstream/config"
	"github.com/motorcyclejs/authstream/internal/adapters/devauth"
	"github.com/motorcyclejs/authstream/internal/adapters/oidc"
	redisadapter "github.com/motorcyclejs/authstream/internal/adapters/redis"
	"github.com/motorcyclejs/authstream/internal/ports"
	"github.com/redis/go-redis/v9"
)

// ErrRedisRequired is returned when AUTH_MODE=redis but no Redis client is available.
var ErrRedisRequired = errors.New("auth mode redis requires a redis client")

// AuthConfig contains configuration for the identity provider.
type AuthConfig struct {
	Auth        config.AuthConfig
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// AuthResult holds the identity provider and, when federated sign-in is configured,
// the flow that completes it from the HTTP callback.
type AuthResult struct {
	Provider ports.IdentityProvider
	Flow     *oidc.Flow
}

// BuildProvider creates the identity provider for the configured auth mode.
func BuildProvider(cfg AuthConfig) (AuthResult, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Auth.Mode {
	case config.AuthModeMock, "":
		prov, err := buildDevProvider(cfg.Auth.DevAuth)
		if err != nil {
			return AuthResult{}, err
		}
		logger.Warn("using in-memory dev identity provider; do not use in production")
		return AuthResult{Provider: prov}, nil

	case config.AuthModeRedis:
		return buildRedisProvider(cfg, logger)

	default:
		return AuthResult{}, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

func buildDevProvider(cfg config.DevAuthConfig) (*devauth.Provider, error) {
	parsed, err := cfg.ParseDevAccounts()
	if err != nil {
		return nil, fmt.Errorf("dev auth accounts: %w", err)
	}

	accounts := make([]devauth.Account, 0, len(parsed))
	for _, a := range parsed {
		accounts = append(accounts, devauth.Account{Email: a.Email, Password: a.Password})
	}

	prov, err := devauth.NewProvider(devauth.Config{
		FailWith:       cfg.FailWith,
		FederatedEmail: cfg.FederatedEmail,
		Accounts:       accounts,
	})
	if err != nil {
		return nil, fmt.Errorf("create dev auth provider: %w", err)
	}
	return prov, nil
}

func buildRedisProvider(cfg AuthConfig, logger *slog.Logger) (AuthResult, error) {
	if cfg.RedisClient == nil {
		return AuthResult{}, ErrRedisRequired
	}

	flow, err := buildFlow(cfg.Auth, logger)
	if err != nil {
		return AuthResult{}, err
	}

	opts := redisadapter.Options{
		Client:     cfg.RedisClient,
		ClientID:   cfg.Auth.ClientID,
		Prefix:     cfg.Auth.KeyPrefix,
		SessionTTL: cfg.Auth.SessionTTL,
		Logger:     logger,
	}
	// Leave Federated unset rather than a typed nil when sign-in is not configured.
	if flow != nil {
		opts.Federated = flow
	}

	prov, err := redisadapter.NewProvider(opts)
	if err != nil {
		return AuthResult{}, fmt.Errorf("create redis identity provider: %w", err)
	}

	logger.Info("redis identity provider ready",
		"client_id", prov.ClientID(),
		"federated_sign_in", flow != nil,
	)
	return AuthResult{Provider: prov, Flow: flow}, nil
}

// buildFlow returns nil when no OIDC discovery URL is configured.
func buildFlow(cfg config.AuthConfig, logger *slog.Logger) (*oidc.Flow, error) {
	oauth := cfg.OAuth
	if !oauth.Enabled() {
		return nil, nil
	}
	if oauth.ClientID == "" || oauth.ClientSecret == "" {
		logger.Warn("OIDC discovery URL set but client credentials missing; federated sign-in disabled",
			"client_id_empty", oauth.ClientID == "",
			"client_secret_empty", oauth.ClientSecret == "",
		)
		return nil, nil
	}

	prov, err := oidc.NewProvider(oidc.ProviderConfig{
		ID:           oauth.ProviderID,
		ClientID:     oauth.ClientID,
		ClientSecret: oauth.ClientSecret,
		RedirectURL:  oauth.RedirectURL,
		Scope:        oauth.Scope,
		DiscoveryURL: oauth.DiscoveryURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create OIDC provider: %w", err)
	}

	flow, err := oidc.NewFlow(oidc.FlowOptions{
		Authorizers: map[string]oidc.Authorizer{prov.ID(): prov},
		PendingTTL:  oauth.PendingTTL,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create federated sign-in flow: %w", err)
	}
	return flow, nil
}
