package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Identity provider and federated sign-in configuration
//   - redis.go: Redis connection configuration
//   - http.go: HTTP server configuration
//   - services.go: Service mode and status engine configuration
type AppConfig struct {
	// IsDev controls development mode behavior (text logs, verbose levels).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Authentication configuration
	Auth AuthConfig

	// Redis configuration (used when AUTH_MODE=redis)
	Redis RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"http"`

	// Status engine configuration
	Engine EngineConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Auth.Sanitize()
	c.HTTP.Sanitize()
	c.Engine.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// Validate reports every combination of settings that cannot run, joined into one error.
// Call it after Sanitize.
func (c *AppConfig) Validate() error {
	var errs []error

	services, err := c.GetEnabledServices()
	if err != nil {
		errs = append(errs, fmt.Errorf("SERVICES: %w", err))
	}
	if services[ServiceModeHTTP] && strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required when the http service is enabled"))
	}

	switch c.Auth.Mode {
	case AuthModeMock, "":
		if _, accErr := c.Auth.DevAuth.ParseDevAccounts(); accErr != nil {
			errs = append(errs, fmt.Errorf("DEV_AUTH_ACCOUNTS: %w", accErr))
		}
		if c.Auth.OAuth.Enabled() {
			errs = append(errs, errors.New("OAUTH_DISCOVERY_URL requires AUTH_MODE=redis"))
		}
	case AuthModeRedis:
		if c.Redis.UseCluster && len(c.Redis.ClusterNodes) == 0 {
			errs = append(errs, errors.New("REDIS_CLUSTER_NODES is required when REDIS_USE_CLUSTER=true"))
		}
	}

	n := c.Observability.Notifications
	if n.Enabled && n.Slack.Enabled && n.Slack.WebhookURL == "" {
		errs = append(errs, errors.New("OBSERVABILITY_NOTIFICATIONS_SLACK_WEBHOOK_URL is required when slack is enabled"))
	}
	if n.Enabled && n.PagerDuty.Enabled && n.PagerDuty.RoutingKey == "" {
		errs = append(errs, errors.New("OBSERVABILITY_NOTIFICATIONS_PAGERDUTY_ROUTING_KEY is required when pagerduty is enabled"))
	}

	return errors.Join(errs...)
}
