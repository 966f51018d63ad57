package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server exposing commands and the status stream.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeWatch logs every status the engine emits.
	ServiceModeWatch ServiceMode = "watch"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeWatch,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeWatch:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service name: %q (valid options: http, watch)", serviceName)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// EngineConfig contains status engine configuration.
type EngineConfig struct {
	// CancelSuperseded cancels an in-flight provider call once a newer command arrives.
	CancelSuperseded bool `env:"AUTH_CANCEL_SUPERSEDED" envDefault:"false"`

	// CommandTimeout bounds each provider call. Zero leaves calls unbounded.
	CommandTimeout time.Duration `env:"AUTH_COMMAND_TIMEOUT" envDefault:"0s"`

	// CommandBuffer is the capacity of the command channel fed by the HTTP API.
	CommandBuffer int `env:"AUTH_COMMAND_BUFFER" envDefault:"16"`
}

// Sanitize applies guardrails to engine configuration values.
func (e *EngineConfig) Sanitize() {
	if e.CommandTimeout < 0 {
		e.CommandTimeout = 0
	}
	if e.CommandBuffer < 0 {
		e.CommandBuffer = 0
	}
}
