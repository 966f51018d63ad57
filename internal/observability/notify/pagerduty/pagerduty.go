// Package pagerduty raises and resolves PagerDuty incidents for identity provider outages.
package pagerduty

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/motorcyclejs/authstream/internal/observability/notify"
)

// APIEndpoint is the PagerDuty Events API v2 ingest URL.
const APIEndpoint = "https://events.pagerduty.com/v2/enqueue"

const (
	defaultSource    = "authstream"
	defaultComponent = "identity-provider"

	actionTrigger = "trigger"
	actionResolve = "resolve"
)

// Config captures runtime configuration for the PagerDuty sink.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// Endpoint overrides APIEndpoint.
	Endpoint string
}

// Client pages on critical auth failures, one incident per failure code, and resolves every
// open incident on the next successful sign-in. Other events are dropped.
type Client struct {
	routingKey string
	source     string
	component  string
	endpoint   string
	poster     *notify.Poster

	mu   sync.Mutex
	open map[string]struct{}
}

var _ notify.Sink = (*Client)(nil)

// NewClient constructs a PagerDuty events client from config. Callers must provide a routing key.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty routing key is required")
	}

	return &Client{
		routingKey: key,
		source:     notify.Fallback(strings.TrimSpace(cfg.Source), defaultSource),
		component:  notify.Fallback(strings.TrimSpace(cfg.Component), defaultComponent),
		endpoint:   notify.Fallback(strings.TrimSpace(cfg.Endpoint), APIEndpoint),
		poster: notify.NewPoster(notify.PosterConfig{
			Name:       "pagerduty api",
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
			Client:     cfg.Client,
		}),
		open: make(map[string]struct{}),
	}, nil
}

// SendAuthEvent triggers on critical failures and resolves open incidents on sign-in.
func (c *Client) SendAuthEvent(ctx context.Context, event notify.AuthEvent) error {
	switch {
	case event.Kind == notify.EventFailed && strings.EqualFold(event.Severity, notify.SeverityCritical):
		return c.trigger(ctx, event)
	case event.Kind == notify.EventSignedIn:
		return c.resolveOpen(ctx)
	default:
		return nil
	}
}

// Open lists the dedup keys of incidents this client has triggered and not yet resolved.
func (c *Client) Open() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.open))
	for k := range c.open {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Client) trigger(ctx context.Context, event notify.AuthEvent) error {
	ev := c.buildTrigger(event)
	if err := c.poster.PostJSON(ctx, c.endpoint, ev); err != nil {
		return err
	}
	c.mu.Lock()
	c.open[ev.DedupKey] = struct{}{}
	c.mu.Unlock()
	return nil
}

func (c *Client) resolveOpen(ctx context.Context) error {
	var errs []error
	for _, key := range c.Open() {
		ev := eventRequest{RoutingKey: c.routingKey, EventAction: actionResolve, DedupKey: key}
		if err := c.poster.PostJSON(ctx, c.endpoint, ev); err != nil {
			errs = append(errs, fmt.Errorf("resolve %s: %w", key, err))
			continue
		}
		c.mu.Lock()
		delete(c.open, key)
		c.mu.Unlock()
	}
	return errors.Join(errs...)
}

type eventRequest struct {
	RoutingKey  string        `json:"routing_key"`
	EventAction string        `json:"event_action"`
	DedupKey    string        `json:"dedup_key"`
	Payload     *eventPayload `json:"payload,omitempty"`
}

type eventPayload struct {
	Summary       string         `json:"summary"`
	Severity      string         `json:"severity"`
	Source        string         `json:"source"`
	Component     string         `json:"component"`
	Timestamp     string         `json:"timestamp"`
	CustomDetails map[string]any `json:"custom_details"`
}

func (c *Client) buildTrigger(event notify.AuthEvent) eventRequest {
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	custom := map[string]any{
		"code":  event.Code,
		"error": event.Error,
	}
	if event.UID != "" {
		custom["uid"] = event.UID
	}
	for k, v := range event.Metadata {
		if _, exists := custom[k]; !exists {
			custom[k] = v
		}
	}

	return eventRequest{
		RoutingKey:  c.routingKey,
		EventAction: actionTrigger,
		DedupKey:    c.dedupKey(event.Code),
		Payload: &eventPayload{
			Summary:       "Identity provider failing: " + notify.Fallback(event.Code, "unknown"),
			Severity:      notify.SeverityCritical,
			Source:        c.source,
			Component:     c.component,
			Timestamp:     occurredAt.UTC().Format(time.RFC3339),
			CustomDetails: custom,
		},
	}
}

func (c *Client) dedupKey(code string) string {
	return strings.Trim(c.source+":"+code, ":")
}
