package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultPostTimeout = 5 * time.Second
	retryStep          = 200 * time.Millisecond
	maxErrorBody       = 4 << 10
)

// PosterConfig configures a Poster.
type PosterConfig struct {
	// Name prefixes errors, e.g. "slack webhook".
	Name       string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Poster sends JSON payloads to an HTTP endpoint, retrying with linear backoff.
type Poster struct {
	name       string
	retryLimit int
	client     *http.Client
}

// NewPoster builds a Poster. A nil Client gets one with Timeout (default 5s).
func NewPoster(cfg PosterConfig) *Poster {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultPostTimeout
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = "webhook"
	}
	return &Poster{name: name, retryLimit: max(cfg.RetryLimit, 0), client: hc}
}

// PostJSON encodes payload once and posts it to url until it succeeds, attempts run out or ctx ends.
func (p *Poster) PostJSON(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", p.name, err)
	}

	var lastErr error
	for attempt := 0; attempt <= p.retryLimit; attempt++ {
		if attempt > 0 {
			if waitErr := sleepCtx(ctx, time.Duration(attempt)*retryStep); waitErr != nil {
				return waitErr
			}
		}
		if lastErr = p.post(ctx, url, body); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (p *Poster) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", p.name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", p.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
			return fmt.Errorf("drain %s response: %w", p.name, drainErr)
		}
		return nil
	}

	msg, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if readErr != nil {
		return errors.Join(
			fmt.Errorf("%s %s", p.name, resp.Status),
			fmt.Errorf("read error response: %w", readErr),
		)
	}
	return fmt.Errorf("%s %s: %s", p.name, resp.Status, strings.TrimSpace(string(msg)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Fallback returns value, or fallback when value is blank.
func Fallback(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
