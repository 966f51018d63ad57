// Package reaper periodically expires federated sign-ins whose callback never arrived.
package reaper

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"github.com/motorcyclejs/authstream/internal/observability/metrics"
	"github.com/motorcyclejs/authstream/internal/observability/statsd"
)

const defaultInterval = time.Minute

// Sweeper drops expired pending sign-ins. *oidc.Flow implements it.
type Sweeper interface {
	Sweep() int
	Pending() int
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Sweeper Sweeper
	// Interval between sweeps. Defaults to one minute.
	Interval time.Duration
	Logger   *slog.Logger
	Metrics  statsd.Sink
}

// Runner sweeps on a fixed interval so a popup waiting on a lost callback is released even
// when no other sign-in starts.
type Runner struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *slog.Logger
	metrics  statsd.Sink
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Sweeper == nil {
		return nil, errors.New("sweeper is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Runner{
		sweeper:  opts.Sweeper,
		interval: opts.Interval,
		logger:   opts.Logger.With("component", "federated_reaper"),
		metrics:  opts.Metrics,
	}, nil
}

// Run sweeps until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting federated sign-in reaper", "interval", r.interval)

	// Add jitter to prevent thundering herd if multiple instances start together
	r.waitWithJitter(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "federated sign-in reaper stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			r.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single pass and returns how many sign-ins expired.
func (r *Runner) SweepOnce(ctx context.Context) int {
	expired := r.sweeper.Sweep()
	pending := r.sweeper.Pending()
	if expired > 0 {
		r.logger.InfoContext(ctx, "expired pending federated sign-ins", "expired", expired, "pending", pending)
	}
	metrics.EmitFederatedSweep(r.metrics, expired, pending)
	return expired
}

// waitWithJitter adds a random delay up to 10% of the interval.
func (r *Runner) waitWithJitter(ctx context.Context) {
	maxJitter := int64(r.interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		r.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	timer := time.NewTimer(jitter)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
