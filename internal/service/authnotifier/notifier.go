package authnotifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	domainauth "github.com/motorcyclejs/authstream/internal/domain/auth"
	"github.com/motorcyclejs/authstream/internal/observability/notify"
)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
	// SessionChanges makes this sink receive sign-ins and sign-outs even when the service
	// forwards failures only.
	SessionChanges bool
}

// Options configures the auth notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
	// IncludeSessionChanges also forwards sign-ins and sign-outs. Failures are always forwarded.
	IncludeSessionChanges bool
	Now                   func() time.Time
}

// Service turns auth status transitions into events and dispatches them to all registered sinks.
type Service struct {
	logger         *slog.Logger
	sinks          []SinkRegistration
	sessionChanges bool
	now            func() time.Time
}

// StatusSource is the part of the status stream the notifier consumes.
type StatusSource interface {
	Subscribe() (<-chan domainauth.Status, func())
}

// NewService constructs an auth notifier.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "auth_notifier")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "sink"
		}
		entry.Name = name
		sinks = append(sinks, entry)
	}

	return &Service{
		logger:         logger,
		sinks:          sinks,
		sessionChanges: opts.IncludeSessionChanges,
		now:            now,
	}
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return len(s.sinks) > 0
}

// Run subscribes to source and notifies on every transition until ctx ends or the stream closes.
func (s *Service) Run(ctx context.Context, source StatusSource) {
	statuses, cancel := source.Subscribe()
	defer cancel()

	var prev domainauth.Status
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-statuses:
			if !ok {
				return
			}
			if ev, changed := notify.Transition(prev, st, s.now()); changed {
				s.Notify(ctx, ev)
			}
			// A failure leaves the session untouched, so the next transition is judged against
			// the last known identity.
			if !st.Failed() {
				prev = st
			}
		}
	}
}

// Notify fans the event out to all sinks and waits for every delivery.
func (s *Service) Notify(ctx context.Context, event notify.AuthEvent) {
	if len(s.sinks) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		if !s.wants(entry, event) {
			s.logger.DebugContext(ctx, "skipping session change notification", "sink", entry.Name, "kind", event.Kind)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendAuthEvent(ctx, event); err != nil {
				s.logger.Error("auth notifier delivery error",
					"sink", entry.Name,
					"kind", event.Kind,
					"code", event.Code,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

func (s *Service) wants(entry SinkRegistration, event notify.AuthEvent) bool {
	return event.Kind == notify.EventFailed || s.sessionChanges || entry.SessionChanges
}
