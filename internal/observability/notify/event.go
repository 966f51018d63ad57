package notify

import (
	"context"
	"time"

	domainauth "github.com/motorcyclejs/authstream/internal/domain/auth"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// EventKind names the status transition an AuthEvent reports.
type EventKind string

const (
	EventSignedIn  EventKind = "signed_in"
	EventSignedOut EventKind = "signed_out"
	EventFailed    EventKind = "failed"
)

// AuthEvent is the canonical payload emitted for an auth status transition.
type AuthEvent struct {
	Kind        EventKind
	UID         string
	Email       string
	ProviderID  string
	IsAnonymous bool
	Code        string
	Error       string
	Severity    string
	OccurredAt  time.Time
	Metadata    map[string]string
}

// Sink describes a destination capable of consuming auth events.
type Sink interface {
	SendAuthEvent(ctx context.Context, event AuthEvent) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, event AuthEvent) error

// SendAuthEvent implements the Sink interface.
func (f SinkFunc) SendAuthEvent(ctx context.Context, event AuthEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// Transition derives the event for moving from prev to next. It reports false when nothing
// observable changed: the same user again, or signed out while already signed out.
func Transition(prev, next domainauth.Status, now time.Time) (AuthEvent, bool) {
	ev := AuthEvent{OccurredAt: now}

	switch {
	case next.Failed():
		ev.Kind = EventFailed
		ev.Code = next.Error.Code
		ev.Error = next.Error.Message
		ev.Severity = failureSeverity(next.Error.Code)
		return ev, true
	case next.SignedIn():
		if prev.SignedIn() && prev.Identity.UID == next.Identity.UID {
			return AuthEvent{}, false
		}
		ev.Kind = EventSignedIn
		ev.UID = next.Identity.UID
		ev.Email = next.Identity.Email
		ev.ProviderID = next.Identity.ProviderID
		ev.IsAnonymous = next.Identity.IsAnonymous
		ev.Severity = SeverityInfo
		return ev, true
	case prev.SignedIn():
		ev.Kind = EventSignedOut
		ev.UID = prev.Identity.UID
		ev.Email = prev.Identity.Email
		ev.Severity = SeverityInfo
		return ev, true
	default:
		return AuthEvent{}, false
	}
}

// Provider outages page someone; user mistakes such as a wrong password do not.
func failureSeverity(code string) string {
	switch code {
	case domainauth.CodeNetworkRequestFailed, domainauth.CodeInternal:
		return SeverityCritical
	default:
		return SeverityWarning
	}
}
