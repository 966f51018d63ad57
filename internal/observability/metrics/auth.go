package metrics

import (
	"time"

	obserrors "github.com/motorcyclejs/authstream/internal/observability/errors"
	"github.com/motorcyclejs/authstream/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// CommandMetric captures the outcome of one dispatched auth command.
type CommandMetric struct {
	Method   string
	Result   string
	Code     string
	Duration time.Duration
	Err      error
}

// EmitCommand emits standardised command outcome metrics.
func EmitCommand(sink statsd.Sink, in CommandMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"method": methodTag(in.Method),
		"result": in.Result,
	}

	if in.Result == ResultError {
		if in.Code != "" {
			tags["code"] = in.Code
		}
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("auth.command", 1, tags)

	if in.Duration > 0 {
		sink.Timing("auth.command.duration", in.Duration, CloneTags(tags))
	}
}

// EmitSuperseded counts a command result that was discarded because a newer command arrived.
func EmitSuperseded(sink statsd.Sink, method string) {
	if sink == nil {
		return
	}
	sink.Count("auth.command.superseded", 1, map[string]string{"method": methodTag(method)})
}

// EmitSessionChange counts a session-change notification from the provider.
func EmitSessionChange(sink statsd.Sink, signedIn bool) {
	if sink == nil {
		return
	}
	state := "signed_out"
	if signedIn {
		state = "signed_in"
	}
	sink.Count("auth.session_change", 1, map[string]string{"state": state})
}

// EmitSubscribers reports the number of attached status subscribers.
func EmitSubscribers(sink statsd.Sink, n int) {
	if sink == nil {
		return
	}
	sink.Gauge("auth.subscribers", float64(n), nil)
}

// EmitFederatedSweep reports a reaper pass over pending federated sign-ins.
func EmitFederatedSweep(sink statsd.Sink, expired, pending int) {
	if sink == nil {
		return
	}
	if expired > 0 {
		sink.Count("auth.federated.expired", int64(expired), nil)
	}
	sink.Gauge("auth.federated.pending", float64(pending), nil)
}

func methodTag(method string) string {
	if method == "" {
		return "unknown"
	}
	return method
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
