package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	domainauth "github.com/motorcyclejs/authstream/internal/domain/auth"
	"github.com/motorcyclejs/authstream/internal/observability/metrics"
	"github.com/motorcyclejs/authstream/internal/observability/statsd"
	"github.com/motorcyclejs/authstream/internal/ports"
)

// ErrProviderRequired is returned by Run when no identity provider is supplied.
var ErrProviderRequired = errors.New("identity provider is required")

// Options configures Run.
type Options struct {
	Logger  *slog.Logger
	Metrics statsd.Sink

	// CancelSuperseded cancels the context of an in-flight command once a newer command arrives.
	// Superseded results are discarded either way.
	CancelSuperseded bool

	// CommandTimeout bounds each provider call. Zero leaves calls unbounded.
	CommandTimeout time.Duration
}

// Stream is the hot auth status stream started by Run.
// Every subscriber first receives the latest Status, then every later Status in order.
type Stream struct {
	subscribe   chan chan *mailbox[domainauth.Status]
	unsubscribe chan *mailbox[domainauth.Status]
	latest      atomic.Pointer[domainauth.Status]
	cancel      context.CancelFunc
	done        chan struct{}
}

// Subscribe attaches a consumer. The returned channel yields the latest Status immediately,
// then each new Status. It is closed when the stream stops or cancel is called.
func (s *Stream) Subscribe() (<-chan domainauth.Status, func()) {
	reply := make(chan *mailbox[domainauth.Status], 1)

	select {
	case s.subscribe <- reply:
	case <-s.done:
		ch := make(chan domainauth.Status, 1)
		ch <- s.Latest()
		close(ch)
		return ch, func() {}
	}

	box := <-reply
	var released atomic.Bool
	cancel := func() {
		if !released.CompareAndSwap(false, true) {
			return
		}
		select {
		case s.unsubscribe <- box:
		case <-s.done:
		}
	}
	return box.C(), cancel
}

// Latest returns the most recently emitted Status, or the seed Status if nothing was emitted yet.
func (s *Stream) Latest() domainauth.Status {
	return *s.latest.Load()
}

// Done is closed once the stream has stopped and every subscriber channel is closed.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Close stops the stream, releases the session listener and waits for shutdown.
func (s *Stream) Close() {
	s.cancel()
	<-s.done
}

type commandResult struct {
	generation uint64
	method     domainauth.Method
	noop       bool
	status     domainauth.Status
	err        error
	elapsed    time.Duration
}

// event is one entry of the loop's queue: a command result, or a session change when
// result is nil. Both kinds share the queue so they are handled in the order they occurred.
type event struct {
	result  *commandResult
	session domainauth.Status
}

type engine struct {
	stream   *Stream
	provider ports.IdentityProvider
	commands <-chan domainauth.Command
	events   *mailbox[event]

	logger           *slog.Logger
	metrics          statsd.Sink
	cancelSuperseded bool
	commandTimeout   time.Duration

	// Owned by the loop goroutine.
	generation     uint64
	cancelInFlight context.CancelFunc
	last           domainauth.Status
	subscribers    map[*mailbox[domainauth.Status]]struct{}
}

// Run starts the status engine and returns its stream. The engine consumes commands
// immediately, whether or not anyone subscribed, and keeps only the newest command's result.
//
// Closing commands stops command intake; session-change notifications keep flowing until
// ctx is done or the stream is closed. A failure to register the session listener is returned.
func Run(
	ctx context.Context,
	commands <-chan domainauth.Command,
	provider ports.IdentityProvider,
	opts Options,
) (*Stream, error) {
	if provider == nil {
		return nil, ErrProviderRequired
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	runCtx, cancel := context.WithCancel(ctx)
	events := newMailbox[event]()
	sessionChanged := func(st domainauth.Status) { events.push(event{session: st}) }
	if err := register(runCtx, provider, sessionChanged, nil); err != nil {
		events.close()
		cancel()
		return nil, err
	}

	s := &Stream{
		subscribe:   make(chan chan *mailbox[domainauth.Status]),
		unsubscribe: make(chan *mailbox[domainauth.Status]),
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	s.latest.Store(&domainauth.Status{})

	e := &engine{
		stream:           s,
		provider:         provider,
		commands:         commands,
		events:           events,
		logger:           logger.With("component", "auth_status"),
		metrics:          opts.Metrics,
		cancelSuperseded: opts.CancelSuperseded,
		commandTimeout:   opts.CommandTimeout,
		subscribers:      make(map[*mailbox[domainauth.Status]]struct{}),
	}

	go e.run(runCtx)
	return s, nil
}

func (e *engine) run(ctx context.Context) {
	defer e.shutdown()

	commands := e.commands
	events := e.events.C()
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-commands:
			if !ok {
				commands = nil
				e.logger.DebugContext(ctx, "command stream closed")
				continue
			}
			e.start(ctx, cmd)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.result != nil {
				e.settle(ctx, *ev.result)
			} else {
				e.sessionChanged(ctx, ev.session)
			}
		case reply := <-e.stream.subscribe:
			reply <- e.attach()
		case box := <-e.stream.unsubscribe:
			e.detach(box)
		}
	}
}

func (e *engine) start(ctx context.Context, cmd domainauth.Command) {
	e.generation++
	gen := e.generation

	if e.cancelSuperseded && e.cancelInFlight != nil {
		e.cancelInFlight()
	}

	cmdCtx, cancel := context.WithCancel(ctx)
	if e.commandTimeout > 0 {
		var cancelTimeout context.CancelFunc
		cmdCtx, cancelTimeout = context.WithTimeout(cmdCtx, e.commandTimeout)
		parent := cancel
		cancel = func() {
			cancelTimeout()
			parent()
		}
	}
	e.cancelInFlight = cancel

	method := methodOf(cmd)
	noop := !dispatches(cmd)
	e.logger.DebugContext(ctx, "dispatching auth command", "method", method, "generation", gen)

	go func() {
		defer cancel()

		started := time.Now()
		identity, err := dispatchSafely(cmdCtx, cmd, e.provider)
		res := commandResult{
			generation: gen,
			method:     method,
			noop:       noop,
			status:     Normalize(identity, err),
			err:        err,
			elapsed:    time.Since(started),
		}
		e.events.push(event{result: &res})
	}()
}

func (e *engine) settle(ctx context.Context, res commandResult) {
	if res.generation != e.generation {
		e.logger.DebugContext(ctx, "discarding superseded command result",
			"method", res.method,
			"generation", res.generation,
			"current_generation", e.generation,
		)
		metrics.EmitSuperseded(e.metrics, string(res.method))
		return
	}

	in := metrics.CommandMetric{
		Method:   string(res.method),
		Result:   metrics.ResultSuccess,
		Duration: res.elapsed,
	}
	switch {
	case res.status.Failed():
		in.Result = metrics.ResultError
		in.Code = res.status.Error.Code
		in.Err = res.err
		e.logger.InfoContext(ctx, "auth command failed",
			"method", res.method,
			"code", res.status.Error.Code,
			"duration_ms", res.elapsed.Milliseconds(),
		)
	case res.noop:
		in.Result = metrics.ResultNoop
	default:
		e.logger.InfoContext(ctx, "auth command completed",
			"method", res.method,
			"signed_in", res.status.SignedIn(),
			"duration_ms", res.elapsed.Milliseconds(),
		)
	}
	metrics.EmitCommand(e.metrics, in)

	e.emit(res.status)
}

func (e *engine) sessionChanged(ctx context.Context, st domainauth.Status) {
	var uid string
	if st.Identity != nil {
		uid = st.Identity.UID
	}
	e.logger.DebugContext(ctx, "session changed", "signed_in", st.SignedIn(), "uid", uid)
	metrics.EmitSessionChange(e.metrics, st.SignedIn())

	e.emit(st)
}

func (e *engine) emit(st domainauth.Status) {
	e.last = st
	e.stream.latest.Store(&st)
	for box := range e.subscribers {
		box.push(st)
	}
}

func (e *engine) attach() *mailbox[domainauth.Status] {
	box := newMailbox[domainauth.Status]()
	box.push(e.last)
	e.subscribers[box] = struct{}{}
	metrics.EmitSubscribers(e.metrics, len(e.subscribers))
	return box
}

func (e *engine) detach(box *mailbox[domainauth.Status]) {
	if _, ok := e.subscribers[box]; !ok {
		return
	}
	delete(e.subscribers, box)
	box.close()
	metrics.EmitSubscribers(e.metrics, len(e.subscribers))
}

func (e *engine) shutdown() {
	e.stream.cancel()
	for box := range e.subscribers {
		box.close()
		delete(e.subscribers, box)
	}
	e.events.close()
	metrics.EmitSubscribers(e.metrics, 0)
	e.logger.Debug("auth status stream stopped")
	close(e.stream.done)
}

func methodOf(cmd domainauth.Command) domainauth.Method {
	if cmd == nil {
		return ""
	}
	return cmd.Method()
}
