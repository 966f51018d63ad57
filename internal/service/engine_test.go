package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/motorcyclejs/authstream/internal/domain/auth"
	"github.com/motorcyclejs/authstream/internal/mocks"
	mockauth "github.com/motorcyclejs/authstream/internal/mocks/auth"
	"github.com/motorcyclejs/authstream/internal/ports"
)

const (
	waitTimeout = 2 * time.Second
	quietPeriod = 100 * time.Millisecond
)

func receive(t *testing.T, ch <-chan domainauth.Status) domainauth.Status {
	t.Helper()
	select {
	case st, ok := <-ch:
		require.True(t, ok, "status channel closed unexpectedly")
		return st
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for status")
	}
	return domainauth.Status{}
}

func assertQuiet(t *testing.T, ch <-chan domainauth.Status) {
	t.Helper()
	select {
	case st, ok := <-ch:
		if ok {
			t.Fatalf("unexpected status: %+v", st)
		}
	case <-time.After(quietPeriod):
	}
}

func assertClosed(t *testing.T, ch <-chan domainauth.Status) {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("status channel was not closed")
		}
	}
}

func testOptions() Options {
	return Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func startEngine(t *testing.T, provider ports.IdentityProvider, opts Options) (chan<- domainauth.Command, *Stream) {
	t.Helper()
	commands := make(chan domainauth.Command)
	stream, err := Run(context.Background(), commands, provider, opts)
	require.NoError(t, err)
	t.Cleanup(stream.Close)
	return commands, stream
}

func TestRun_SeedIsFirstStatus(t *testing.T) {
	_, stream := startEngine(t, mockauth.NewMockIdentityProvider(), testOptions())

	statuses, cancel := stream.Subscribe()
	defer cancel()

	assert.Equal(t, domainauth.Status{}, receive(t, statuses))
	assert.Equal(t, domainauth.Status{}, stream.Latest())
}

func TestRun_CredentialsSignIn(t *testing.T) {
	commands, stream := startEngine(t, mockauth.NewMockIdentityProvider(), testOptions())
	statuses, cancel := stream.Subscribe()
	defer cancel()

	require.Equal(t, domainauth.Status{}, receive(t, statuses))

	commands <- domainauth.SignInWithCredentials{Email: "a@x.com", Password: "p"}

	st := receive(t, statuses)
	assert.Nil(t, st.Error)
	require.NotNil(t, st.Identity)
	assert.Equal(t, "a@x.com", st.Identity.Email)
	assert.False(t, st.Identity.IsAnonymous)
	assertQuiet(t, statuses)
}

func TestRun_SignOutAfterSignIn(t *testing.T) {
	commands, stream := startEngine(t, mockauth.NewMockIdentityProvider(), testOptions())
	statuses, cancel := stream.Subscribe()
	defer cancel()
	receive(t, statuses)

	commands <- domainauth.SignInWithCredentials{Email: "a@x.com", Password: "p"}
	require.True(t, receive(t, statuses).SignedIn())

	commands <- domainauth.SignOut{}
	assert.Equal(t, domainauth.Status{}, receive(t, statuses))
}

func TestRun_FailureIsIsolated(t *testing.T) {
	provider := mockauth.NewMockIdentityProvider()
	provider.SignInWithCredentialsFunc = func(context.Context, string, string) (*domainauth.Identity, error) {
		return nil, domainauth.NewProviderError("SomeError", "always fails")
	}

	commands, stream := startEngine(t, provider, testOptions())
	statuses, cancel := stream.Subscribe()
	defer cancel()
	receive(t, statuses)

	commands <- domainauth.SignInWithCredentials{Email: "a@x.com", Password: "p"}
	st := receive(t, statuses)
	require.NotNil(t, st.Error)
	assert.Equal(t, "SomeError", st.Error.Code)
	assert.Equal(t, "always fails", st.Error.Message)
	assert.Nil(t, st.Identity)

	commands <- domainauth.SignInWithCredentials{Email: "a@x.com", Password: "p"}
	st = receive(t, statuses)
	require.NotNil(t, st.Error)
	assert.Equal(t, "SomeError", st.Error.Code)

	commands <- domainauth.SignInAnonymously{}
	st = receive(t, statuses)
	assert.Nil(t, st.Error)
	require.NotNil(t, st.Identity)
	assert.True(t, st.Identity.IsAnonymous)
}

func TestRun_CompleteRedirectWithNothingPending(t *testing.T) {
	commands, stream := startEngine(t, mockauth.NewMockIdentityProvider(), testOptions())
	statuses, cancel := stream.Subscribe()
	defer cancel()
	receive(t, statuses)

	commands <- domainauth.CompleteRedirectSignIn{}
	assert.Equal(t, domainauth.Status{}, receive(t, statuses))
}

func TestRun_UnrecognizedCommandIsNoop(t *testing.T) {
	provider := mockauth.NewMockIdentityProvider()
	commands, stream := startEngine(t, provider, testOptions())
	statuses, cancel := stream.Subscribe()
	defer cancel()
	receive(t, statuses)

	commands <- domainauth.Unrecognized{Raw: "TELEPORT"}
	assert.Equal(t, domainauth.Status{}, receive(t, statuses))

	commands <- nil
	assert.Equal(t, domainauth.Status{}, receive(t, statuses))
	assert.Empty(t, provider.Calls())
}

func TestRun_LatestCommandWins(t *testing.T) {
	releaseFirst := make(chan struct{})
	provider := mockauth.NewMockIdentityProvider()
	provider.SignInWithCredentialsFunc = func(_ context.Context, email, _ string) (*domainauth.Identity, error) {
		if email == "first@x.com" {
			<-releaseFirst
		}
		return &domainauth.Identity{UID: email, Email: email}, nil
	}

	commands, stream := startEngine(t, provider, testOptions())
	statuses, cancel := stream.Subscribe()
	defer cancel()
	receive(t, statuses)

	commands <- domainauth.SignInWithCredentials{Email: "first@x.com", Password: "p"}
	commands <- domainauth.SignInWithCredentials{Email: "second@x.com", Password: "p"}

	st := receive(t, statuses)
	require.NotNil(t, st.Identity)
	assert.Equal(t, "second@x.com", st.Identity.Email)

	close(releaseFirst)
	assertQuiet(t, statuses)
	assert.Equal(t, "second@x.com", stream.Latest().Identity.Email)
}

func TestRun_SupersededResultResolvingFirstIsDiscarded(t *testing.T) {
	gates := map[string]chan struct{}{
		"first@x.com":  make(chan struct{}),
		"second@x.com": make(chan struct{}),
	}
	provider := mockauth.NewMockIdentityProvider()
	provider.SignInWithCredentialsFunc = func(_ context.Context, email, _ string) (*domainauth.Identity, error) {
		<-gates[email]
		if email == "first@x.com" {
			return nil, domainauth.NewProviderError(domainauth.CodeWrongPassword, "stale failure")
		}
		return &domainauth.Identity{UID: email, Email: email}, nil
	}

	commands, stream := startEngine(t, provider, testOptions())
	statuses, cancel := stream.Subscribe()
	defer cancel()
	receive(t, statuses)

	commands <- domainauth.SignInWithCredentials{Email: "first@x.com", Password: "p"}
	commands <- domainauth.SignInWithCredentials{Email: "second@x.com", Password: "p"}

	close(gates["first@x.com"])
	assertQuiet(t, statuses)

	close(gates["second@x.com"])
	st := receive(t, statuses)
	assert.Nil(t, st.Error)
	require.NotNil(t, st.Identity)
	assert.Equal(t, "second@x.com", st.Identity.Email)
	assertQuiet(t, statuses)
}

func TestRun_CancelSuperseded(t *testing.T) {
	firstCancelled := make(chan error, 1)
	provider := mockauth.NewMockIdentityProvider()
	provider.SignInWithPopupFunc = func(ctx context.Context, ref domainauth.ProviderRef) (domainauth.UserCredential, error) {
		if ref.ID == "slow" {
			<-ctx.Done()
			firstCancelled <- ctx.Err()
			return domainauth.UserCredential{}, ctx.Err()
		}
		return domainauth.UserCredential{Identity: &domainauth.Identity{UID: ref.ID}}, nil
	}

	opts := testOptions()
	opts.CancelSuperseded = true
	commands, stream := startEngine(t, provider, opts)
	statuses, cancel := stream.Subscribe()
	defer cancel()
	receive(t, statuses)

	commands <- domainauth.SignInWithPopup{Provider: domainauth.ProviderRef{ID: "slow"}}
	commands <- domainauth.SignInWithPopup{Provider: domainauth.ProviderRef{ID: "fast"}}

	select {
	case err := <-firstCancelled:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitTimeout):
		t.Fatal("superseded command was not cancelled")
	}

	st := receive(t, statuses)
	assert.Nil(t, st.Error)
	require.NotNil(t, st.Identity)
	assert.Equal(t, "fast", st.Identity.UID)
	assertQuiet(t, statuses)
}

func TestRun_CommandTimeout(t *testing.T) {
	provider := mockauth.NewMockIdentityProvider()
	provider.SignInWithPopupFunc = func(ctx context.Context, _ domainauth.ProviderRef) (domainauth.UserCredential, error) {
		<-ctx.Done()
		return domainauth.UserCredential{}, ctx.Err()
	}

	opts := testOptions()
	opts.CommandTimeout = 20 * time.Millisecond
	commands, stream := startEngine(t, provider, opts)
	statuses, cancel := stream.Subscribe()
	defer cancel()
	receive(t, statuses)

	commands <- domainauth.SignInWithPopup{Provider: domainauth.ProviderRef{ID: "google"}}
	st := receive(t, statuses)
	require.NotNil(t, st.Error)
	assert.Equal(t, domainauth.CodeTimeout, st.Error.Code)
}

func TestRun_SessionChangeIndependentOfCommands(t *testing.T) {
	release := make(chan struct{})
	provider := mockauth.NewMockIdentityProvider()
	provider.SignInAnonymouslyFunc = func(context.Context) (*domainauth.Identity, error) {
		<-release
		return &domainauth.Identity{UID: "anon", IsAnonymous: true}, nil
	}

	commands, stream := startEngine(t, provider, testOptions())
	statuses, cancel := stream.Subscribe()
	defer cancel()
	receive(t, statuses)

	commands <- domainauth.SignInAnonymously{}

	user := &domainauth.Identity{UID: "elsewhere", Email: "u@x.com"}
	provider.Emit(user)
	assert.Equal(t, domainauth.Status{Identity: user}, receive(t, statuses))
	assertQuiet(t, statuses)

	close(release)
	st := receive(t, statuses)
	require.NotNil(t, st.Identity)
	assert.Equal(t, "anon", st.Identity.UID)

	provider.Emit(nil)
	assert.Equal(t, domainauth.Status{}, receive(t, statuses))
}

func TestRun_NotificationDuringCommandPrecedesItsResult(t *testing.T) {
	elsewhere := &domainauth.Identity{UID: "elsewhere", Email: "u@x.com"}
	provider := mockauth.NewMockIdentityProvider()
	provider.SignInAnonymouslyFunc = func(context.Context) (*domainauth.Identity, error) {
		provider.Emit(elsewhere)
		return &domainauth.Identity{UID: "anon", IsAnonymous: true}, nil
	}

	commands, stream := startEngine(t, provider, testOptions())
	statuses, cancel := stream.Subscribe()
	defer cancel()
	receive(t, statuses)

	for range 50 {
		commands <- domainauth.SignInAnonymously{}

		assert.Equal(t, domainauth.Status{Identity: elsewhere}, receive(t, statuses))
		st := receive(t, statuses)
		require.NotNil(t, st.Identity)
		require.Equal(t, "anon", st.Identity.UID)
		require.Equal(t, "anon", stream.Latest().Identity.UID)
	}
	assertQuiet(t, statuses)
}

type commandResults struct {
	mu      sync.Mutex
	results []string
}

func (c *commandResults) Count(name string, _ int64, tags map[string]string) {
	if name != "auth.command" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, tags["method"]+"="+tags["result"])
}

func (c *commandResults) Gauge(string, float64, map[string]string)        {}
func (c *commandResults) Timing(string, time.Duration, map[string]string) {}

func (c *commandResults) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.results...)
}

func TestRun_UnrecognizedCommandCountsAsNoopWhateverItsName(t *testing.T) {
	sink := &commandResults{}
	opts := testOptions()
	opts.Metrics = sink

	provider := mockauth.NewMockIdentityProvider()
	commands, stream := startEngine(t, provider, opts)
	statuses, cancel := stream.Subscribe()
	defer cancel()
	receive(t, statuses)

	commands <- domainauth.Unrecognized{Raw: domainauth.MethodSignOut}
	receive(t, statuses)
	commands <- domainauth.SignOut{}
	receive(t, statuses)

	got := sink.snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, "SIGN_OUT=noop", got[0])
	assert.Equal(t, "SIGN_OUT=success", got[1])
	assert.Equal(t, []domainauth.Method{domainauth.MethodSignOut}, provider.Calls())
}

func TestRun_LateSubscriberGetsLatestWithoutProviderCalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockIdentityProvider(ctrl)

	var notify func(*domainauth.Identity)
	provider.EXPECT().OnSessionChange(gomock.Any()).DoAndReturn(func(fn func(*domainauth.Identity)) (func(), error) {
		notify = fn
		return func() {}, nil
	}).Times(1)
	provider.EXPECT().SignInWithCredentials(gomock.Any(), "a@x.com", "p").
		Return(&domainauth.Identity{UID: "u1", Email: "a@x.com"}, nil).Times(1)

	commands, stream := startEngine(t, provider, testOptions())
	first, cancelFirst := stream.Subscribe()
	defer cancelFirst()
	receive(t, first)

	commands <- domainauth.SignInWithCredentials{Email: "a@x.com", Password: "p"}
	receive(t, first)

	notify(&domainauth.Identity{UID: "u2"})
	latest := receive(t, first)
	assert.Equal(t, "u2", latest.Identity.UID)

	second, cancelSecond := stream.Subscribe()
	defer cancelSecond()
	assert.Equal(t, latest, receive(t, second))

	third, cancelThird := stream.Subscribe()
	defer cancelThird()
	assert.Equal(t, latest, receive(t, third))

	assertQuiet(t, second)
}

func TestRun_EagerStartProcessesCommandsWithoutSubscribers(t *testing.T) {
	provider := mockauth.NewMockIdentityProvider()
	commands, stream := startEngine(t, provider, testOptions())

	commands <- domainauth.SignInWithCredentials{Email: "early@x.com", Password: "p"}

	require.Eventually(t, func() bool { return stream.Latest().SignedIn() }, waitTimeout, 5*time.Millisecond)

	statuses, cancel := stream.Subscribe()
	defer cancel()
	st := receive(t, statuses)
	require.NotNil(t, st.Identity)
	assert.Equal(t, "early@x.com", st.Identity.Email)
	assert.Equal(t, []domainauth.Method{domainauth.MethodSignInWithCredentials}, provider.Calls())
}

func TestRun_ClosedCommandsKeepNotificationsFlowing(t *testing.T) {
	provider := mockauth.NewMockIdentityProvider()
	commands := make(chan domainauth.Command)
	stream, err := Run(context.Background(), commands, provider, testOptions())
	require.NoError(t, err)
	defer stream.Close()

	statuses, cancel := stream.Subscribe()
	defer cancel()
	receive(t, statuses)

	close(commands)

	user := &domainauth.Identity{UID: "u1"}
	provider.Emit(user)
	assert.Equal(t, domainauth.Status{Identity: user}, receive(t, statuses))

	select {
	case <-stream.Done():
		t.Fatal("stream stopped after command intake closed")
	default:
	}
}

func TestRun_RegistrationFailureIsFatal(t *testing.T) {
	want := errors.New("listener unavailable")
	provider := &mockauth.MockIdentityProvider{OnSessionChangeErr: want}

	stream, err := Run(context.Background(), make(chan domainauth.Command), provider, testOptions())
	require.ErrorIs(t, err, want)
	assert.Nil(t, stream)
}

func TestRun_RequiresProvider(t *testing.T) {
	stream, err := Run(context.Background(), make(chan domainauth.Command), nil, testOptions())
	require.ErrorIs(t, err, ErrProviderRequired)
	assert.Nil(t, stream)
}

func TestStream_CloseReleasesListenerAndSubscribers(t *testing.T) {
	provider := mockauth.NewMockIdentityProvider()
	commands := make(chan domainauth.Command)
	stream, err := Run(context.Background(), commands, provider, testOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, provider.ListenerCount())

	statuses, cancel := stream.Subscribe()
	defer cancel()
	receive(t, statuses)

	stream.Close()

	assertClosed(t, statuses)
	require.Eventually(t, func() bool { return provider.ListenerCount() == 0 }, waitTimeout, 5*time.Millisecond)

	late, lateCancel := stream.Subscribe()
	defer lateCancel()
	assert.Equal(t, domainauth.Status{}, receive(t, late))
	assertClosed(t, late)
}

func TestStream_ContextCancellationStopsStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stream, err := Run(ctx, make(chan domainauth.Command), mockauth.NewMockIdentityProvider(), testOptions())
	require.NoError(t, err)

	cancel()

	select {
	case <-stream.Done():
	case <-time.After(waitTimeout):
		t.Fatal("stream did not stop after context cancellation")
	}
}

func TestStream_UnsubscribeClosesOnlyThatSubscriber(t *testing.T) {
	provider := mockauth.NewMockIdentityProvider()
	_, stream := startEngine(t, provider, testOptions())

	first, cancelFirst := stream.Subscribe()
	second, cancelSecond := stream.Subscribe()
	defer cancelSecond()
	receive(t, first)
	receive(t, second)

	cancelFirst()
	cancelFirst()
	assertClosed(t, first)

	provider.Emit(&domainauth.Identity{UID: "u1"})
	assert.Equal(t, "u1", receive(t, second).Identity.UID)
}

func TestRun_ProviderPanicBecomesError(t *testing.T) {
	provider := mockauth.NewMockIdentityProvider()
	provider.SignOutFunc = func(context.Context) error { panic("provider bug") }

	commands, stream := startEngine(t, provider, testOptions())
	statuses, cancel := stream.Subscribe()
	defer cancel()
	receive(t, statuses)

	commands <- domainauth.SignOut{}
	st := receive(t, statuses)
	require.NotNil(t, st.Error)
	assert.Equal(t, domainauth.CodeInternal, st.Error.Code)

	commands <- domainauth.SignInAnonymously{}
	assert.True(t, receive(t, statuses).SignedIn())
}
