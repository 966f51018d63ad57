package oidc

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

	domainauth "github.com/motorcyclejs/authstream/internal/domain/auth"
	"github.com/motorcyclejs/authstream/internal/testutil"
)

type fakeAuthorizer struct {
	mu       sync.Mutex
	begun    []Authorization
	exchange func(ctx context.Context, code string, auth Authorization) (domainauth.UserCredential, error)
}

func (a *fakeAuthorizer) Begin(ref domainauth.ProviderRef) (Authorization, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.begun) + 1
	auth := Authorization{
		URL:      "https://idp.example.com/auth?provider=" + ref.ID,
		State:    ref.ID + "-state-" + string(rune('0'+n)),
		Nonce:    "nonce",
		Verifier: "verifier-" + string(rune('0'+n)),
	}
	a.begun = append(a.begun, auth)
	return auth, nil
}

func (a *fakeAuthorizer) Exchange(ctx context.Context, code string, auth Authorization) (domainauth.UserCredential, error) {
	if a.exchange != nil {
		return a.exchange(ctx, code, auth)
	}
	return domainauth.UserCredential{
		Identity:   &domainauth.Identity{UID: "google:" + code, ProviderID: "google"},
		Credential: &domainauth.Credential{ProviderID: "google", AccessToken: "token"},
	}, nil
}

// newTestFlow returns a flow whose opener publishes each started state.
func newTestFlow(t *testing.T, authorizer *fakeAuthorizer, now func() time.Time) (*Flow, <-chan string) {
	t.Helper()
	opened := make(chan string, 8)
	flow, err := NewFlow(FlowOptions{
		Authorizers: map[string]Authorizer{"google": authorizer},
		Open: func(context.Context, string, string) error {
			authorizer.mu.Lock()
			state := authorizer.begun[len(authorizer.begun)-1].State
			authorizer.mu.Unlock()
			opened <- state
			return nil
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    now,
	})
	require.NoError(t, err)
	return flow, opened
}

func waitState(t *testing.T, opened <-chan string) string {
	t.Helper()
	select {
	case state := <-opened:
		return state
	case <-time.After(2 * time.Second):
		t.Fatal("sign-in was not started")
	}
	return ""
}

func TestNewFlow_RequiresAuthorizer(t *testing.T) {
	_, err := NewFlow(FlowOptions{})
	require.Error(t, err)
}

func TestFlow_PopupCompletesOnCallback(t *testing.T) {
	flow, opened := newTestFlow(t, &fakeAuthorizer{}, nil)

	type result struct {
		cred domainauth.UserCredential
		err  error
	}
	done := make(chan result, 1)
	go func() {
		cred, err := flow.Popup(context.Background(), domainauth.ProviderRef{ID: "google"})
		done <- result{cred, err}
	}()

	state := waitState(t, opened)
	cred, err := flow.Callback(context.Background(), CallbackInput{State: state, Code: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "google:abc", cred.Identity.UID)

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, "google:abc", res.cred.Identity.UID)
	case <-time.After(2 * time.Second):
		t.Fatal("popup did not complete")
	}
	assert.Equal(t, 0, flow.Pending())
}

func TestFlow_PopupDeniedByUser(t *testing.T) {
	flow, opened := newTestFlow(t, &fakeAuthorizer{}, nil)

	errc := make(chan error, 1)
	go func() {
		_, err := flow.Popup(context.Background(), domainauth.ProviderRef{ID: "google"})
		errc <- err
	}()

	state := waitState(t, opened)
	_, err := flow.Callback(context.Background(), CallbackInput{State: state, Error: "access_denied"})
	require.Error(t, err)

	var pe *domainauth.ProviderError
	require.ErrorAs(t, <-errc, &pe)
	assert.Equal(t, domainauth.CodePopupClosedByUser, pe.Code)
}

func TestFlow_PopupCancelledByContext(t *testing.T) {
	flow, opened := newTestFlow(t, &fakeAuthorizer{}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := flow.Popup(ctx, domainauth.ProviderRef{ID: "google"})
		errc <- err
	}()

	state := waitState(t, opened)
	cancel()
	require.ErrorIs(t, <-errc, context.Canceled)
	assert.Equal(t, 0, flow.Pending())

	_, err := flow.Callback(context.Background(), CallbackInput{State: state, Code: "late"})
	var pe *domainauth.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domainauth.CodeInvalidState, pe.Code)
}

func TestFlow_RedirectParksResultUntilCollected(t *testing.T) {
	flow, opened := newTestFlow(t, &fakeAuthorizer{}, nil)
	ctx := context.Background()

	cred, err := flow.RedirectResult(ctx)
	require.NoError(t, err)
	assert.Nil(t, cred.Identity)

	cred, err = flow.Redirect(ctx, domainauth.ProviderRef{ID: "google"})
	require.NoError(t, err)
	assert.Nil(t, cred.Identity)

	state := waitState(t, opened)
	_, err = flow.Callback(ctx, CallbackInput{State: state, Code: "xyz"})
	require.NoError(t, err)

	cred, err = flow.RedirectResult(ctx)
	require.NoError(t, err)
	require.NotNil(t, cred.Identity)
	assert.Equal(t, "google:xyz", cred.Identity.UID)

	cred, err = flow.RedirectResult(ctx)
	require.NoError(t, err)
	assert.Nil(t, cred.Identity)
}

func TestFlow_RedirectExchangeFailureIsReported(t *testing.T) {
	authorizer := &fakeAuthorizer{
		exchange: func(context.Context, string, Authorization) (domainauth.UserCredential, error) {
			return domainauth.UserCredential{}, errors.New("bad code")
		},
	}
	flow, opened := newTestFlow(t, authorizer, nil)
	ctx := context.Background()

	_, err := flow.Redirect(ctx, domainauth.ProviderRef{ID: "google"})
	require.NoError(t, err)
	_, err = flow.Callback(ctx, CallbackInput{State: waitState(t, opened), Code: "bad"})
	require.Error(t, err)

	_, err = flow.RedirectResult(ctx)
	var pe *domainauth.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domainauth.CodeInternal, pe.Code)
}

func TestFlow_UnknownProviderAndState(t *testing.T) {
	flow, _ := newTestFlow(t, &fakeAuthorizer{}, nil)
	ctx := context.Background()

	_, err := flow.Popup(ctx, domainauth.ProviderRef{ID: "github"})
	var pe *domainauth.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domainauth.CodeOperationNotAllowed, pe.Code)

	_, err = flow.Callback(ctx, CallbackInput{State: "nope", Code: "x"})
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domainauth.CodeInvalidState, pe.Code)
}

func TestFlow_ExpiredSignInsAreSwept(t *testing.T) {
	clock := testutil.NewClock(testutil.TestTime())
	flow, opened := newTestFlow(t, &fakeAuthorizer{}, clock.Now)
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() {
		_, err := flow.Popup(ctx, domainauth.ProviderRef{ID: "google"})
		errc <- err
	}()
	waitState(t, opened)

	clock.Advance(defaultPendingTTL + time.Minute)

	_, err := flow.Redirect(ctx, domainauth.ProviderRef{ID: "google"})
	require.NoError(t, err)
	waitState(t, opened)

	var pe *domainauth.ProviderError
	require.ErrorAs(t, <-errc, &pe)
	assert.Equal(t, domainauth.CodeTimeout, pe.Code)
	assert.Equal(t, 1, flow.Pending())
}

func TestFlow_SweepReportsExpired(t *testing.T) {
	clock := testutil.NewClock(testutil.TestTime())
	flow, opened := newTestFlow(t, &fakeAuthorizer{}, clock.Now)
	ctx := context.Background()

	_, err := flow.Redirect(ctx, domainauth.ProviderRef{ID: "google"})
	require.NoError(t, err)
	waitState(t, opened)

	assert.Equal(t, 0, flow.Sweep())
	clock.Advance(defaultPendingTTL + time.Second)
	assert.Equal(t, 1, flow.Sweep())
	assert.Equal(t, 0, flow.Pending())
}

func TestFlow_OpenFailureForgetsSignIn(t *testing.T) {
	flow, err := NewFlow(FlowOptions{
		Authorizers: map[string]Authorizer{"google": &fakeAuthorizer{}},
		Open:        func(context.Context, string, string) error { return errors.New("no browser") },
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	_, err = flow.Redirect(context.Background(), domainauth.ProviderRef{ID: "google"})
	require.Error(t, err)
	assert.Equal(t, 0, flow.Pending())
}

func TestFlow_ExchangeReceivesStartedAuthorization(t *testing.T) {
	got := make(chan Authorization, 1)
	authorizer := &fakeAuthorizer{
		exchange: func(_ context.Context, code string, auth Authorization) (domainauth.UserCredential, error) {
			got <- auth
			return domainauth.UserCredential{Identity: &domainauth.Identity{UID: "google:" + code}}, nil
		},
	}
	flow, opened := newTestFlow(t, authorizer, nil)
	ctx := context.Background()

	_, err := flow.Redirect(ctx, domainauth.ProviderRef{ID: "google"})
	require.NoError(t, err)
	state := <-opened

	_, err = flow.Callback(ctx, CallbackInput{State: state, Code: "c1"})
	require.NoError(t, err)

	auth := <-got
	assert.Equal(t, state, auth.State)
	assert.Equal(t, "nonce", auth.Nonce)
	assert.Equal(t, "verifier-1", auth.Verifier)
}
