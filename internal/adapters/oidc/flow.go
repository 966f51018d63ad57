package oidc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	domainauth "github.com/motorcyclejs/authstream/internal/domain/auth"
	"github.com/motorcyclejs/authstream/internal/ports"
)

var _ ports.FederatedSignIn = (*Flow)(nil)

const defaultPendingTTL = 10 * time.Minute

// Authorizer starts and completes authorization-code sign-ins. *Provider implements it.
type Authorizer interface {
	Begin(ref domainauth.ProviderRef) (Authorization, error)
	Exchange(ctx context.Context, code string, auth Authorization) (domainauth.UserCredential, error)
}

// Opener presents an authorization URL to the user.
type Opener func(ctx context.Context, providerID, authURL string) error

// FlowOptions configures Flow.
type FlowOptions struct {
	// Authorizers are keyed by the provider ID callers name in ProviderRef.
	Authorizers map[string]Authorizer
	// Open presents the authorization URL. Defaults to logging it.
	Open Opener
	// PendingTTL bounds how long a started sign-in waits for its callback. Defaults to 10 minutes.
	PendingTTL time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

// CallbackInput is what the identity provider sends back to the redirect URL.
type CallbackInput struct {
	State            string
	Code             string
	Error            string
	ErrorDescription string
}

type flowMode int

const (
	modePopup flowMode = iota
	modeRedirect
)

type outcome struct {
	cred domainauth.UserCredential
	err  error
}

type pendingSignIn struct {
	providerID string
	auth       Authorization
	mode       flowMode
	started    time.Time
	done       chan outcome
}

// Flow implements ports.FederatedSignIn on top of authorization-code providers.
//
// A popup sign-in blocks until the callback for its state arrives. A redirect sign-in returns
// at once; its callback parks the outcome until RedirectResult collects it.
type Flow struct {
	authorizers map[string]Authorizer
	open        Opener
	pendingTTL  time.Duration
	logger      *slog.Logger
	now         func() time.Time

	mu       sync.Mutex
	pending  map[string]*pendingSignIn
	redirect *outcome
}

// NewFlow creates a Flow.
func NewFlow(opts FlowOptions) (*Flow, error) {
	if len(opts.Authorizers) == 0 {
		return nil, errors.New("at least one authorizer is required")
	}

	f := &Flow{
		authorizers: make(map[string]Authorizer, len(opts.Authorizers)),
		open:        opts.Open,
		pendingTTL:  opts.PendingTTL,
		logger:      opts.Logger,
		now:         opts.Now,
		pending:     make(map[string]*pendingSignIn),
	}
	for id, a := range opts.Authorizers {
		f.authorizers[id] = a
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	if f.pendingTTL <= 0 {
		f.pendingTTL = defaultPendingTTL
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.open == nil {
		f.open = f.logAuthURL
	}
	return f, nil
}

// Popup starts a sign-in and waits for its callback or for ctx to end.
func (f *Flow) Popup(ctx context.Context, ref domainauth.ProviderRef) (domainauth.UserCredential, error) {
	state, p, err := f.start(ctx, ref, modePopup)
	if err != nil {
		return domainauth.UserCredential{}, err
	}

	select {
	case res := <-p.done:
		return res.cred, res.err
	case <-ctx.Done():
		f.forget(state)
		return domainauth.UserCredential{}, ctx.Err()
	}
}

// Redirect starts a sign-in and returns without an identity.
func (f *Flow) Redirect(ctx context.Context, ref domainauth.ProviderRef) (domainauth.UserCredential, error) {
	if _, _, err := f.start(ctx, ref, modeRedirect); err != nil {
		return domainauth.UserCredential{}, err
	}
	return domainauth.UserCredential{}, nil
}

// RedirectResult returns the outcome of the last completed redirect sign-in and clears it.
// Without one the credential is empty.
func (f *Flow) RedirectResult(ctx context.Context) (domainauth.UserCredential, error) {
	if err := ctx.Err(); err != nil {
		return domainauth.UserCredential{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.redirect == nil {
		return domainauth.UserCredential{}, nil
	}
	res := *f.redirect
	f.redirect = nil
	return res.cred, res.err
}

// Callback completes the sign-in identified by in.State. The outcome is delivered to the waiting
// popup or parked for RedirectResult, and is also returned to the caller.
func (f *Flow) Callback(ctx context.Context, in CallbackInput) (domainauth.UserCredential, error) {
	f.mu.Lock()
	p, ok := f.pending[in.State]
	if ok {
		delete(f.pending, in.State)
	}
	f.mu.Unlock()

	if in.State == "" || !ok {
		return domainauth.UserCredential{}, domainauth.NewProviderError(domainauth.CodeInvalidState,
			"The sign-in state is unknown or has expired.")
	}

	res := f.complete(ctx, p, in)
	switch p.mode {
	case modePopup:
		p.done <- res
	case modeRedirect:
		f.mu.Lock()
		f.redirect = &res
		f.mu.Unlock()
	}

	if res.err != nil {
		f.logger.InfoContext(ctx, "federated sign-in failed", "provider", p.providerID, "error", res.err)
	} else {
		f.logger.InfoContext(ctx, "federated sign-in completed", "provider", p.providerID)
	}
	return res.cred, res.err
}

// Pending reports how many sign-ins are waiting for a callback.
func (f *Flow) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

func (f *Flow) start(ctx context.Context, ref domainauth.ProviderRef, mode flowMode) (string, *pendingSignIn, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	authorizer, ok := f.authorizers[ref.ID]
	if !ok {
		return "", nil, domainauth.NewProviderError(domainauth.CodeOperationNotAllowed,
			fmt.Sprintf("Sign-in with provider %q is not enabled.", ref.ID))
	}

	auth, err := authorizer.Begin(ref)
	if err != nil {
		return "", nil, fmt.Errorf("begin %s sign-in: %w", ref.ID, err)
	}

	p := &pendingSignIn{
		providerID: ref.ID,
		auth:       auth,
		mode:       mode,
		started:    f.now(),
		done:       make(chan outcome, 1),
	}

	f.mu.Lock()
	f.sweepLocked()
	f.pending[auth.State] = p
	f.mu.Unlock()

	if openErr := f.open(ctx, ref.ID, auth.URL); openErr != nil {
		f.forget(auth.State)
		return "", nil, fmt.Errorf("open %s sign-in: %w", ref.ID, openErr)
	}
	return auth.State, p, nil
}

func (f *Flow) complete(ctx context.Context, p *pendingSignIn, in CallbackInput) outcome {
	if in.Error != "" {
		return outcome{err: callbackError(in, p.mode)}
	}
	if f.now().Sub(p.started) > f.pendingTTL {
		return outcome{err: domainauth.NewProviderError(domainauth.CodeInvalidState, "The sign-in has expired.")}
	}

	cred, err := f.authorizers[p.providerID].Exchange(ctx, in.Code, p.auth)
	if err != nil {
		return outcome{err: &domainauth.ProviderError{Code: domainauth.CodeInternal, Message: "token exchange failed", Err: err}}
	}
	return outcome{cred: cred}
}

func (f *Flow) forget(state string) {
	f.mu.Lock()
	delete(f.pending, state)
	f.mu.Unlock()
}

// Sweep drops sign-ins whose callback never arrived and reports how many it dropped.
// Waiting popups are told they expired.
func (f *Flow) Sweep() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweepLocked()
}

func (f *Flow) sweepLocked() int {
	now := f.now()
	var swept int
	for state, p := range f.pending {
		if now.Sub(p.started) <= f.pendingTTL {
			continue
		}
		delete(f.pending, state)
		swept++
		if p.mode == modePopup {
			p.done <- outcome{err: domainauth.NewProviderError(domainauth.CodeTimeout, "The sign-in has expired.")}
		}
	}
	return swept
}

func (f *Flow) logAuthURL(ctx context.Context, providerID, authURL string) error {
	f.logger.InfoContext(ctx, "federated sign-in started; open the authorization URL to continue",
		"provider", providerID,
		"auth_url", authURL,
	)
	return nil
}

func callbackError(in CallbackInput, mode flowMode) error {
	code := "auth/" + strings.ReplaceAll(strings.ToLower(in.Error), "_", "-")
	if in.Error == "access_denied" && mode == modePopup {
		code = domainauth.CodePopupClosedByUser
	}
	msg := in.ErrorDescription
	if msg == "" {
		msg = in.Error
	}
	return domainauth.NewProviderError(code, msg)
}
