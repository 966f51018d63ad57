package devauth

// Package devauth provides an in-memory IdentityProvider for local development and tests.

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	domainauth "github.com/motorcyclejs/authstream/internal/domain/auth"
	"github.com/motorcyclejs/authstream/internal/ports"
)

var _ ports.IdentityProvider = (*Provider)(nil)

const (
	defaultFederatedEmail = "dev@example.com"
	minPasswordLength     = 6
)

// Account seeds an email/password account.
type Account struct {
	Email       string
	Password    string
	DisplayName string
}

// Config controls the dev provider behavior. All fields are optional.
type Config struct {
	// FailWith makes every operation fail with this error code, using the code as message.
	FailWith string
	// FederatedEmail is the email of the identity returned by popup and redirect sign-in.
	FederatedEmail string
	// Accounts are registered at construction.
	Accounts []Account
}

type account struct {
	identity domainauth.Identity
	password string
}

// Provider implements ports.IdentityProvider in memory.
// Successful sign-in and sign-out operations update the current session and notify listeners.
// A redirect sign-in completes immediately and leaves its result pending until collected.
type Provider struct {
	failWith       string
	federatedEmail string

	mu              sync.Mutex
	accounts        map[string]account
	current         *domainauth.Identity
	pendingRedirect *domainauth.UserCredential
	listeners       map[int]func(*domainauth.Identity)
	nextListener    int
}

// NewProvider constructs a dev provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	p := &Provider{
		failWith:       strings.TrimSpace(cfg.FailWith),
		federatedEmail: strings.TrimSpace(cfg.FederatedEmail),
		accounts:       make(map[string]account, len(cfg.Accounts)),
		listeners:      make(map[int]func(*domainauth.Identity)),
	}
	if p.federatedEmail == "" {
		p.federatedEmail = defaultFederatedEmail
	}

	for _, a := range cfg.Accounts {
		email := normalizeEmail(a.Email)
		if email == "" || a.Password == "" {
			return nil, fmt.Errorf("dev auth: account %q needs an email and a password", a.Email)
		}
		if _, exists := p.accounts[email]; exists {
			return nil, fmt.Errorf("dev auth: duplicate account %q", email)
		}
		p.accounts[email] = account{
			identity: domainauth.Identity{
				UID:         uuid.NewString(),
				Email:       email,
				DisplayName: a.DisplayName,
				ProviderID:  "password",
			},
			password: a.Password,
		}
	}
	return p, nil
}

func (p *Provider) CreateAccount(ctx context.Context, email, password string) (*domainauth.Identity, error) {
	if err := p.precheck(ctx); err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, domainauth.NewProviderError(domainauth.CodeWeakPassword, "Password should be at least 6 characters.")
	}

	p.mu.Lock()
	if _, exists := p.accounts[email]; exists {
		p.mu.Unlock()
		return nil, domainauth.NewProviderError(domainauth.CodeEmailAlreadyInUse,
			"The email address is already in use by another account.")
	}
	acct := account{
		identity: domainauth.Identity{UID: uuid.NewString(), Email: email, ProviderID: "password"},
		password: password,
	}
	p.accounts[email] = acct
	p.mu.Unlock()

	return p.signIn(acct.identity), nil
}

func (p *Provider) SignInWithCredentials(ctx context.Context, email, password string) (*domainauth.Identity, error) {
	if err := p.precheck(ctx); err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	p.mu.Lock()
	acct, ok := p.accounts[email]
	p.mu.Unlock()
	if !ok {
		return nil, domainauth.NewProviderError(domainauth.CodeUserNotFound,
			"There is no user record corresponding to this identifier.")
	}
	if subtle.ConstantTimeCompare([]byte(acct.password), []byte(password)) != 1 {
		return nil, domainauth.NewProviderError(domainauth.CodeWrongPassword,
			"The password is invalid or the user does not have a password.")
	}

	return p.signIn(acct.identity), nil
}

func (p *Provider) SignInWithPopup(ctx context.Context, ref domainauth.ProviderRef) (domainauth.UserCredential, error) {
	if err := p.precheck(ctx); err != nil {
		return domainauth.UserCredential{}, err
	}

	cred, err := p.federatedCredential(ref)
	if err != nil {
		return domainauth.UserCredential{}, err
	}
	cred.Identity = p.signIn(*cred.Identity)
	return cred, nil
}

// SignInWithRedirect completes the federated flow at once and parks the result for CompleteRedirectSignIn.
// The returned credential carries no identity.
func (p *Provider) SignInWithRedirect(ctx context.Context, ref domainauth.ProviderRef) (domainauth.UserCredential, error) {
	if err := p.precheck(ctx); err != nil {
		return domainauth.UserCredential{}, err
	}

	cred, err := p.federatedCredential(ref)
	if err != nil {
		return domainauth.UserCredential{}, err
	}
	cred.Identity = p.signIn(*cred.Identity)

	p.mu.Lock()
	p.pendingRedirect = &cred
	p.mu.Unlock()

	return domainauth.UserCredential{}, nil
}

// CompleteRedirectSignIn returns the parked redirect result once. With nothing pending the identity is nil.
func (p *Provider) CompleteRedirectSignIn(ctx context.Context) (domainauth.UserCredential, error) {
	if err := p.precheck(ctx); err != nil {
		return domainauth.UserCredential{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pendingRedirect == nil {
		return domainauth.UserCredential{}, nil
	}
	cred := *p.pendingRedirect
	p.pendingRedirect = nil
	return cred, nil
}

func (p *Provider) SignInAnonymously(ctx context.Context) (*domainauth.Identity, error) {
	if err := p.precheck(ctx); err != nil {
		return nil, err
	}
	return p.signIn(domainauth.Identity{UID: uuid.NewString(), IsAnonymous: true, ProviderID: "anonymous"}), nil
}

func (p *Provider) SignOut(ctx context.Context) error {
	if err := p.precheck(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()

	p.notify(nil)
	return nil
}

func (p *Provider) OnSessionChange(fn func(*domainauth.Identity)) (func(), error) {
	if fn == nil {
		return nil, fmt.Errorf("dev auth: session listener is nil")
	}

	p.mu.Lock()
	id := p.nextListener
	p.nextListener++
	p.listeners[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}, nil
}

// Current returns the signed-in identity, or nil.
func (p *Provider) Current() *domainauth.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	current := *p.current
	return &current
}

func (p *Provider) precheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.failWith != "" {
		return domainauth.NewProviderError(p.failWith, p.failWith)
	}
	return nil
}

func (p *Provider) federatedCredential(ref domainauth.ProviderRef) (domainauth.UserCredential, error) {
	if strings.TrimSpace(ref.ID) == "" {
		return domainauth.UserCredential{}, domainauth.NewProviderError(domainauth.CodeOperationNotAllowed,
			"A provider is required for federated sign-in.")
	}
	token, err := randomString(32)
	if err != nil {
		return domainauth.UserCredential{}, fmt.Errorf("generate access token: %w", err)
	}
	return domainauth.UserCredential{
		Identity: &domainauth.Identity{
			UID:        uuid.NewSHA1(uuid.NameSpaceURL, []byte(ref.ID+":"+p.federatedEmail)).String(),
			Email:      p.federatedEmail,
			ProviderID: ref.ID,
		},
		Credential: &domainauth.Credential{ProviderID: ref.ID, AccessToken: token},
	}, nil
}

func (p *Provider) signIn(identity domainauth.Identity) *domainauth.Identity {
	p.mu.Lock()
	p.current = &identity
	p.mu.Unlock()

	p.notify(&identity)
	out := identity
	return &out
}

func (p *Provider) notify(identity *domainauth.Identity) {
	p.mu.Lock()
	fns := make([]func(*domainauth.Identity), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		if identity == nil {
			fn(nil)
			continue
		}
		copied := *identity
		fn(&copied)
	}
}

func validateCredentials(email, password string) error {
	if email == "" || !strings.Contains(email, "@") {
		return domainauth.NewProviderError(domainauth.CodeInvalidEmail, "The email address is badly formatted.")
	}
	if password == "" {
		return domainauth.NewProviderError(domainauth.CodeWrongPassword, "The password is invalid.")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	// Compute number of random bytes needed to produce at least n base64 URL chars
	bLen := (n*3 + 3) / 4
	b := make([]byte, bLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < n {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:n], nil
}
