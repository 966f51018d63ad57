package redis

// Package redis provides a Redis-backed IdentityProvider. Accounts and sessions are stored as JSON
// and session changes are fanned out over Redis pub/sub, so every process sharing a client ID
// observes sign-ins and sign-outs made by the others.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/motorcyclejs/authstream/internal/domain/auth"
	"github.com/motorcyclejs/authstream/internal/ports"
)

var _ ports.IdentityProvider = (*Provider)(nil)

const (
	defaultPrefix        = "authstream:"
	minPasswordLength    = 6
	subscribeTimeout     = 5 * time.Second
	sessionLookupTimeout = 2 * time.Second
)

// ErrClientRequired is returned when no Redis client is configured.
var ErrClientRequired = errors.New("redis client is required")

// Options configures Provider.
type Options struct {
	Client redis.UniversalClient
	// ClientID scopes the session key and the change channel. Defaults to a random ID.
	ClientID string
	// Prefix is prepended to every key and channel. Defaults to "authstream:".
	Prefix string
	// SessionTTL expires stored sessions. Zero keeps them until sign-out.
	SessionTTL time.Duration
	// Federated runs popup and redirect sign-in. Without it those operations are not allowed.
	Federated ports.FederatedSignIn
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	Logger     *slog.Logger
}

// Provider implements ports.IdentityProvider on Redis.
type Provider struct {
	client     redis.UniversalClient
	clientID   string
	prefix     string
	sessionTTL time.Duration
	federated  ports.FederatedSignIn
	cost       int
	logger     *slog.Logger
}

type storedAccount struct {
	Identity     domainauth.Identity `json:"identity"`
	PasswordHash []byte              `json:"password_hash"`
}

// NewProvider creates a Redis-backed provider.
func NewProvider(opts Options) (*Provider, error) {
	if opts.Client == nil {
		return nil, ErrClientRequired
	}

	p := &Provider{
		client:     opts.Client,
		clientID:   strings.TrimSpace(opts.ClientID),
		prefix:     opts.Prefix,
		sessionTTL: opts.SessionTTL,
		federated:  opts.Federated,
		cost:       opts.BcryptCost,
		logger:     opts.Logger,
	}
	if p.clientID == "" {
		p.clientID = uuid.NewString()
	}
	if p.prefix == "" {
		p.prefix = defaultPrefix
	}
	if p.cost == 0 {
		p.cost = bcrypt.DefaultCost
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("component", "redis_identity_provider", "client_id", p.clientID)
	return p, nil
}

// ClientID returns the session scope of this provider.
func (p *Provider) ClientID() string { return p.clientID }

func (p *Provider) accountKey(email string) string { return p.prefix + "account:" + email }
func (p *Provider) sessionKey() string             { return p.prefix + "session:" + p.clientID }
func (p *Provider) channel() string                { return p.prefix + "session-changes:" + p.clientID }

func (p *Provider) CreateAccount(ctx context.Context, email, password string) (*domainauth.Identity, error) {
	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, domainauth.NewProviderError(domainauth.CodeWeakPassword, "Password should be at least 6 characters.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acct := storedAccount{
		Identity:     domainauth.Identity{UID: uuid.NewString(), Email: email, ProviderID: "password"},
		PasswordHash: hash,
	}
	data, err := json.Marshal(acct)
	if err != nil {
		return nil, fmt.Errorf("marshal account: %w", err)
	}

	created, err := p.client.SetNX(ctx, p.accountKey(email), data, 0).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if !created {
		return nil, domainauth.NewProviderError(domainauth.CodeEmailAlreadyInUse,
			"The email address is already in use by another account.")
	}

	return p.signIn(ctx, acct.Identity)
}

func (p *Provider) SignInWithCredentials(ctx context.Context, email, password string) (*domainauth.Identity, error) {
	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	data, err := p.client.Get(ctx, p.accountKey(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domainauth.NewProviderError(domainauth.CodeUserNotFound,
				"There is no user record corresponding to this identifier.")
		}
		return nil, unavailable(err)
	}

	var acct storedAccount
	if unmarshalErr := json.Unmarshal(data, &acct); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal account: %w", unmarshalErr)
	}
	if bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(password)) != nil {
		return nil, domainauth.NewProviderError(domainauth.CodeWrongPassword,
			"The password is invalid or the user does not have a password.")
	}

	return p.signIn(ctx, acct.Identity)
}

func (p *Provider) SignInWithPopup(ctx context.Context, ref domainauth.ProviderRef) (domainauth.UserCredential, error) {
	if p.federated == nil {
		return domainauth.UserCredential{}, federatedNotAllowed()
	}
	cred, err := p.federated.Popup(ctx, ref)
	if err != nil {
		return domainauth.UserCredential{}, err
	}
	return p.storeFederated(ctx, cred)
}

func (p *Provider) SignInWithRedirect(ctx context.Context, ref domainauth.ProviderRef) (domainauth.UserCredential, error) {
	if p.federated == nil {
		return domainauth.UserCredential{}, federatedNotAllowed()
	}
	return p.federated.Redirect(ctx, ref)
}

func (p *Provider) CompleteRedirectSignIn(ctx context.Context) (domainauth.UserCredential, error) {
	if p.federated == nil {
		return domainauth.UserCredential{}, nil
	}
	cred, err := p.federated.RedirectResult(ctx)
	if err != nil {
		return domainauth.UserCredential{}, err
	}
	return p.storeFederated(ctx, cred)
}

func (p *Provider) SignInAnonymously(ctx context.Context) (*domainauth.Identity, error) {
	return p.signIn(ctx, domainauth.Identity{UID: uuid.NewString(), IsAnonymous: true, ProviderID: "anonymous"})
}

func (p *Provider) SignOut(ctx context.Context) error {
	if err := p.client.Del(ctx, p.sessionKey()).Err(); err != nil {
		return unavailable(err)
	}
	return p.publish(ctx, nil)
}

// Current returns the stored session, or nil when signed out.
func (p *Provider) Current(ctx context.Context) (*domainauth.Identity, error) {
	data, err := p.client.Get(ctx, p.sessionKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil //nolint:nilnil // signed out
		}
		return nil, unavailable(err)
	}

	var identity domainauth.Identity
	if unmarshalErr := json.Unmarshal(data, &identity); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}
	return &identity, nil
}

// OnSessionChange subscribes fn to the session channel. A session that already exists is
// reported to fn before OnSessionChange returns.
func (p *Provider) OnSessionChange(fn func(*domainauth.Identity)) (func(), error) {
	if fn == nil {
		return nil, errors.New("session listener is nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
	defer cancel()

	sub := p.client.Subscribe(ctx, p.channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", p.channel(), err)
	}

	lookupCtx, lookupCancel := context.WithTimeout(context.Background(), sessionLookupTimeout)
	current, err := p.Current(lookupCtx)
	lookupCancel()
	if err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("load current session: %w", err)
	}
	if current != nil {
		fn(current)
	}

	done := make(chan struct{})
	messages := sub.Channel()
	go func() {
		defer close(done)
		for msg := range messages {
			var identity *domainauth.Identity
			if unmarshalErr := json.Unmarshal([]byte(msg.Payload), &identity); unmarshalErr != nil {
				p.logger.Warn("dropping malformed session change", "error", unmarshalErr)
				continue
			}
			fn(identity)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			if closeErr := sub.Close(); closeErr != nil {
				p.logger.Warn("failed to close session subscription", "error", closeErr)
			}
			<-done
		})
	}, nil
}

func (p *Provider) storeFederated(ctx context.Context, cred domainauth.UserCredential) (domainauth.UserCredential, error) {
	if cred.Identity == nil {
		return cred, nil
	}
	identity, err := p.signIn(ctx, *cred.Identity)
	if err != nil {
		return domainauth.UserCredential{}, err
	}
	cred.Identity = identity
	return cred, nil
}

func (p *Provider) signIn(ctx context.Context, identity domainauth.Identity) (*domainauth.Identity, error) {
	data, err := json.Marshal(identity)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	if setErr := p.client.Set(ctx, p.sessionKey(), data, p.sessionTTL).Err(); setErr != nil {
		return nil, unavailable(setErr)
	}
	if pubErr := p.publish(ctx, &identity); pubErr != nil {
		return nil, pubErr
	}
	return &identity, nil
}

func (p *Provider) publish(ctx context.Context, identity *domainauth.Identity) error {
	payload, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("marshal session change: %w", err)
	}
	if pubErr := p.client.Publish(ctx, p.channel(), payload).Err(); pubErr != nil {
		return unavailable(pubErr)
	}
	return nil
}

func unavailable(err error) error {
	return &domainauth.ProviderError{Code: domainauth.CodeNetworkRequestFailed, Err: err}
}

func federatedNotAllowed() error {
	return domainauth.NewProviderError(domainauth.CodeOperationNotAllowed,
		"Federated sign-in is not enabled for this provider.")
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
