package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"sync"

	domainauth "github.com/motorcyclejs/authstream/internal/domain/auth"
	"github.com/motorcyclejs/authstream/internal/ports"
)

// Ensure compile-time conformance to ports.
var _ ports.IdentityProvider = (*MockIdentityProvider)(nil)

// MockIdentityProvider simulates an identity provider for tests.
// Each operation can be overridden through its Func hook; otherwise it succeeds with DefaultUser.
// Calls are recorded by method name and session listeners can be driven with Emit.
type MockIdentityProvider struct {
	CreateAccountFunc          func(ctx context.Context, email, password string) (*domainauth.Identity, error)
	SignInWithCredentialsFunc  func(ctx context.Context, email, password string) (*domainauth.Identity, error)
	SignInWithPopupFunc        func(ctx context.Context, ref domainauth.ProviderRef) (domainauth.UserCredential, error)
	SignInWithRedirectFunc     func(ctx context.Context, ref domainauth.ProviderRef) (domainauth.UserCredential, error)
	CompleteRedirectSignInFunc func(ctx context.Context) (domainauth.UserCredential, error)
	SignInAnonymouslyFunc      func(ctx context.Context) (*domainauth.Identity, error)
	SignOutFunc                func(ctx context.Context) error

	// OnSessionChangeErr makes listener registration fail.
	OnSessionChangeErr error

	DefaultUser domainauth.Identity

	mu        sync.Mutex
	calls     []domainauth.Method
	listeners map[int]func(*domainauth.Identity)
	nextID    int
}

// NewMockIdentityProvider creates a MockIdentityProvider with sensible defaults.
func NewMockIdentityProvider() *MockIdentityProvider {
	return &MockIdentityProvider{
		DefaultUser: domainauth.Identity{
			UID:         "mock-user-1",
			Email:       "mock.user@example.com",
			DisplayName: "Mock User",
			ProviderID:  "password",
		},
	}
}

func (m *MockIdentityProvider) CreateAccount(ctx context.Context, email, password string) (*domainauth.Identity, error) {
	m.record(domainauth.MethodCreateAccount)
	if m.CreateAccountFunc != nil {
		return m.CreateAccountFunc(ctx, email, password)
	}
	user := m.user()
	user.Email = email
	return user, nil
}

func (m *MockIdentityProvider) SignInWithCredentials(ctx context.Context, email, password string) (*domainauth.Identity, error) {
	m.record(domainauth.MethodSignInWithCredentials)
	if m.SignInWithCredentialsFunc != nil {
		return m.SignInWithCredentialsFunc(ctx, email, password)
	}
	user := m.user()
	user.Email = email
	return user, nil
}

func (m *MockIdentityProvider) SignInWithPopup(ctx context.Context, ref domainauth.ProviderRef) (domainauth.UserCredential, error) {
	m.record(domainauth.MethodSignInWithPopup)
	if m.SignInWithPopupFunc != nil {
		return m.SignInWithPopupFunc(ctx, ref)
	}
	user := m.user()
	user.ProviderID = ref.ID
	return domainauth.UserCredential{Identity: user, Credential: &domainauth.Credential{ProviderID: ref.ID}}, nil
}

func (m *MockIdentityProvider) SignInWithRedirect(ctx context.Context, ref domainauth.ProviderRef) (domainauth.UserCredential, error) {
	m.record(domainauth.MethodSignInWithRedirect)
	if m.SignInWithRedirectFunc != nil {
		return m.SignInWithRedirectFunc(ctx, ref)
	}
	return domainauth.UserCredential{}, nil
}

func (m *MockIdentityProvider) CompleteRedirectSignIn(ctx context.Context) (domainauth.UserCredential, error) {
	m.record(domainauth.MethodCompleteRedirectSignIn)
	if m.CompleteRedirectSignInFunc != nil {
		return m.CompleteRedirectSignInFunc(ctx)
	}
	return domainauth.UserCredential{}, nil
}

func (m *MockIdentityProvider) SignInAnonymously(ctx context.Context) (*domainauth.Identity, error) {
	m.record(domainauth.MethodSignInAnonymously)
	if m.SignInAnonymouslyFunc != nil {
		return m.SignInAnonymouslyFunc(ctx)
	}
	return &domainauth.Identity{UID: "anonymous-1", IsAnonymous: true}, nil
}

func (m *MockIdentityProvider) SignOut(ctx context.Context) error {
	m.record(domainauth.MethodSignOut)
	if m.SignOutFunc != nil {
		return m.SignOutFunc(ctx)
	}
	return nil
}

// OnSessionChange registers fn. Registration fails with OnSessionChangeErr when it is set.
func (m *MockIdentityProvider) OnSessionChange(fn func(*domainauth.Identity)) (func(), error) {
	if m.OnSessionChangeErr != nil {
		return nil, m.OnSessionChangeErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listeners == nil {
		m.listeners = make(map[int]func(*domainauth.Identity))
	}
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}, nil
}

// Emit delivers a session change to every registered listener.
func (m *MockIdentityProvider) Emit(identity *domainauth.Identity) {
	m.mu.Lock()
	fns := make([]func(*domainauth.Identity), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}

// ListenerCount reports how many session listeners are registered.
func (m *MockIdentityProvider) ListenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// Calls returns the methods invoked so far, in call order.
func (m *MockIdentityProvider) Calls() []domainauth.Method {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domainauth.Method, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockIdentityProvider) record(method domainauth.Method) {
	m.mu.Lock()
	m.calls = append(m.calls, method)
	m.mu.Unlock()
}

func (m *MockIdentityProvider) user() *domainauth.Identity {
	user := m.DefaultUser
	if user.UID == "" {
		user = domainauth.Identity{UID: "mock-user-1", Email: "mock.user@example.com", ProviderID: "password"}
	}
	return &user
}
