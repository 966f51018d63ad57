package devauth

import (
	"context"
	"errors"
	"sync"
	"testing"

	domainauth "github.com/motorcyclejs/authstream/internal/domain/auth"
)

func newTestProvider(t *testing.T, cfg Config) *Provider {
	t.Helper()
	prov, err := NewProvider(cfg)
	if err != nil {
		t.Fatalf("NewProvider error: %v", err)
	}
	return prov
}

func providerCode(t *testing.T, err error) string {
	t.Helper()
	var pe *domainauth.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected provider error, got %v", err)
	}
	return pe.Code
}

type recorder struct {
	mu  sync.Mutex
	got []*domainauth.Identity
}

func (r *recorder) listen(id *domainauth.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, id)
}

func (r *recorder) events() []*domainauth.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domainauth.Identity(nil), r.got...)
}

func TestProvider_CreateAccountThenSignIn(t *testing.T) {
	prov := newTestProvider(t, Config{})
	ctx := context.Background()

	created, err := prov.CreateAccount(ctx, " New@Example.com ", "secret1")
	if err != nil {
		t.Fatalf("CreateAccount error: %v", err)
	}
	if created.Email != "new@example.com" || created.UID == "" || created.IsAnonymous {
		t.Fatalf("unexpected identity: %+v", created)
	}

	if _, err := prov.CreateAccount(ctx, "new@example.com", "secret1"); providerCode(t, err) != domainauth.CodeEmailAlreadyInUse {
		t.Fatalf("expected email-already-in-use, got %v", err)
	}

	signedIn, err := prov.SignInWithCredentials(ctx, "new@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignInWithCredentials error: %v", err)
	}
	if signedIn.UID != created.UID {
		t.Fatalf("expected same uid, got %s and %s", signedIn.UID, created.UID)
	}
}

func TestProvider_CredentialErrors(t *testing.T) {
	prov := newTestProvider(t, Config{Accounts: []Account{{Email: "a@x.com", Password: "secret1"}}})
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		want     string
	}{
		{name: "unknown user", email: "b@x.com", password: "secret1", want: domainauth.CodeUserNotFound},
		{name: "wrong password", email: "a@x.com", password: "nope", want: domainauth.CodeWrongPassword},
		{name: "bad email", email: "not-an-email", password: "secret1", want: domainauth.CodeInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := prov.SignInWithCredentials(ctx, tt.email, tt.password)
			if got := providerCode(t, err); got != tt.want {
				t.Fatalf("code = %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := prov.CreateAccount(ctx, "c@x.com", "123"); providerCode(t, err) != domainauth.CodeWeakPassword {
		t.Fatalf("expected weak-password, got %v", err)
	}
}

func TestProvider_FailWith(t *testing.T) {
	prov := newTestProvider(t, Config{FailWith: "SomeError"})
	ctx := context.Background()

	calls := map[string]func() error{
		"anonymous": func() error { _, err := prov.SignInAnonymously(ctx); return err },
		"sign out":  func() error { return prov.SignOut(ctx) },
		"redirect result": func() error {
			_, err := prov.CompleteRedirectSignIn(ctx)
			return err
		},
	}
	for name, call := range calls {
		err := call()
		var pe *domainauth.ProviderError
		if !errors.As(err, &pe) || pe.Code != "SomeError" || pe.Message != "SomeError" {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
	}
}

func TestProvider_RedirectResultPendingOnce(t *testing.T) {
	prov := newTestProvider(t, Config{FederatedEmail: "fed@example.com"})
	ctx := context.Background()
	google := domainauth.ProviderRef{ID: "google"}

	cred, err := prov.CompleteRedirectSignIn(ctx)
	if err != nil || cred.Identity != nil {
		t.Fatalf("expected no pending result, got %+v, %v", cred, err)
	}

	cred, err = prov.SignInWithRedirect(ctx, google)
	if err != nil || cred.Identity != nil {
		t.Fatalf("redirect should resolve without identity, got %+v, %v", cred, err)
	}

	cred, err = prov.CompleteRedirectSignIn(ctx)
	if err != nil {
		t.Fatalf("CompleteRedirectSignIn error: %v", err)
	}
	if cred.Identity == nil || cred.Identity.Email != "fed@example.com" || cred.Identity.ProviderID != "google" {
		t.Fatalf("unexpected redirect result: %+v", cred.Identity)
	}
	if cred.Credential == nil || cred.Credential.AccessToken == "" {
		t.Fatal("credential should carry an access token")
	}

	cred, err = prov.CompleteRedirectSignIn(ctx)
	if err != nil || cred.Identity != nil {
		t.Fatalf("redirect result should be collected once, got %+v, %v", cred, err)
	}
}

func TestProvider_PopupIdentityIsStablePerProvider(t *testing.T) {
	prov := newTestProvider(t, Config{})
	ctx := context.Background()

	first, err := prov.SignInWithPopup(ctx, domainauth.ProviderRef{ID: "github"})
	if err != nil {
		t.Fatalf("SignInWithPopup error: %v", err)
	}
	second, err := prov.SignInWithPopup(ctx, domainauth.ProviderRef{ID: "github"})
	if err != nil {
		t.Fatalf("SignInWithPopup error: %v", err)
	}
	if first.Identity.UID != second.Identity.UID {
		t.Fatalf("expected stable uid, got %s and %s", first.Identity.UID, second.Identity.UID)
	}

	if _, err := prov.SignInWithPopup(ctx, domainauth.ProviderRef{}); providerCode(t, err) != domainauth.CodeOperationNotAllowed {
		t.Fatalf("expected operation-not-allowed, got %v", err)
	}
}

func TestProvider_SessionListeners(t *testing.T) {
	prov := newTestProvider(t, Config{})
	ctx := context.Background()

	rec := &recorder{}
	unregister, err := prov.OnSessionChange(rec.listen)
	if err != nil {
		t.Fatalf("OnSessionChange error: %v", err)
	}

	anon, err := prov.SignInAnonymously(ctx)
	if err != nil {
		t.Fatalf("SignInAnonymously error: %v", err)
	}
	if err := prov.SignOut(ctx); err != nil {
		t.Fatalf("SignOut error: %v", err)
	}
	if prov.Current() != nil {
		t.Fatal("expected no current session after sign out")
	}

	unregister()
	unregister()
	if _, err := prov.SignInAnonymously(ctx); err != nil {
		t.Fatalf("SignInAnonymously error: %v", err)
	}

	events := rec.events()
	if len(events) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(events))
	}
	if events[0] == nil || events[0].UID != anon.UID || !events[0].IsAnonymous {
		t.Fatalf("unexpected sign-in notification: %+v", events[0])
	}
	if events[1] != nil {
		t.Fatalf("expected sign-out notification, got %+v", events[1])
	}
}

func TestProvider_CancelledContext(t *testing.T) {
	prov := newTestProvider(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := prov.SignInAnonymously(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewProvider_RejectsInvalidAccounts(t *testing.T) {
	if _, err := NewProvider(Config{Accounts: []Account{{Email: "a@x.com"}}}); err == nil {
		t.Fatal("expected error for account without password")
	}
	dup := []Account{{Email: "a@x.com", Password: "p"}, {Email: "A@x.com", Password: "q"}}
	if _, err := NewProvider(Config{Accounts: dup}); err == nil {
		t.Fatal("expected error for duplicate account")
	}
}
