package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/motorcyclejs/authstream/internal/domain/auth"
)

// IdentityProvider is the capability set the status engine drives.
// Every call represents exactly one provider operation; none of them retry.
type IdentityProvider interface {
	// CreateAccount registers an email/password account and returns the signed-in identity.
	CreateAccount(ctx context.Context, email, password string) (*domainauth.Identity, error)

	// SignInWithCredentials signs in with an email and password.
	SignInWithCredentials(ctx context.Context, email, password string) (*domainauth.Identity, error)

	// SignInWithPopup runs an interactive federated sign-in and resolves when it completes.
	SignInWithPopup(ctx context.Context, provider domainauth.ProviderRef) (domainauth.UserCredential, error)

	// SignInWithRedirect initiates a federated sign-in. The identity is usually absent
	// because the flow completes out of band.
	SignInWithRedirect(ctx context.Context, provider domainauth.ProviderRef) (domainauth.UserCredential, error)

	// CompleteRedirectSignIn returns the pending redirect result, with a nil identity when none is pending.
	CompleteRedirectSignIn(ctx context.Context) (domainauth.UserCredential, error)

	// SignInAnonymously creates an anonymous session.
	SignInAnonymously(ctx context.Context) (*domainauth.Identity, error)

	// SignOut ends the current session.
	SignOut(ctx context.Context) error

	// OnSessionChange registers fn for session-change notifications. fn receives nil on sign-out.
	// The returned function deregisters fn; it is safe to call more than once.
	OnSessionChange(fn func(*domainauth.Identity)) (unregister func(), err error)
}

// FederatedSignIn runs popup and redirect flows against an external OAuth/OIDC provider.
// Identity providers that store sessions themselves delegate interactive sign-in to it.
type FederatedSignIn interface {
	Popup(ctx context.Context, provider domainauth.ProviderRef) (domainauth.UserCredential, error)
	Redirect(ctx context.Context, provider domainauth.ProviderRef) (domainauth.UserCredential, error)
	RedirectResult(ctx context.Context) (domainauth.UserCredential, error)
}
