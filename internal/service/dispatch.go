package service

import (
	"context"
	"fmt"

	domainauth "github.com/motorcyclejs/authstream/internal/domain/auth"
	"github.com/motorcyclejs/authstream/internal/ports"
)

// Dispatch invokes the one provider operation that cmd names and returns the resulting identity.
//
// Popup, redirect and redirect-result operations are reduced to the identity of their
// credential. SignOut resolves to a nil identity. Unrecognized commands, nil commands and
// pointer variants are no-ops: the provider is not called and the result is (nil, nil).
func Dispatch(ctx context.Context, cmd domainauth.Command, provider ports.IdentityProvider) (*domainauth.Identity, error) {
	switch c := cmd.(type) {
	case domainauth.CreateAccount:
		return provider.CreateAccount(ctx, c.Email, c.Password)
	case domainauth.SignInWithCredentials:
		return provider.SignInWithCredentials(ctx, c.Email, c.Password)
	case domainauth.SignInWithPopup:
		return identityOf(provider.SignInWithPopup(ctx, c.Provider))
	case domainauth.SignInWithRedirect:
		return identityOf(provider.SignInWithRedirect(ctx, c.Provider))
	case domainauth.CompleteRedirectSignIn:
		return identityOf(provider.CompleteRedirectSignIn(ctx))
	case domainauth.SignInAnonymously:
		return provider.SignInAnonymously(ctx)
	case domainauth.SignOut:
		if err := provider.SignOut(ctx); err != nil {
			return nil, err
		}
		return nil, nil //nolint:nilnil // signed out
	default:
		return nil, nil //nolint:nilnil // no-op command
	}
}

// dispatches reports whether Dispatch calls the provider for cmd.
func dispatches(cmd domainauth.Command) bool {
	switch cmd.(type) {
	case domainauth.CreateAccount,
		domainauth.SignInWithCredentials,
		domainauth.SignInWithPopup,
		domainauth.SignInWithRedirect,
		domainauth.CompleteRedirectSignIn,
		domainauth.SignInAnonymously,
		domainauth.SignOut:
		return true
	default:
		return false
	}
}

func identityOf(cred domainauth.UserCredential, err error) (*domainauth.Identity, error) {
	if err != nil {
		return nil, err
	}
	return cred.Identity, nil
}

// dispatchSafely runs Dispatch and turns a provider panic into an internal provider error.
func dispatchSafely(
	ctx context.Context,
	cmd domainauth.Command,
	provider ports.IdentityProvider,
) (identity *domainauth.Identity, err error) {
	defer func() {
		if r := recover(); r != nil {
			identity = nil
			err = &domainauth.ProviderError{
				Code:    domainauth.CodeInternal,
				Message: fmt.Sprintf("provider panic: %v", r),
			}
		}
	}()
	return Dispatch(ctx, cmd, provider)
}
