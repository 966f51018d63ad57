package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/motorcyclejs/authstream/internal/domain/auth"
)

func TestMockIdentityProvider_Defaults(t *testing.T) {
	provider := NewMockIdentityProvider()
	ctx := context.Background()

	user, err := provider.SignInWithCredentials(ctx, "a@x.com", "p")
	require.NoError(t, err)
	assert.Equal(t, "mock-user-1", user.UID)
	assert.Equal(t, "a@x.com", user.Email)

	cred, err := provider.SignInWithPopup(ctx, domainauth.ProviderRef{ID: "google"})
	require.NoError(t, err)
	require.NotNil(t, cred.Identity)
	assert.Equal(t, "google", cred.Identity.ProviderID)

	cred, err = provider.SignInWithRedirect(ctx, domainauth.ProviderRef{ID: "google"})
	require.NoError(t, err)
	assert.Nil(t, cred.Identity)

	anon, err := provider.SignInAnonymously(ctx)
	require.NoError(t, err)
	assert.True(t, anon.IsAnonymous)

	require.NoError(t, provider.SignOut(ctx))

	assert.Equal(t, []domainauth.Method{
		domainauth.MethodSignInWithCredentials,
		domainauth.MethodSignInWithPopup,
		domainauth.MethodSignInWithRedirect,
		domainauth.MethodSignInAnonymously,
		domainauth.MethodSignOut,
	}, provider.Calls())
}

func TestMockIdentityProvider_CustomFunc(t *testing.T) {
	want := domainauth.NewProviderError(domainauth.CodeEmailAlreadyInUse, "taken")
	provider := &MockIdentityProvider{
		CreateAccountFunc: func(context.Context, string, string) (*domainauth.Identity, error) {
			return nil, want
		},
	}

	user, err := provider.CreateAccount(context.Background(), "a@x.com", "p")
	assert.Nil(t, user)
	assert.ErrorIs(t, err, want)
	assert.Equal(t, []domainauth.Method{domainauth.MethodCreateAccount}, provider.Calls())
}

func TestMockIdentityProvider_Listeners(t *testing.T) {
	provider := NewMockIdentityProvider()

	var got []*domainauth.Identity
	unregister, err := provider.OnSessionChange(func(id *domainauth.Identity) { got = append(got, id) })
	require.NoError(t, err)
	assert.Equal(t, 1, provider.ListenerCount())

	provider.Emit(&domainauth.Identity{UID: "u1"})
	provider.Emit(nil)

	unregister()
	unregister()
	assert.Equal(t, 0, provider.ListenerCount())

	provider.Emit(&domainauth.Identity{UID: "u2"})
	require.Len(t, got, 2)
	assert.Equal(t, "u1", got[0].UID)
	assert.Nil(t, got[1])
}

func TestMockIdentityProvider_RegistrationFailure(t *testing.T) {
	provider := &MockIdentityProvider{OnSessionChangeErr: errors.New("listener unavailable")}

	unregister, err := provider.OnSessionChange(func(*domainauth.Identity) {})
	require.Error(t, err)
	assert.Nil(t, unregister)
	assert.Equal(t, 0, provider.ListenerCount())
}
