// Package mocks provides generated mock implementations for testing the auth status engine.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	provider := mocks.NewMockIdentityProvider(ctrl)
//	provider.EXPECT().SignOut(gomock.Any()).Return(nil)
package mocks

// Generate mock for IdentityProvider interface from internal/ports package.
// This creates MockIdentityProvider with methods for all IdentityProvider interface methods:
// CreateAccount, SignInWithCredentials, SignInWithPopup, SignInWithRedirect,
// CompleteRedirectSignIn, SignInAnonymously, SignOut, OnSessionChange
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=identity_provider_mock.go github.com/motorcyclejs/authstream/internal/ports IdentityProvider
