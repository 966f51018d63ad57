package auth

// Package auth contains domain-level types for authentication status and commands.
// It is pure and free of framework/adapter concerns.

import "fmt"

// Identity represents the signed-in principal returned by an identity provider.
// The status pipeline only cares whether one is present; adapters fill the fields.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	IsAnonymous bool   `json:"is_anonymous"`
	ProviderID  string `json:"provider_id,omitempty"` // e.g. "password", "anonymous", "google"
}

// ErrorInfo is the normalized shape of any provider failure.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ErrorInfo) String() string { return e.Code + ": " + e.Message }

// Status is an immutable snapshot of the current authentication state.
// A nil Error means success; a nil Identity means nobody is signed in.
type Status struct {
	Error    *ErrorInfo `json:"error"`
	Identity *Identity  `json:"user"`
}

// Failed reports whether the status carries an error.
func (s Status) Failed() bool { return s.Error != nil }

// SignedIn reports whether the status carries an identity.
func (s Status) SignedIn() bool { return s.Identity != nil }

// Credential describes the federated credential that accompanied an interactive sign-in.
type Credential struct {
	ProviderID  string `json:"provider_id"`
	AccessToken string `json:"-"`
	IDToken     string `json:"-"`
}

// UserCredential is what popup, redirect and redirect-result operations resolve to.
// Identity may legitimately be nil, for example right after a redirect was initiated.
type UserCredential struct {
	Identity   *Identity
	Credential *Credential
}

// ProviderRef names a federated identity provider for popup and redirect sign-in.
type ProviderRef struct {
	ID     string   `json:"id"`
	Scopes []string `json:"scopes,omitempty"`
}

// ProviderError is the error shape identity provider adapters return.
// Code follows the "auth/<kebab-case>" convention.
type ProviderError struct {
	Code    string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewProviderError builds a ProviderError with a message.
func NewProviderError(code, message string) *ProviderError {
	return &ProviderError{Code: code, Message: message}
}

// Provider error codes shared by the adapters.
const (
	CodeEmailAlreadyInUse    = "auth/email-already-in-use"
	CodeUserNotFound         = "auth/user-not-found"
	CodeWrongPassword        = "auth/wrong-password"
	CodeInvalidEmail         = "auth/invalid-email"
	CodeWeakPassword         = "auth/weak-password"
	CodeOperationNotAllowed  = "auth/operation-not-allowed"
	CodePopupClosedByUser    = "auth/popup-closed-by-user"
	CodeInvalidState         = "auth/invalid-state"
	CodeNetworkRequestFailed = "auth/network-request-failed"
	CodeCancelled            = "auth/cancelled"
	CodeTimeout              = "auth/timeout"
	CodeInternal             = "auth/internal-error"
)
