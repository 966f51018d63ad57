package auth

import (
	"encoding/json"
	"strings"

	apperrors "github.com/motorcyclejs/authstream/internal/errors"
)

// Method is the wire name of a command, as accepted by DecodeCommand.
type Method string

const (
	MethodCreateAccount          Method = "CREATE_USER"
	MethodSignInWithCredentials  Method = "EMAIL_AND_PASSWORD"
	MethodSignInWithPopup        Method = "POPUP"
	MethodSignInWithRedirect     Method = "REDIRECT"
	MethodCompleteRedirectSignIn Method = "GET_REDIRECT_RESULT"
	MethodSignInAnonymously      Method = "ANONYMOUSLY"
	MethodSignOut                Method = "SIGN_OUT"
)

// Command is a discrete authentication action. The set of implementations is closed;
// dispatch switches over the concrete types below.
type Command interface {
	Method() Method
	command()
}

// CreateAccount registers a new email/password account and signs it in.
type CreateAccount struct {
	Email    string
	Password string
}

// SignInWithCredentials signs in with an email and password.
type SignInWithCredentials struct {
	Email    string
	Password string
}

// SignInWithPopup runs an interactive federated sign-in and waits for its outcome.
type SignInWithPopup struct {
	Provider ProviderRef
}

// SignInWithRedirect initiates a federated sign-in that completes out of band.
type SignInWithRedirect struct {
	Provider ProviderRef
}

// CompleteRedirectSignIn collects the result of a previously initiated redirect, if any.
type CompleteRedirectSignIn struct{}

// SignInAnonymously creates an anonymous session.
type SignInAnonymously struct{}

// SignOut ends the current session.
type SignOut struct{}

// Unrecognized carries input whose method is not known. Dispatching it is a no-op.
type Unrecognized struct {
	Raw Method
}

func (CreateAccount) Method() Method          { return MethodCreateAccount }
func (SignInWithCredentials) Method() Method  { return MethodSignInWithCredentials }
func (SignInWithPopup) Method() Method        { return MethodSignInWithPopup }
func (SignInWithRedirect) Method() Method     { return MethodSignInWithRedirect }
func (CompleteRedirectSignIn) Method() Method { return MethodCompleteRedirectSignIn }
func (SignInAnonymously) Method() Method      { return MethodSignInAnonymously }
func (SignOut) Method() Method                { return MethodSignOut }
func (u Unrecognized) Method() Method         { return u.Raw }

func (CreateAccount) command()          {}
func (SignInWithCredentials) command()  {}
func (SignInWithPopup) command()        {}
func (SignInWithRedirect) command()     {}
func (CompleteRedirectSignIn) command() {}
func (SignInAnonymously) command()      {}
func (SignOut) command()                {}
func (Unrecognized) command()           {}

// NewCreateAccount validates and builds a CreateAccount command.
func NewCreateAccount(email, password string) (CreateAccount, error) {
	if err := validateCredentials(email, password); err != nil {
		return CreateAccount{}, err
	}
	return CreateAccount{Email: strings.TrimSpace(email), Password: password}, nil
}

// NewSignInWithCredentials validates and builds a SignInWithCredentials command.
func NewSignInWithCredentials(email, password string) (SignInWithCredentials, error) {
	if err := validateCredentials(email, password); err != nil {
		return SignInWithCredentials{}, err
	}
	return SignInWithCredentials{Email: strings.TrimSpace(email), Password: password}, nil
}

// NewSignInWithPopup validates and builds a SignInWithPopup command.
func NewSignInWithPopup(provider ProviderRef) (SignInWithPopup, error) {
	if err := validateProvider(provider); err != nil {
		return SignInWithPopup{}, err
	}
	return SignInWithPopup{Provider: provider}, nil
}

// NewSignInWithRedirect validates and builds a SignInWithRedirect command.
func NewSignInWithRedirect(provider ProviderRef) (SignInWithRedirect, error) {
	if err := validateProvider(provider); err != nil {
		return SignInWithRedirect{}, err
	}
	return SignInWithRedirect{Provider: provider}, nil
}

func validateCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" {
		return apperrors.ValidationField("email", "email is required")
	}
	if password == "" {
		return apperrors.ValidationField("password", "password is required")
	}
	return nil
}

func validateProvider(provider ProviderRef) error {
	if strings.TrimSpace(provider.ID) == "" {
		return apperrors.ValidationField("provider", "provider is required")
	}
	return nil
}

// commandPayload is the JSON wire shape of a command.
type commandPayload struct {
	Method   Method       `json:"method"`
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Provider *ProviderRef `json:"provider"`
}

// DecodeCommand parses the JSON wire shape of a command.
// Unknown methods decode to Unrecognized; known methods missing required fields are rejected.
func DecodeCommand(data []byte) (Command, error) {
	var p commandPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "decode command")
	}
	return p.command()
}

func (p commandPayload) command() (Command, error) {
	switch p.Method {
	case MethodCreateAccount:
		return orNil(NewCreateAccount(p.Email, p.Password))
	case MethodSignInWithCredentials:
		return orNil(NewSignInWithCredentials(p.Email, p.Password))
	case MethodSignInWithPopup:
		return orNil(NewSignInWithPopup(p.provider()))
	case MethodSignInWithRedirect:
		return orNil(NewSignInWithRedirect(p.provider()))
	case MethodCompleteRedirectSignIn:
		return CompleteRedirectSignIn{}, nil
	case MethodSignInAnonymously:
		return SignInAnonymously{}, nil
	case MethodSignOut:
		return SignOut{}, nil
	default:
		return Unrecognized{Raw: p.Method}, nil
	}
}

// orNil keeps a rejected command from leaking out as a non-nil zero value.
func orNil(cmd Command, err error) (Command, error) {
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

func (p commandPayload) provider() ProviderRef {
	if p.Provider == nil {
		return ProviderRef{}
	}
	return *p.Provider
}
