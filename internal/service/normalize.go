package service

import (
	"context"
	"errors"

	domainauth "github.com/motorcyclejs/authstream/internal/domain/auth"
	apperrors "github.com/motorcyclejs/authstream/internal/errors"
)

// Normalize converts a provider outcome into a Status. A failure yields a Status with
// only Error set; a success yields one with only Identity set (nil for signed out).
func Normalize(identity *domainauth.Identity, err error) domainauth.Status {
	if err != nil {
		info := ErrorInfoFrom(err)
		return domainauth.Status{Error: &info}
	}
	return domainauth.Status{Identity: identity}
}

// ErrorInfoFrom extracts the code and message of a provider failure.
// Provider errors keep their code and message verbatim; everything else is mapped
// onto an auth/* code so consumers always see the same shape.
func ErrorInfoFrom(err error) domainauth.ErrorInfo {
	if err == nil {
		return domainauth.ErrorInfo{}
	}

	var pe *domainauth.ProviderError
	if errors.As(err, &pe) && pe != nil {
		return domainauth.ErrorInfo{Code: pe.Code, Message: providerMessage(pe)}
	}

	switch {
	case errors.Is(err, context.Canceled):
		return domainauth.ErrorInfo{Code: domainauth.CodeCancelled, Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return domainauth.ErrorInfo{Code: domainauth.CodeTimeout, Message: err.Error()}
	}

	if appErr, ok := apperrors.As(err); ok {
		msg := appErr.Message
		if msg == "" {
			msg = err.Error()
		}
		return domainauth.ErrorInfo{Code: appErr.AuthCode(), Message: msg}
	}

	return domainauth.ErrorInfo{Code: domainauth.CodeInternal, Message: err.Error()}
}

func providerMessage(pe *domainauth.ProviderError) string {
	switch {
	case pe.Message != "":
		return pe.Message
	case pe.Err != nil:
		return pe.Err.Error()
	default:
		return pe.Code
	}
}
