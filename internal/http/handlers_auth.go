package httpx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/motorcyclejs/authstream/internal/adapters/oidc"
	domainauth "github.com/motorcyclejs/authstream/internal/domain/auth"
	apperrors "github.com/motorcyclejs/authstream/internal/errors"
	"github.com/motorcyclejs/authstream/internal/service"
)

const (
	defaultMaxBodyBytes    = 64 << 10
	defaultStreamKeepAlive = 15 * time.Second
)

// StatusStream is the read side of the auth status engine. *service.Stream implements it.
type StatusStream interface {
	Subscribe() (<-chan domainauth.Status, func())
	Latest() domainauth.Status
	Done() <-chan struct{}
}

// CallbackCompleter finishes a federated sign-in. *oidc.Flow implements it.
type CallbackCompleter interface {
	Callback(ctx context.Context, in oidc.CallbackInput) (domainauth.UserCredential, error)
}

// AuthHandlers provides HTTP handlers for auth commands and the status stream.
type AuthHandlers struct {
	Stream   StatusStream
	Commands chan<- domainauth.Command
	// Callback is optional; without it the OIDC callback route is not registered.
	Callback        CallbackCompleter
	MaxBodyBytes    int64
	StreamKeepAlive time.Duration
	Logger          *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type commandAccepted struct {
	Method domainauth.Method `json:"method"`
}

// SubmitCommand queues a command for the status engine.
// POST /auth/commands with the JSON command shape, e.g. {"method":"SIGN_OUT"}.
func (h *AuthHandlers) SubmitCommand(w http.ResponseWriter, r *http.Request) {
	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	cmd, err := domainauth.DecodeCommand(body)
	if err != nil {
		status, code := commandErrorStatus(err)
		writeError(w, status, code, err.Error())
		return
	}

	select {
	case h.Commands <- cmd:
	case <-h.Stream.Done():
		writeError(w, http.StatusServiceUnavailable, "stream_stopped", "auth status stream has stopped")
		return
	case <-r.Context().Done():
		return
	}

	h.logger().DebugContext(r.Context(), "auth command queued", "method", cmd.Method())
	writeJSON(w, http.StatusAccepted, commandAccepted{Method: cmd.Method()})
}

// Status returns the latest auth status.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Stream.Latest())
}

// StreamStatus streams every auth status as server-sent events, starting with the latest one.
// GET /auth/status/stream.
func (h *AuthHandlers) StreamStatus(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming is not supported by this connection")
		return
	}

	statuses, cancel := h.Stream.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := h.StreamKeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultStreamKeepAlive
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case st, open := <-statuses:
			if !open {
				return
			}
			if err := writeStatusEvent(w, st); err != nil {
				h.logger().DebugContext(ctx, "status stream write failed", "error", err)
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

type callbackResponse struct {
	SignedIn bool                 `json:"signed_in"`
	User     *domainauth.Identity `json:"user,omitempty"`
}

// OAuthCallback completes a federated sign-in started by a popup or redirect command.
// GET /auth/callback?code=<code>&state=<state>.
func (h *AuthHandlers) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := oidc.CallbackInput{
		State:            q.Get("state"),
		Code:             q.Get("code"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}

	cred, err := h.Callback.Callback(r.Context(), in)
	if err != nil {
		writeErrorInfo(w, http.StatusBadRequest, service.ErrorInfoFrom(err))
		return
	}

	writeJSON(w, http.StatusOK, callbackResponse{SignedIn: cred.Identity != nil, User: cred.Identity})
}

func commandErrorStatus(err error) (int, string) {
	if appErr, ok := apperrors.As(err); ok {
		return appErr.HTTPStatus(), string(appErr.Code)
	}
	return http.StatusBadRequest, "invalid_command"
}
