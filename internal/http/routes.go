package httpx

import (
	"log/slog"
	"net/http"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Auth   *AuthHandlers
	Logger *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	var stream StatusStream
	if services.Auth != nil {
		stream = services.Auth.Stream
		registerAuthRoutes(mux, services.Auth)
	}

	health := healthHandler(stream)
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)

	return mux
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("POST /auth/commands", h.SubmitCommand)
	mux.HandleFunc("GET /auth/status", h.Status)
	mux.HandleFunc("GET /auth/status/stream", h.StreamStatus)
	if h.Callback != nil {
		mux.HandleFunc("GET /auth/callback", h.OAuthCallback)
	}
}
