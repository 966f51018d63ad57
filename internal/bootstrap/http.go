package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/motorcyclejs/authstream/config"
	"github.com/motorcyclejs/authstream/internal/adapters/oidc"
	domainauth "github.com/motorcyclejs/authstream/internal/domain/auth"
	httpx "github.com/motorcyclejs/authstream/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	HTTP     config.HTTPConfig
	Stream   httpx.StatusStream
	Commands chan<- domainauth.Command
	// Flow is optional; the OIDC callback route is registered only when set.
	Flow   *oidc.Flow
	Logger *slog.Logger
}

// NewHTTPServer builds the HTTP server without starting it.
func NewHTTPServer(cfg HTTPServerConfig) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	auth := &httpx.AuthHandlers{
		Stream:          cfg.Stream,
		Commands:        cfg.Commands,
		MaxBodyBytes:    cfg.HTTP.MaxBodyBytes,
		StreamKeepAlive: cfg.HTTP.StreamKeepAlive,
		Logger:          logger,
	}
	if cfg.Flow != nil {
		auth.Callback = cfg.Flow
	}

	handler := buildHTTPHandler(logger, httpx.NewRouter(httpx.RouterServices{Auth: auth, Logger: logger}))

	// Guard against empty addr to avoid listening on Go default
	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}

	// No WriteTimeout: status streams stay open for as long as the client listens.
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Order: Recover -> RequestID -> Logging -> Router.
func buildHTTPHandler(logger *slog.Logger, router http.Handler) http.Handler {
	h := httpx.Logging(logger)(router)
	h = httpx.RequestID()(h)
	h = httpx.Recover(logger)(h)
	return h
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, timeout time.Duration, logger *slog.Logger) error {
	if server == nil {
		return nil
	}

	if logger != nil {
		logger.InfoContext(ctx, "shutting down HTTP server")
	}

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if logger != nil {
		logger.InfoContext(ctx, "HTTP server stopped")
	}

	return nil
}
