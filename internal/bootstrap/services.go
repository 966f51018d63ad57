package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/motorcyclejs/authstream/config"
	"github.com/motorcyclejs/authstream/internal/adapters/oidc"
	"github.com/motorcyclejs/authstream/internal/adapters/reaper"
	domainauth "github.com/motorcyclejs/authstream/internal/domain/auth"
	"github.com/motorcyclejs/authstream/internal/observability/statsd"
	"github.com/motorcyclejs/authstream/internal/ports"
	"github.com/motorcyclejs/authstream/internal/service"
)

// ErrStreamStopped is returned when the status engine stops while services still depend on it.
var ErrStreamStopped = errors.New("auth status stream stopped unexpectedly")

// BuildMetrics creates the StatsD sink. A disabled config yields a client that drops every metric.
// Every metric is tagged with the auth mode.
func BuildMetrics(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*statsd.Client, error) {
	metricsCfg := cfg.Observability.Metrics
	client, err := statsd.NewClient(ctx, statsd.Config{
		Enabled:       metricsCfg.IsEnabled(),
		Address:       metricsCfg.StatsdAddress,
		Prefix:        metricsCfg.Prefix,
		Logger:        logger,
		GlobalTags:    map[string]string{"auth_mode": string(cfg.Auth.Mode)},
		FlushInterval: metricsCfg.FlushInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise statsd client: %w", err)
	}
	return client, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Provider ports.IdentityProvider
	// Flow is set when federated sign-in is configured.
	Flow    *oidc.Flow
	Metrics statsd.Sink
	Logger  *slog.Logger
}

// RunServicesWithShutdown starts the status engine and every enabled service, then blocks until
// a shutdown signal arrives, ctx ends, or a service fails.
func RunServicesWithShutdown(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)

	commands := make(chan domainauth.Command, cfg.Config.Engine.CommandBuffer)
	stream, err := service.Run(gctx, commands, cfg.Provider, service.Options{
		Logger:           logger,
		Metrics:          cfg.Metrics,
		CancelSuperseded: cfg.Config.Engine.CancelSuperseded,
		CommandTimeout:   cfg.Config.Engine.CommandTimeout,
	})
	if err != nil {
		return fmt.Errorf("start auth status engine: %w", err)
	}
	defer stream.Close()

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-stream.Done():
			if gctx.Err() != nil {
				return nil
			}
			return ErrStreamStopped
		}
	})

	if enabledServices[config.ServiceModeHTTP] {
		startHTTP(gctx, g, cfg, httpDeps{stream: stream, commands: commands, logger: logger})
	}

	if enabledServices[config.ServiceModeWatch] {
		g.Go(func() error {
			logger.InfoContext(gctx, "background service started", "service", "status watcher")
			runStatusWatcher(gctx, stream, logger)
			logger.Info("status watcher stopped")
			return nil
		})
	}

	if cfg.Flow != nil {
		if err := startReaper(gctx, g, cfg, logger); err != nil {
			return err
		}
	}

	if notifier := buildAuthNotifier(logger, cfg.Config.Observability.Notifications); notifier.Enabled() {
		g.Go(func() error {
			logger.InfoContext(gctx, "background service started", "service", "auth notifier")
			notifier.Run(gctx, stream)
			logger.Info("auth notifier stopped")
			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		logger.Error("service error", "error", err)
	} else {
		logger.Info("services stopped")
	}
	return err
}

type httpDeps struct {
	stream   *service.Stream
	commands chan<- domainauth.Command
	logger   *slog.Logger
}

func startHTTP(ctx context.Context, g *errgroup.Group, cfg *ServiceOrchestrationConfig, deps httpDeps) {
	server := NewHTTPServer(HTTPServerConfig{
		HTTP:     cfg.Config.HTTP,
		Stream:   deps.stream,
		Commands: deps.commands,
		Flow:     cfg.Flow,
		Logger:   deps.logger,
	})

	g.Go(func() error {
		deps.logger.InfoContext(ctx, "starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		// Open status streams end once the engine has closed their subscriptions.
		<-deps.stream.Done()
		return ShutdownHTTPServer(ctx, server, cfg.Config.HTTP.ShutdownTimeout, deps.logger)
	})
}

func startReaper(ctx context.Context, g *errgroup.Group, cfg *ServiceOrchestrationConfig, logger *slog.Logger) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		Sweeper:  cfg.Flow,
		Interval: cfg.Config.Auth.OAuth.SweepInterval,
		Logger:   logger,
		Metrics:  cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create federated reaper: %w", err)
	}
	g.Go(func() error {
		logger.InfoContext(ctx, "background service started", "service", "federated reaper")
		return runner.Run(ctx)
	})
	return nil
}

// runStatusWatcher logs every status the engine emits until ctx ends or the stream stops.
func runStatusWatcher(ctx context.Context, stream statusSource, logger *slog.Logger) {
	statuses, cancel := stream.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-statuses:
			if !ok {
				return
			}
			logStatus(ctx, logger, st)
		}
	}
}

type statusSource interface {
	Subscribe() (<-chan domainauth.Status, func())
}

func logStatus(ctx context.Context, logger *slog.Logger, st domainauth.Status) {
	attrs := []any{"signed_in", st.SignedIn()}
	if st.Identity != nil {
		attrs = append(attrs, "uid", st.Identity.UID, "provider", st.Identity.ProviderID, "anonymous", st.Identity.IsAnonymous)
	}
	if st.Error != nil {
		attrs = append(attrs, "error_code", st.Error.Code, "error_message", st.Error.Message)
		logger.WarnContext(ctx, "auth status", attrs...)
		return
	}
	logger.InfoContext(ctx, "auth status", attrs...)
}
