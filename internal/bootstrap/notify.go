package bootstrap

import (
	"log/slog"

	"github.com/motorcyclejs/authstream/config"
	"github.com/motorcyclejs/authstream/internal/observability/notify/pagerduty"
	"github.com/motorcyclejs/authstream/internal/observability/notify/slack"
	"github.com/motorcyclejs/authstream/internal/service/authnotifier"
)

func buildAuthNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *authnotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return authnotifier.NewService(authnotifier.Options{
			Logger: baseLogger.With("component", "auth_notifier"),
		})
	}

	sinks := make([]authnotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:    cfg.Slack.WebhookURL,
			Channel:       cfg.Slack.Channel,
			Username:      cfg.Slack.Username,
			Timeout:       cfg.Timeout,
			RetryLimit:    cfg.RetryLimit,
			UserURLPrefix: cfg.Slack.UserURLPrefix,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, authnotifier.SinkRegistration{
				Name: "slack",
				Sink: client,
			})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			// Sign-ins resolve the incidents PagerDuty opened.
			sinks = append(sinks, authnotifier.SinkRegistration{
				Name:           "pagerduty",
				Sink:           client,
				SessionChanges: true,
			})
		}
	}

	return authnotifier.NewService(authnotifier.Options{
		Logger:                baseLogger.With("component", "auth_notifier"),
		Sinks:                 sinks,
		IncludeSessionChanges: cfg.IncludeSessionChanges,
	})
}
