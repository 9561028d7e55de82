package bootstrap

import (
	"context"
	"io"
	"log/slog"

	"github.com/kramabill/billing-krama/config"
	"github.com/kramabill/billing-krama/internal/observability/statsd"
)

// NewMetrics returns the metrics sink. When metrics are disabled, or the
// agent cannot be dialled, the sink drops everything and the CLI keeps
// working.
func NewMetrics(ctx context.Context, cfg config.ObservabilityMetricsConfig, logger *slog.Logger) (statsd.Sink, io.Closer) {
	if !cfg.IsEnabled() {
		return statsd.Discard, nopCloser{}
	}
	client, err := statsd.NewClient(ctx, statsd.Config{
		Enabled: true,
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
	if err != nil {
		if logger != nil {
			logger.Error("failed to initialise statsd client", "error", err)
		}
		return statsd.Discard, nopCloser{}
	}
	return client, client
}
