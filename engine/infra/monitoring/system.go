package monitoring

import (
	"context"
	"time"

	"github.com/compozy/graphsync/engine/infra/monitoring/metrics"
	"github.com/compozy/graphsync/pkg/logger"
	"github.com/compozy/graphsync/pkg/version"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// initSystemMetrics registers the build info and uptime gauges on meter.
func initSystemMetrics(ctx context.Context, meter metric.Meter, started time.Time) (metric.Registration, error) {
	log := logger.FromContext(ctx)
	build := version.Get()
	buildInfo, err := meter.Int64ObservableGauge(
		metrics.MetricName("build_info"),
		metric.WithDescription("Build information (value=1)"),
	)
	if err != nil {
		return nil, err
	}
	uptime, err := meter.Float64ObservableGauge(
		metrics.MetricName("uptime_seconds"),
		metric.WithDescription("Process uptime in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	buildAttrs := metric.WithAttributes(
		attribute.String("version", build.Version),
		attribute.String("commit_hash", build.CommitHash),
		attribute.String("go_version", build.GoVersion),
	)
	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(buildInfo, 1, buildAttrs)
		o.ObserveFloat64(uptime, time.Since(started).Seconds())
		return nil
	}, buildInfo, uptime)
	if err != nil {
		return nil, err
	}
	log.Debug("System metrics initialized", "version", build.Version, "commit", build.CommitHash)
	return reg, nil
}
