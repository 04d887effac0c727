package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	interceptorpkg "github.com/compozy/graphsync/engine/infra/monitoring/interceptor"
	"github.com/compozy/graphsync/engine/infra/monitoring/middleware"
	"github.com/compozy/graphsync/pkg/logger"
	"github.com/gin-gonic/gin"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "graphsync"

// Service owns the meter provider and the Prometheus registry backing /metrics.
type Service struct {
	meter             metric.Meter
	provider          *sdkmetric.MeterProvider
	registry          *prom.Registry
	systemMetrics     metric.Registration
	temporal          *interceptorpkg.WorkerMetrics
	config            *Config
	initialized       bool
	initializationErr error
}

func newDisabledService(cfg *Config, initErr error) *Service {
	return &Service{
		config:            cfg,
		meter:             noop.NewMeterProvider().Meter(meterName),
		initializationErr: initErr,
	}
}

// NewMonitoringService creates a monitoring service with a Prometheus exporter.
// A disabled config yields a service backed by a no-op meter.
func NewMonitoringService(ctx context.Context, cfg *Config) (*Service, error) {
	log := logger.FromContext(ctx)
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		log.Debug("Monitoring disabled, using no-op meter")
		return newDisabledService(cfg, nil), nil
	}
	registry := prom.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(meterName)
	reg, err := initSystemMetrics(ctx, meter, time.Now())
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to register system metrics: %w", err), provider.Shutdown(ctx))
	}
	log.Info("Monitoring service initialized", "addr", cfg.Addr, "path", cfg.Path)
	return &Service{
		meter:         meter,
		provider:      provider,
		registry:      registry,
		systemMetrics: reg,
		config:        cfg,
		initialized:   true,
	}, nil
}

// NewMonitoringServiceWithFallback never fails: initialization errors are
// logged and a no-op service is returned instead.
func NewMonitoringServiceWithFallback(ctx context.Context, cfg *Config) *Service {
	service, err := NewMonitoringService(ctx, cfg)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to initialize monitoring, using no-op implementation", "error", err)
		if cfg == nil {
			cfg = DefaultConfig()
		}
		return newDisabledService(cfg, err)
	}
	return service
}

// Meter returns the meter for custom instrumentation.
func (s *Service) Meter() metric.Meter {
	return s.meter
}

// Config returns the effective monitoring configuration.
func (s *Service) Config() *Config {
	return s.config
}

// TemporalInterceptor returns the worker interceptor recording workflow and
// activity metrics. Repeated calls share the same instruments.
func (s *Service) TemporalInterceptor(ctx context.Context) *interceptorpkg.WorkerMetrics {
	if s.temporal != nil {
		return s.temporal
	}
	if !s.initialized {
		s.temporal = interceptorpkg.TemporalMetrics(ctx, nil)
	} else {
		s.temporal = interceptorpkg.TemporalMetrics(ctx, s.meter)
	}
	return s.temporal
}

// GinMiddleware returns request metrics middleware for the ops endpoint.
func (s *Service) GinMiddleware(ctx context.Context) gin.HandlerFunc {
	if !s.initialized {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.HTTPMetrics(logger.FromContext(ctx), s.meter)
}

// ExporterHandler serves the Prometheus exposition format.
func (s *Service) ExporterHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.initialized {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, err := w.Write([]byte("Monitoring service not initialized")); err != nil {
				logger.FromContext(r.Context()).Error("Failed to write response", "error", err)
			}
			return
		}
		promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

// IsInitialized reports whether the exporter is active.
func (s *Service) IsInitialized() bool {
	return s.initialized
}

// InitializationError returns the error that forced the no-op fallback, if any.
func (s *Service) InitializationError() error {
	return s.initializationErr
}

// Shutdown flushes and stops the meter provider.
func (s *Service) Shutdown(ctx context.Context) error {
	var errs []error
	if s.systemMetrics != nil {
		errs = append(errs, s.systemMetrics.Unregister())
	}
	if s.provider != nil {
		errs = append(errs, s.provider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
