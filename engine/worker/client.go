package worker

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/compozy/graphsync/pkg/config"
	"github.com/compozy/graphsync/pkg/logger"
	"github.com/gosimple/slug"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"
)

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

type Client struct {
	client.Client
	config *config.TemporalConfig
}

type ClientOption func(*client.Options)

// WithIdentity overrides the identity reported to the engine.
func WithIdentity(identity string) ClientOption {
	return func(o *client.Options) {
		if identity != "" {
			o.Identity = identity
		}
	}
}

// WithClientInterceptors appends client interceptors.
func WithClientInterceptors(interceptors ...interceptor.ClientInterceptor) ClientOption {
	return func(o *client.Options) {
		o.Interceptors = append(o.Interceptors, interceptors...)
	}
}

// NewClient dials the engine. A dial failure is fatal for every caller, so
// it is returned wrapped rather than retried here.
func NewClient(ctx context.Context, cfg *config.TemporalConfig, opts ...ClientOption) (*Client, error) {
	log := logger.FromContext(ctx)
	options := client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    log.With("component", "temporal"),
	}
	for _, opt := range opts {
		opt(&options)
	}
	dialStart := time.Now()
	temporalClient, err := client.DialContext(ctx, options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to temporal at %s: %w", cfg.HostPort, err)
	}
	log.Debug("Temporal client connected",
		"host_port", cfg.HostPort,
		"namespace", cfg.Namespace,
		"duration", time.Since(dialStart),
	)
	return &Client{
		Client: temporalClient,
		config: cfg,
	}, nil
}

func (c *Client) Config() *config.TemporalConfig {
	return c.config
}

func (c *Client) NewWorker(taskQueue string, options *worker.Options) worker.Worker {
	if options == nil {
		return worker.New(c.Client, taskQueue, worker.Options{})
	}
	return worker.New(c.Client, taskQueue, *options)
}

func (c *Client) taskWorkerFactory() taskWorkerFactory {
	return func(taskQueue string, options worker.Options) taskWorker {
		return c.NewWorker(taskQueue, &options)
	}
}

// Identity builds a stable, readable worker identity such as
// "graphsync-activity-host-1-4242". A configured identity is slugified as is.
func Identity(role Role, configured string) string {
	if configured != "" {
		return slug.Make(configured)
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", slug.Make(fmt.Sprintf("graphsync %s %s", role, host)), os.Getpid())
}
