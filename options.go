package agata

import (
	"io/fs"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	errors2 "github.com/xraph/agata/errors"
	"github.com/xraph/agata/logger"
)

// =============================================================================
// CONFIGURATION STORAGE STRUCTURE
// =============================================================================

// options stores broker configuration before the broker is built.
type options struct {
	logger logger.Logger

	registerer       prometheus.Registerer
	metricsNamespace string

	tracerProvider trace.TracerProvider

	hooks []hookRegistration

	discoveryFS    fs.FS
	discoveryPaths DiscoveryConfig
	catalog        *Catalog
}

type hookRegistration struct {
	event Event
	opts  HookOptions
	hook  Hook
}

// Option configures a Broker.
type Option func(*options) error

// =============================================================================
// OPTIONS
// =============================================================================

// WithLogger sets the logger. The broker logs under the "agata" name.
func WithLogger(l logger.Logger) Option {
	return func(o *options) error {
		if l == nil {
			return errors2.ErrConfigError("logger cannot be nil", nil)
		}

		o.logger = l

		return nil
	}
}

// WithMetrics registers the broker collectors on reg. Every broker adds a
// const "broker" label, so several brokers can share one registry.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = reg
		return nil
	}
}

// WithMetricsNamespace overrides the metric name prefix.
func WithMetricsNamespace(namespace string) Option {
	return func(o *options) error {
		o.metricsNamespace = namespace
		return nil
	}
}

// WithTracerProvider sets the provider spans are created with.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) error {
		o.tracerProvider = tp
		return nil
	}
}

// WithHook registers a hook before any unit can emit an event.
func WithHook(event Event, opts HookOptions, hook Hook) Option {
	return func(o *options) error {
		o.hooks = append(o.hooks, hookRegistration{event: event, opts: opts, hook: hook})
		return nil
	}
}

// WithDiscovery loads unit manifests from fsys. Manifests are bound to code
// through the catalog given with WithCatalog.
func WithDiscovery(fsys fs.FS, paths DiscoveryConfig) Option {
	return func(o *options) error {
		if fsys == nil {
			return errors2.ErrConfigError("discovery filesystem cannot be nil", nil)
		}

		o.discoveryFS = fsys
		o.discoveryPaths = paths

		return nil
	}
}

// WithCatalog sets the catalog discovered manifests are bound with.
func WithCatalog(c *Catalog) Option {
	return func(o *options) error {
		o.catalog = c
		return nil
	}
}

// WithConfig applies a loaded Config.
func WithConfig(cfg Config) Option {
	return func(o *options) error {
		for _, opt := range cfg.Options() {
			if err := opt(o); err != nil {
				return err
			}
		}

		return nil
	}
}

// Options converts the config into broker options. Metrics are registered on
// the default Prometheus registerer; tracing uses the global provider unless
// disabled.
func (c Config) Options() []Option {
	opts := []Option{
		WithLogger(logger.NewLogger(c.Logging)),
	}

	if c.Metrics.Enabled {
		opts = append(opts, WithMetrics(prometheus.DefaultRegisterer), WithMetricsNamespace(c.Metrics.Namespace))
	}

	if !c.Tracing.Enabled {
		opts = append(opts, WithTracerProvider(noop.NewTracerProvider()))
	}

	if c.Discovery.Root != "" {
		opts = append(opts, WithDiscovery(os.DirFS(c.Discovery.Root), c.Discovery))
	}

	return opts
}
