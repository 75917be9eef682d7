package agata

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	errors2 "github.com/xraph/agata/errors"
	"github.com/xraph/agata/logger"
)

// Broker owns a registry of units and drives their lifecycles. Several
// brokers can coexist in one process; they share nothing.
type Broker struct {
	id string

	singletons map[string]*Singleton
	actions    map[string]*Action
	plugins    map[string]*Plugin
	services   map[string]*Service

	logger  logger.Logger
	hooks   *hookManager
	metrics *metrics
	tracer  trace.Tracer

	actionCalls singleflight.Group
	pluginCalls singleflight.Group

	// claims orders a service taking hold of its singletons against
	// StopService deciding that a singleton is no longer needed.
	claims sync.Mutex
}

// New builds a broker. Every descriptor is validated and every declared
// reference must exist; dependency cycles are reported when a service loads.
func New(defs Definitions, opts ...Option) (*Broker, error) {
	o := &options{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	if o.logger == nil {
		o.logger = logger.NewNoopLogger()
	}

	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}

	if o.discoveryFS != nil {
		if o.catalog == nil {
			return nil, errors2.ErrConfigError("discovery requires a catalog", nil)
		}

		discovered, err := o.catalog.Definitions(o.discoveryFS, o.discoveryPaths)
		if err != nil {
			return nil, err
		}

		if defs, err = defs.merge(discovered); err != nil {
			return nil, err
		}
	}

	reg, err := newRegistry(defs)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	l := o.logger.Named("agata").With(logger.String("broker", id))

	b := &Broker{
		id:         id,
		singletons: reg.singletons,
		actions:    reg.actions,
		plugins:    reg.plugins,
		services:   reg.services,
		logger:     l,
		hooks:      newHookManager(l),
		metrics:    newMetrics(o.registerer, o.metricsNamespace, id),
		tracer:     o.tracerProvider.Tracer(instrumentationName),
	}

	for _, h := range o.hooks {
		if err := b.hooks.register(h.event, h.hook, h.opts); err != nil {
			return nil, err
		}
	}

	l.Info("broker created",
		logger.Int("singletons", len(b.singletons)),
		logger.Int("actions", len(b.actions)),
		logger.Int("plugins", len(b.plugins)),
		logger.Int("services", len(b.services)),
	)

	return b, nil
}

// ID returns the broker instance id.
func (b *Broker) ID() string {
	return b.id
}

// Service returns a registered service.
func (b *Broker) Service(name string) (*Service, error) {
	s, ok := b.services[name]
	if !ok {
		return nil, errors2.ErrNotFound(KindService, name)
	}

	return s, nil
}

// Singleton returns a registered singleton.
func (b *Broker) Singleton(name string) (*Singleton, error) {
	s, ok := b.singletons[name]
	if !ok {
		return nil, errors2.ErrNotFound(KindSingleton, name)
	}

	return s, nil
}

// Action returns a registered action. Local actions are addressed as
// "service#action".
func (b *Broker) Action(name string) (*Action, error) {
	a, ok := b.actions[name]
	if !ok {
		return nil, errors2.ErrNotFound(KindAction, name)
	}

	return a, nil
}

// Plugin returns a registered plugin.
func (b *Broker) Plugin(name string) (*Plugin, error) {
	p, ok := b.plugins[name]
	if !ok {
		return nil, errors2.ErrNotFound(KindPlugin, name)
	}

	return p, nil
}

// IsServiceRunning reports whether the service is running. Unknown names
// report false.
func (b *Broker) IsServiceRunning(name string) bool {
	s, ok := b.services[name]
	return ok && s.State() == ServiceRunning
}

// RunningServices returns the names of running services in sorted order.
func (b *Broker) RunningServices() []string {
	var names []string

	for _, name := range sortedKeys(b.services) {
		if b.services[name].State() == ServiceRunning {
			names = append(names, name)
		}
	}

	return names
}

// On registers a hook for event.
func (b *Broker) On(event Event, opts HookOptions, hook Hook) error {
	return b.hooks.register(event, hook, opts)
}

// Off removes a hook by name.
func (b *Broker) Off(event Event, name string) error {
	return b.hooks.remove(event, name)
}

// Hooks lists the hooks registered for event in execution order.
func (b *Broker) Hooks(event Event) []HookOptions {
	return b.hooks.list(event)
}

func (b *Broker) emit(ctx context.Context, event Event, kind, name string) {
	b.hooks.emit(ctx, EventInfo{Event: event, Kind: kind, Name: name, Broker: b.id})
}

func reversed(names []string) []string {
	out := slices.Clone(names)
	slices.Reverse(out)

	return out
}
