package agata

import (
	"context"
	"reflect"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	errors2 "github.com/xraph/agata/errors"
	"github.com/xraph/agata/logger"
)

// initSingletons starts the singletons in the given order and returns them
// as a namespace.
func (b *Broker) initSingletons(ctx context.Context, names []string) (Namespace, error) {
	ns := Namespace{}

	for _, name := range names {
		instance, err := b.startSingleton(ctx, name)
		if err != nil {
			return nil, err
		}

		if err := ns.Set(ParseName(name), instance); err != nil {
			return nil, err
		}
	}

	return ns, nil
}

// initPlugins starts the plugins concurrently and returns their factories.
// Plugin code receives ctx itself, which outlives the group.
func (b *Broker) initPlugins(ctx context.Context, names []string) (Namespace, error) {
	var (
		mu sync.Mutex
		ns = Namespace{}
		g  errgroup.Group
	)

	for _, name := range names {
		g.Go(func() error {
			factory, err := b.startPlugin(ctx, name)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()

			return ns.Set(ParseName(name), factory)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return ns, nil
}

// initActions resolves the actions in the given order. With local set, only
// service local actions are placed in the namespace, under their names
// within the service; otherwise only global actions are.
func (b *Broker) initActions(ctx context.Context, names []string, local bool) (Namespace, error) {
	ns := Namespace{}

	for _, name := range names {
		fn, err := b.resolveAction(ctx, name)
		if err != nil {
			return nil, err
		}

		n := ParseName(name)
		if n.IsLocal() != local {
			continue
		}

		if err := ns.Set(Name{Segments: n.Segments}, fn); err != nil {
			return nil, err
		}
	}

	return ns, nil
}

// startPlugin returns the memoized factory of a plugin, starting it once.
func (b *Broker) startPlugin(ctx context.Context, name string) (PluginFactory, error) {
	p, ok := b.plugins[name]
	if !ok {
		return nil, errors2.ErrNotFound(KindPlugin, name)
	}

	if f, ok := p.Factory(); ok {
		return f, nil
	}

	ch := b.pluginCalls.DoChan(name, func() (any, error) {
		if f, ok := p.Factory(); ok {
			return f, nil
		}

		f, err := b.buildPlugin(ctx, name, p)
		if err != nil {
			return nil, err
		}

		p.setFactory(f)

		return f, nil
	})

	v, err := awaitCall(ctx, ch)
	if err != nil {
		return nil, err
	}

	return v.(PluginFactory), nil
}

func (b *Broker) buildPlugin(ctx context.Context, name string, p *Plugin) (factory PluginFactory, err error) {
	singletons, err := b.initSingletons(ctx, p.singletons)
	if err != nil {
		return nil, err
	}

	b.emit(ctx, EventPluginStarting, KindPlugin, name)

	ctx, span := b.startSpan(ctx, "start", KindPlugin, name)
	defer func() { endSpan(span, err) }()

	started := time.Now()

	factory, err = p.start(ctx, Deps{Singletons: singletons})
	if err != nil {
		b.metrics.failure(KindPlugin, "start")
		return nil, errors2.NewUnitError(KindPlugin, name, "start", err)
	}

	if factory == nil {
		b.metrics.failure(KindPlugin, "start")
		return nil, errors2.ErrContractViolation(KindPlugin, name, `"start" has to return a factory`)
	}

	b.metrics.started(KindPlugin, time.Since(started))
	b.logger.Debug("plugin started", append(logger.Unit(KindPlugin, name), logger.Elapsed(started))...)
	b.emit(ctx, EventPluginStarted, KindPlugin, name)

	return factory, nil
}

// resolveAction returns the memoized callable of an action, building it
// once. A failed build is not memoized.
func (b *Broker) resolveAction(ctx context.Context, name string) (any, error) {
	a, ok := b.actions[name]
	if !ok {
		return nil, errors2.ErrNotFound(KindAction, name)
	}

	if fn, ok := a.Resolved(); ok {
		return fn, nil
	}

	ch := b.actionCalls.DoChan(name, func() (any, error) {
		if fn, ok := a.Resolved(); ok {
			return fn, nil
		}

		fn, err := b.buildAction(ctx, name, a)
		if err != nil {
			return nil, err
		}

		a.setResolved(fn)

		return fn, nil
	})

	return awaitCall(ctx, ch)
}

// awaitCall waits for a shared call or for ctx. The call keeps running for
// the other waiters when ctx ends first.
func awaitCall(ctx context.Context, ch <-chan singleflight.Result) (any, error) {
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Broker) buildAction(ctx context.Context, name string, a *Action) (fn any, err error) {
	deps, err := b.actionDeps(ctx, name, a)
	if err != nil {
		return nil, err
	}

	b.emit(ctx, EventActionStarting, KindAction, name)

	ctx, span := b.startSpan(ctx, "init", KindAction, name)
	defer func() { endSpan(span, err) }()

	started := time.Now()

	fn, err = callAction(ctx, name, a, deps)
	if err != nil {
		b.metrics.failure(KindAction, "init")
		b.logger.Error("action failed to initialize", append(logger.Unit(KindAction, name), logger.Error(err))...)

		return nil, err
	}

	b.metrics.started(KindAction, time.Since(started))
	b.logger.Debug("action initialized", append(logger.Unit(KindAction, name), logger.Elapsed(started))...)
	b.emit(ctx, EventActionStarted, KindAction, name)

	return fn, nil
}

// actionDeps gathers the singletons, actions and per-action plugin instances
// an action is built from.
func (b *Broker) actionDeps(ctx context.Context, name string, a *Action) (Deps, error) {
	singletons, err := b.initSingletons(ctx, a.singletons)
	if err != nil {
		return Deps{}, err
	}

	actions := Namespace{}

	for _, dep := range a.actions {
		fn, err := b.resolveAction(ctx, dep)
		if err != nil {
			return Deps{}, err
		}

		if err := actions.Set(Name{Segments: ParseName(dep).Segments}, fn); err != nil {
			return Deps{}, err
		}
	}

	plugins, err := b.instantiatePlugins(ctx, a.AllPluginParams())
	if err != nil {
		return Deps{}, err
	}

	return Deps{Singletons: singletons, Actions: actions, Plugins: plugins}, nil
}

// instantiatePlugins calls each plugin factory with its parameters
// concurrently.
func (b *Broker) instantiatePlugins(ctx context.Context, params map[string]Params) (Namespace, error) {
	var (
		mu sync.Mutex
		ns = Namespace{}
		g  errgroup.Group
	)

	for _, name := range sortedKeys(params) {
		g.Go(func() error {
			factory, err := b.startPlugin(ctx, name)
			if err != nil {
				return err
			}

			instance, err := factory(ctx, params[name])
			if err != nil {
				b.metrics.failure(KindPlugin, "instantiate")
				return errors2.NewUnitError(KindPlugin, name, "instantiate", err)
			}

			mu.Lock()
			defer mu.Unlock()

			return ns.Set(ParseName(name), instance)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return ns, nil
}

// callAction runs the action constructor and checks the callable contract.
func callAction(ctx context.Context, name string, a *Action, deps Deps) (any, error) {
	fn, err := a.fn(ctx, deps)
	if err != nil {
		return nil, errors2.NewUnitError(KindAction, name, "init", err)
	}

	if !isCallable(fn) {
		return nil, errors2.ErrContractViolation(KindAction, name, "did not return function")
	}

	return fn, nil
}

func isCallable(v any) bool {
	if v == nil {
		return false
	}

	rv := reflect.ValueOf(v)

	return rv.Kind() == reflect.Func && !rv.IsNil()
}
