package agata

import (
	"context"

	errors2 "github.com/xraph/agata/errors"
	"github.com/xraph/agata/logger"
)

// Request names the units of an ad-hoc run. Plugins maps each requested
// plugin to the parameters its instance is created with.
type Request struct {
	Singletons []string
	Actions    []string
	Plugins    map[string]Params
}

// Resources are the units an ad-hoc run produced, restricted to the
// requested names.
type Resources struct {
	Singletons Namespace
	Actions    Namespace
	Plugins    Namespace
}

// Start initializes an arbitrary set of units outside any service, for
// scripts and tests. Singletons it starts are torn down by StopAll.
func (b *Broker) Start(ctx context.Context, req Request) (res *Resources, err error) {
	if err := b.checkRequest(req); err != nil {
		return nil, err
	}

	ctx, span := b.startSpan(ctx, "start", "script", scriptService)
	defer func() { endSpan(span, err) }()

	singletonOrder, err := b.sortSingletons(req.Singletons)
	if err != nil {
		return nil, err
	}

	actionOrder, err := b.sortActions(scriptService, req.Actions, singletonOrder)
	if err != nil {
		return nil, err
	}

	requested := sortedKeys(req.Plugins)

	pluginOrder, err := b.pickPlugins(scriptService, actionOrder, singletonOrder, requested)
	if err != nil {
		return nil, err
	}

	singletons, err := b.initSingletons(ctx, singletonOrder)
	if err != nil {
		return nil, err
	}

	if _, err := b.initPlugins(ctx, pluginOrder); err != nil {
		return nil, err
	}

	actions, err := b.initActions(ctx, actionOrder, false)
	if err != nil {
		return nil, err
	}

	params := make(map[string]Params, len(req.Plugins))
	for name, p := range req.Plugins {
		params[name] = cloneParams(p)
	}

	plugins, err := b.instantiatePlugins(ctx, params)
	if err != nil {
		return nil, err
	}

	b.logger.Debug("ad-hoc run started",
		logger.Strings("singletons", singletonOrder),
		logger.Strings("actions", actionOrder),
		logger.Strings("plugins", pluginOrder),
	)

	return &Resources{
		Singletons: singletons.Pick(req.Singletons),
		Actions:    actions.Pick(req.Actions),
		Plugins:    plugins,
	}, nil
}

func (b *Broker) checkRequest(req Request) error {
	var missing []string

	for _, name := range req.Singletons {
		if _, ok := b.singletons[name]; !ok {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return errors2.ErrNotFound(KindSingleton, missing...)
	}

	for _, name := range req.Actions {
		if _, ok := b.actions[name]; !ok || ParseName(name).IsLocal() {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return errors2.ErrNotFound(KindAction, missing...)
	}

	for _, name := range sortedKeys(req.Plugins) {
		if _, ok := b.plugins[name]; !ok {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return errors2.ErrNotFound(KindPlugin, missing...)
	}

	return nil
}

// Overrides replace dependencies of a mocked action. Keys are dotted names.
type Overrides struct {
	Singletons map[string]any
	Actions    map[string]any
	Plugins    map[string]any
}

// MockAction builds an action with the given dependencies replaced. Missing
// dependencies are resolved through Start. The result is not memoized.
// Local actions are private to their service and cannot be mocked.
func (b *Broker) MockAction(ctx context.Context, name string, ov Overrides) (any, error) {
	a, ok := b.actions[name]
	if !ok || ParseName(name).IsLocal() {
		return nil, errors2.ErrNotFound(KindAction, name)
	}

	req := Request{Plugins: map[string]Params{}}

	for _, s := range a.singletons {
		if _, ok := ov.Singletons[s]; !ok {
			req.Singletons = append(req.Singletons, s)
		}
	}

	for _, dep := range a.actions {
		if _, ok := ov.Actions[dep]; !ok {
			req.Actions = append(req.Actions, dep)
		}
	}

	for _, p := range a.RequiredPlugins() {
		if _, ok := ov.Plugins[p]; !ok {
			req.Plugins[p] = a.PluginParams(p)
		}
	}

	res, err := b.Start(ctx, req)
	if err != nil {
		return nil, err
	}

	singletons, err := namespaceOf(ov.Singletons)
	if err != nil {
		return nil, err
	}

	actions, err := namespaceOf(ov.Actions)
	if err != nil {
		return nil, err
	}

	plugins, err := namespaceOf(ov.Plugins)
	if err != nil {
		return nil, err
	}

	return callAction(ctx, name, a, Deps{
		Singletons: res.Singletons.Merge(singletons),
		Actions:    res.Actions.Merge(actions),
		Plugins:    res.Plugins.Merge(plugins),
	})
}

func namespaceOf(values map[string]any) (Namespace, error) {
	ns := Namespace{}

	for _, name := range sortedKeys(values) {
		if err := ns.Set(ParseName(name), values[name]); err != nil {
			return nil, err
		}
	}

	return ns, nil
}
