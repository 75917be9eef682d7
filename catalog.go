package agata

import (
	"context"
	"io/fs"

	"github.com/xraph/agata/discover"
	errors2 "github.com/xraph/agata/errors"
)

// Catalog holds the code of units whose dependencies are declared in
// discovered manifests. A manifest is bound to the entry registered under
// its "factory" key, or under its discovered name when the key is empty.
// Local actions default to "service#action".
type Catalog struct {
	singletons map[string]SingletonConfig
	actions    map[string]ActionFunc
	plugins    map[string]PluginStartFunc
	services   map[string]ServiceConfig

	// unbound binds manifests without registered code to placeholders.
	unbound bool
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		singletons: make(map[string]SingletonConfig),
		actions:    make(map[string]ActionFunc),
		plugins:    make(map[string]PluginStartFunc),
		services:   make(map[string]ServiceConfig),
	}
}

// NewManifestCatalog returns a catalog that binds every manifest, including
// those without registered code. A broker built with it validates and reports
// dependencies; starting a unit without code fails with a not-found error.
func NewManifestCatalog() *Catalog {
	c := NewCatalog()
	c.unbound = true

	return c
}

// Singleton registers singleton code.
func (c *Catalog) Singleton(name string, start SingletonStartFunc, stop SingletonStopFunc) *Catalog {
	c.singletons[name] = SingletonConfig{Start: start, Stop: stop}
	return c
}

// Action registers action code.
func (c *Catalog) Action(name string, fn ActionFunc) *Catalog {
	c.actions[name] = fn
	return c
}

// Plugin registers plugin code.
func (c *Catalog) Plugin(name string, start PluginStartFunc) *Catalog {
	c.plugins[name] = start
	return c
}

// Service registers service handlers.
func (c *Catalog) Service(name string, start, stop ServiceHandler) *Catalog {
	c.services[name] = ServiceConfig{Start: start, Stop: stop}
	return c
}

// Definitions discovers manifests in fsys and binds them to catalog code.
func (c *Catalog) Definitions(fsys fs.FS, paths DiscoveryConfig) (Definitions, error) {
	defs := Definitions{
		Singletons: map[string]SingletonDefinition{},
		Actions:    map[string]ActionDefinition{},
		Plugins:    map[string]PluginDefinition{},
		Services:   map[string]ServiceDefinition{},
	}

	load := func(dir string, rule discover.Rule, bind func(discover.Manifest) error) error {
		if dir == "" {
			return nil
		}

		manifests, err := discover.Load(fsys, dir, rule)
		if err != nil {
			return err
		}

		for _, m := range manifests {
			if err := bind(m); err != nil {
				return err
			}
		}

		return nil
	}

	err := load(paths.Singletons, discover.SingletonRule, func(m discover.Manifest) error {
		cfg, err := c.singleton(m)
		if err != nil {
			return err
		}

		cfg.Singletons = m.Singletons
		defs.Singletons[m.Name] = cfg

		return nil
	})
	if err != nil {
		return Definitions{}, err
	}

	err = load(paths.Actions, discover.ActionRule, func(m discover.Manifest) error {
		cfg, err := c.action(m, m.Name)
		if err != nil {
			return err
		}

		defs.Actions[m.Name] = cfg

		return nil
	})
	if err != nil {
		return Definitions{}, err
	}

	err = load(paths.Plugins, discover.PluginRule, func(m discover.Manifest) error {
		start, err := c.plugin(m)
		if err != nil {
			return err
		}

		defs.Plugins[m.Name] = PluginConfig{Singletons: m.Singletons, Start: start}

		return nil
	})
	if err != nil {
		return Definitions{}, err
	}

	err = load(paths.Services, discover.ServiceRule, func(m discover.Manifest) error {
		cfg, err := c.service(m)
		if err != nil {
			return err
		}

		cfg.Singletons = m.Singletons
		cfg.Actions = m.Actions
		cfg.LocalActions = make(map[string]ActionDefinition, len(m.LocalActions))

		for name, local := range m.LocalActions {
			action, err := c.action(local, LocalActionName(m.Name, name))
			if err != nil {
				return err
			}

			cfg.LocalActions[name] = action
		}

		defs.Services[m.Name] = cfg

		return nil
	})
	if err != nil {
		return Definitions{}, err
	}

	return defs, nil
}

func (c *Catalog) singleton(m discover.Manifest) (SingletonConfig, error) {
	if cfg, ok := c.singletons[factoryKey(m, m.Name)]; ok {
		return cfg, nil
	}

	if !c.unbound {
		return SingletonConfig{}, missingCode(KindSingleton, m, m.Name)
	}

	return SingletonConfig{
		Start: func(context.Context, Deps) (any, error) {
			return nil, missingCode(KindSingleton, m, m.Name)
		},
	}, nil
}

func (c *Catalog) plugin(m discover.Manifest) (PluginStartFunc, error) {
	if start, ok := c.plugins[factoryKey(m, m.Name)]; ok {
		return start, nil
	}

	if !c.unbound {
		return nil, missingCode(KindPlugin, m, m.Name)
	}

	return func(context.Context, Deps) (PluginFactory, error) {
		return nil, missingCode(KindPlugin, m, m.Name)
	}, nil
}

func (c *Catalog) service(m discover.Manifest) (ServiceConfig, error) {
	if cfg, ok := c.services[factoryKey(m, m.Name)]; ok {
		return cfg, nil
	}

	if !c.unbound {
		return ServiceConfig{}, missingCode(KindService, m, m.Name)
	}

	return ServiceConfig{
		Start: func(context.Context, Deps) error {
			return missingCode(KindService, m, m.Name)
		},
	}, nil
}

func (c *Catalog) action(m discover.Manifest, name string) (ActionConfig, error) {
	fn, ok := c.actions[factoryKey(m, name)]
	if !ok && !c.unbound {
		return ActionConfig{}, missingCode(KindAction, m, name)
	}

	if !ok {
		fn = func(context.Context, Deps) (any, error) {
			return nil, missingCode(KindAction, m, name)
		}
	}

	var plugins map[string]Params
	if len(m.Plugins) > 0 {
		plugins = make(map[string]Params, len(m.Plugins))
		for p, params := range m.Plugins {
			plugins[p] = Params(params)
		}
	}

	return ActionConfig{
		Singletons: m.Singletons,
		Actions:    m.Actions,
		Plugins:    plugins,
		Fn:         fn,
	}, nil
}

func factoryKey(m discover.Manifest, name string) string {
	if m.Factory != "" {
		return m.Factory
	}

	return name
}

func missingCode(kind string, m discover.Manifest, name string) error {
	return errors2.ErrNotFound(kind+" factory", factoryKey(m, name)).
		WithContext("unit", name).
		WithContext("path", m.Path)
}
