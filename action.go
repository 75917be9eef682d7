package agata

import (
	"slices"
	"sync"

	errors2 "github.com/xraph/agata/errors"
)

// ActionDefinition is either an ActionConfig or an *Action.
type ActionDefinition interface {
	action() (*Action, error)
}

// ActionConfig describes a unit of business logic. Fn returns the callable
// that consumers invoke.
type ActionConfig struct {
	Singletons []string
	Actions    []string
	// Plugins maps plugin names to the parameters this action configures
	// its plugin instance with.
	Plugins map[string]Params
	Fn      ActionFunc
}

func (c ActionConfig) action() (*Action, error) {
	return NewAction(c)
}

// Validate checks the descriptor shape.
func (c ActionConfig) Validate() error {
	if c.Fn == nil {
		return errors2.ErrValidation(KindAction, "", `parameter "fn" is required`)
	}

	if n, ok := validNames(c.Singletons); !ok {
		return errors2.ErrValidation(KindAction, "", `parameter "singletons" contains invalid name "`+n+`"`)
	}

	if n, ok := validNames(c.Actions); !ok {
		return errors2.ErrValidation(KindAction, "", `parameter "actions" contains invalid name "`+n+`"`)
	}

	if n, ok := validNames(sortedKeys(c.Plugins)); !ok {
		return errors2.ErrValidation(KindAction, "", `parameter "plugins" contains invalid name "`+n+`"`)
	}

	return nil
}

// Action is a named, composable unit of business logic shared by every
// service that requires it.
type Action struct {
	singletons []string
	actions    []string
	plugins    map[string]Params
	fn         ActionFunc

	mu       sync.RWMutex
	resolved any
}

// NewAction validates cfg and returns an unresolved action.
func NewAction(cfg ActionConfig) (*Action, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	plugins := make(map[string]Params, len(cfg.Plugins))
	for name, params := range cfg.Plugins {
		plugins[name] = cloneParams(params)
	}

	return &Action{
		singletons: slices.Clone(cfg.Singletons),
		actions:    slices.Clone(cfg.Actions),
		plugins:    plugins,
		fn:         cfg.Fn,
	}, nil
}

func (a *Action) action() (*Action, error) {
	if a == nil {
		return nil, errors2.ErrValidation(KindAction, "", "nil action")
	}

	return NewAction(ActionConfig{Singletons: a.singletons, Actions: a.actions, Plugins: a.plugins, Fn: a.fn})
}

// RequiredSingletons returns the declared singleton dependencies.
func (a *Action) RequiredSingletons() []string {
	return slices.Clone(a.singletons)
}

// RequiredActions returns the declared action dependencies.
func (a *Action) RequiredActions() []string {
	return slices.Clone(a.actions)
}

// RequiredPlugins returns the configured plugin names in sorted order.
func (a *Action) RequiredPlugins() []string {
	return sortedKeys(a.plugins)
}

// PluginParams returns a copy of the parameters configured for a plugin.
func (a *Action) PluginParams(name string) Params {
	return cloneParams(a.plugins[name])
}

// AllPluginParams returns a copy of every plugin parameter set.
func (a *Action) AllPluginParams() map[string]Params {
	out := make(map[string]Params, len(a.plugins))
	for name, params := range a.plugins {
		out[name] = cloneParams(params)
	}

	return out
}

// Resolved returns the memoized callable, if the action was initialized.
func (a *Action) Resolved() (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.resolved, a.resolved != nil
}

func (a *Action) setResolved(fn any) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.resolved = fn
}
