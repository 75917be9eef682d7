package agata

import (
	"slices"
	"sync"

	errors2 "github.com/xraph/agata/errors"
)

// PluginDefinition is either a PluginConfig or a *Plugin.
type PluginDefinition interface {
	plugin() (*Plugin, error)
}

// PluginConfig describes a per-action configurable capability.
type PluginConfig struct {
	Singletons []string
	Start      PluginStartFunc
}

func (c PluginConfig) plugin() (*Plugin, error) {
	return NewPlugin(c)
}

// Validate checks the descriptor shape.
func (c PluginConfig) Validate() error {
	if c.Start == nil {
		return errors2.ErrValidation(KindPlugin, "", `parameter "start" is required`)
	}

	if n, ok := validNames(c.Singletons); !ok {
		return errors2.ErrValidation(KindPlugin, "", `parameter "singletons" contains invalid name "`+n+`"`)
	}

	return nil
}

// Plugin builds a shared factory once; the factory is then called once per
// consuming action with that action's parameters.
type Plugin struct {
	singletons []string
	start      PluginStartFunc

	mu      sync.RWMutex
	factory PluginFactory
}

// NewPlugin validates cfg and returns an unstarted plugin.
func NewPlugin(cfg PluginConfig) (*Plugin, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Plugin{
		singletons: slices.Clone(cfg.Singletons),
		start:      cfg.Start,
	}, nil
}

func (p *Plugin) plugin() (*Plugin, error) {
	if p == nil {
		return nil, errors2.ErrValidation(KindPlugin, "", "nil plugin")
	}

	return NewPlugin(PluginConfig{Singletons: p.singletons, Start: p.start})
}

// RequiredSingletons returns the declared singleton dependencies.
func (p *Plugin) RequiredSingletons() []string {
	return slices.Clone(p.singletons)
}

// Factory returns the memoized factory, if the plugin was started.
func (p *Plugin) Factory() (PluginFactory, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.factory, p.factory != nil
}

func (p *Plugin) setFactory(f PluginFactory) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.factory = f
}
