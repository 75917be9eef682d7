package agata

import (
	"context"
	"maps"
	"slices"
)

// Unit kinds, used in errors, logs, metrics and events.
const (
	KindSingleton = "singleton"
	KindAction    = "action"
	KindPlugin    = "plugin"
	KindService   = "service"
)

// State is the opaque bag a singleton or service keeps across start and stop.
// The same map is passed to every start and stop of the unit.
type State map[string]any

// Params configures a plugin instance for one consuming action.
type Params map[string]any

// Deps are the resolved dependencies handed to a unit.
type Deps struct {
	Singletons   Namespace
	Actions      Namespace
	Plugins      Namespace
	LocalActions Namespace
	State        State
}

// SingletonStartFunc constructs a singleton instance.
type SingletonStartFunc func(ctx context.Context, deps Deps) (any, error)

// SingletonStopFunc tears a singleton down. state is the bag passed to start.
type SingletonStopFunc func(ctx context.Context, instance any, state State) error

// ActionFunc builds an action. The returned value must be a non-nil func.
type ActionFunc func(ctx context.Context, deps Deps) (any, error)

// PluginFactory produces the value injected into one consuming action.
type PluginFactory func(ctx context.Context, params Params) (any, error)

// PluginStartFunc builds the shared factory of a plugin.
type PluginStartFunc func(ctx context.Context, deps Deps) (PluginFactory, error)

// ServiceHandler starts or stops a service.
type ServiceHandler func(ctx context.Context, deps Deps) error

// dependent is implemented by every unit with declared singleton dependencies.
type dependent interface {
	RequiredSingletons() []string
}

// cloneParams deep-copies plugin parameters so one action cannot mutate the
// parameters seen by another.
func cloneParams(p Params) Params {
	if p == nil {
		return nil
	}

	out := make(Params, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}

	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Params:
		return cloneParams(t)
	case map[string]any:
		return map[string]any(cloneParams(Params(t)))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}

		return out
	default:
		return v
	}
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

func validNames(names []string) (string, bool) {
	for _, n := range names {
		if !ParseName(n).valid() {
			return n, false
		}
	}

	return "", true
}
