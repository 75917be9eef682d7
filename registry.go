package agata

import (
	"fmt"
	"maps"
	"strings"

	errors2 "github.com/xraph/agata/errors"
)

// Definitions are the units a broker is built from, keyed by name.
type Definitions struct {
	Singletons map[string]SingletonDefinition
	Actions    map[string]ActionDefinition
	Plugins    map[string]PluginDefinition
	Services   map[string]ServiceDefinition
}

// merge returns the union of d and other. A name defined on both sides is a
// duplicate-definition error.
func (d Definitions) merge(other Definitions) (Definitions, error) {
	out := Definitions{
		Singletons: maps.Clone(d.Singletons),
		Actions:    maps.Clone(d.Actions),
		Plugins:    maps.Clone(d.Plugins),
		Services:   maps.Clone(d.Services),
	}

	var err error
	if out.Singletons, err = mergeKind(KindSingleton, out.Singletons, other.Singletons); err != nil {
		return Definitions{}, err
	}

	if out.Actions, err = mergeKind(KindAction, out.Actions, other.Actions); err != nil {
		return Definitions{}, err
	}

	if out.Plugins, err = mergeKind(KindPlugin, out.Plugins, other.Plugins); err != nil {
		return Definitions{}, err
	}

	if out.Services, err = mergeKind(KindService, out.Services, other.Services); err != nil {
		return Definitions{}, err
	}

	return out, nil
}

func mergeKind[V any](kind string, dst, src map[string]V) (map[string]V, error) {
	if dst == nil {
		dst = make(map[string]V, len(src))
	}

	for _, name := range sortedKeys(src) {
		if _, exists := dst[name]; exists {
			return nil, errors2.ErrDuplicateDefinition(kind, name)
		}

		dst[name] = src[name]
	}

	return dst, nil
}

// registry holds the units of one broker. It is immutable once built.
type registry struct {
	singletons map[string]*Singleton
	actions    map[string]*Action
	plugins    map[string]*Plugin
	services   map[string]*Service
}

func newRegistry(defs Definitions) (*registry, error) {
	r := &registry{
		singletons: make(map[string]*Singleton, len(defs.Singletons)),
		actions:    make(map[string]*Action, len(defs.Actions)),
		plugins:    make(map[string]*Plugin, len(defs.Plugins)),
		services:   make(map[string]*Service, len(defs.Services)),
	}

	for _, name := range sortedKeys(defs.Singletons) {
		if err := checkName(KindSingleton, name); err != nil {
			return nil, err
		}

		def := defs.Singletons[name]
		if def == nil {
			return nil, errors2.ErrValidation(KindSingleton, name, "nil definition")
		}

		s, err := def.singleton()
		if err != nil {
			return nil, fmt.Errorf("%q: %w", name, err)
		}

		r.singletons[name] = s
	}

	for _, name := range sortedKeys(defs.Actions) {
		if err := checkName(KindAction, name); err != nil {
			return nil, err
		}

		def := defs.Actions[name]
		if def == nil {
			return nil, errors2.ErrValidation(KindAction, name, "nil definition")
		}

		a, err := def.action()
		if err != nil {
			return nil, fmt.Errorf("%q: %w", name, err)
		}

		r.actions[name] = a
	}

	for _, name := range sortedKeys(defs.Plugins) {
		if err := checkName(KindPlugin, name); err != nil {
			return nil, err
		}

		def := defs.Plugins[name]
		if def == nil {
			return nil, errors2.ErrValidation(KindPlugin, name, "nil definition")
		}

		p, err := def.plugin()
		if err != nil {
			return nil, fmt.Errorf("%q: %w", name, err)
		}

		r.plugins[name] = p
	}

	for _, name := range sortedKeys(defs.Services) {
		if err := checkName(KindService, name); err != nil {
			return nil, err
		}

		def := defs.Services[name]
		if def == nil {
			return nil, errors2.ErrValidation(KindService, name, "nil definition")
		}

		s, err := def.service()
		if err != nil {
			return nil, fmt.Errorf("%q: %w", name, err)
		}

		r.services[name] = s

		for _, local := range s.RequiredLocalActions() {
			a := s.localActions[local]
			a.actions = ownedActions(name, a.actions)
			r.actions[LocalActionName(name, local)] = a
		}
	}

	if err := r.validate(); err != nil {
		return nil, err
	}

	return r, nil
}

// ownedActions rewrites "#name" references of a local action to the
// registry name of the sibling local action.
func ownedActions(service string, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		if rest, ok := strings.CutPrefix(n, localSeparator); ok {
			n = LocalActionName(service, rest)
		}

		out[i] = n
	}

	return out
}

func checkName(kind, name string) error {
	if !ParseName(name).valid() || strings.Contains(name, localSeparator) {
		return errors2.ErrValidation(kind, name, "invalid name")
	}

	return nil
}

// validate checks namespace conflicts and that every declared reference
// exists. Cycles are reported when a service loads.
func (r *registry) validate() error {
	if err := checkConflicts(KindSingleton, sortedKeys(r.singletons)); err != nil {
		return err
	}

	if err := checkConflicts(KindPlugin, sortedKeys(r.plugins)); err != nil {
		return err
	}

	var global []string

	for _, name := range sortedKeys(r.actions) {
		if !ParseName(name).IsLocal() {
			global = append(global, name)
		}
	}

	if err := checkConflicts(KindAction, global); err != nil {
		return err
	}

	for _, name := range sortedKeys(r.services) {
		if err := checkConflicts(KindAction, r.services[name].RequiredLocalActions()); err != nil {
			return err
		}
	}

	for _, name := range sortedKeys(r.singletons) {
		for _, dep := range r.singletons[name].singletons {
			if _, ok := r.singletons[dep]; !ok {
				return errors2.ErrUnknownReference(KindSingleton, name, KindSingleton, dep)
			}
		}
	}

	for _, name := range sortedKeys(r.plugins) {
		for _, dep := range r.plugins[name].singletons {
			if _, ok := r.singletons[dep]; !ok {
				return errors2.ErrUnknownReference(KindPlugin, name, KindSingleton, dep)
			}
		}
	}

	for _, name := range sortedKeys(r.actions) {
		if err := r.validateAction(name, r.actions[name]); err != nil {
			return err
		}
	}

	for _, name := range sortedKeys(r.services) {
		if err := r.validateService(name, r.services[name]); err != nil {
			return err
		}
	}

	return nil
}

func (r *registry) validateAction(name string, a *Action) error {
	owner := ParseName(name).Owner

	for _, dep := range a.singletons {
		if _, ok := r.singletons[dep]; !ok {
			return errors2.ErrUnknownReference(KindAction, name, KindSingleton, dep)
		}
	}

	for _, dep := range a.actions {
		_, ok := r.actions[dep]
		if !ok || ParseName(dep).Owner != owner && ParseName(dep).IsLocal() {
			return errors2.ErrUnknownReference(KindAction, name, KindAction, dep)
		}
	}

	for _, dep := range a.RequiredPlugins() {
		if _, ok := r.plugins[dep]; !ok {
			return errors2.ErrUnknownReference(KindAction, name, KindPlugin, dep)
		}
	}

	return nil
}

func (r *registry) validateService(name string, s *Service) error {
	for _, dep := range s.singletons {
		if _, ok := r.singletons[dep]; !ok {
			return errors2.ErrUnknownReference(KindService, name, KindSingleton, dep)
		}
	}

	for _, dep := range s.actions {
		if local, ok := strings.CutPrefix(dep, localSeparator); ok {
			if _, ok := s.localActions[local]; !ok {
				return errors2.ErrUnknownReference(KindService, name, "local action", local)
			}

			continue
		}

		if _, ok := r.actions[dep]; !ok || ParseName(dep).IsLocal() {
			return errors2.ErrUnknownReference(KindService, name, KindAction, dep)
		}
	}

	return nil
}

func checkConflicts(kind string, names []string) error {
	if prefix, name, ok := namespaceConflict(names); ok {
		return errors2.ErrValidation(kind, name, fmt.Sprintf("name conflicts with %s %q", kind, prefix))
	}

	return nil
}
