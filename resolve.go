package agata

import (
	"slices"

	errors2 "github.com/xraph/agata/errors"
	"github.com/xraph/agata/internal/graph"
	"github.com/xraph/agata/logger"
)

// scriptService names the pseudo-service of ad-hoc runs in errors.
const scriptService = "SCRIPT"

// LoadService computes and caches the dependency closure of a service. It is
// idempotent; a failed load leaves the service in the created state.
func (b *Broker) LoadService(name string) error {
	s, err := b.Service(name)
	if err != nil {
		return err
	}

	return b.loadService(name, s)
}

func (b *Broker) loadService(name string, s *Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != ServiceCreated {
		return nil
	}

	deps, err := b.resolveService(name, s)
	if err != nil {
		b.logger.Error("service failed to load", append(logger.Unit(KindService, name), logger.Error(err))...)
		return err
	}

	s.dependencies = deps
	s.state = ServiceLoaded

	b.logger.Debug("service loaded",
		logger.String("service", name),
		logger.Strings("singletons", deps.Singletons),
		logger.Strings("actions", deps.Actions),
		logger.Strings("plugins", deps.Plugins),
	)

	return nil
}

func (b *Broker) resolveService(name string, s *Service) (serviceDependencies, error) {
	singletons, err := b.sortSingletons(s.singletons)
	if err != nil {
		return serviceDependencies{}, err
	}

	var local []string

	required := s.globalActions()

	for _, a := range s.RequiredLocalActions() {
		local = append(local, LocalActionName(name, a))
	}

	actions, err := b.sortActions(name, append(required, local...), singletons)
	if err != nil {
		return serviceDependencies{}, err
	}

	plugins, err := b.pickPlugins(name, actions, singletons, nil)
	if err != nil {
		return serviceDependencies{}, err
	}

	return serviceDependencies{
		Singletons:   singletons,
		Actions:      actions,
		LocalActions: local,
		Plugins:      plugins,
	}, nil
}

// sortSingletons returns the closure of required in dependency order.
func (b *Broker) sortSingletons(required []string) ([]string, error) {
	return graph.Resolve(KindSingleton, required, func(name string) ([]string, bool) {
		s, ok := b.singletons[name]
		if !ok {
			return nil, false
		}

		return s.singletons, true
	})
}

// sortActions returns the closure of required in dependency order. Every
// action in the closure must only use singletons in the given set.
func (b *Broker) sortActions(service string, required, singletons []string) ([]string, error) {
	sorted, err := graph.Resolve(KindAction, required, func(name string) ([]string, bool) {
		a, ok := b.actions[name]
		if !ok {
			return nil, false
		}

		return a.actions, true
	})
	if err != nil {
		return nil, err
	}

	for _, name := range sorted {
		if missing := notIn(b.actions[name].singletons, singletons); len(missing) > 0 {
			return nil, errors2.ErrMissingDeclaration(KindAction, name, service, missing)
		}
	}

	return sorted, nil
}

// pickPlugins collects the plugins used by actions after the extra names,
// without duplicates. Every plugin must only use singletons in the given set.
func (b *Broker) pickPlugins(service string, actions, singletons, extra []string) ([]string, error) {
	picked := slices.Clone(extra)

	for _, name := range actions {
		for _, p := range b.actions[name].RequiredPlugins() {
			if !slices.Contains(picked, p) {
				picked = append(picked, p)
			}
		}
	}

	for _, name := range picked {
		p, ok := b.plugins[name]
		if !ok {
			return nil, errors2.ErrNotFound(KindPlugin, name)
		}

		if missing := notIn(p.singletons, singletons); len(missing) > 0 {
			return nil, errors2.ErrMissingDeclaration(KindPlugin, name, service, missing)
		}
	}

	return picked, nil
}

func notIn(names, set []string) []string {
	var missing []string

	for _, n := range names {
		if !slices.Contains(set, n) {
			missing = append(missing, n)
		}
	}

	return missing
}
