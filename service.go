package agata

import (
	"slices"
	"strings"
	"sync"

	errors2 "github.com/xraph/agata/errors"
)

// ServiceDefinition is either a ServiceConfig or a *Service.
type ServiceDefinition interface {
	service() (*Service, error)
}

// ServiceConfig describes a top-level composition root.
type ServiceConfig struct {
	Singletons []string
	Actions    []string
	// LocalActions are private to the service and registered as
	// "service#name".
	LocalActions map[string]ActionDefinition
	Start        ServiceHandler
	Stop         ServiceHandler
}

func (c ServiceConfig) service() (*Service, error) {
	return NewService(c)
}

// Validate checks the descriptor shape.
func (c ServiceConfig) Validate() error {
	if c.Start == nil {
		return errors2.ErrValidation(KindService, "", `parameter "start" is required`)
	}

	if n, ok := validNames(c.Singletons); !ok {
		return errors2.ErrValidation(KindService, "", `parameter "singletons" contains invalid name "`+n+`"`)
	}

	if n, ok := validNames(c.Actions); !ok {
		return errors2.ErrValidation(KindService, "", `parameter "actions" contains invalid name "`+n+`"`)
	}

	local := sortedKeys(c.LocalActions)
	for _, n := range local {
		if !ParseName(n).valid() || strings.Contains(n, localSeparator) {
			return errors2.ErrValidation(KindService, "", `parameter "localActions" contains invalid name "`+n+`"`)
		}
	}

	var clash []string
	for _, n := range local {
		if slices.Contains(c.Actions, n) {
			clash = append(clash, n)
		}
	}

	if len(clash) > 0 {
		return errors2.ErrValidation(KindService, "",
			"there are names intersection between actions and local actions: "+strings.Join(clash, ", "))
	}

	return nil
}

// serviceDependencies caches the sort results computed when a service loads.
type serviceDependencies struct {
	Singletons   []string
	Actions      []string
	LocalActions []string
	Plugins      []string
}

// Service is a top-level unit with a start/stop lifecycle.
type Service struct {
	singletons   []string
	actions      []string
	localActions map[string]*Action
	start        ServiceHandler
	stop         ServiceHandler

	// op serializes start and stop of this service.
	op sync.Mutex

	mu           sync.RWMutex
	state        ServiceState
	starting     bool
	dependencies serviceDependencies
	stateData    State
}

// NewService validates cfg and returns a service in the created state.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	local := make(map[string]*Action, len(cfg.LocalActions))
	for name, def := range cfg.LocalActions {
		if def == nil {
			return nil, errors2.ErrValidation(KindAction, name, "nil local action definition")
		}

		a, err := def.action()
		if err != nil {
			return nil, err
		}
		local[name] = a
	}

	return &Service{
		singletons:   slices.Clone(cfg.Singletons),
		actions:      slices.Clone(cfg.Actions),
		localActions: local,
		start:        cfg.Start,
		stop:         cfg.Stop,
		state:        ServiceCreated,
		stateData:    State{},
	}, nil
}

func (s *Service) service() (*Service, error) {
	if s == nil {
		return nil, errors2.ErrValidation(KindService, "", "nil service")
	}

	local := make(map[string]ActionDefinition, len(s.localActions))
	for name, a := range s.localActions {
		local[name] = a
	}

	return NewService(ServiceConfig{
		Singletons:   s.singletons,
		Actions:      s.actions,
		LocalActions: local,
		Start:        s.start,
		Stop:         s.stop,
	})
}

// RequiredSingletons returns the declared singleton dependencies.
func (s *Service) RequiredSingletons() []string {
	return slices.Clone(s.singletons)
}

// RequiredActions returns the declared global action dependencies.
func (s *Service) RequiredActions() []string {
	return slices.Clone(s.actions)
}

// globalActions returns the required actions that are not "#local"
// references.
func (s *Service) globalActions() []string {
	var out []string

	for _, a := range s.actions {
		if !strings.HasPrefix(a, localSeparator) {
			out = append(out, a)
		}
	}

	return out
}

// RequiredLocalActions returns local action names in sorted order.
func (s *Service) RequiredLocalActions() []string {
	return sortedKeys(s.localActions)
}

// State returns the current lifecycle state.
func (s *Service) State() ServiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

func (s *Service) setState(state ServiceState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state
}

func (s *Service) setStarting(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.starting = v
}

// holds reports whether the service is running or on its way there, so its
// singletons must stay up.
func (s *Service) holds() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state == ServiceRunning || s.starting
}

func (s *Service) deps() serviceDependencies {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.dependencies
}
