package agata

import (
	"slices"
	"sync"

	errors2 "github.com/xraph/agata/errors"
)

// SingletonDefinition is either a SingletonConfig or a *Singleton.
type SingletonDefinition interface {
	singleton() (*Singleton, error)
}

// SingletonConfig describes a process-wide shared resource.
type SingletonConfig struct {
	// Singletons lists the singletons this one is built from.
	Singletons []string
	Start      SingletonStartFunc
	Stop       SingletonStopFunc
}

func (c SingletonConfig) singleton() (*Singleton, error) {
	return NewSingleton(c)
}

// Validate checks the descriptor shape.
func (c SingletonConfig) Validate() error {
	if c.Start == nil {
		return errors2.ErrValidation(KindSingleton, "", `parameter "start" is required`)
	}

	if n, ok := validNames(c.Singletons); !ok {
		return errors2.ErrValidation(KindSingleton, "", `parameter "singletons" contains invalid name "`+n+`"`)
	}

	return nil
}

// Singleton is a lazily constructed instance shared by reference with every
// consumer. The instance is owned by the broker once set.
type Singleton struct {
	singletons []string
	start      SingletonStartFunc
	stop       SingletonStopFunc

	mu        sync.Mutex
	state     SingletonState
	instance  any
	inFlight  *inFlight
	stateData State
}

// NewSingleton validates cfg and returns a singleton in the initial state.
func NewSingleton(cfg SingletonConfig) (*Singleton, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Singleton{
		singletons: slices.Clone(cfg.Singletons),
		start:      cfg.Start,
		stop:       cfg.Stop,
		state:      SingletonInitial,
		stateData:  State{},
	}, nil
}

// singleton returns a fresh copy so that every broker owns its own lifecycle.
func (s *Singleton) singleton() (*Singleton, error) {
	if s == nil {
		return nil, errors2.ErrValidation(KindSingleton, "", "nil singleton")
	}

	return NewSingleton(SingletonConfig{Singletons: s.singletons, Start: s.start, Stop: s.stop})
}

// RequiredSingletons returns the declared singleton dependencies.
func (s *Singleton) RequiredSingletons() []string {
	return slices.Clone(s.singletons)
}

// State returns the current lifecycle state.
func (s *Singleton) State() SingletonState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Instance returns the constructed instance while the singleton is loaded.
func (s *Singleton) Instance() (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.instance, s.state == SingletonLoaded
}
