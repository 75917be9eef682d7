package agata

import (
	"context"
	"time"

	errors2 "github.com/xraph/agata/errors"
	"github.com/xraph/agata/logger"
)

// SingletonState is the lifecycle state of a singleton.
type SingletonState string

const (
	SingletonInitial   SingletonState = "initial"
	SingletonLoading   SingletonState = "loading"
	SingletonLoaded    SingletonState = "loaded"
	SingletonUnloading SingletonState = "unloading"
)

// ServiceState is the lifecycle state of a service.
type ServiceState string

const (
	ServiceCreated ServiceState = "created"
	ServiceLoaded  ServiceState = "loaded"
	ServiceRunning ServiceState = "running"
	ServiceStopped ServiceState = "stopped"
)

// inFlight is the pending initialization shared by every requester of a
// loading singleton.
type inFlight struct {
	done     chan struct{}
	instance any
	err      error
}

func newInFlight() *inFlight {
	return &inFlight{done: make(chan struct{})}
}

func (f *inFlight) finish(instance any, err error) {
	f.instance = instance
	f.err = err
	close(f.done)
}

// wait blocks until the initialization finishes or ctx is done. The
// constructor keeps running when ctx ends first.
func (f *inFlight) wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.instance, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// startSingleton returns the instance of a singleton, constructing it on the
// first request. Marking the singleton as loading happens under its lock
// together with the state check, so concurrent first requests share one
// construction.
func (b *Broker) startSingleton(ctx context.Context, name string) (any, error) {
	s, ok := b.singletons[name]
	if !ok {
		return nil, errors2.ErrNotFound(KindSingleton, name)
	}

	s.mu.Lock()

	switch s.state {
	case SingletonLoaded:
		instance := s.instance
		s.mu.Unlock()

		return instance, nil

	case SingletonLoading:
		f := s.inFlight
		s.mu.Unlock()

		return f.wait(ctx)

	case SingletonUnloading:
		s.mu.Unlock()

		return nil, errors2.ErrIllegalTransition(KindSingleton, name, "cannot be started because it is stopping")
	}

	f := newInFlight()
	s.state = SingletonLoading
	s.inFlight = f
	state := s.stateData
	s.mu.Unlock()

	instance, err := b.constructSingleton(ctx, name, s, state)

	s.mu.Lock()
	s.inFlight = nil

	if err != nil {
		s.state = SingletonInitial
	} else {
		s.state = SingletonLoaded
		s.instance = instance
	}

	f.finish(instance, err)
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	b.metrics.singletonLoaded(1)
	b.emit(ctx, EventSingletonStarted, KindSingleton, name)

	return instance, nil
}

func (b *Broker) constructSingleton(ctx context.Context, name string, s *Singleton, state State) (instance any, err error) {
	deps := Namespace{}

	for _, dep := range s.singletons {
		inst, err := b.startSingleton(ctx, dep)
		if err != nil {
			return nil, err
		}

		if err := deps.Set(ParseName(dep), inst); err != nil {
			return nil, err
		}
	}

	b.emit(ctx, EventSingletonStarting, KindSingleton, name)

	ctx, span := b.startSpan(ctx, "start", KindSingleton, name)
	defer func() { endSpan(span, err) }()

	started := time.Now()

	instance, err = s.start(ctx, Deps{Singletons: deps, State: state})
	if err != nil {
		b.metrics.failure(KindSingleton, "start")
		b.logger.Error("singleton failed to start", append(logger.Unit(KindSingleton, name), logger.Error(err))...)

		return nil, errors2.NewUnitError(KindSingleton, name, "start", err)
	}

	b.metrics.started(KindSingleton, time.Since(started))
	b.logger.Debug("singleton started", append(logger.Unit(KindSingleton, name), logger.Elapsed(started))...)

	return instance, nil
}

// stopSingleton tears a loaded singleton down and returns it to the initial
// state. A loading singleton is an illegal transition unless waitLoading is
// set, in which case the stop waits for the pending initialization first.
func (b *Broker) stopSingleton(ctx context.Context, name string, waitLoading bool) (err error) {
	s, ok := b.singletons[name]
	if !ok {
		return errors2.ErrNotFound(KindSingleton, name)
	}

	s.mu.Lock()

	for s.state == SingletonLoading {
		if !waitLoading {
			s.mu.Unlock()

			return errors2.ErrIllegalTransition(KindSingleton, name, "cannot be stopped because it is starting")
		}

		f := s.inFlight
		s.mu.Unlock()

		if _, err := f.wait(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}

		s.mu.Lock()
	}

	if s.state != SingletonLoaded {
		s.mu.Unlock()
		return nil
	}

	s.state = SingletonUnloading
	instance := s.instance
	state := s.stateData
	s.mu.Unlock()

	b.emit(ctx, EventSingletonStopping, KindSingleton, name)

	if s.stop != nil {
		stopCtx, span := b.startSpan(ctx, "stop", KindSingleton, name)
		err = s.stop(stopCtx, instance, state)
		endSpan(span, err)
	}

	s.mu.Lock()
	s.state = SingletonInitial
	s.instance = nil
	s.mu.Unlock()

	b.metrics.singletonLoaded(-1)
	b.metrics.stopped(KindSingleton)
	b.emit(ctx, EventSingletonStopped, KindSingleton, name)

	if err != nil {
		b.metrics.failure(KindSingleton, "stop")
		b.logger.Error("singleton failed to stop", append(logger.Unit(KindSingleton, name), logger.Error(err))...)

		return errors2.NewUnitError(KindSingleton, name, "stop", err)
	}

	b.logger.Debug("singleton stopped", logger.Unit(KindSingleton, name)...)

	return nil
}

// StartService loads the service if needed, starts its singletons, plugins
// and actions in dependency order and runs its start handler. Starting a
// running service is a no-op.
func (b *Broker) StartService(ctx context.Context, name string) (err error) {
	s, err := b.Service(name)
	if err != nil {
		return err
	}

	s.op.Lock()
	defer s.op.Unlock()

	if s.State() == ServiceRunning {
		return nil
	}

	if err := b.loadService(name, s); err != nil {
		return err
	}

	b.claims.Lock()
	s.setStarting(true)
	b.claims.Unlock()

	defer s.setStarting(false)

	b.emit(ctx, EventServiceStarting, KindService, name)

	ctx, span := b.startSpan(ctx, "start", KindService, name)
	defer func() { endSpan(span, err) }()

	started := time.Now()
	deps := s.deps()

	singletons, err := b.initSingletons(ctx, deps.Singletons)
	if err != nil {
		return err
	}

	plugins, err := b.initPlugins(ctx, deps.Plugins)
	if err != nil {
		return err
	}

	actions, err := b.initActions(ctx, deps.Actions, false)
	if err != nil {
		return err
	}

	local, err := b.initActions(ctx, deps.LocalActions, true)
	if err != nil {
		return err
	}

	err = s.start(ctx, Deps{
		Singletons:   singletons.Pick(s.singletons),
		Actions:      actions.Pick(s.globalActions()),
		Plugins:      plugins,
		LocalActions: local,
		State:        s.stateData,
	})
	if err != nil {
		b.metrics.failure(KindService, "start")
		b.logger.Error("service failed to start", append(logger.Unit(KindService, name), logger.Error(err))...)

		return errors2.NewUnitError(KindService, name, "start", err)
	}

	s.setState(ServiceRunning)

	b.metrics.started(KindService, time.Since(started))
	b.metrics.serviceRunning(1)
	b.logger.Info("service started", append(logger.Unit(KindService, name), logger.Elapsed(started))...)
	b.emit(ctx, EventServiceStarted, KindService, name)

	return nil
}
