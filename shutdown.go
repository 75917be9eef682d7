package agata

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	errors2 "github.com/xraph/agata/errors"
	"github.com/xraph/agata/logger"
)

// StopService runs the stop handler of a running service and tears down the
// singletons no other running service still uses, in reverse load order.
// A failing teardown does not stop the others; the service ends up stopped
// and the errors are returned joined. Stopping a service that is not running
// is a no-op.
func (b *Broker) StopService(ctx context.Context, name string) (err error) {
	s, err := b.Service(name)
	if err != nil {
		return err
	}

	s.op.Lock()
	defer s.op.Unlock()

	if s.State() != ServiceRunning {
		return nil
	}

	ctx, span := b.startSpan(ctx, "stop", KindService, name)
	defer func() { endSpan(span, err) }()

	if err := b.runStopHandler(ctx, name, s); err != nil {
		return err
	}

	var errs []error

	for _, singleton := range reversed(s.deps().Singletons) {
		if err := b.releaseSingleton(ctx, name, singleton); err != nil {
			errs = append(errs, err)
		}
	}

	b.markStopped(name, s)

	return errors2.Join(errs...)
}

// releaseSingleton stops singleton unless a service other than owner is
// running or starting with it. The check and the teardown happen under
// claims, so a service that begins starting meanwhile keeps the singleton.
func (b *Broker) releaseSingleton(ctx context.Context, owner, singleton string) error {
	b.claims.Lock()
	defer b.claims.Unlock()

	if slices.Contains(b.stillNeeded(owner), singleton) {
		return nil
	}

	return b.stopSingleton(ctx, singleton, false)
}

// StopAll stops every running service, then tears down every started
// singleton exactly once in reverse dependency order. Failures do not
// interrupt the teardown; every service ends up stopped and the errors are
// returned joined.
func (b *Broker) StopAll(ctx context.Context) error {
	running := b.RunningServices()

	b.logger.Info("stopping all services", logger.Strings("services", running))

	var (
		mu      sync.Mutex
		stopped []string
		g       errgroup.Group
	)

	for _, name := range running {
		s := b.services[name]

		g.Go(func() error {
			s.op.Lock()
			defer s.op.Unlock()

			if s.State() != ServiceRunning {
				return nil
			}

			err := b.runStopHandler(ctx, name, s)
			b.markStopped(name, s)

			mu.Lock()
			stopped = append(stopped, name)
			mu.Unlock()

			return err
		})
	}

	errs := []error{g.Wait()}

	order, err := b.sortSingletons(sortedKeys(b.singletons))
	if err != nil {
		return errors2.Join(append(errs, err)...)
	}

	for _, name := range reversed(order) {
		errs = append(errs, b.stopSingleton(ctx, name, true))
	}

	b.logger.Info("all services stopped", logger.Int("stopped", len(stopped)))

	return errors2.Join(errs...)
}

func (b *Broker) runStopHandler(ctx context.Context, name string, s *Service) error {
	b.emit(ctx, EventServiceStopping, KindService, name)

	if s.stop != nil {
		if err := s.stop(ctx, Deps{State: s.stateData}); err != nil {
			b.metrics.failure(KindService, "stop")
			b.logger.Error("service failed to stop", append(logger.Unit(KindService, name), logger.Error(err))...)

			return errors2.NewUnitError(KindService, name, "stop", err)
		}
	}

	b.emit(ctx, EventServiceStopped, KindService, name)

	return nil
}

func (b *Broker) markStopped(name string, s *Service) {
	s.setState(ServiceStopped)

	b.metrics.stopped(KindService)
	b.metrics.serviceRunning(-1)
	b.logger.Info("service stopped", logger.Unit(KindService, name)...)
}

// stillNeeded returns the singletons used by every other service that is
// running or starting.
func (b *Broker) stillNeeded(except string) []string {
	var needed []string

	for _, name := range sortedKeys(b.services) {
		if name == except {
			continue
		}

		s := b.services[name]
		if s.holds() {
			needed = append(needed, s.deps().Singletons...)
		}
	}

	return needed
}
