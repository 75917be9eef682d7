package agata

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	errors2 "github.com/xraph/agata/errors"
	"github.com/xraph/agata/logger"
)

// Event is a lifecycle notification emitted by the broker.
type Event string

const (
	EventServiceStarting   Event = "service-starting"
	EventServiceStarted    Event = "service-started"
	EventServiceStopping   Event = "service-stopping"
	EventServiceStopped    Event = "service-stopped"
	EventSingletonStarting Event = "singleton-starting"
	EventSingletonStarted  Event = "singleton-started"
	EventSingletonStopping Event = "singleton-stopping"
	EventSingletonStopped  Event = "singleton-stopped"
	EventActionStarting    Event = "action-starting"
	EventActionStarted     Event = "action-started"
	EventPluginStarting    Event = "plugin-starting"
	EventPluginStarted     Event = "plugin-started"
)

// EventInfo describes one emitted event.
type EventInfo struct {
	Event  Event
	Kind   string
	Name   string
	Broker string
}

// Hook observes broker events. A returned error is logged and does not
// interrupt the operation that emitted the event.
type Hook func(ctx context.Context, info EventInfo) error

// HookOptions configures a hook.
type HookOptions struct {
	// Name is a unique identifier for this hook within its event.
	Name string

	// Priority determines execution order (higher priority runs first).
	Priority int
}

type hookEntry struct {
	hook Hook
	opts HookOptions
}

// hookManager stores hooks per event.
type hookManager struct {
	mu     sync.RWMutex
	hooks  map[Event][]hookEntry
	logger logger.Logger
}

func newHookManager(l logger.Logger) *hookManager {
	return &hookManager{
		hooks:  make(map[Event][]hookEntry),
		logger: l,
	}
}

// register adds a hook for an event.
func (m *hookManager) register(event Event, hook Hook, opts HookOptions) error {
	if hook == nil {
		return errors2.New("hook cannot be nil")
	}

	if opts.Name == "" {
		return errors2.New("hook name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range m.hooks[event] {
		if entry.opts.Name == opts.Name {
			return errors2.ErrDuplicateDefinition("hook", fmt.Sprintf("%s/%s", event, opts.Name))
		}
	}

	hooks := append(slices.Clone(m.hooks[event]), hookEntry{hook: hook, opts: opts})
	slices.SortStableFunc(hooks, func(a, b hookEntry) int {
		return cmp.Compare(b.opts.Priority, a.opts.Priority)
	})
	m.hooks[event] = hooks

	m.logger.Debug("hook registered",
		logger.String("event", string(event)),
		logger.String("name", opts.Name),
		logger.Int("priority", opts.Priority),
	)

	return nil
}

// remove deletes a hook by name.
func (m *hookManager) remove(event Event, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	hooks := m.hooks[event]
	for i, entry := range hooks {
		if entry.opts.Name == name {
			m.hooks[event] = slices.Delete(slices.Clone(hooks), i, i+1)
			return nil
		}
	}

	return errors2.ErrNotFound("hook", name)
}

// list returns the options of every hook registered for event.
func (m *hookManager) list(event Event) []HookOptions {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]HookOptions, len(m.hooks[event]))
	for i, entry := range m.hooks[event] {
		out[i] = entry.opts
	}

	return out
}

// emit runs every hook registered for info.Event in priority order.
func (m *hookManager) emit(ctx context.Context, info EventInfo) {
	m.mu.RLock()
	hooks := m.hooks[info.Event]
	m.mu.RUnlock()

	for _, entry := range hooks {
		if err := entry.hook(ctx, info); err != nil {
			m.logger.Warn("hook failed",
				logger.String("event", string(info.Event)),
				logger.String("hook", entry.opts.Name),
				logger.String("unit", info.Name),
				logger.Error(err),
			)
		}
	}
}
