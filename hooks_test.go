package agata

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errors2 "github.com/xraph/agata/errors"
)

func eventRecorder(rec *recorder) Hook {
	return func(_ context.Context, info EventInfo) error {
		rec.add(string(info.Event) + ":" + info.Name)
		return nil
	}
}

func TestHooks_Register(t *testing.T) {
	b := newTestBroker(t, Definitions{})
	noop := func(context.Context, EventInfo) error { return nil }

	tests := []struct {
		name    string
		opts    HookOptions
		hook    Hook
		wantErr string
	}{
		{name: "valid hook", opts: HookOptions{Name: "audit"}, hook: noop},
		{name: "nil hook", opts: HookOptions{Name: "nil"}, wantErr: "hook cannot be nil"},
		{name: "empty name", opts: HookOptions{}, hook: noop, wantErr: "hook name is required"},
		{name: "duplicate name", opts: HookOptions{Name: "audit"}, hook: noop, wantErr: "already exists"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.On(EventServiceStarted, tt.opts, tt.hook)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.Len(t, b.Hooks(EventServiceStarted), 1)
	assert.Empty(t, b.Hooks(EventServiceStopped))
}

func TestHooks_PriorityOrder(t *testing.T) {
	rec := &recorder{}
	b := newTestBroker(t, Definitions{
		Services: map[string]ServiceDefinition{"api": noopService(nil, nil)},
	})

	for _, h := range []HookOptions{
		{Name: "low", Priority: -1},
		{Name: "default"},
		{Name: "high", Priority: 10},
		{Name: "default-2"},
	} {
		name := h.Name
		require.NoError(t, b.On(EventServiceStarted, h, func(context.Context, EventInfo) error {
			rec.add(name)
			return nil
		}))
	}

	assert.Equal(t, []HookOptions{
		{Name: "high", Priority: 10},
		{Name: "default"},
		{Name: "default-2"},
		{Name: "low", Priority: -1},
	}, b.Hooks(EventServiceStarted))

	require.NoError(t, b.StartService(context.Background(), "api"))
	assert.Equal(t, []string{"high", "default", "default-2", "low"}, rec.list())
}

func TestHooks_Off(t *testing.T) {
	rec := &recorder{}
	b := newTestBroker(t, Definitions{
		Services: map[string]ServiceDefinition{"api": noopService(nil, nil)},
	}, WithHook(EventServiceStarted, HookOptions{Name: "rec"}, eventRecorder(rec)))

	require.NoError(t, b.Off(EventServiceStarted, "rec"))
	assert.True(t, errors2.IsNotFound(b.Off(EventServiceStarted, "rec")))

	require.NoError(t, b.StartService(context.Background(), "api"))
	assert.Empty(t, rec.list())
}

func TestHooks_LifecycleEvents(t *testing.T) {
	rec := &recorder{}
	events := []Event{
		EventServiceStarting, EventServiceStarted, EventServiceStopping, EventServiceStopped,
		EventSingletonStarting, EventSingletonStarted, EventSingletonStopping, EventSingletonStopped,
		EventActionStarting, EventActionStarted, EventPluginStarting, EventPluginStarted,
	}

	opts := make([]Option, 0, len(events))
	for _, e := range events {
		opts = append(opts, WithHook(e, HookOptions{Name: "rec"}, eventRecorder(rec)))
	}

	b := newTestBroker(t, Definitions{
		Singletons: map[string]SingletonDefinition{
			"db": SingletonConfig{Start: func(context.Context, Deps) (any, error) { return "db", nil }},
		},
		Plugins: map[string]PluginDefinition{
			"http": PluginConfig{Start: func(context.Context, Deps) (PluginFactory, error) {
				return func(context.Context, Params) (any, error) { return "client", nil }, nil
			}},
		},
		Actions: map[string]ActionDefinition{
			"get": ActionConfig{
				Singletons: []string{"db"},
				Plugins:    map[string]Params{"http": nil},
				Fn:         constAction(1).Fn,
			},
		},
		Services: map[string]ServiceDefinition{"api": noopService([]string{"db"}, []string{"get"})},
	}, opts...)

	ctx := context.Background()
	require.NoError(t, b.StartService(ctx, "api"))
	require.NoError(t, b.StopService(ctx, "api"))

	assert.Equal(t, []string{
		"service-starting:api",
		"singleton-starting:db",
		"singleton-started:db",
		"plugin-starting:http",
		"plugin-started:http",
		"action-starting:get",
		"action-started:get",
		"service-started:api",
		"service-stopping:api",
		"service-stopped:api",
		"singleton-stopping:db",
		"singleton-stopped:db",
	}, rec.list())
}

func TestHooks_ErrorDoesNotInterrupt(t *testing.T) {
	var info EventInfo

	b := newTestBroker(t, Definitions{
		Services: map[string]ServiceDefinition{"api": noopService(nil, nil)},
	},
		WithHook(EventServiceStarting, HookOptions{Name: "fail", Priority: 1}, func(context.Context, EventInfo) error {
			return errors.New("hook failed")
		}),
		WithHook(EventServiceStarting, HookOptions{Name: "next"}, func(_ context.Context, i EventInfo) error {
			info = i
			return nil
		}),
	)

	require.NoError(t, b.StartService(context.Background(), "api"))
	assert.True(t, b.IsServiceRunning("api"))
	assert.Equal(t, EventInfo{Event: EventServiceStarting, Kind: KindService, Name: "api", Broker: b.ID()}, info)
}
