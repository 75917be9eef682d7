package agata

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errors2 "github.com/xraph/agata/errors"
)

type contract struct {
	URL string
}

func contractPlugin(starts *atomic.Int32) PluginConfig {
	return PluginConfig{
		Start: func(context.Context, Deps) (PluginFactory, error) {
			starts.Add(1)

			return func(_ context.Context, params Params) (any, error) {
				url, _ := params["url"].(string)
				params["url"] = "mutated"

				return contract{URL: url}, nil
			}, nil
		},
	}
}

func TestActions_SharedAcrossServices(t *testing.T) {
	var builds atomic.Int32

	b := newTestBroker(t, Definitions{
		Actions: map[string]ActionDefinition{
			"user.get": ActionConfig{
				Fn: func(context.Context, Deps) (any, error) {
					builds.Add(1)
					return func() string { return "ada" }, nil
				},
			},
		},
		Services: map[string]ServiceDefinition{
			"api":    noopService(nil, []string{"user.get"}),
			"worker": noopService(nil, []string{"user.get"}),
		},
	})

	ctx := context.Background()
	require.NoError(t, b.StartService(ctx, "api"))
	require.NoError(t, b.StartService(ctx, "worker"))

	assert.Equal(t, int32(1), builds.Load())

	a, _ := b.Action("user.get")
	fn, ok := a.Resolved()
	require.True(t, ok)
	assert.Equal(t, "ada", fn.(func() string)())
}

func TestActions_NestedNamespace(t *testing.T) {
	var got string

	b := newTestBroker(t, Definitions{
		Actions: map[string]ActionDefinition{
			"user.getById": constAction("ada"),
			"user.getFriends": ActionConfig{
				Actions: []string{"user.getById"},
				Fn: func(_ context.Context, deps Deps) (any, error) {
					user, ok := deps.Actions["user"].(Namespace)
					if !ok {
						return nil, errors.New("user namespace missing")
					}

					getByID := user["getById"].(func() any)

					return func() string { return getByID().(string) + "'s friends" }, nil
				},
			},
		},
		Services: map[string]ServiceDefinition{
			"svc": ServiceConfig{
				Actions: []string{"user.getFriends"},
				Start: func(_ context.Context, deps Deps) error {
					got = MustLookup[func() string](deps.Actions, "user.getFriends")()

					_, err := Lookup[any](deps.Actions, "user.getById")
					assert.ErrorAs(t, err, &MissingDependencyError{})

					return nil
				},
			},
		},
	})

	require.NoError(t, b.StartService(context.Background(), "svc"))
	assert.Equal(t, "ada's friends", got)
}

func TestActions_ContractViolationDoesNotPoison(t *testing.T) {
	b := newTestBroker(t, Definitions{
		Actions: map[string]ActionDefinition{
			"bad": ActionConfig{Fn: func(context.Context, Deps) (any, error) { return 42, nil }},
			"nilFunc": ActionConfig{Fn: func(context.Context, Deps) (any, error) {
				var fn func()
				return fn, nil
			}},
			"good": constAction("ok"),
		},
		Services: map[string]ServiceDefinition{
			"broken":   noopService(nil, []string{"bad"}),
			"nilFunc":  noopService(nil, []string{"nilFunc"}),
			"healthy":  noopService(nil, []string{"good"}),
			"combined": noopService(nil, []string{"good", "bad"}),
		},
	})

	ctx := context.Background()

	err := b.StartService(ctx, "broken")
	require.Error(t, err)
	assert.True(t, errors2.IsContractViolation(err))
	assert.Contains(t, err.Error(), `action "bad" did not return function`)

	err = b.StartService(ctx, "nilFunc")
	assert.True(t, errors2.IsContractViolation(err))

	require.NoError(t, b.StartService(ctx, "healthy"))

	bad, _ := b.Action("bad")
	_, ok := bad.Resolved()
	assert.False(t, ok)

	err = b.StartService(ctx, "combined")
	assert.True(t, errors2.IsContractViolation(err))
}

func TestActions_FailureIsNotMemoized(t *testing.T) {
	var attempts atomic.Int32

	b := newTestBroker(t, Definitions{
		Actions: map[string]ActionDefinition{
			"flaky": ActionConfig{Fn: func(context.Context, Deps) (any, error) {
				if attempts.Add(1) == 1 {
					return nil, errors.New("warming up")
				}

				return func() {}, nil
			}},
		},
		Services: map[string]ServiceDefinition{"svc": noopService(nil, []string{"flaky"})},
	})

	ctx := context.Background()

	err := b.StartService(ctx, "svc")
	require.Error(t, err)
	assert.True(t, errors2.Is(err, &errors2.UnitError{Kind: KindAction, Name: "flaky", Operation: "init"}))

	require.NoError(t, b.StartService(ctx, "svc"))
	assert.Equal(t, int32(2), attempts.Load())
}

func TestActions_ConcurrentResolveOnce(t *testing.T) {
	var builds atomic.Int32

	b := newTestBroker(t, Definitions{
		Actions: map[string]ActionDefinition{
			"a": ActionConfig{Fn: func(context.Context, Deps) (any, error) {
				builds.Add(1)
				return func() {}, nil
			}},
		},
	})

	var wg sync.WaitGroup

	for range 16 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := b.resolveAction(context.Background(), "a")
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
}

func TestPlugins_PerActionParams(t *testing.T) {
	var starts atomic.Int32

	got := map[string]contract{}

	var mu sync.Mutex

	capture := func(name string) ActionConfig {
		return ActionConfig{
			Plugins: map[string]Params{"http": {"url": "/" + name}},
			Fn: func(_ context.Context, deps Deps) (any, error) {
				mu.Lock()
				defer mu.Unlock()

				got[name] = MustLookup[contract](deps.Plugins, "http")

				return func() {}, nil
			},
		}
	}

	var factories Namespace

	b := newTestBroker(t, Definitions{
		Plugins: map[string]PluginDefinition{"http": contractPlugin(&starts)},
		Actions: map[string]ActionDefinition{
			"users":  capture("users"),
			"orders": capture("orders"),
		},
		Services: map[string]ServiceDefinition{
			"svc": ServiceConfig{
				Actions: []string{"users", "orders"},
				Start: func(_ context.Context, deps Deps) error {
					factories = deps.Plugins
					return nil
				},
			},
		},
	})

	require.NoError(t, b.StartService(context.Background(), "svc"))

	assert.Equal(t, int32(1), starts.Load())
	assert.Equal(t, contract{URL: "/users"}, got["users"])
	assert.Equal(t, contract{URL: "/orders"}, got["orders"])

	_, err := Lookup[PluginFactory](factories, "http")
	assert.NoError(t, err)

	users, _ := b.Action("users")
	assert.Equal(t, "/users", users.PluginParams("http")["url"])
}

func TestPlugins_ContextOutlivesStart(t *testing.T) {
	var startCtx, factoryCtx context.Context

	b := newTestBroker(t, Definitions{
		Plugins: map[string]PluginDefinition{
			"http": PluginConfig{
				Start: func(ctx context.Context, _ Deps) (PluginFactory, error) {
					startCtx = ctx

					return func(ctx context.Context, _ Params) (any, error) {
						factoryCtx = ctx
						return contract{}, nil
					}, nil
				},
			},
		},
		Actions: map[string]ActionDefinition{
			"a": ActionConfig{Plugins: map[string]Params{"http": {}}, Fn: constAction(1).Fn},
		},
		Services: map[string]ServiceDefinition{
			"svc": noopService(nil, []string{"a"}),
		},
	})

	require.NoError(t, b.StartService(context.Background(), "svc"))

	require.NotNil(t, startCtx)
	require.NotNil(t, factoryCtx)
	assert.NoError(t, startCtx.Err())
	assert.NoError(t, factoryCtx.Err())
}

func TestPlugins_NilFactory(t *testing.T) {
	b := newTestBroker(t, Definitions{
		Plugins: map[string]PluginDefinition{
			"http": PluginConfig{Start: func(context.Context, Deps) (PluginFactory, error) { return nil, nil }},
		},
		Actions: map[string]ActionDefinition{
			"a": ActionConfig{Plugins: map[string]Params{"http": nil}, Fn: constAction(1).Fn},
		},
		Services: map[string]ServiceDefinition{"svc": noopService(nil, []string{"a"})},
	})

	err := b.StartService(context.Background(), "svc")
	require.Error(t, err)
	assert.True(t, errors2.IsContractViolation(err))
	assert.Contains(t, err.Error(), `"start" has to return a factory`)
}

func TestPlugins_FactoryFailure(t *testing.T) {
	boom := errors.New("bad params")

	b := newTestBroker(t, Definitions{
		Plugins: map[string]PluginDefinition{
			"http": PluginConfig{Start: func(context.Context, Deps) (PluginFactory, error) {
				return func(context.Context, Params) (any, error) { return nil, boom }, nil
			}},
		},
		Actions: map[string]ActionDefinition{
			"a": ActionConfig{Plugins: map[string]Params{"http": nil}, Fn: constAction(1).Fn},
		},
		Services: map[string]ServiceDefinition{"svc": noopService(nil, []string{"a"})},
	})

	err := b.StartService(context.Background(), "svc")
	require.ErrorIs(t, err, boom)
	assert.True(t, errors2.Is(err, &errors2.UnitError{Kind: KindPlugin, Name: "http", Operation: "instantiate"}))
}

func TestLocalActions(t *testing.T) {
	var (
		sum    int
		global Namespace
	)

	b := newTestBroker(t, Definitions{
		Actions: map[string]ActionDefinition{
			"get2":  constAction(2),
			"other": constAction(0),
		},
		Services: map[string]ServiceDefinition{
			"first": ServiceConfig{
				Actions: []string{"other", "#sum"},
				LocalActions: map[string]ActionDefinition{
					"get3": constAction(3),
					"sum": ActionConfig{
						Actions: []string{"get2", "#get3"},
						Fn: func(_ context.Context, deps Deps) (any, error) {
							get2 := MustLookup[func() any](deps.Actions, "get2")
							get3 := MustLookup[func() any](deps.Actions, "get3")

							return func() int { return get2().(int) + get3().(int) }, nil
						},
					},
				},
				Start: func(_ context.Context, deps Deps) error {
					sum = MustLookup[func() int](deps.LocalActions, "sum")()
					global = deps.Actions

					return nil
				},
			},
		},
	})

	require.NoError(t, b.StartService(context.Background(), "first"))

	assert.Equal(t, 5, sum)
	assert.True(t, global.Has("other"))
	assert.False(t, global.Has("sum"))
	assert.False(t, global.Has("get2"))

	report, err := b.Dependencies()
	require.NoError(t, err)
	assert.Equal(t, []string{"first#get3", "first#sum"}, report.Services["first"].LocalActions)
	assert.Equal(t, []string{"first"}, report.Actions["first#sum"].Dependents.Services)
}

func TestLoadService_MissingDeclaration(t *testing.T) {
	rec := &recorder{}

	b := newTestBroker(t, Definitions{
		Singletons: map[string]SingletonDefinition{"db": recordedSingleton(rec, "db")},
		Actions:    map[string]ActionDefinition{"a": constAction(1, "db")},
		Plugins: map[string]PluginDefinition{
			"http": PluginConfig{Singletons: []string{"db"}, Start: contractPlugin(new(atomic.Int32)).Start},
		},
		Services: map[string]ServiceDefinition{
			"api": noopService(nil, []string{"a"}),
			"web": ServiceConfig{
				LocalActions: map[string]ActionDefinition{
					"page": ActionConfig{Plugins: map[string]Params{"http": nil}, Fn: constAction(1).Fn},
				},
				Start: noopService(nil, nil).Start,
			},
		},
	})

	err := b.LoadService("api")
	require.Error(t, err)
	assert.True(t, errors2.IsMissingDeclaration(err))
	assert.Contains(t, err.Error(), `action "a" in service "api" requires not included singleton(s): "db"`)

	err = b.StartService(context.Background(), "web")
	require.Error(t, err)
	assert.True(t, errors2.IsMissingDeclaration(err))
	assert.Contains(t, err.Error(), `plugin "http" in service "web"`)

	svc, _ := b.Service("api")
	assert.Equal(t, ServiceCreated, svc.State())
	assert.Empty(t, rec.list())
}

func TestLoadService_Cycles(t *testing.T) {
	rec := &recorder{}

	cyclic := func(deps ...string) ActionConfig {
		return ActionConfig{Actions: deps, Fn: constAction(1).Fn}
	}

	b := newTestBroker(t, Definitions{
		Singletons: map[string]SingletonDefinition{
			"a": recordedSingleton(rec, "a", "b"),
			"b": recordedSingleton(rec, "b", "c"),
			"c": recordedSingleton(rec, "c", "a"),
		},
		Actions: map[string]ActionDefinition{
			"x": cyclic("y"),
			"y": cyclic("x"),
		},
		Services: map[string]ServiceDefinition{
			"singletons": noopService([]string{"a"}, nil),
			"actions":    noopService(nil, []string{"x"}),
		},
	})

	err := b.LoadService("singletons")
	require.Error(t, err)
	assert.True(t, errors2.IsCircularDependency(err))
	assert.Contains(t, err.Error(), "a -> b -> c -> a")

	err = b.StartService(context.Background(), "actions")
	require.Error(t, err)
	assert.True(t, errors2.IsCircularDependency(err))
	assert.Contains(t, err.Error(), "x -> y -> x")

	_, err = b.Dependencies()
	assert.True(t, errors2.IsCircularDependency(err))

	assert.Empty(t, rec.list())
}

func TestLoadService_Idempotent(t *testing.T) {
	rec := &recorder{}

	b := newTestBroker(t, Definitions{
		Singletons: map[string]SingletonDefinition{
			"config": recordedSingleton(rec, "config"),
			"db":     recordedSingleton(rec, "db", "config"),
		},
		Services: map[string]ServiceDefinition{"svc": noopService([]string{"db"}, nil)},
	})

	require.NoError(t, b.LoadService("svc"))
	require.NoError(t, b.LoadService("svc"))

	svc, _ := b.Service("svc")
	assert.Equal(t, ServiceLoaded, svc.State())
	assert.Equal(t, []string{"config", "db"}, svc.deps().Singletons)
	assert.Empty(t, rec.list())

	assert.True(t, errors2.IsNotFound(b.LoadService("nope")))
}
