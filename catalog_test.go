package agata

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errors2 "github.com/xraph/agata/errors"
)

var catalogPaths = DiscoveryConfig{
	Singletons: "singletons",
	Actions:    "actions",
	Plugins:    "plugins",
	Services:   "services",
}

func catalogFS() fstest.MapFS {
	return fstest.MapFS{
		"singletons/db.singleton.yaml":    {Data: []byte("singletons: [config]\n")},
		"singletons/config.singleton.yml": {Data: []byte("")},
		"actions/user/get-by-id.action.yaml": {Data: []byte(
			"singletons: [db]\nplugins:\n  http:\n    url: /users\n")},
		"plugins/http.plugin.yaml": {Data: []byte("")},
		"services/api/index.yaml": {Data: []byte(
			"singletons: [db]\n" +
				"actions: [user.getById]\n" +
				"localActions:\n" +
				"  count:\n" +
				"    factory: counter\n" +
				"    actions: [user.getById]\n")},
	}
}

func testCatalog(rec *recorder) *Catalog {
	return NewCatalog().
		Singleton("config", recordedSingleton(rec, "config").Start, nil).
		Singleton("db", recordedSingleton(rec, "db").Start, recordedSingleton(rec, "db").Stop).
		Plugin("http", func(context.Context, Deps) (PluginFactory, error) {
			return func(_ context.Context, p Params) (any, error) { return p["url"], nil }, nil
		}).
		Action("user.getById", func(_ context.Context, deps Deps) (any, error) {
			url := MustLookup[string](deps.Plugins, "http")
			return func() string { return url }, nil
		}).
		Action("counter", func(_ context.Context, deps Deps) (any, error) {
			get := MustLookup[func() string](deps.Actions, "user.getById")
			return func() int { return len(get()) }, nil
		}).
		Service("api", func(_ context.Context, deps Deps) error {
			rec.add("api:" + MustLookup[func() string](deps.Actions, "user.getById")())

			count := MustLookup[func() int](deps.LocalActions, "count")
			if count() != len("/users") {
				rec.add("api:bad-count")
			}

			return nil
		}, nil)
}

func TestDiscovery(t *testing.T) {
	rec := &recorder{}

	b := newTestBroker(t, Definitions{},
		WithDiscovery(catalogFS(), catalogPaths),
		WithCatalog(testCatalog(rec)),
	)

	db, err := b.Singleton("db")
	require.NoError(t, err)
	assert.Equal(t, []string{"config"}, db.RequiredSingletons())

	action, err := b.Action("user.getById")
	require.NoError(t, err)
	assert.Equal(t, Params{"url": "/users"}, action.PluginParams("http"))

	svc, err := b.Service("api")
	require.NoError(t, err)
	assert.Equal(t, []string{"count"}, svc.RequiredLocalActions())

	require.NoError(t, b.StartService(context.Background(), "api"))
	assert.Equal(t, []string{"start:config", "start:db", "api:/users"}, rec.list())
}

func TestDiscovery_MergesWithDefinitions(t *testing.T) {
	b := newTestBroker(t, Definitions{
		Singletons: map[string]SingletonDefinition{"cache": recordedSingleton(&recorder{}, "cache")},
	},
		WithDiscovery(catalogFS(), DiscoveryConfig{Singletons: "singletons"}),
		WithCatalog(testCatalog(&recorder{})),
	)

	for _, name := range []string{"cache", "config", "db"} {
		_, err := b.Singleton(name)
		assert.NoError(t, err, name)
	}

	_, err := b.Action("user.getById")
	assert.True(t, errors2.IsNotFound(err))
}

func TestDiscovery_Errors(t *testing.T) {
	tests := []struct {
		name  string
		defs  Definitions
		opts  []Option
		check func(error) bool
	}{
		{
			name:  "discovery without catalog",
			opts:  []Option{WithDiscovery(catalogFS(), catalogPaths)},
			check: errors2.IsConfigError,
		},
		{
			name:  "nil filesystem",
			opts:  []Option{WithDiscovery(nil, catalogPaths)},
			check: errors2.IsConfigError,
		},
		{
			name: "missing catalog entry",
			opts: []Option{
				WithDiscovery(catalogFS(), catalogPaths),
				WithCatalog(NewCatalog()),
			},
			check: errors2.IsNotFound,
		},
		{
			name: "name defined in code and on disk",
			defs: Definitions{
				Singletons: map[string]SingletonDefinition{"db": recordedSingleton(&recorder{}, "db")},
			},
			opts: []Option{
				WithDiscovery(catalogFS(), DiscoveryConfig{Singletons: "singletons"}),
				WithCatalog(testCatalog(&recorder{})),
			},
			check: errors2.IsDuplicateDefinition,
		},
		{
			name: "missing directory",
			opts: []Option{
				WithDiscovery(catalogFS(), DiscoveryConfig{Actions: "nope"}),
				WithCatalog(testCatalog(&recorder{})),
			},
			check: errors2.IsConfigError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.defs, tt.opts...)
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
		})
	}
}

func TestCatalog_MissingFactoryContext(t *testing.T) {
	_, err := NewCatalog().Definitions(catalogFS(), DiscoveryConfig{Plugins: "plugins"})
	require.Error(t, err)

	var agataErr *errors2.AgataError
	require.True(t, errors2.As(err, &agataErr))
	assert.Equal(t, "http", agataErr.Ctx["unit"])
	assert.Equal(t, "plugins/http.plugin.yaml", agataErr.Ctx["path"])
	assert.Contains(t, err.Error(), `plugin factory "http" not found`)
}

func TestManifestCatalog(t *testing.T) {
	b := newTestBroker(t, Definitions{},
		WithDiscovery(catalogFS(), catalogPaths),
		WithCatalog(NewManifestCatalog().Singleton("config", recordedSingleton(&recorder{}, "config").Start, nil)),
	)

	r, err := b.Dependencies()
	require.NoError(t, err)
	assert.Equal(t, []string{"config", "db"}, r.Services["api"].Singletons)
	assert.Equal(t, []string{"user.getById", "api#count"}, r.Services["api"].Actions)

	err = b.StartService(context.Background(), "api")
	require.Error(t, err)
	assert.True(t, errors2.IsNotFound(err))
	assert.Contains(t, err.Error(), `singleton factory "db" not found`)

	config, _ := b.Singleton("config")
	assert.Equal(t, SingletonLoaded, config.State(), "registered code still runs")
}
