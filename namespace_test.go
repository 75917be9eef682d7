package agata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespace_SetGet(t *testing.T) {
	ns := Namespace{}

	require.NoError(t, ns.Set(ParseName("user.getById"), 1))
	require.NoError(t, ns.Set(ParseName("user.getFriends"), 2))
	require.NoError(t, ns.Set(ParseName("billing#count"), 3))

	assert.Equal(t, Namespace{
		"user":  Namespace{"getById": 1, "getFriends": 2},
		"count": 3,
	}, ns)

	v, ok := ns.Get("user.getFriends")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	assert.True(t, ns.Has("user"))
	assert.False(t, ns.Has("user.missing"))
	assert.False(t, ns.Has("count.deeper"))
}

func TestNamespace_Collisions(t *testing.T) {
	ns := Namespace{}
	require.NoError(t, ns.Set(ParseName("user.get"), 1))

	assert.Error(t, ns.Set(ParseName("user.get.byId"), 2), "value cannot hold a namespace")
	assert.Error(t, ns.Set(ParseName("user"), 3), "namespace cannot be replaced by a value")

	require.NoError(t, ns.Set(ParseName("user.get"), 4))
	assert.Equal(t, 4, MustLookup[int](ns, "user.get"))
}

func TestNamespace_Pick(t *testing.T) {
	ns := Namespace{}
	for i, name := range []string{"db", "cache", "user.get", "user.list"} {
		require.NoError(t, ns.Set(ParseName(name), i))
	}

	assert.Equal(t, Namespace{
		"db":   0,
		"user": Namespace{"list": 3},
	}, ns.Pick([]string{"db", "user.list", "missing"}))

	assert.Equal(t, Namespace{}, ns.Pick(nil))
}

func TestNamespace_Merge(t *testing.T) {
	ns := Namespace{"user": Namespace{"get": 1, "list": 2}, "db": "real"}
	other := Namespace{"user": Namespace{"get": "mock"}, "db": "fake", "cache": "c"}

	ns.Merge(other)

	assert.Equal(t, Namespace{
		"user":  Namespace{"get": "mock", "list": 2},
		"db":    "fake",
		"cache": "c",
	}, ns)

	other["user"].(Namespace)["get"] = "changed"
	assert.Equal(t, "mock", MustLookup[string](ns, "user.get"), "merged namespaces are copied")
}

func TestLookup(t *testing.T) {
	ns := Namespace{}
	require.NoError(t, ns.Set(ParseName("db"), "postgres"))
	require.NoError(t, ns.Set(ParseName("nothing"), nil))

	v, err := Lookup[string](ns, "db")
	require.NoError(t, err)
	assert.Equal(t, "postgres", v)

	_, err = Lookup[string](ns, "cache")
	assert.Equal(t, MissingDependencyError{Name: "cache"}, err)
	assert.EqualError(t, err, `agata: dependency "cache" missing`)

	_, err = Lookup[int](ns, "db")
	assert.Equal(t, WrongTypeDependencyError{Name: "db", GotType: "string"}, err)

	_, err = Lookup[int](ns, "nothing")
	assert.Equal(t, WrongTypeDependencyError{Name: "nothing", GotType: "<nil>"}, err)

	assert.Panics(t, func() { MustLookup[int](ns, "db") })
}
