package agata

import (
	"reflect"
	"strconv"
)

// Namespace is the nested mapping handed to unit constructors. A dependency
// named "user.getById" is stored under Namespace{"user": Namespace{"getById": v}}.
type Namespace map[string]any

// MissingDependencyError is returned when a name is not present in a Namespace.
type MissingDependencyError struct{ Name string }

// Error implements the error interface.
func (e MissingDependencyError) Error() string {
	return "agata: dependency " + strconv.Quote(e.Name) + " missing"
}

// WrongTypeDependencyError is returned when a name exists but holds another type.
type WrongTypeDependencyError struct {
	Name    string
	GotType string
}

// Error implements the error interface.
func (e WrongTypeDependencyError) Error() string {
	return "agata: dependency " + strconv.Quote(e.Name) + " has wrong type (" + e.GotType + ")"
}

// namespaceCollisionError is returned when a value would replace a nested
// namespace or a namespace would replace a value.
type namespaceCollisionError struct{ Name string }

func (e namespaceCollisionError) Error() string {
	return "agata: name " + strconv.Quote(e.Name) + " collides with an existing namespace entry"
}

// Get returns the value stored under a dotted path.
func (ns Namespace) Get(path string) (any, bool) {
	return ns.lookup(ParseName(path).Segments)
}

// Has reports whether a dotted path is present.
func (ns Namespace) Has(path string) bool {
	_, ok := ns.Get(path)
	return ok
}

func (ns Namespace) lookup(segments []string) (any, bool) {
	cur := ns

	for i, seg := range segments {
		v, ok := cur[seg]
		if !ok {
			return nil, false
		}

		if i == len(segments)-1 {
			return v, true
		}

		next, ok := v.(Namespace)
		if !ok {
			return nil, false
		}
		cur = next
	}

	return nil, false
}

// Set stores v under the structured name, creating intermediate namespaces.
// The owner of a local action name is not part of the path.
func (ns Namespace) Set(name Name, v any) error {
	cur := ns
	last := len(name.Segments) - 1

	for i, seg := range name.Segments {
		if i == last {
			if existing, ok := cur[seg].(Namespace); ok && len(existing) > 0 {
				return namespaceCollisionError{Name: name.Path()}
			}
			cur[seg] = v

			return nil
		}

		switch next := cur[seg].(type) {
		case Namespace:
			cur = next
		case nil:
			child := Namespace{}
			cur[seg] = child
			cur = child
		default:
			return namespaceCollisionError{Name: name.Path()}
		}
	}

	return nil
}

// Pick returns a namespace holding only the given dotted names.
func (ns Namespace) Pick(names []string) Namespace {
	out := Namespace{}

	for _, n := range names {
		name := ParseName(n)
		if v, ok := ns.lookup(name.Segments); ok {
			_ = out.Set(Name{Segments: name.Segments}, v)
		}
	}

	return out
}

// Merge copies other into ns recursively. Values in other win; nested
// namespaces present on both sides are merged.
func (ns Namespace) Merge(other Namespace) Namespace {
	for k, v := range other {
		src, srcIsNs := v.(Namespace)
		dst, dstIsNs := ns[k].(Namespace)

		if srcIsNs && dstIsNs {
			dst.Merge(src)
			continue
		}

		if srcIsNs {
			ns[k] = Namespace{}.Merge(src)
			continue
		}

		ns[k] = v
	}

	return ns
}

// Lookup returns the dependency stored under path typed as T.
//
// It returns MissingDependencyError if the path is absent and
// WrongTypeDependencyError if the stored value is not a T.
func Lookup[T any](ns Namespace, path string) (T, error) {
	var zero T

	raw, ok := ns.Get(path)
	if !ok {
		return zero, MissingDependencyError{Name: path}
	}

	v, ok := raw.(T)
	if !ok {
		got := "<nil>"
		if raw != nil {
			got = reflect.TypeOf(raw).String()
		}

		return zero, WrongTypeDependencyError{Name: path, GotType: got}
	}

	return v, nil
}

// MustLookup returns the dependency typed as T or panics.
func MustLookup[T any](ns Namespace, path string) T {
	v, err := Lookup[T](ns, path)
	if err != nil {
		panic(err)
	}

	return v
}
