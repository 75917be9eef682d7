package agata

import (
	"strings"
)

const (
	segmentSeparator = "."
	localSeparator   = "#"
)

// Name is a structured unit name. Segments come from the dotted form
// ("user.getById"); Owner is set for service local actions
// ("billing#invoice.create").
type Name struct {
	Owner    string
	Segments []string
}

// ParseName parses a dotted, optionally service-owned, unit name.
func ParseName(s string) Name {
	var n Name

	if owner, rest, ok := strings.Cut(s, localSeparator); ok {
		n.Owner = owner
		s = rest
	}

	n.Segments = strings.Split(s, segmentSeparator)

	return n
}

// LocalActionName returns the registry name of a service local action.
func LocalActionName(service, action string) string {
	return service + localSeparator + action
}

// IsLocal reports whether the name belongs to a service local action.
func (n Name) IsLocal() bool {
	return n.Owner != ""
}

// Path returns the dotted name without the owner.
func (n Name) Path() string {
	return strings.Join(n.Segments, segmentSeparator)
}

// String returns the registry form of the name.
func (n Name) String() string {
	if n.Owner != "" {
		return n.Owner + localSeparator + n.Path()
	}

	return n.Path()
}

// valid reports whether every segment is non-empty.
func (n Name) valid() bool {
	for _, s := range n.Segments {
		if s == "" {
			return false
		}
	}

	return len(n.Segments) > 0
}

// namespaceConflict returns the first pair of names where one is a dotted
// prefix of the other, which a nested mapping cannot hold at the same time.
func namespaceConflict(names []string) (string, string, bool) {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}

	for _, n := range names {
		for i := range len(n) {
			if n[i] != segmentSeparator[0] {
				continue
			}

			if _, ok := set[n[:i]]; ok {
				return n[:i], n, true
			}
		}
	}

	return "", "", false
}
