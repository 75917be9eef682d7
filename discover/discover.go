// Package discover finds unit manifests in a file tree and derives unit names
// from their paths. It only reads the filesystem it is given.
package discover

import (
	"io/fs"
	"path"
	"slices"
	"strings"

	errors2 "github.com/xraph/agata/errors"
)

// Rule selects the manifests of one unit kind.
type Rule struct {
	Kind string

	// Suffixes match files anywhere below the directory. The matched suffix
	// is removed before the name is derived.
	Suffixes []string

	// Index, when set, matches "<dir>/<name>/<Index>" one level deep and
	// names the unit after its directory.
	Index string
}

// Rules for the four unit kinds.
var (
	SingletonRule = Rule{Kind: "singleton", Suffixes: []string{".singleton.yaml", ".singleton.yml"}}
	ActionRule    = Rule{Kind: "action", Suffixes: []string{".action.yaml", ".action.yml"}}
	PluginRule    = Rule{Kind: "plugin", Suffixes: []string{".plugin.yaml", ".plugin.yml"}}
	ServiceRule   = Rule{Kind: "service", Index: "index.yaml"}
)

// Entry is one discovered manifest.
type Entry struct {
	Name string
	Path string
}

// Discover lists the manifests under dir matching rule, sorted by path. Two
// paths deriving the same name are a duplicate-definition error.
func Discover(fsys fs.FS, dir string, rule Rule) ([]Entry, error) {
	dir = path.Clean(dir)

	var (
		entries []Entry
		err     error
	)

	if rule.Index != "" {
		entries, err = discoverIndex(fsys, dir, rule)
	} else {
		entries, err = discoverSuffix(fsys, dir, rule)
	}

	if err != nil {
		return nil, err
	}

	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Path, b.Path) })

	seen := make(map[string]string, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.Name]; ok {
			return nil, errors2.ErrDuplicateDefinition(rule.Kind, e.Name).
				WithContext("path", e.Path).
				WithContext("previous", seen[e.Name])
		}

		seen[e.Name] = e.Path
	}

	return entries, nil
}

func discoverIndex(fsys fs.FS, dir string, rule Rule) ([]Entry, error) {
	dirs, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, errors2.ErrConfigError("failed to read "+rule.Kind+" directory "+dir, err)
	}

	var entries []Entry

	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}

		p := path.Join(dir, d.Name(), rule.Index)

		info, err := fs.Stat(fsys, p)
		if err != nil || info.IsDir() {
			continue
		}

		entries = append(entries, Entry{Name: CamelCase(d.Name()), Path: p})
	}

	return entries, nil
}

func discoverSuffix(fsys fs.FS, dir string, rule Rule) ([]Entry, error) {
	var entries []Entry

	err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		rel := p
		if dir != "." {
			rel = strings.TrimPrefix(p, dir+"/")
		}

		for _, suffix := range rule.Suffixes {
			if base, ok := strings.CutSuffix(rel, suffix); ok && base != "" && !strings.HasSuffix(base, "/") {
				entries = append(entries, Entry{Name: NameFromPath(base), Path: p})
				break
			}
		}

		return nil
	})
	if err != nil {
		return nil, errors2.ErrConfigError("failed to walk "+rule.Kind+" directory "+dir, err)
	}

	return entries, nil
}
