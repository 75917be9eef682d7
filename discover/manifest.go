package discover

import (
	"bytes"
	"errors"
	"io"
	"io/fs"

	"gopkg.in/yaml.v3"

	errors2 "github.com/xraph/agata/errors"
)

// Manifest declares the dependencies of one unit. The code is bound
// separately under Factory, or under the discovered name when Factory is
// empty.
type Manifest struct {
	Name string `yaml:"-"`
	Path string `yaml:"-"`

	Factory      string                    `yaml:"factory"`
	Singletons   []string                  `yaml:"singletons"`
	Actions      []string                  `yaml:"actions"`
	Plugins      map[string]map[string]any `yaml:"plugins"`
	LocalActions map[string]Manifest       `yaml:"localActions"`
}

// Parse decodes one manifest. An empty document is a manifest without
// dependencies.
func Parse(data []byte) (Manifest, error) {
	var m Manifest

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return Manifest{}, err
	}

	for name, local := range m.LocalActions {
		local.Name = name
		m.LocalActions[name] = local
	}

	return m, nil
}

// Load discovers and parses every manifest under dir matching rule.
func Load(fsys fs.FS, dir string, rule Rule) ([]Manifest, error) {
	entries, err := Discover(fsys, dir, rule)
	if err != nil {
		return nil, err
	}

	manifests := make([]Manifest, 0, len(entries))

	for _, e := range entries {
		data, err := fs.ReadFile(fsys, e.Path)
		if err != nil {
			return nil, errors2.ErrConfigError("failed to read "+e.Path, err)
		}

		m, err := Parse(data)
		if err != nil {
			return nil, errors2.ErrConfigError("failed to parse "+rule.Kind+" manifest "+e.Path, err)
		}

		m.Name = e.Name
		m.Path = e.Path
		manifests = append(manifests, m)
	}

	return manifests, nil
}
