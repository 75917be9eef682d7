package agata

import (
	"bytes"
	"errors"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	errors2 "github.com/xraph/agata/errors"
	"github.com/xraph/agata/logger"
)

// Config is the file form of the broker options.
type Config struct {
	Logging   logger.LoggingConfig `yaml:"logging"   json:"logging"`
	Metrics   MetricsConfig        `yaml:"metrics"   json:"metrics"`
	Tracing   TracingConfig        `yaml:"tracing"   json:"tracing"`
	Discovery DiscoveryConfig      `yaml:"discovery" json:"discovery"`
}

// MetricsConfig configures Prometheus collectors.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"   json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// TracingConfig configures OpenTelemetry spans.
type TracingConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// DiscoveryConfig locates unit manifests. Root is a directory on disk; the
// other paths are relative to it. An empty path skips that kind.
type DiscoveryConfig struct {
	Root       string `yaml:"root"       json:"root"`
	Singletons string `yaml:"singletons" json:"singletons"`
	Actions    string `yaml:"actions"    json:"actions"`
	Plugins    string `yaml:"plugins"    json:"plugins"`
	Services   string `yaml:"services"   json:"services"`
}

// DefaultConfig returns the configuration used when a file omits a section.
func DefaultConfig() Config {
	return Config{
		Logging: logger.LoggingConfig{
			Level:       "info",
			Format:      "json",
			Environment: "production",
		},
		Metrics: MetricsConfig{
			Namespace: DefaultMetricsNamespace,
		},
	}
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors2.ErrConfigError("failed to read config file "+path, err)
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML config. ${VAR} and $VAR references are expanded
// from the environment first; unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors2.ErrConfigError("failed to parse config", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks field values.
func (c Config) Validate() error {
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return errors2.ErrConfigError(`logging.format must be "json" or "console", got "`+c.Logging.Format+`"`, nil)
	}

	paths := []string{c.Discovery.Singletons, c.Discovery.Actions, c.Discovery.Plugins, c.Discovery.Services}
	for _, p := range paths {
		if p != "" && c.Discovery.Root == "" {
			return errors2.ErrConfigError("discovery.root is required when discovery paths are set", nil)
		}
	}

	return nil
}
