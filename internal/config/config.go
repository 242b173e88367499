package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all modchain configuration.
type Config struct {
	// Resolver settings
	Resolver ResolverConfig `yaml:"resolver"`

	// Watch settings
	Watch WatchConfig `yaml:"watch"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ResolverConfig configures the resolution chain.
type ResolverConfig struct {
	// Strategy applied to modules loaded without an explicit one:
	// isolated, merged, multisegment, delegating.
	DefaultStrategy string `yaml:"default_strategy"`

	// MergeOrder for merged/multisegment loads: prepend or append.
	MergeOrder string `yaml:"merge_order"`

	// Cache enables the version-keyed positive lookup cache.
	Cache bool `yaml:"cache"`

	// MutationRetries bounds mutation-lock acquisition attempts.
	MutationRetries int `yaml:"mutation_retries"`

	// MutationBackoff is the wait between attempts, e.g. "2ms".
	MutationBackoff string `yaml:"mutation_backoff"`

	// AllowedImports replaces the container import whitelist when set.
	AllowedImports []string `yaml:"allowed_imports,omitempty"`
}

// WatchConfig configures the module-directory hot loader.
type WatchConfig struct {
	// Dirs are directories scanned and watched for module containers.
	Dirs []string `yaml:"dirs,omitempty"`

	// Debounce is the window that collapses rapid file events, e.g. "500ms".
	Debounce string `yaml:"debounce"`
}

// LoggingConfig configures logging output.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Resolver: ResolverConfig{
			DefaultStrategy: "isolated",
			MergeOrder:      "prepend",
			Cache:           true,
			MutationRetries: 50,
			MutationBackoff: "2ms",
		},
		Watch: WatchConfig{
			Debounce: "500ms",
		},
	}
}

// Load reads configuration from a YAML file, returning defaults if the file
// does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// GetMutationBackoff parses the backoff duration, falling back to 2ms.
func (c *Config) GetMutationBackoff() time.Duration {
	d, err := time.ParseDuration(c.Resolver.MutationBackoff)
	if err != nil || d <= 0 {
		return 2 * time.Millisecond
	}
	return d
}

// GetWatchDebounce parses the debounce window, falling back to 500ms.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Resolver.DefaultStrategy {
	case "isolated", "merged", "multisegment", "delegating":
	default:
		return fmt.Errorf("invalid default_strategy %q", c.Resolver.DefaultStrategy)
	}
	switch c.Resolver.MergeOrder {
	case "prepend", "append":
	default:
		return fmt.Errorf("invalid merge_order %q", c.Resolver.MergeOrder)
	}
	if c.Resolver.MutationRetries < 0 {
		return fmt.Errorf("mutation_retries must not be negative")
	}
	return nil
}
