// Package config loads the placefix.yaml workspace configuration. Flags
// override config values; config values override the built-in defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all placefix configuration.
type Config struct {
	Solver    SolverConfig    `yaml:"solver"`
	Recommend RecommendConfig `yaml:"recommend"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SolverConfig selects the engines and the partitioning default.
type SolverConfig struct {
	// Engines to run on every check; "sat" is always sensible, "ring" and
	// "unknown" are opt-in.
	Engines []string `yaml:"engines"`
	// DefaultTopologyKey buckets rules with no topology metadata.
	DefaultTopologyKey string `yaml:"default_topology_key"`
	// CycleCheck enables the ring engine on top of Engines.
	CycleCheck bool `yaml:"cycle_check"`
	// RejectUnknown enables the unknown-target engine on top of Engines.
	RejectUnknown bool `yaml:"reject_unknown"`
}

// RecommendConfig controls conflict-resolution proposals.
type RecommendConfig struct {
	Enabled bool   `yaml:"enabled"`
	Policy  string `yaml:"policy"`
}

// LoggingConfig controls the file logger.
type LoggingConfig struct {
	// Dir receives placefix.log; empty logs to stderr only.
	Dir string `yaml:"dir"`
	// Debug lowers the level to debug.
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Solver: SolverConfig{
			Engines:            []string{"sat"},
			DefaultTopologyKey: "node",
			CycleCheck:         true,
		},
		Recommend: RecommendConfig{
			Enabled: false,
			Policy:  "HighPriorityFirst",
		},
	}
}

// Load reads a config file, layering it over the defaults and applying
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to the defaults when the
// file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}
	return Load(path)
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PLACEFIX_LOG_LEVEL"); v == "debug" {
		c.Logging.Debug = true
	}
	if v := os.Getenv("PLACEFIX_LOG_DIR"); v != "" {
		c.Logging.Dir = v
	}
}

// EngineNames resolves the configured engine list plus the cycle-check and
// reject-unknown toggles into the final engine set, duplicates removed.
func (c *Config) EngineNames() []string {
	names := append([]string(nil), c.Solver.Engines...)
	if len(names) == 0 {
		names = []string{"sat"}
	}
	if c.Solver.CycleCheck {
		names = append(names, "ring")
	}
	if c.Solver.RejectUnknown {
		names = append(names, "unknown")
	}

	seen := make(map[string]struct{}, len(names))
	out := names[:0]
	for _, n := range names {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
