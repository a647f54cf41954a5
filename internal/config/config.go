package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// Termination detection strategies.
const (
	StrategySignal = "signal"
	StrategyPoll   = "poll"
)

const (
	DefaultMaxLineLength = 70
	DefaultMaxArgs       = 6
)

type Config struct {
	HistoryFile   string `yaml:"history_file"`
	HomeDir       string `yaml:"home_dir"`
	Strategy      string `yaml:"strategy"`
	MaxLineLength int    `yaml:"max_line_length"`
	MaxArgs       int    `yaml:"max_args"`
	Prompt        string `yaml:"prompt"`
	Debug         bool   `yaml:"debug"`
}

// Load reads file and fills in defaults. A missing file yields the defaults.
func Load(file string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(file)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}

	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", file, err)
		}
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with every key at its default value.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() error {
	var err error
	if c.HomeDir == "" {
		c.HomeDir, err = os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error getting home directory: %w", err)
		}
	}

	if c.HistoryFile == "" {
		c.HistoryFile = filepath.Join(c.HomeDir, ".myshell_history")
	}
	if c.Strategy == "" {
		c.Strategy = StrategySignal
	}
	if c.MaxLineLength == 0 {
		c.MaxLineLength = DefaultMaxLineLength
	}
	if c.MaxArgs == 0 {
		c.MaxArgs = DefaultMaxArgs
	}
	return nil
}

// Validate reports the first key holding an unusable value.
func (c *Config) Validate() error {
	switch c.Strategy {
	case StrategySignal, StrategyPoll:
	default:
		return fmt.Errorf("strategy: unknown value %q (want %q or %q)", c.Strategy, StrategySignal, StrategyPoll)
	}
	if c.MaxLineLength < 1 {
		return fmt.Errorf("max_line_length: must be positive, got %d", c.MaxLineLength)
	}
	if c.MaxArgs < 1 {
		return fmt.Errorf("max_args: must be positive, got %d", c.MaxArgs)
	}
	return nil
}
