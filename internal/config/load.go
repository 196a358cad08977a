package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal errors with "did you mean?"
// suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolved is a fully resolved configuration plus the file it came from.
type Resolved struct {
	Config
	Path string
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	// 1. Resolve config path: CLI > env > default
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	// 2. Load config file (returns defaults if no file exists)
	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	// 3. Apply env overrides
	if env.StorePath != "" {
		cfg.Store.Path = env.StorePath
	}

	if env.LogLevel != "" {
		cfg.LogLevel = env.LogLevel
	}

	// 4. Apply CLI overrides (pointer fields: nil = not specified)
	if cli.StorePath != nil {
		cfg.Store.Path = *cli.StorePath
	}

	if cli.MetricsAddr != nil {
		cfg.Watch.MetricsAddr = *cli.MetricsAddr
	}

	if cli.JSON != nil && *cli.JSON {
		cfg.Output.Format = OutputJSON
	}

	// 5. Fill derived defaults
	if cfg.Store.Path == "" {
		if dir := DefaultDataDir(); dir != "" {
			cfg.Store.Path = filepath.Join(dir, defaultStoreFile)
		}
	}

	// 6. Validate the final result; env and CLI values skipped file validation
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &Resolved{Config: *cfg, Path: cfgPath}, nil
}
