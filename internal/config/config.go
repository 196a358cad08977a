// Package config implements TOML configuration loading and validation for
// statetracker. It supports a four-layer override chain (defaults -> config
// file -> environment -> CLI flags).
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	LogLevel  string        `toml:"log_level"`
	LogFormat string        `toml:"log_format"`
	Tracker   TrackerConfig `toml:"tracker"`
	Output    OutputConfig  `toml:"output"`
	Store     StoreConfig   `toml:"store"`
	Watch     WatchConfig   `toml:"watch"`
}

// TrackerConfig controls how documents are wrapped.
type TrackerConfig struct {
	Revoke      bool   `toml:"revoke"`
	ScopePrefix string `toml:"scope_prefix"`
}

// OutputConfig controls how commands render results.
type OutputConfig struct {
	Format string `toml:"format"`
}

// StoreConfig controls the trace history database. An empty Path resolves
// to traces.db under the data directory.
type StoreConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// WatchConfig controls the watch command.
type WatchConfig struct {
	Debounce    string `toml:"debounce"`
	MetricsAddr string `toml:"metrics_addr"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to zero value".
type CLIOverrides struct {
	ConfigPath  string  // --config flag (empty = use default)
	StorePath   *string // --store flag
	MetricsAddr *string // --metrics-addr flag
	JSON        *bool   // --json flag
}
