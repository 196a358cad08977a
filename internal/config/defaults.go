package config

// Default values for configuration options. These are layer 0 of the
// override chain.
const (
	defaultLogLevel    = "info"
	defaultLogFormat   = "auto"
	defaultScopePrefix = "__context_"
	defaultOutput      = OutputTable
	defaultDebounce    = "200ms"
	defaultStoreFile   = "traces.db"
)

// DefaultConfig returns a Config populated with all default values. It is
// both the starting point for TOML decoding (so unset fields keep their
// defaults) and the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
		Tracker: TrackerConfig{
			ScopePrefix: defaultScopePrefix,
		},
		Output: OutputConfig{
			Format: defaultOutput,
		},
		Store: StoreConfig{
			Enabled: true,
		},
		Watch: WatchConfig{
			Debounce: defaultDebounce,
		},
	}
}
