package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig   = "STATETRACKER_CONFIG"
	EnvStore    = "STATETRACKER_STORE"
	EnvLogLevel = "STATETRACKER_LOG_LEVEL"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // STATETRACKER_CONFIG: override config file path
	StorePath  string // STATETRACKER_STORE: trace database path
	LogLevel   string // STATETRACKER_LOG_LEVEL: log level
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		StorePath:  os.Getenv(EnvStore),
		LogLevel:   os.Getenv(EnvLogLevel),
	}
}
