package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, Validate(cfg))

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "auto", cfg.LogFormat)
	assert.Equal(t, "__context_", cfg.Tracker.ScopePrefix)
	assert.Equal(t, OutputTable, cfg.Output.Format)
	assert.True(t, cfg.Store.Enabled)
	assert.Equal(t, "200ms", cfg.Watch.Debounce)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
log_level = "debug"

[tracker]
revoke = true

[watch]
debounce = "1s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Tracker.Revoke)
	assert.Equal(t, "__context_", cfg.Tracker.ScopePrefix)
	assert.Equal(t, "1s", cfg.Watch.Debounce)
	assert.Equal(t, OutputTable, cfg.Output.Format)
}

func TestLoad_UnknownKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"top level typo", `log_levl = "info"`, `did you mean "log_level"`},
		{"section typo", "[tracker]\nrevok = true", `did you mean "tracker.revoke"`},
		{"unknown section", "[trackr]\nrevoke = true", `did you mean "tracker"`},
		{"no suggestion", `completely_unrelated = 1`, `unknown config key "completely_unrelated"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, `
log_level = "loud"

[output]
format = "xml"

[watch]
debounce = "soon"
`))
	require.Error(t, err)

	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "output.format")
	assert.Contains(t, err.Error(), "watch.debounce")
}

func TestLoad_Malformed(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, `log_level = `))
	assert.Error(t, err)
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	t.Parallel()

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestResolve_OverrideChain(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
log_level = "warn"

[store]
path = "/from/file.db"

[watch]
metrics_addr = ":1"
`)

	cliStore := "/from/cli.db"
	cliMetrics := ":9464"
	jsonOut := true

	r, err := Resolve(
		EnvOverrides{StorePath: "/from/env.db", LogLevel: "debug"},
		CLIOverrides{ConfigPath: path, StorePath: &cliStore, MetricsAddr: &cliMetrics, JSON: &jsonOut},
	)
	require.NoError(t, err)

	assert.Equal(t, path, r.Path)
	assert.Equal(t, "debug", r.LogLevel)
	assert.Equal(t, "/from/cli.db", r.Store.Path)
	assert.Equal(t, ":9464", r.Watch.MetricsAddr)
	assert.Equal(t, OutputJSON, r.Output.Format)
}

func TestResolve_EnvBeatsFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "[store]\npath = \"/from/file.db\"\n")

	r, err := Resolve(EnvOverrides{ConfigPath: path, StorePath: "/from/env.db"}, CLIOverrides{})
	require.NoError(t, err)

	assert.Equal(t, "/from/env.db", r.Store.Path)
}

func TestResolve_InvalidEnvLevel(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "")

	_, err := Resolve(EnvOverrides{ConfigPath: path, LogLevel: "chatty"}, CLIOverrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}

func TestRenderEffective(t *testing.T) {
	t.Parallel()

	r := &Resolved{Config: *DefaultConfig(), Path: "/etc/statetracker.toml"}
	r.Store.Path = "/tmp/traces.db"

	var buf bytes.Buffer
	require.NoError(t, RenderEffective(r, &buf))

	out := buf.String()
	assert.Contains(t, out, "/etc/statetracker.toml")
	assert.Contains(t, out, `scope_prefix = "__context_"`)
	assert.Contains(t, out, `path    = "/tmp/traces.db"`)
	assert.Contains(t, out, `debounce     = "200ms"`)
}

func TestLevenshtein(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, levenshtein("abc", "abc"))
	assert.Equal(t, 1, levenshtein("revok", "revoke"))
	assert.Equal(t, 3, levenshtein("", "abc"))
	assert.Equal(t, "", closestMatch("zzzzzzzz", knownKeys[""]))
}

func TestSlogLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "DEBUG", SlogLevel("debug").String())
	assert.Equal(t, "WARN", SlogLevel("warn").String())
	assert.Equal(t, "INFO", SlogLevel("anything").String())
}
