package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as an annotated TOML
// summary to w. This powers the "config show" command.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	if r.Path != "" {
		ew.printf("# Effective configuration (file: %s)\n\n", r.Path)
	} else {
		ew.printf("# Effective configuration (defaults)\n\n")
	}

	ew.printf("log_level  = %q\n", r.LogLevel)
	ew.printf("log_format = %q\n\n", r.LogFormat)

	ew.printf("[tracker]\n")
	ew.printf("  revoke       = %t\n", r.Tracker.Revoke)
	ew.printf("  scope_prefix = %q\n\n", r.Tracker.ScopePrefix)

	ew.printf("[output]\n")
	ew.printf("  format = %q\n\n", r.Output.Format)

	ew.printf("[store]\n")
	ew.printf("  enabled = %t\n", r.Store.Enabled)
	ew.printf("  path    = %q\n\n", r.Store.Path)

	ew.printf("[watch]\n")
	ew.printf("  debounce     = %q\n", r.Watch.Debounce)
	ew.printf("  metrics_addr = %q\n", r.Watch.MetricsAddr)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
