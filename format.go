package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/tonimelisma/statetracker/pkg/tracker"
	"github.com/tonimelisma/statetracker/pkg/value"
)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(quiet bool, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Statusf prints a status message to stderr unless quiet mode is set.
func (cc *CLIContext) Statusf(format string, args ...any) {
	statusf(cc.Flags.Quiet, format, args...)
}

// formatTime returns a compact timestamp for display.
func formatTime(t time.Time) string {
	now := time.Now()

	// Same calendar year: show "Jan  2 15:04"
	if t.Year() == now.Year() {
		return t.Format("Jan _2 15:04")
	}

	// Different year: show "Jan  2  2006"
	return t.Format("Jan _2  2006")
}

// formatValue renders a document value as compact JSON. Wrappers render
// the container they mirror without reading through them.
func formatValue(v any) string {
	if p, ok := v.(*tracker.Proxy); ok {
		v = p.Raw()
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%s>", value.Kind(v))
	}

	return string(data)
}

// pathStrings renders paths in dot notation. The root path renders as ".".
func pathStrings(paths []value.Path) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = displayPath(p)
	}

	return out
}

func displayPath(p value.Path) string {
	if len(p) == 0 {
		return "."
	}

	return p.String()
}

// writeJSON encodes v indented, the way every --json output is written.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// printPathList writes a titled list of paths, or "(none)".
func printPathList(w io.Writer, title string, paths []value.Path) {
	fmt.Fprintf(w, "%s:\n", title)

	if len(paths) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}

	for _, p := range paths {
		fmt.Fprintf(w, "  %s\n", displayPath(p))
	}
}

// printTable writes aligned columns to the given writer.
// headers and each row must have the same length.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

// printRow writes a single padded row.
func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
}
