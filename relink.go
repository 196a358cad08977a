package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/statetracker/internal/statefile"
	"github.com/tonimelisma/statetracker/pkg/tracker"
	"github.com/tonimelisma/statetracker/pkg/value"
)

func newRelinkCmd() *cobra.Command {
	var reads, sets []string

	cmd := &cobra.Command{
		Use:   "relink FILE",
		Short: "Apply a batch of changes and report which traced reads they invalidate",
		Long: `Trace the --read paths of FILE, then apply every --set change in one batch
relink. For each remarkable path of the trace the report shows whether the
change invalidates it, whether its wrapper identity survived, and the value
before (from the draft snapshot) and after (from the live document).

--set takes PATH=JSON; the value must be valid JSON, so strings need quotes.

Examples:
  statetracker relink state.json --read cart.total --set cart.total=42
  statetracker relink state.json --read user --set 'user.name="Ada"'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelink(cmd, args[0], reads, sets)
		},
	}

	cmd.Flags().StringArrayVar(&reads, "read", nil, "dot-separated path to read before the change (repeatable)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "PATH=JSON change to apply (repeatable)")

	return cmd
}

// parseChange parses one PATH=JSON argument.
func parseChange(arg string) (tracker.Change, error) {
	path, raw, ok := strings.Cut(arg, "=")
	if !ok || path == "" {
		return tracker.Change{}, fmt.Errorf("invalid change %q: want PATH=JSON", arg)
	}

	v, err := value.DecodeJSON([]byte(raw))
	if err != nil {
		return tracker.Change{}, fmt.Errorf("invalid change %q: %w", arg, err)
	}

	return tracker.Change{
		Path:  statefile.NormalizePath(value.ParsePath(path)),
		Value: v,
	}, nil
}

// relinkRow is the outcome of one batch relink for one remarkable path.
type relinkRow struct {
	Path        string `json:"path"`
	Invalidated bool   `json:"invalidated"`
	Identity    string `json:"identity"`
	Before      string `json:"before"`
	After       string `json:"after"`
}

// Identity outcomes for a remarkable path.
const (
	identityKept      = "kept"
	identityReplaced  = "replaced"
	identityPrimitive = "-"
)

type relinkReport struct {
	Scope   string      `json:"scope"`
	Changed []string    `json:"changed"`
	Rows    []relinkRow `json:"rows"`
}

func runRelink(cmd *cobra.Command, file string, reads, sets []string) error {
	cc := mustCLIContext(cmd.Context())

	if len(sets) == 0 {
		return fmt.Errorf("at least one --set is required")
	}

	changes := make([]tracker.Change, 0, len(sets))
	for _, s := range sets {
		c, err := parseChange(s)
		if err != nil {
			return err
		}

		changes = append(changes, c)
	}

	doc, err := statefile.Load(file)
	if err != nil {
		return err
	}

	root, err := tracker.Wrap(doc, cc.trackerOptions()...)
	if err != nil {
		return fmt.Errorf("wrapping %s: %w", file, err)
	}

	report, err := batchRelink(root, parseReads(reads), changes)
	if err != nil {
		return err
	}

	return printRelinkReport(cmd.OutOrStdout(), cc.jsonOutput(), report)
}

// batchRelink traces reads on root, applies changes and compares every
// remarkable path across the draft and the live tree.
func batchRelink(root *tracker.Proxy, reads []value.Path, changes []tracker.Change) (*relinkReport, error) {
	sc, err := traceReads(root, "", reads)
	if err != nil {
		return nil, err
	}

	remarkable := sc.Remarkable()

	before := make([]any, len(remarkable))
	for i, p := range remarkable {
		before[i], err = tracker.Peek(root, p)
		if err != nil {
			return nil, err
		}
	}

	changed := make([]value.Path, len(changes))
	for i, c := range changes {
		changed[i] = c.Path
	}

	draft, err := tracker.BatchRelink(root, changes)
	if err != nil {
		return nil, fmt.Errorf("applying changes: %w", err)
	}
	defer tracker.Revoke(draft)

	invalid := make(map[string]bool)
	for _, p := range sc.Invalidated(changed) {
		invalid[p.String()] = true
	}

	report := &relinkReport{
		Scope:   sc.ID(),
		Changed: pathStrings(changed),
		Rows:    make([]relinkRow, 0, len(remarkable)),
	}

	for i, p := range remarkable {
		old, err := tracker.Peek(draft, p)
		if err != nil {
			return nil, fmt.Errorf("reading draft %s: %w", displayPath(p), err)
		}

		live, err := tracker.Peek(root, p)
		if err != nil {
			// the change removed a container on the way
			live = nil
		}

		report.Rows = append(report.Rows, relinkRow{
			Path:        displayPath(p),
			Invalidated: invalid[p.String()],
			Identity:    identity(before[i], live),
			Before:      formatValue(old),
			After:       formatValue(live),
		})
	}

	return report, nil
}

// identity reports whether the wrapper read before the change is the one a
// read returns now.
func identity(before, after any) string {
	bp, ok := before.(*tracker.Proxy)
	if !ok {
		return identityPrimitive
	}

	if ap, ok := after.(*tracker.Proxy); ok && ap == bp {
		return identityKept
	}

	return identityReplaced
}

func printRelinkReport(w io.Writer, asJSON bool, r *relinkReport) error {
	if asJSON {
		return writeJSON(w, r)
	}

	fmt.Fprintf(w, "Scope %s, changed: %s\n\n", r.Scope, strings.Join(r.Changed, ", "))

	if len(r.Rows) == 0 {
		fmt.Fprintln(w, "No remarkable paths.")
		return nil
	}

	rows := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		inv := "no"
		if row.Invalidated {
			inv = "yes"
		}

		rows[i] = []string{row.Path, inv, row.Identity, row.Before, row.After}
	}

	printTable(w, []string{"PATH", "INVALIDATED", "IDENTITY", "BEFORE", "AFTER"}, rows)

	return nil
}
