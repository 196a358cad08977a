package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/statetracker/internal/statefile"
	"github.com/tonimelisma/statetracker/internal/tracestore"
	"github.com/tonimelisma/statetracker/pkg/tracker"
	"github.com/tonimelisma/statetracker/pkg/value"
)

// wildcard in a --read path visits every element of the container reached
// so far.
const wildcard = "*"

var errStoreDisabled = errors.New("trace store is disabled (set [store] enabled = true)")

func newTraceCmd() *cobra.Command {
	var (
		reads []string
		label string
		save  bool
	)

	cmd := &cobra.Command{
		Use:   "trace FILE",
		Short: "Read paths from a state document inside one scope and report what was logged",
		Long: `Wrap FILE (JSON, TOML or YAML) in a tracking proxy, enter a scope and read
every --read path through it. Paths are dot-separated; "*" visits every
element of an array or object. The report lists every logged read and the
remarkable paths a consumer of this scope depends on.

Examples:
  statetracker trace state.json --read user.name --read cart.items.*.price
  statetracker trace state.yaml --read cart --save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd, args[0], reads, label, save)
		},
	}

	cmd.Flags().StringArrayVar(&reads, "read", nil, "dot-separated path to read (repeatable)")
	cmd.Flags().StringVar(&label, "label", "", "scope id (generated when empty)")
	cmd.Flags().BoolVar(&save, "save", false, "store the trace in the history database")

	return cmd
}

func runTrace(cmd *cobra.Command, file string, reads []string, label string, save bool) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	doc, err := statefile.Load(file)
	if err != nil {
		return err
	}

	root, err := tracker.Wrap(doc, cc.trackerOptions()...)
	if err != nil {
		return fmt.Errorf("wrapping %s: %w", file, err)
	}

	sc, err := traceReads(root, label, parseReads(reads))
	if err != nil {
		return err
	}

	trace := tracestore.FromScope(file, sc)

	if save {
		id, err := saveTrace(ctx, cc, trace)
		if err != nil {
			return err
		}

		trace.ID = id
		cc.Statusf("Saved trace %s\n", id)
	}

	return printTrace(cmd.OutOrStdout(), cc.jsonOutput(), trace)
}

// parseReads converts --read flags into key-normalized paths.
func parseReads(reads []string) []value.Path {
	out := make([]value.Path, len(reads))
	for i, r := range reads {
		out[i] = statefile.NormalizePath(value.ParsePath(r))
	}

	return out
}

// traceReads performs every read inside a fresh scope entered through root
// and returns the closed scope.
func traceReads(root *tracker.Proxy, label string, reads []value.Path) (*tracker.Scope, error) {
	sc := tracker.Enter(root, label)

	for _, p := range reads {
		if err := readPath(root, p); err != nil {
			return nil, errors.Join(fmt.Errorf("reading %s: %w", displayPath(p), err), sc.Leave())
		}
	}

	if err := sc.Leave(); err != nil {
		return nil, err
	}

	return sc, nil
}

// readPath walks path through p with tracked reads. A segment that lands on
// a primitive or a missing key ends the walk.
func readPath(p *tracker.Proxy, path value.Path) error {
	cur := p

	for i, key := range path {
		if key == wildcard {
			return cur.Each(func(_ string, item any) error {
				child, ok := item.(*tracker.Proxy)
				if !ok {
					return nil
				}

				return readPath(child, path[i+1:])
			})
		}

		next, err := cur.Get(key)
		if err != nil {
			return err
		}

		child, ok := next.(*tracker.Proxy)
		if !ok {
			return nil
		}

		cur = child
	}

	return nil
}

// openStore opens the trace database named by the resolved config.
func openStore(ctx context.Context, cc *CLIContext) (*tracestore.Store, error) {
	if !cc.Cfg.Store.Enabled {
		return nil, errStoreDisabled
	}

	if cc.Cfg.Store.Path == "" {
		return nil, fmt.Errorf("no trace store path (set [store] path or --store)")
	}

	return tracestore.Open(ctx, cc.Cfg.Store.Path, cc.Logger)
}

func saveTrace(ctx context.Context, cc *CLIContext, trace tracestore.Trace) (string, error) {
	store, err := openStore(ctx, cc)
	if err != nil {
		return "", err
	}
	defer store.Close()

	return store.Save(ctx, trace)
}

type traceJSON struct {
	ID         string   `json:"id,omitempty"`
	Scope      string   `json:"scope"`
	Source     string   `json:"source"`
	Reads      []string `json:"reads"`
	Remarkable []string `json:"remarkable"`
	Backward   []string `json:"backward"`
}

func printTrace(w io.Writer, asJSON bool, t tracestore.Trace) error {
	if asJSON {
		return writeJSON(w, traceJSON{
			ID:         t.ID,
			Scope:      t.ScopeID,
			Source:     t.Source,
			Reads:      pathStrings(t.Reads),
			Remarkable: pathStrings(t.Remarkable),
			Backward:   pathStrings(t.Backward),
		})
	}

	fmt.Fprintf(w, "Scope %s (%s)\n", t.ScopeID, t.Source)
	printPathList(w, "Reads", t.Reads)
	printPathList(w, "Remarkable", t.Remarkable)

	if len(t.Backward) > 0 {
		printPathList(w, "Backward", t.Backward)
	}

	return nil
}
