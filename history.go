package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/statetracker/internal/tracestore"
)

const defaultHistoryLimit = 20

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved traces, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", defaultHistoryLimit, "maximum number of traces to list")
	cmd.AddCommand(newHistoryShowCmd())

	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show every path of one saved trace",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShow,
	}
}

type summaryJSON struct {
	ID         string    `json:"id"`
	Scope      string    `json:"scope"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
	Reads      int       `json:"reads"`
	Remarkable int       `json:"remarkable"`
	Backward   int       `json:"backward"`
}

func runHistory(cmd *cobra.Command, limit int) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	if limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}

	store, err := openStore(ctx, cc)
	if err != nil {
		return err
	}
	defer store.Close()

	sums, err := store.List(ctx, limit)
	if err != nil {
		return err
	}

	return printHistory(cmd.OutOrStdout(), cc.jsonOutput(), sums)
}

func printHistory(w io.Writer, asJSON bool, sums []tracestore.Summary) error {
	if asJSON {
		out := make([]summaryJSON, len(sums))
		for i, s := range sums {
			out[i] = summaryJSON{
				ID:         s.ID,
				Scope:      s.ScopeID,
				Source:     s.Source,
				CreatedAt:  s.CreatedAt.UTC(),
				Reads:      s.Reads,
				Remarkable: s.Remarkable,
				Backward:   s.Backward,
			}
		}

		return writeJSON(w, out)
	}

	if len(sums) == 0 {
		fmt.Fprintln(w, "No saved traces.")
		return nil
	}

	rows := make([][]string, len(sums))
	for i, s := range sums {
		rows[i] = []string{
			s.ID,
			formatTime(s.CreatedAt),
			s.Source,
			s.ScopeID,
			strconv.Itoa(s.Reads),
			strconv.Itoa(s.Remarkable),
			strconv.Itoa(s.Backward),
		}
	}

	printTable(w, []string{"ID", "CREATED", "SOURCE", "SCOPE", "READS", "REMARKABLE", "BACKWARD"}, rows)

	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	store, err := openStore(ctx, cc)
	if err != nil {
		return err
	}
	defer store.Close()

	trace, err := store.Get(ctx, args[0])
	if err != nil {
		return err
	}

	return printTrace(cmd.OutOrStdout(), cc.jsonOutput(), *trace)
}
