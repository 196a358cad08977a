package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/statetracker/internal/metrics"
	"github.com/tonimelisma/statetracker/internal/statefile"
	"github.com/tonimelisma/statetracker/internal/tracestore"
	"github.com/tonimelisma/statetracker/pkg/tracker"
	"github.com/tonimelisma/statetracker/pkg/value"
)

func newWatchCmd() *cobra.Command {
	var (
		reads []string
		save  bool
	)

	cmd := &cobra.Command{
		Use:   "watch FILE",
		Short: "Keep FILE wrapped and report which traced reads each edit invalidates",
		Long: `Wrap FILE, trace the --read paths, then watch the file. Every debounced
edit is diffed against the live document and applied as one batch relink,
so wrappers of untouched subtrees keep their identity. The report lists the
changed paths and the remarkable paths of the last trace they invalidate,
with old and new values; the reads are then traced again.

SIGHUP forces a reload. With --metrics-addr (or [watch] metrics_addr)
Prometheus metrics are served on /metrics while watching.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args[0], reads, save)
		},
	}

	cmd.Flags().StringArrayVar(&reads, "read", nil, "dot-separated path to read after every change (repeatable)")
	cmd.Flags().BoolVar(&save, "save", false, "store every trace in the history database")

	return cmd
}

func runWatch(cmd *cobra.Command, file string, reads []string, save bool) error {
	cc := mustCLIContext(cmd.Context())
	logger := cc.Logger

	changes := make(chan struct{}, 1)
	ctx := signalContext(cmd.Context(), logger, changes)

	collector := metrics.NewCollector()

	s := &session{
		path:    file,
		reads:   parseReads(reads),
		opts:    cc.trackerOptions(tracker.WithObserver(collector)),
		revoke:  cc.Cfg.Tracker.Revoke,
		logger:  logger,
		metrics: collector,
		nowFunc: time.Now,
	}

	if save {
		store, err := openStore(ctx, cc)
		if err != nil {
			return err
		}
		defer store.Close()

		s.store = store
	}

	out := cmd.OutOrStdout()
	asJSON := cc.jsonOutput()

	initial, err := s.start(ctx)
	if err != nil {
		return err
	}

	if err := printTrace(out, asJSON, initial); err != nil {
		return err
	}

	watcher := statefile.NewWatcher(file, cc.Cfg.Watch.DebounceDuration(), logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watcher.Watch(gctx, changes)
	})

	if addr := cc.Cfg.Watch.MetricsAddr; addr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, addr, collector, logger)
		})
	}

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-changes:
				report, err := s.reload(gctx)
				if err != nil {
					logger.Warn("reload failed", slog.String("path", file), slog.String("error", err.Error()))
					continue
				}

				if report == nil {
					continue
				}

				if err := printReloadReport(out, asJSON, report); err != nil {
					return err
				}
			}
		}
	})

	return g.Wait()
}

// session holds the live wrapper of a watched document and the last trace
// taken through it. It is driven from one goroutine.
type session struct {
	path    string
	reads   []value.Path
	opts    []tracker.Option
	revoke  bool
	logger  *slog.Logger
	store   *tracestore.Store  // nil when traces are not saved
	metrics *metrics.Collector // nil disables reload metrics
	nowFunc func() time.Time

	live *tracker.Proxy
	last *tracker.Scope
}

// invalidation is one remarkable path of the previous trace that a reload
// changed.
type invalidation struct {
	Path   string `json:"path"`
	Before string `json:"before"`
	After  string `json:"after"`
}

type reloadReport struct {
	Changed     []string         `json:"changed"`
	Rewrapped   bool             `json:"rewrapped"`
	Invalidated []invalidation   `json:"invalidated"`
	Trace       tracestore.Trace `json:"-"`
}

// start loads the document, wraps it and takes the first trace.
func (s *session) start(ctx context.Context) (tracestore.Trace, error) {
	doc, err := statefile.Load(s.path)
	if err != nil {
		return tracestore.Trace{}, err
	}

	live, err := tracker.Wrap(doc, s.opts...)
	if err != nil {
		return tracestore.Trace{}, fmt.Errorf("wrapping %s: %w", s.path, err)
	}

	s.live = live

	return s.retrace(ctx)
}

// reload applies the current file content to the live tree. It returns nil
// when the content did not change.
func (s *session) reload(ctx context.Context) (*reloadReport, error) {
	doc, err := statefile.Load(s.path)
	if err != nil {
		s.observe(metrics.ReloadFailed, 0, 0)
		return nil, err
	}

	changed := value.Diff(s.live.Raw(), doc)
	if len(changed) == 0 {
		s.logger.Debug("state file unchanged", slog.String("path", s.path))
		s.observe(metrics.ReloadUnchanged, 0, 0)

		return nil, nil
	}

	previous, rewrapped, err := s.apply(doc, changed)
	if err != nil {
		s.observe(metrics.ReloadFailed, len(changed), 0)
		return nil, err
	}

	report := &reloadReport{
		Changed:     pathStrings(changed),
		Rewrapped:   rewrapped,
		Invalidated: []invalidation{},
	}

	for _, p := range s.last.Invalidated(changed) {
		before, err := tracker.Peek(previous, p)
		if err != nil {
			before = nil
		}

		after, err := tracker.Peek(s.live, p)
		if err != nil {
			after = nil
		}

		report.Invalidated = append(report.Invalidated, invalidation{
			Path:   displayPath(p),
			Before: formatValue(before),
			After:  formatValue(after),
		})
	}

	if s.revoke {
		tracker.Revoke(previous)
	}

	s.logger.Info("state file reloaded",
		slog.String("path", s.path),
		slog.Int("changed", len(changed)),
		slog.Int("invalidated", len(report.Invalidated)),
		slog.Bool("rewrapped", rewrapped),
	)

	s.observe(metrics.ReloadApplied, len(changed), len(report.Invalidated))

	report.Trace, err = s.retrace(ctx)
	if err != nil {
		return nil, err
	}

	return report, nil
}

// apply brings the live tree up to doc and returns a wrapper over the state
// before the change. A change at the root itself cannot be relinked, so the
// document is wrapped again and the old root becomes the previous state.
func (s *session) apply(doc any, changed []value.Path) (previous *tracker.Proxy, rewrapped bool, err error) {
	for _, p := range changed {
		if len(p) == 0 {
			live, err := tracker.Wrap(doc, s.opts...)
			if err != nil {
				return nil, false, fmt.Errorf("wrapping %s: %w", s.path, err)
			}

			previous, s.live = s.live, live

			return previous, true, nil
		}
	}

	batch := make([]tracker.Change, len(changed))
	for i, p := range changed {
		v, err := lookupPath(doc, p)
		if err != nil {
			return nil, false, err
		}

		batch[i] = tracker.Change{Path: p, Value: v}
	}

	draft, err := tracker.BatchRelink(s.live, batch)
	if err != nil {
		return nil, false, fmt.Errorf("relinking %s: %w", s.path, err)
	}

	return draft, false, nil
}

// retrace reads every configured path in a fresh scope and saves the trace
// when a store is attached.
func (s *session) retrace(ctx context.Context) (tracestore.Trace, error) {
	sc, err := traceReads(s.live, "", s.reads)
	if err != nil {
		return tracestore.Trace{}, err
	}

	s.last = sc
	trace := tracestore.FromScope(s.path, sc)

	if s.store != nil {
		id, err := s.store.Save(ctx, trace)
		if err != nil {
			return tracestore.Trace{}, err
		}

		trace.ID = id
	}

	return trace, nil
}

func (s *session) observe(result string, changed, invalidated int) {
	if s.metrics == nil {
		return
	}

	s.metrics.ObserveReload(result, changed, invalidated, float64(s.nowFunc().Unix()))
}

// lookupPath resolves p inside a raw document.
func lookupPath(doc any, p value.Path) (any, error) {
	cur := doc

	for i, key := range p {
		next, ok := value.Lookup(cur, key)
		if !ok {
			return nil, fmt.Errorf("path %s: %s not found: %w", p.String(), value.Path(p[:i+1]).String(), tracker.ErrInvalidPath)
		}

		cur = next
	}

	return cur, nil
}

func printReloadReport(w io.Writer, asJSON bool, r *reloadReport) error {
	if asJSON {
		return writeJSON(w, struct {
			*reloadReport
			Trace traceJSON `json:"trace"`
		}{
			reloadReport: r,
			Trace: traceJSON{
				ID:         r.Trace.ID,
				Scope:      r.Trace.ScopeID,
				Source:     r.Trace.Source,
				Reads:      pathStrings(r.Trace.Reads),
				Remarkable: pathStrings(r.Trace.Remarkable),
				Backward:   pathStrings(r.Trace.Backward),
			},
		})
	}

	fmt.Fprintf(w, "Changed: %s\n", strings.Join(r.Changed, ", "))

	if r.Rewrapped {
		fmt.Fprintln(w, "Document root replaced; wrapped again.")
	}

	if len(r.Invalidated) == 0 {
		fmt.Fprintln(w, "No traced reads invalidated.")
	} else {
		rows := make([][]string, len(r.Invalidated))
		for i, inv := range r.Invalidated {
			rows[i] = []string{inv.Path, inv.Before, inv.After}
		}

		printTable(w, []string{"PATH", "BEFORE", "AFTER"}, rows)
	}

	fmt.Fprintln(w)

	return printTrace(w, false, r.Trace)
}
