package statefile

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher error backoff bounds.
const (
	watchErrInitBackoff = 1 * time.Second
	watchErrMaxBackoff  = 30 * time.Second
	watchErrBackoffMult = 2
)

// FsWatcher is the subset of *fsnotify.Watcher the Watcher needs. Tests
// substitute a channel-backed fake.
type FsWatcher interface {
	Add(name string) error
	Close() error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
}

type fsnotifyWatcher struct {
	w *fsnotify.Watcher
}

func newFsnotifyWatcher() (FsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &fsnotifyWatcher{w: w}, nil
}

func (f *fsnotifyWatcher) Add(name string) error         { return f.w.Add(name) }
func (f *fsnotifyWatcher) Close() error                  { return f.w.Close() }
func (f *fsnotifyWatcher) Events() <-chan fsnotify.Event { return f.w.Events }
func (f *fsnotifyWatcher) Errors() <-chan error          { return f.w.Errors }

// Watcher reports debounced changes to one file. It watches the parent
// directory so that editors which save by rename are still seen.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger

	newFsWatcher func() (FsWatcher, error)
	sleep        func(ctx context.Context, d time.Duration) error
}

// NewWatcher creates a Watcher for path.
func NewWatcher(path string, debounce time.Duration, logger *slog.Logger) *Watcher {
	return &Watcher{
		path:         filepath.Clean(path),
		debounce:     debounce,
		logger:       logger,
		newFsWatcher: newFsnotifyWatcher,
		sleep:        timeSleep,
	}
}

// Watch blocks until ctx is canceled. After each burst of writes, creates or
// renames touching the file, and once the burst has been quiet for the
// debounce interval, it performs a non-blocking send on changes; a pending
// notification absorbs later ones.
func (w *Watcher) Watch(ctx context.Context, changes chan<- struct{}) error {
	fsw, err := w.newFsWatcher()
	if err != nil {
		return fmt.Errorf("statefile: creating watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("statefile: watching %s: %w", dir, err)
	}

	w.logger.Info("watching state file", slog.String("path", w.path), slog.Duration("debounce", w.debounce))

	// pending is nil while no burst is being debounced
	var (
		timer   *time.Timer
		pending <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	errBackoff := watchErrInitBackoff

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events():
			if !ok {
				return nil
			}

			if !w.relevant(ev) {
				continue
			}

			w.logger.Debug("state file event", slog.String("op", ev.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}

			pending = timer.C

			errBackoff = watchErrInitBackoff

		case watchErr, ok := <-fsw.Errors():
			if !ok {
				return nil
			}

			w.logger.Warn("file watcher error",
				slog.String("error", watchErr.Error()),
				slog.Duration("backoff", errBackoff),
			)

			if sleepErr := w.sleep(ctx, errBackoff); sleepErr != nil {
				return nil
			}

			errBackoff = min(errBackoff*watchErrBackoffMult, watchErrMaxBackoff)

		case <-pending:
			pending = nil

			trySend(changes)
		}
	}
}

// relevant reports whether ev can change the watched file's content.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}

	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

func trySend(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// timeSleep waits for d or until ctx is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
