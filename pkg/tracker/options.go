package tracker

import (
	"log/slog"
	"time"

	"github.com/tonimelisma/statetracker/pkg/value"
)

// Option configures Wrap.
type Option func(*settings)

type settings struct {
	stack      *ScopeStack
	revocable  bool
	rootPath   value.Path
	accessPath value.Path
	focusKey   string
	logger     *slog.Logger
	observer   Observer
	now        func() time.Time
}

// WithStack records reads into an existing stack instead of a fresh one.
// Trees sharing a stack see each other's scopes, which is what makes
// backward access observable.
func WithStack(s *ScopeStack) Option {
	return func(o *settings) { o.stack = s }
}

// WithRevoke enables Revoke for every wrapper of the tree.
func WithRevoke(enabled bool) Option {
	return func(o *settings) { o.revocable = enabled }
}

// WithRootPath sets the prefix from an outer root, for trees that wrap a
// subtree of some larger document.
func WithRootPath(p value.Path) Option {
	return func(o *settings) { o.rootPath = p.Clone() }
}

// WithAccessPath sets the access path of the root wrapper. Logged paths of
// the whole tree start with it.
func WithAccessPath(p value.Path) Option {
	return func(o *settings) { o.accessPath = p.Clone() }
}

// WithFocusKey tags the root node.
func WithFocusKey(key string) Option {
	return func(o *settings) { o.focusKey = key }
}

// WithLogger sets the logger used by the tree and, when no stack is given,
// by the stack Wrap creates.
func WithLogger(l *slog.Logger) Option {
	return func(o *settings) { o.logger = l }
}

// WithObserver installs lifecycle hooks.
func WithObserver(obs Observer) Option {
	return func(o *settings) { o.observer = obs }
}

// WithClock overrides time.Now for update stamps. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(o *settings) { o.now = now }
}
