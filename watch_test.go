package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/statetracker/internal/metrics"
	"github.com/tonimelisma/statetracker/internal/tracestore"
	"github.com/tonimelisma/statetracker/pkg/tracker"
	"github.com/tonimelisma/statetracker/pkg/value"
)

func newTestSession(t *testing.T, content string, reads ...string) *session {
	t.Helper()

	path := writeDoc(t, t.TempDir(), "state.json", content)

	return &session{
		path:    path,
		reads:   parseReads(reads),
		opts:    []tracker.Option{tracker.WithRevoke(true)},
		revoke:  true,
		logger:  slog.New(slog.DiscardHandler),
		metrics: metrics.NewCollector(),
		nowFunc: func() time.Time { return time.Unix(1700000000, 0) },
	}
}

func rewrite(t *testing.T, s *session, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(s.path, []byte(content), 0o600))
}

func TestSession_ReloadReportsInvalidatedReads(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, cartDoc, "user.name", "cart.total")
	ctx := context.Background()

	initial, err := s.start(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"user.name", "cart.total"}, pathStrings(initial.Remarkable))

	user, err := tracker.Peek(s.live, value.Path{"user"})
	require.NoError(t, err)

	rewrite(t, s, `{
  "user": {"name": "Ada", "tags": ["a", "b"]},
  "cart": {"items": [{"price": 1}, {"price": 2}], "total": 7}
}`)

	report, err := s.reload(ctx)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, []string{"cart.total"}, report.Changed)
	assert.False(t, report.Rewrapped)
	assert.Equal(t, []invalidation{{Path: "cart.total", Before: "3", After: "7"}}, report.Invalidated)

	again, err := tracker.Peek(s.live, value.Path{"user"})
	require.NoError(t, err)
	assert.Same(t, user, again)

	assert.Equal(t, []string{"user.name", "cart.total"}, pathStrings(report.Trace.Remarkable))
}

func TestSession_UnchangedReload(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, cartDoc, "user")
	_, err := s.start(context.Background())
	require.NoError(t, err)

	rewrite(t, s, cartDoc)

	report, err := s.reload(context.Background())
	require.NoError(t, err)
	assert.Nil(t, report)
}

func TestSession_UnrelatedChangeInvalidatesNothing(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, `{"a": {"x": 1}, "b": {"y": 2}}`, "a.x")
	_, err := s.start(context.Background())
	require.NoError(t, err)

	rewrite(t, s, `{"a": {"x": 1}, "b": {"y": 3}, "c": true}`)

	report, err := s.reload(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, []string{"b.y", "c"}, report.Changed)
	assert.Empty(t, report.Invalidated)

	got, err := tracker.Peek(s.live, value.Path{"c"})
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestSession_RootKindChangeRewraps(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, `{"a": 1}`, "a")
	_, err := s.start(context.Background())
	require.NoError(t, err)

	old := s.live

	rewrite(t, s, `[1, 2]`)

	report, err := s.reload(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.True(t, report.Rewrapped)
	assert.Equal(t, []string{"."}, report.Changed)
	assert.Equal(t, []invalidation{{Path: "a", Before: "1", After: "null"}}, report.Invalidated)
	assert.NotSame(t, old, s.live)
	assert.True(t, tracker.Info(old).Revoked)
}

func TestSession_MalformedReloadKeepsLiveTree(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, `{"a": 1}`, "a")
	_, err := s.start(context.Background())
	require.NoError(t, err)

	live := s.live

	rewrite(t, s, `{"a": `)

	_, err = s.reload(context.Background())
	require.Error(t, err)
	assert.Same(t, live, s.live)

	got, err := tracker.Peek(s.live, value.Path{"a"})
	require.NoError(t, err)
	assert.InDelta(t, 1, got, 0)
}

func TestSession_SavesTraces(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	store, err := tracestore.Open(ctx, filepath.Join(t.TempDir(), "traces.db"), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	s := newTestSession(t, `{"a": 1}`, "a")
	s.store = store

	first, err := s.start(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	rewrite(t, s, `{"a": 2}`)

	report, err := s.reload(ctx)
	require.NoError(t, err)
	require.NotNil(t, report)

	sums, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, sums, 2)
}

func TestLookupPath(t *testing.T) {
	t.Parallel()

	doc := value.Obj("a", value.Arr(value.Obj("b", 2)))

	got, err := lookupPath(doc, value.Path{"a", "0", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	_, err = lookupPath(doc, value.Path{"a", "1"})
	assert.ErrorIs(t, err, tracker.ErrInvalidPath)
}
