// Package tracestore persists recorded scopes ("traces") in SQLite so that
// the paths a view read can be inspected after the process exits.
package tracestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"

	"github.com/tonimelisma/statetracker/pkg/tracker"
	"github.com/tonimelisma/statetracker/pkg/value"
)

// ErrNotFound indicates an unknown trace id.
var ErrNotFound = errors.New("tracestore: trace not found")

// Path kinds stored in trace_paths.
const (
	kindRead       = "read"
	kindRemarkable = "remarkable"
	kindBackward   = "backward"
)

// SQL statements for trace operations.
const (
	sqlInsertTrace = `INSERT INTO traces (id, scope_id, source, created_at) VALUES (?, ?, ?, ?)`

	sqlInsertPath = `INSERT INTO trace_paths (trace_id, kind, seq, path) VALUES (?, ?, ?, ?)`

	sqlListTraces = `SELECT t.id, t.scope_id, t.source, t.created_at,
		(SELECT COUNT(*) FROM trace_paths p WHERE p.trace_id = t.id AND p.kind = 'read'),
		(SELECT COUNT(*) FROM trace_paths p WHERE p.trace_id = t.id AND p.kind = 'remarkable'),
		(SELECT COUNT(*) FROM trace_paths p WHERE p.trace_id = t.id AND p.kind = 'backward')
		FROM traces t
		ORDER BY t.created_at DESC, t.id
		LIMIT ?`

	sqlGetTrace = `SELECT id, scope_id, source, created_at FROM traces WHERE id = ?`

	sqlGetPaths = `SELECT kind, path FROM trace_paths WHERE trace_id = ? ORDER BY kind, seq`
)

// Trace is a persisted scope record.
type Trace struct {
	ID         string
	ScopeID    string
	Source     string
	CreatedAt  time.Time
	Reads      []value.Path
	Remarkable []value.Path
	Backward   []value.Path
}

// Summary is one row of List.
type Summary struct {
	ID         string
	ScopeID    string
	Source     string
	CreatedAt  time.Time
	Reads      int
	Remarkable int
	Backward   int
}

// FromScope captures sc for storage. source names the document the scope
// read from, typically its file path.
func FromScope(source string, sc *tracker.Scope) Trace {
	backward := sc.Backward()

	bpaths := make([]value.Path, len(backward))
	for i, b := range backward {
		bpaths[i] = b.Path
	}

	return Trace{
		ScopeID:    sc.ID(),
		Source:     source,
		Reads:      sc.Paths(),
		Remarkable: sc.Remarkable(),
		Backward:   bpaths,
	}
}

// Store is the sole writer to the trace database.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time // injectable for deterministic tests
}

// Open opens (creating if needed) the SQLite database at dbPath and runs
// migrations.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("tracestore: creating database directory: %w", err)
	}

	// DSN parameters ensure pragmas apply to every connection from the pool.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("tracestore: opening database %s: %w", dbPath, err)
	}

	db.SetMaxOpenConns(1)

	version, err := migrate(ctx, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("trace store opened",
		slog.String("db_path", dbPath),
		slog.Int64("schema_version", version),
	)

	return &Store{
		db:      db,
		logger:  logger,
		nowFunc: time.Now,
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores t in one transaction and returns its new id. t.ID and
// t.CreatedAt are assigned by the store.
func (s *Store) Save(ctx context.Context, t Trace) (string, error) {
	id := uuid.New().String()
	createdAt := s.nowFunc().UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("tracestore: beginning save transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, sqlInsertTrace, id, t.ScopeID, t.Source, createdAt); err != nil {
		return "", fmt.Errorf("tracestore: inserting trace: %w", err)
	}

	for _, group := range []struct {
		kind  string
		paths []value.Path
	}{
		{kindRead, t.Reads},
		{kindRemarkable, t.Remarkable},
		{kindBackward, t.Backward},
	} {
		if err := insertPaths(ctx, tx, id, group.kind, group.paths); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("tracestore: committing trace: %w", err)
	}

	s.logger.Debug("trace saved",
		slog.String("trace_id", id),
		slog.String("scope", t.ScopeID),
		slog.Int("reads", len(t.Reads)),
	)

	return id, nil
}

func insertPaths(ctx context.Context, tx *sql.Tx, id, kind string, paths []value.Path) error {
	for seq, p := range paths {
		encoded, err := encodePath(p)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, sqlInsertPath, id, kind, seq, encoded); err != nil {
			return fmt.Errorf("tracestore: inserting %s path %q: %w", kind, p.String(), err)
		}
	}

	return nil
}

// List returns the newest traces first, at most limit of them.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, sqlListTraces, limit)
	if err != nil {
		return nil, fmt.Errorf("tracestore: listing traces: %w", err)
	}
	defer rows.Close()

	var out []Summary

	for rows.Next() {
		var (
			sum       Summary
			createdAt int64
		)

		if err := rows.Scan(&sum.ID, &sum.ScopeID, &sum.Source, &createdAt,
			&sum.Reads, &sum.Remarkable, &sum.Backward); err != nil {
			return nil, fmt.Errorf("tracestore: scanning trace row: %w", err)
		}

		sum.CreatedAt = time.Unix(0, createdAt)
		out = append(out, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tracestore: iterating trace rows: %w", err)
	}

	return out, nil
}

// Get loads one trace with all its paths.
func (s *Store) Get(ctx context.Context, id string) (*Trace, error) {
	var (
		t         Trace
		createdAt int64
	)

	err := s.db.QueryRowContext(ctx, sqlGetTrace, id).Scan(&t.ID, &t.ScopeID, &t.Source, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tracestore: trace %s: %w", id, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("tracestore: getting trace %s: %w", id, err)
	}

	t.CreatedAt = time.Unix(0, createdAt)

	rows, err := s.db.QueryContext(ctx, sqlGetPaths, id)
	if err != nil {
		return nil, fmt.Errorf("tracestore: loading paths of %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, encoded string
		if err := rows.Scan(&kind, &encoded); err != nil {
			return nil, fmt.Errorf("tracestore: scanning path row: %w", err)
		}

		p, err := decodePath(encoded)
		if err != nil {
			return nil, err
		}

		switch kind {
		case kindRead:
			t.Reads = append(t.Reads, p)
		case kindRemarkable:
			t.Remarkable = append(t.Remarkable, p)
		case kindBackward:
			t.Backward = append(t.Backward, p)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tracestore: iterating path rows: %w", err)
	}

	return &t, nil
}

func encodePath(p value.Path) (string, error) {
	if p == nil {
		p = value.Path{}
	}

	b, err := json.Marshal([]string(p))
	if err != nil {
		return "", fmt.Errorf("tracestore: encoding path: %w", err)
	}

	return string(b), nil
}

func decodePath(s string) (value.Path, error) {
	var keys []string
	if err := json.Unmarshal([]byte(s), &keys); err != nil {
		return nil, fmt.Errorf("tracestore: decoding path %q: %w", s, err)
	}

	return value.Path(keys), nil
}
