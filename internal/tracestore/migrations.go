package tracestore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrate brings the trace schema up to date and returns the resulting
// schema version.
func migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) (int64, error) {
	scripts, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("tracestore: opening embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, scripts)
	if err != nil {
		return 0, fmt.Errorf("tracestore: creating migration provider: %w", err)
	}

	applied, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("tracestore: applying migrations: %w", err)
	}

	for _, r := range applied {
		logger.Debug("trace schema migrated",
			slog.Int64("version", r.Source.Version),
			slog.Duration("took", r.Duration),
		)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("tracestore: reading schema version: %w", err)
	}

	return version, nil
}
