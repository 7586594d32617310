package postgresrepo

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/jackc/pgx/v5"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type migration struct {
	version string
	sql     string
}

// Migrate applies embedded migrations that are not yet recorded in
// schema_migrations, each in its own transaction, in file name order.
func (s *Store) Migrate(ctx context.Context, log *slog.Logger) error {
	const op = "postgresrepo.Store.Migrate"

	if _, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	applied := 0
	for _, m := range migrations {
		err := s.RunTx(ctx, &pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite},
			func(ctx context.Context, tx DB) error {
				tag, err := tx.Exec(ctx,
					`INSERT INTO schema_migrations(version) VALUES ($1)
					 ON CONFLICT DO NOTHING`,
					m.version,
				)
				if err != nil {
					return err
				}
				if tag.RowsAffected() == 0 {
					return errAlreadyApplied
				}

				_, err = tx.Exec(ctx, m.sql)
				return err
			})
		if errors.Is(err, errAlreadyApplied) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %s: %w", op, m.version, err)
		}

		applied++
		log.Info("migration applied", "version", m.version)
	}

	log.Debug("schema up to date", "applied", applied)

	return nil
}

var errAlreadyApplied = errors.New("migration already applied")

func loadMigrations() ([]migration, error) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return nil, err
	}

	out := make([]migration, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}

		body, err := migrationFiles.ReadFile(path.Join("migrations", e.Name()))
		if err != nil {
			return nil, err
		}

		out = append(out, migration{version: e.Name(), sql: string(body)})
	}

	return out, nil
}
