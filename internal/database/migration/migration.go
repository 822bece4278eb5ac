package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"docchat/internal/logger"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id          UUID        PRIMARY KEY,
  name        TEXT        NOT NULL,
  storage_key TEXT        NOT NULL UNIQUE,
  address     TEXT        NOT NULL,
  size        BIGINT      NOT NULL CHECK (size >= 0),
  status      TEXT        NOT NULL CHECK (status IN ('pending', 'extracted', 'failed')),
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_documents_status_updated_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_status_updated_at ON documents (status, updated_at);`,
	},
}

// EnsureMigrated checks if the 'documents' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *logger.Logger, dbHost string) error {
	start := time.Now()
	log = log.With(logger.Fields{"component": "database", "db_host": dbHost})

	log.Info("db_migration_check", logger.Fields{"status": "starting"})

	var exists bool
	query := "SELECT to_regclass('public.documents') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.Error("db_migration_failed", err, logger.Fields{
			"status":      "error",
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("db_migration_skip", logger.Fields{
			"status":      "success",
			"detail":      "schema already exists, skipping migration",
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}

	log.Info("db_migration_start", logger.Fields{"status": "in_progress"})

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed", err, logger.Fields{
				"status":           "error",
				"migration_step":   step.Name,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			})
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info("db_migration_step", logger.Fields{
			"status":           "success",
			"migration_step":   step.Name,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	log.Info("db_migration_success", logger.Fields{
		"status":      "success",
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}
