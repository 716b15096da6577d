// Package surrealdb provides the shared SurrealDB connection bootstrap used
// by both the job store and the conversation store backends, following the
// teacher's connect -> sign-in -> select-namespace -> define-tables sequence.
package surrealdb

import (
	"context"
	"fmt"

	"github.com/auriga-os/emonk/internal/common"
	"github.com/surrealdb/surrealdb.go"
)

// Config carries the connection parameters read from SURREALDB_* env vars.
type Config struct {
	Address   string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// tables is every table either store touches; defined up front so queries
// never fail against a not-yet-created table (SurrealDB errors on querying
// a table that hasn't been defined).
var tables = []string{"scheduler_jobs", "conversations", "system_kv"}

// Connect opens a SurrealDB handle, signs in, selects namespace/database and
// ensures every table this module uses exists, mirroring the teacher's
// Manager.NewManager bootstrap sequence.
func Connect(ctx context.Context, logger *common.Logger, cfg Config) (*surrealdb.DB, error) {
	db, err := surrealdb.New(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("surrealdb: connect to %s: %w", cfg.Address, err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": cfg.Username,
		"pass": cfg.Password,
	}); err != nil {
		return nil, fmt.Errorf("surrealdb: sign in: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return nil, fmt.Errorf("surrealdb: select namespace/database: %w", err)
	}

	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("surrealdb: define table %s: %w", table, err)
		}
	}

	indexSQL := "DEFINE INDEX IF NOT EXISTS scheduler_jobs_due ON TABLE scheduler_jobs COLUMNS status, next_run_at"
	if _, err := surrealdb.Query[any](ctx, db, indexSQL, nil); err != nil {
		return nil, fmt.Errorf("surrealdb: define index: %w", err)
	}

	logger.Info().
		Str("address", cfg.Address).
		Str("namespace", cfg.Namespace).
		Str("database", cfg.Database).
		Msg("SurrealDB connected")

	return db, nil
}
