package migration

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

const versionTableDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	applied_at TEXT NOT NULL,
	checksum TEXT NOT NULL DEFAULT '',
	execution_time_ms INTEGER NOT NULL DEFAULT 0
)`

// Executor applies migrations against a SQLite database.
type Executor struct {
	db  *sql.DB
	now func() time.Time
}

// NewExecutor wraps db. A nil clock defaults to time.Now.
func NewExecutor(db *sql.DB, now func() time.Time) *Executor {
	if now == nil {
		now = time.Now
	}
	return &Executor{db: db, now: now}
}

// InitializeVersionTable creates schema_migrations when absent.
func (e *Executor) InitializeVersionTable(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, versionTableDDL); err != nil {
		return NewMigrationError("", "", "create schema_migrations", err)
	}
	return nil
}

// Apply executes migration and records it in one transaction, so a failed
// statement leaves neither schema changes nor a version row behind.
func (e *Executor) Apply(ctx context.Context, migration Migration) (elapsed time.Duration, err error) {
	started := e.now()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, NewMigrationError(migration.Version, migration.FilePath, "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range splitStatements(migration.SQL) {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return 0, NewMigrationError(migration.Version, migration.FilePath,
				fmt.Sprintf("execute statement %d", i+1), fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}
	}

	elapsed = e.now().Sub(started)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`,
		migration.Version, e.now().UTC().Format(time.RFC3339Nano), migration.Checksum, elapsed.Milliseconds())
	if err != nil {
		return 0, NewMigrationError(migration.Version, migration.FilePath, "record version", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, NewMigrationError(migration.Version, migration.FilePath, "commit", err)
	}
	return elapsed, nil
}

// Applied lists recorded migrations ordered by version.
func (e *Executor) Applied(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT version, applied_at, checksum, execution_time_ms FROM schema_migrations`)
	if err != nil {
		return nil, NewMigrationError("", "", "list applied", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			record    AppliedMigration
			appliedAt string
			elapsedMs int64
		)
		if err := rows.Scan(&record.Version, &appliedAt, &record.Checksum, &elapsedMs); err != nil {
			return nil, NewMigrationError("", "", "scan applied", err)
		}
		record.AppliedAt, err = time.Parse(time.RFC3339Nano, appliedAt)
		if err != nil {
			return nil, NewMigrationError(record.Version, "", "parse applied_at", err)
		}
		record.ExecutionTime = time.Duration(elapsedMs) * time.Millisecond
		applied = append(applied, record)
	}
	if err := rows.Err(); err != nil {
		return nil, NewMigrationError("", "", "iterate applied", err)
	}

	sortApplied(applied)
	return applied, nil
}

func sortApplied(applied []AppliedMigration) {
	sort.Slice(applied, func(i, j int) bool {
		return versionNumber(applied[i].Version) < versionNumber(applied[j].Version)
	})
}
