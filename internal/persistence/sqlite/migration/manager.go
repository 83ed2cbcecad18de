package migration

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
)

// Manager brings a database up to the newest migration found in a file system.
type Manager struct {
	executor *Executor
	fsys     fs.FS
	dir      string
	logger   *slog.Logger
}

// NewManager builds a Manager reading migrations from dir within fsys.
func NewManager(executor *Executor, fsys fs.FS, dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		executor: executor,
		fsys:     fsys,
		dir:      dir,
		logger:   logger.With("component", "migration"),
	}
}

// Run applies all pending migrations in version order and reports how many ran.
// It refuses to run when an applied migration was edited or removed.
func (m *Manager) Run(ctx context.Context) (int, error) {
	status, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}

	if len(status.Pending) == 0 {
		m.logger.InfoContext(ctx, "schema up to date", "version", status.CurrentVersion)
		return 0, nil
	}

	m.logger.InfoContext(ctx, "applying migrations",
		"current_version", status.CurrentVersion,
		"pending", len(status.Pending),
	)

	for i, migration := range status.Pending {
		elapsed, err := m.executor.Apply(ctx, migration)
		if err != nil {
			m.logger.ErrorContext(ctx, "migration failed",
				"version", migration.Version,
				"file", migration.FilePath,
				"error", err,
			)
			return i, err
		}
		m.logger.InfoContext(ctx, "migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"duration", elapsed,
		)
	}
	return len(status.Pending), nil
}

// Status compares the migration files against schema_migrations.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, err
	}

	available, err := ScanFS(m.fsys, m.dir)
	if err != nil {
		return Status{}, err
	}
	applied, err := m.executor.Applied(ctx)
	if err != nil {
		return Status{}, err
	}

	byVersion := make(map[int]Migration, len(available))
	for _, migration := range available {
		byVersion[versionNumber(migration.Version)] = migration
	}

	done := make(map[int]bool, len(applied))
	status := Status{Applied: applied}
	for _, record := range applied {
		number := versionNumber(record.Version)
		file, ok := byVersion[number]
		if !ok {
			return Status{}, NewMigrationError(record.Version, "", "verify applied", ErrUnknownVersion)
		}
		if record.Checksum != "" && record.Checksum != file.Checksum {
			return Status{}, NewMigrationError(record.Version, file.FilePath, "verify applied",
				fmt.Errorf("%w: recorded %s, file %s", ErrChecksumMismatch, record.Checksum, file.Checksum))
		}
		done[number] = true
		status.CurrentVersion = record.Version
	}

	for _, migration := range available {
		if !done[versionNumber(migration.Version)] {
			status.Pending = append(status.Pending, migration)
		}
	}
	return status, nil
}
