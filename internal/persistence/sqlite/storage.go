package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/meeting-gateway/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// timeLayout keeps a fixed width so stored timestamps compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Storage bundles the SQLite-backed repositories over one connection pool.
type Storage struct {
	*ConnectionPool
	Users    *UserRepository
	Sessions *SessionRepository
}

// Open connects to the database described by config and applies pending
// migrations before returning.
func Open(ctx context.Context, config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		return nil, err
	}

	storage := &Storage{
		ConnectionPool: pool,
		Users:          NewUserRepository(pool),
		Sessions:       NewSessionRepository(pool),
	}
	if _, err := storage.Migrate(ctx, logger); err != nil {
		pool.Close()
		return nil, err
	}
	return storage, nil
}

// Migrate applies the embedded schema migrations and reports how many ran.
func (s *Storage) Migrate(ctx context.Context, logger *slog.Logger) (int, error) {
	manager := migration.NewManager(migration.NewExecutor(s.DB(), nil), migrationFiles, "migrations", logger)
	applied, err := manager.Run(ctx)
	if err != nil {
		return applied, fmt.Errorf("failed to migrate database: %w", err)
	}
	return applied, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(timeLayout, value)
}
