package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/meeting-gateway/internal/persistence"
	"github.com/example/meeting-gateway/internal/persistence/sqlite"
	"github.com/example/meeting-gateway/internal/persistence/sqlite/migration"
)

// SQLiteHarness provides repository access backed by a temporary SQLite storage
// instance for integration-style persistence tests.
type SQLiteHarness struct {
	Users    persistence.UserRepository
	Sessions persistence.SessionRepository
	Storage  *sqlite.Storage

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "gateway.db")
	storage, err := sqlite.Open(context.Background(), migration.DefaultSQLiteConfig(path), nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	harness := &SQLiteHarness{
		Users:    storage.Users,
		Sessions: storage.Sessions,
		Storage:  storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedUsers inserts the fixtures and fails the test on error.
func (h *SQLiteHarness) SeedUsers(tb testing.TB, users ...UserFixture) {
	tb.Helper()
	for _, user := range users {
		if err := h.Users.CreateUser(context.Background(), user.Persistence()); err != nil {
			tb.Fatalf("failed to seed user %s: %v", user.Username, err)
		}
	}
}
