package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/meeting-gateway/internal/persistence"
)

const userColumns = `id, username, display_name, avatar_template, is_staff, password_hash, created_at, updated_at`

// UserRepository implements persistence.UserRepository using SQLite.
type UserRepository struct {
	pool *ConnectionPool
	now  func() time.Time
}

var _ persistence.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{pool: pool, now: time.Now}
}

// CreateUser inserts user together with its group memberships. Usernames are
// stored lowercased.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	username := normalizeUsername(user.Username)
	if strings.TrimSpace(user.ID) == "" || username == "" {
		return persistence.ErrConstraintViolation
	}

	now := r.now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			user.ID,
			username,
			user.DisplayName,
			user.AvatarTemplate,
			user.IsStaff,
			user.PasswordHash,
			formatTime(user.CreatedAt),
			formatTime(user.UpdatedAt),
		)
		if err != nil {
			return mapError(err)
		}
		for _, group := range user.Groups {
			if err := insertMembership(ctx, tx, user.ID, group); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if strings.TrimSpace(id) == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetUserByUsername retrieves a user by case-insensitive username.
func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (persistence.User, error) {
	normalized := normalizeUsername(username)
	if normalized == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, normalized)
}

// ListUsersByUsernames returns the users whose usernames appear in usernames,
// ordered by username. Unknown names are skipped.
func (r *UserRepository) ListUsersByUsernames(ctx context.Context, usernames []string) ([]persistence.User, error) {
	seen := make(map[string]bool, len(usernames))
	args := make([]any, 0, len(usernames))
	for _, name := range usernames {
		normalized := normalizeUsername(name)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		args = append(args, normalized)
	}
	if len(args) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")
	rows, err := r.pool.DB().QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username IN (`+placeholders+`) ORDER BY username`, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	for i := range users {
		if users[i].Groups, err = r.ListGroups(ctx, users[i].ID); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// AddGroupMembership adds userID to group. Adding an existing membership is a no-op.
func (r *UserRepository) AddGroupMembership(ctx context.Context, userID, group string) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&exists)
		if err != nil {
			return mapError(err)
		}
		return insertMembership(ctx, tx, userID, group)
	})
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg string) (persistence.User, error) {
	user, err := scanUser(r.pool.DB().QueryRowContext(ctx, query, arg))
	if err != nil {
		return persistence.User{}, err
	}
	if user.Groups, err = r.ListGroups(ctx, user.ID); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

// ListGroups returns the group names userID belongs to, sorted.
func (r *UserRepository) ListGroups(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.DB().QueryContext(ctx,
		`SELECT group_name FROM group_memberships WHERE user_id = ? ORDER BY group_name`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var group string
		if err := rows.Scan(&group); err != nil {
			return nil, mapError(err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return groups, nil
}

func insertMembership(ctx context.Context, tx *sql.Tx, userID, group string) error {
	group = strings.TrimSpace(group)
	if group == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO group_memberships (user_id, group_name) VALUES (?, ?)`, userID, group)
	return mapError(err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (persistence.User, error) {
	var (
		user                 persistence.User
		createdAt, updatedAt string
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.DisplayName,
		&user.AvatarTemplate,
		&user.IsStaff,
		&user.PasswordHash,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.User{}, mapError(err)
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.User{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.User{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return user, nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
