package persistence

import (
	"context"
	"time"
)

// UserRepository stores directory users and their group memberships.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	// ListUsersByUsernames returns the users matching usernames in unspecified
	// order. Unknown usernames are skipped.
	ListUsersByUsernames(ctx context.Context, usernames []string) ([]User, error)
	ListGroups(ctx context.Context, userID string) ([]string, error)
	AddGroupMembership(ctx context.Context, userID, group string) error
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
