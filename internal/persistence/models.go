package persistence

import "time"

// User is a local directory entry. Username doubles as the user id sent to
// the conferencing backend, so attendee ids map back onto it.
type User struct {
	ID             string
	Username       string
	DisplayName    string
	AvatarTemplate string
	IsStaff        bool
	PasswordHash   string
	Groups         []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}
