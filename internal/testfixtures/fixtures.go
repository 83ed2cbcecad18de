package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/meeting-gateway/internal/application"
	"github.com/example/meeting-gateway/internal/persistence"
)

var (
	userCounter    uint64
	sessionCounter uint64
)

var referenceTime = time.Date(2030, time.January, 1, 10, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic directory user that can be
// materialised for application or persistence tests.
type UserFixture struct {
	ID             string
	Username       string
	DisplayName    string
	AvatarTemplate string
	PasswordHash   string
	IsStaff        bool
	Groups         []string
	CreatedAt      time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	username := fmt.Sprintf("user%03d", idx)
	fixture := UserFixture{
		ID:             fmt.Sprintf("user-%03d", idx),
		Username:       username,
		DisplayName:    fmt.Sprintf("User %03d", idx),
		AvatarTemplate: fmt.Sprintf("/user_avatar/forum/%s/{size}/%d.png", username, idx),
		PasswordHash:   fmt.Sprintf("hash-%03d", idx),
		CreatedAt:      referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUsername overrides the generated username.
func WithUsername(username string) UserOption {
	return func(f *UserFixture) {
		f.Username = username
	}
}

// WithUserDisplayName overrides the generated display name.
func WithUserDisplayName(name string) UserOption {
	return func(f *UserFixture) {
		f.DisplayName = name
	}
}

// WithUserAvatarTemplate overrides the avatar template.
func WithUserAvatarTemplate(template string) UserOption {
	return func(f *UserFixture) {
		f.AvatarTemplate = template
	}
}

// WithUserPasswordHash overrides the generated password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// WithUserStaff sets the staff flag.
func WithUserStaff(isStaff bool) UserOption {
	return func(f *UserFixture) {
		f.IsStaff = isStaff
	}
}

// WithUserGroups replaces the group memberships.
func WithUserGroups(groups ...string) UserOption {
	return func(f *UserFixture) {
		f.Groups = append([]string(nil), groups...)
	}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:             f.ID,
		Username:       f.Username,
		DisplayName:    f.DisplayName,
		AvatarTemplate: f.AvatarTemplate,
		IsStaff:        f.IsStaff,
		Groups:         append([]string(nil), f.Groups...),
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.CreatedAt,
	}
}

// Acting returns the fixture as the user behind a request.
func (f UserFixture) Acting() application.ActingUser {
	return f.Application().ActingUser()
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:             f.ID,
		Username:       f.Username,
		DisplayName:    f.DisplayName,
		AvatarTemplate: f.AvatarTemplate,
		IsStaff:        f.IsStaff,
		PasswordHash:   f.PasswordHash,
		Groups:         append([]string(nil), f.Groups...),
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.CreatedAt,
	}
}

// ---------------------------- Session fixtures ----------------------------

// SessionFixture represents a deterministic authentication session.
type SessionFixture struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a session that is active at ReferenceTime.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	fixture := SessionFixture{
		ID:        fmt.Sprintf("session-%03d", idx),
		UserID:    "user-001",
		Token:     fmt.Sprintf("token-%03d", idx),
		CreatedAt: referenceTime,
		ExpiresAt: referenceTime.Add(24 * time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.ID = id
	}
}

// WithSessionUserID sets the owning user.
func WithSessionUserID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.UserID = id
	}
}

// WithSessionToken overrides the generated token.
func WithSessionToken(token string) SessionOption {
	return func(f *SessionFixture) {
		f.Token = token
	}
}

// WithSessionExpiresAt sets the expiry.
func WithSessionExpiresAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.ExpiresAt = t
	}
}

// WithSessionRevokedAt marks the session revoked at t.
func WithSessionRevokedAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		value := t
		f.RevokedAt = &value
	}
}

// Application returns the fixture as an application.Session value.
func (f SessionFixture) Application() application.Session {
	return application.Session{
		ID:        f.ID,
		UserID:    f.UserID,
		Token:     f.Token,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
		RevokedAt: copyTimePtr(f.RevokedAt),
	}
}

// Persistence returns the fixture as a persistence.Session value.
func (f SessionFixture) Persistence() persistence.Session {
	return persistence.Session{
		ID:        f.ID,
		UserID:    f.UserID,
		Token:     f.Token,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
		RevokedAt: copyTimePtr(f.RevokedAt),
	}
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
