package application

import (
	"strings"
	"time"
)

// Role is the conferencing role granted to a joining user.
type Role string

const (
	RoleAttendee  Role = "attendee"
	RoleModerator Role = "moderator"
)

// ActingUser is the authenticated user on whose behalf a request is made.
type ActingUser struct {
	ID          string
	Username    string
	DisplayName string
	IsStaff     bool
	Groups      []string
}

// Name returns the name shown to other meeting participants.
func (u ActingUser) Name() string {
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}
	return u.Username
}

// MeetingDescriptor identifies a backend meeting room and the two role passwords.
type MeetingDescriptor struct {
	MeetingID         string
	AttendeePassword  string
	ModeratorPassword string
	DisplayName       string
}

// Complete reports whether the descriptor carries everything needed to join.
func (d MeetingDescriptor) Complete() bool {
	return d.MeetingID != "" && d.AttendeePassword != "" && d.ModeratorPassword != ""
}

// PasswordFor returns the password that grants role.
func (d MeetingDescriptor) PasswordFor(role Role) string {
	if role == RoleModerator {
		return d.ModeratorPassword
	}
	return d.AttendeePassword
}

// ScheduleWindow is the validated time frame of a scheduled meeting. EndAt is
// nil for unbounded meetings.
type ScheduleWindow struct {
	StartAt               time.Time
	DurationMinutes       int
	EndAt                 *time.Time
	ExpireIfNoJoinMinutes int
}

// Unbounded reports whether the window has no end.
func (w ScheduleWindow) Unbounded() bool {
	return w.EndAt == nil
}

// CreateMode selects how a create request is handled.
type CreateMode string

const (
	// ModeLegacy creates the caller supplied meeting and joins it immediately.
	ModeLegacy CreateMode = ""
	// ModeNew validates a schedule, creates a fresh meeting and joins it when open.
	ModeNew CreateMode = "new"
	// ModeExisting joins a meeting created earlier without calling the backend.
	ModeExisting CreateMode = "existing"
)

func parseCreateMode(raw string) (CreateMode, error) {
	switch mode := CreateMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case ModeLegacy, ModeNew, ModeExisting:
		return mode, nil
	default:
		return "", newValidationError(ErrInvalidMode, "mode", "mode must be new or existing")
	}
}

func (m CreateMode) label() string {
	if m == ModeLegacy {
		return "legacy"
	}
	return string(m)
}

// CreateRequest carries the raw create/join form fields.
type CreateRequest struct {
	Mode        string
	MeetingName string
	StartDate   string
	StartTime   string
	Duration    string
	MeetingID   string
	AttendeePW  string
	ModeratorPW string
	// Descriptor is an encoded descriptor record, accepted in place of the
	// individual meeting fields when joining an existing meeting.
	Descriptor string
}

// CreateResult is the outcome of a create/join request. URL is empty when the
// meeting was created but its window has not opened yet.
type CreateResult struct {
	URL        string
	Descriptor *MeetingDescriptor
	Window     *ScheduleWindow
	// Encoded is the descriptor record to embed in a post for later joins.
	Encoded string
}

// Deferred reports whether joining was postponed until the window opens.
func (r CreateResult) Deferred() bool {
	return r.URL == "" && r.Descriptor != nil
}

// User is a local directory entry.
type User struct {
	ID             string
	Username       string
	DisplayName    string
	AvatarTemplate string
	IsStaff        bool
	Groups         []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ActingUser converts the directory entry into request identity.
func (u User) ActingUser() ActingUser {
	groups := make([]string, len(u.Groups))
	copy(groups, u.Groups)
	return ActingUser{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		IsStaff:     u.IsStaff,
		Groups:      groups,
	}
}

// AttendeeSummary is one participant of a live meeting that maps to a local user.
type AttendeeSummary struct {
	DisplayName string
	AvatarURL   string
}

// Status describes a live meeting. Active is false when the backend does not
// report the meeting, in which case the remaining fields are empty.
type Status struct {
	Active           bool
	ParticipantCount int
	Attendees        []AttendeeSummary
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Username string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}
