package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/meeting-gateway/internal/bbb"
	"github.com/example/meeting-gateway/internal/metrics"
)

const (
	maxMeetingNameRunes = 30
	meetingIDBytes      = 8
	passwordBytes       = 8
)

// ConferenceBackend is the subset of the backend client used to create and join meetings.
type ConferenceBackend interface {
	Create(ctx context.Context, q *bbb.Query) (bbb.CreateResponse, error)
	JoinURL(q *bbb.Query) string
}

// MeetingConfig holds the operator settings that shape created meetings.
type MeetingConfig struct {
	Enabled            bool
	MeetingIDPrefix    string
	DefaultMeetingName string
	Welcome            string
	LogoutURL          string
	JoinPolicy         JoinPolicy
}

// MeetingService creates backend meetings and hands out signed join URLs.
type MeetingService struct {
	backend   ConferenceBackend
	roles     RoleResolver
	schedules *ScheduleValidator
	cfg       MeetingConfig
	randomHex func(n int) (string, error)
	now       func() time.Time
	logger    *slog.Logger
}

// NewMeetingService constructs a MeetingService with the provided dependencies.
func NewMeetingService(backend ConferenceBackend, roles RoleResolver, schedules *ScheduleValidator, cfg MeetingConfig, randomHex func(n int) (string, error), now func() time.Time) *MeetingService {
	return NewMeetingServiceWithLogger(backend, roles, schedules, cfg, randomHex, now, nil)
}

// NewMeetingServiceWithLogger constructs a MeetingService with a specified logger.
func NewMeetingServiceWithLogger(backend ConferenceBackend, roles RoleResolver, schedules *ScheduleValidator, cfg MeetingConfig, randomHex func(n int) (string, error), now func() time.Time, logger *slog.Logger) *MeetingService {
	if randomHex == nil {
		randomHex = RandomHex
	}
	if now == nil {
		now = time.Now
	}
	if schedules == nil {
		schedules = NewScheduleValidator(ScheduleConfig{MaxDurationMinutes: DefaultMaxDurationMinutes}, now)
	}
	if cfg.JoinPolicy == "" {
		cfg.JoinPolicy = JoinPolicyStrict
	}
	if strings.TrimSpace(cfg.MeetingIDPrefix) == "" {
		cfg.MeetingIDPrefix = "discourse"
	}
	return &MeetingService{
		backend:   backend,
		roles:     roles,
		schedules: schedules,
		cfg:       cfg,
		randomHex: randomHex,
		now:       now,
		logger:    defaultLogger(logger),
	}
}

// RandomHex returns 2n lowercase hex characters from crypto/rand.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (s *MeetingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "MeetingService", operation, attrs...)
}

// Handle serves one create/join request for user. Validation failures are
// returned before any backend call is made.
func (s *MeetingService) Handle(ctx context.Context, req CreateRequest, user ActingUser) (result CreateResult, err error) {
	if s == nil {
		err = fmt.Errorf("MeetingService is nil")
		return
	}

	mode, err := parseCreateMode(req.Mode)
	if err != nil {
		metrics.RecordMeetingRequest("unknown", "invalid")
		return CreateResult{}, err
	}

	logger := s.loggerWith(ctx, "Handle", "mode", mode.label(), "user", user.Username)
	defer func() {
		metrics.RecordMeetingRequest(mode.label(), requestOutcome(result, err))
		if err != nil {
			logger.WarnContext(ctx, "meeting request rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "meeting request handled", "deferred", result.Deferred())
	}()

	if !s.cfg.Enabled {
		err = ErrDisabled
		return
	}

	role := s.roles.Resolve(user)
	switch mode {
	case ModeNew:
		return s.handleNew(ctx, req, user, role)
	case ModeExisting:
		return s.handleExisting(req, user, role)
	default:
		return s.handleLegacy(ctx, req, user, role)
	}
}

func requestOutcome(result CreateResult, err error) string {
	var vErr *ValidationError
	switch {
	case err == nil && result.Deferred():
		return "deferred"
	case err == nil:
		return "joined"
	case errors.As(err, &vErr):
		return "invalid"
	case errors.Is(err, ErrMeetingNotStarted), errors.Is(err, ErrMeetingEnded):
		return "window"
	default:
		return "failed"
	}
}

func (s *MeetingService) handleLegacy(ctx context.Context, req CreateRequest, user ActingUser, role Role) (CreateResult, error) {
	d, err := descriptorFromFields(req)
	if err != nil {
		return CreateResult{}, err
	}
	d.DisplayName = s.meetingName(req.MeetingName)

	url, err := s.CreateAndJoin(ctx, d, role, user)
	if err != nil {
		return CreateResult{}, err
	}
	return CreateResult{URL: url}, nil
}

func (s *MeetingService) handleNew(ctx context.Context, req CreateRequest, user ActingUser, role Role) (CreateResult, error) {
	window, err := s.schedules.Validate(req.StartDate, req.StartTime, req.Duration)
	if err != nil {
		return CreateResult{}, err
	}

	d, err := s.CreateMeeting(ctx, req.MeetingName, &window)
	if err != nil {
		return CreateResult{}, err
	}

	result := CreateResult{
		Descriptor: &d,
		Window:     &window,
		Encoded:    EncodeDescriptor(d, &window),
	}

	switch err := s.cfg.JoinPolicy.Check(window, s.now()); {
	case err == nil:
		url, err := s.BuildJoinURL(d, role, user)
		if err != nil {
			return CreateResult{}, err
		}
		result.URL = url
	case errors.Is(err, ErrMeetingNotStarted):
		// Created ahead of time; the caller joins once the window opens.
	default:
		return CreateResult{}, err
	}
	return result, nil
}

func (s *MeetingService) handleExisting(req CreateRequest, user ActingUser, role Role) (CreateResult, error) {
	var (
		d      MeetingDescriptor
		window *ScheduleWindow
		err    error
	)
	if strings.TrimSpace(req.Descriptor) != "" {
		d, window, err = ParseDescriptor(req.Descriptor)
	} else {
		d, err = descriptorFromFields(req)
	}
	if err != nil {
		return CreateResult{}, err
	}

	if window == nil && (strings.TrimSpace(req.StartDate) != "" || strings.TrimSpace(req.StartTime) != "") {
		resolved, err := s.schedules.Resolve(req.StartDate, req.StartTime, req.Duration)
		if err != nil {
			return CreateResult{}, err
		}
		window = &resolved
	}
	if window != nil {
		if err := s.cfg.JoinPolicy.Check(*window, s.now()); err != nil {
			return CreateResult{}, err
		}
	}

	url, err := s.BuildJoinURL(d, role, user)
	if err != nil {
		return CreateResult{}, err
	}
	return CreateResult{URL: url, Descriptor: &d, Window: window}, nil
}

func descriptorFromFields(req CreateRequest) (MeetingDescriptor, error) {
	d := MeetingDescriptor{
		MeetingID:         strings.TrimSpace(req.MeetingID),
		AttendeePassword:  strings.TrimSpace(req.AttendeePW),
		ModeratorPassword: strings.TrimSpace(req.ModeratorPW),
	}
	if d.Complete() {
		return d, nil
	}
	verr := &ValidationError{Reason: ErrMissingFields}
	if d.MeetingID == "" {
		verr.add("meetingID", "meeting id is required")
	}
	if d.AttendeePassword == "" {
		verr.add("attendeePW", "attendee password is required")
	}
	if d.ModeratorPassword == "" {
		verr.add("moderatorPW", "moderator password is required")
	}
	return MeetingDescriptor{}, verr
}

// CreateMeeting allocates a fresh descriptor and creates the room on the
// backend. With a window the room is kept open until shortly after its start
// and, when bounded, ends after its duration.
func (s *MeetingService) CreateMeeting(ctx context.Context, name string, window *ScheduleWindow) (MeetingDescriptor, error) {
	if !s.cfg.Enabled {
		return MeetingDescriptor{}, ErrDisabled
	}

	d, err := s.newDescriptor(name)
	if err != nil {
		return MeetingDescriptor{}, fmt.Errorf("%w: %w", ErrCreationFailed, err)
	}
	if err := s.create(ctx, d, window); err != nil {
		return MeetingDescriptor{}, err
	}
	return d, nil
}

// CreateAndJoin creates the room described by d, which is idempotent on the
// backend, then returns a join URL for user.
func (s *MeetingService) CreateAndJoin(ctx context.Context, d MeetingDescriptor, role Role, user ActingUser) (string, error) {
	if !s.cfg.Enabled {
		return "", ErrDisabled
	}
	if err := s.create(ctx, d, nil); err != nil {
		return "", err
	}
	return s.BuildJoinURL(d, role, user)
}

// BuildJoinURL signs a join URL that admits user with role. No backend call is made.
func (s *MeetingService) BuildJoinURL(d MeetingDescriptor, role Role, user ActingUser) (string, error) {
	if !s.cfg.Enabled {
		return "", ErrDisabled
	}
	if !d.Complete() {
		return "", newValidationError(ErrMissingFields, "meetingID", "meeting descriptor is incomplete")
	}
	q := bbb.NewQuery().
		Set("fullName", user.Name()).
		Set("meetingID", d.MeetingID).
		Set("userID", user.Username).
		Set("password", d.PasswordFor(role))
	return s.backend.JoinURL(q), nil
}

func (s *MeetingService) create(ctx context.Context, d MeetingDescriptor, window *ScheduleWindow) error {
	logger := s.loggerWith(ctx, "create", "meeting_id", d.MeetingID, "scheduled", window != nil)

	if _, err := s.backend.Create(ctx, s.createQuery(d, window)); err != nil {
		logger.ErrorContext(ctx, "backend create failed", "error", err, "error_kind", ErrorKind(err))
		return fmt.Errorf("%w: %w", ErrCreationFailed, err)
	}
	logger.InfoContext(ctx, "meeting created")
	return nil
}

func (s *MeetingService) createQuery(d MeetingDescriptor, window *ScheduleWindow) *bbb.Query {
	name := d.DisplayName
	if name == "" {
		name = s.meetingName("")
	}
	q := bbb.NewQuery().
		Set("name", name).
		Set("meetingID", d.MeetingID).
		Set("attendeePW", d.AttendeePassword).
		Set("moderatorPW", d.ModeratorPassword)
	if s.cfg.LogoutURL != "" {
		q.Set("logoutURL", s.cfg.LogoutURL)
	}
	if s.cfg.Welcome != "" {
		q.Set("welcome", s.cfg.Welcome)
	}
	if window == nil {
		return q
	}

	// Duration 0 tells the backend the meeting has no end.
	q.SetInt("duration", window.DurationMinutes).
		SetInt("meetingExpireIfNoUserJoinedInMinutes", window.ExpireIfNoJoinMinutes).
		SetBool("endWhenNoModerator", false).
		SetInt("meetingExpireWhenLastUserLeftInMinutes", 0).
		SetInt("userInactivityInspectTimerInMinutes", 0)
	return q
}

func (s *MeetingService) newDescriptor(name string) (MeetingDescriptor, error) {
	suffix, err := s.randomHex(meetingIDBytes)
	if err != nil {
		return MeetingDescriptor{}, err
	}
	attendeePW, err := s.randomHex(passwordBytes)
	if err != nil {
		return MeetingDescriptor{}, err
	}
	moderatorPW, err := s.randomHex(passwordBytes)
	if err != nil {
		return MeetingDescriptor{}, err
	}
	return MeetingDescriptor{
		MeetingID:         fmt.Sprintf("%s-%s-%d", s.cfg.MeetingIDPrefix, suffix, s.now().Unix()),
		AttendeePassword:  attendeePW,
		ModeratorPassword: moderatorPW,
		DisplayName:       s.meetingName(name),
	}, nil
}

func (s *MeetingService) meetingName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(s.cfg.DefaultMeetingName)
	}
	if name == "" {
		name = "Meeting"
	}
	if utf8.RuneCountInString(name) > maxMeetingNameRunes {
		name = strings.TrimSpace(string([]rune(name)[:maxMeetingNameRunes]))
	}
	return name
}
