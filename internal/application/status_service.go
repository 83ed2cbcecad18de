package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/example/meeting-gateway/internal/bbb"
	"github.com/example/meeting-gateway/internal/metrics"
)

const (
	defaultAvatarSize   = 25
	defaultFetchTimeout = 5 * time.Second
	avatarSizeToken     = "{size}"
)

// MeetingInfoSource fetches live meeting details from the backend.
type MeetingInfoSource interface {
	GetMeetingInfo(ctx context.Context, meetingID string) (bbb.MeetingInfo, error)
}

// UserDirectory resolves backend attendee ids, which are local usernames.
type UserDirectory interface {
	ListUsersByUsernames(ctx context.Context, usernames []string) ([]User, error)
}

// StatusConfig tunes the status aggregator.
type StatusConfig struct {
	Enabled    bool
	AvatarSize int
	// CacheTTL shares results between polls of the same meeting. Zero disables caching.
	CacheTTL time.Duration
	// FetchTimeout bounds a backend poll, which outlives the caller that started it.
	FetchTimeout time.Duration
}

// StatusService reports who is in a live meeting.
type StatusService struct {
	backend MeetingInfoSource
	users   UserDirectory
	cfg     StatusConfig
	cache   *statusCache
	group   singleflight.Group
	logger  *slog.Logger
}

// NewStatusService constructs a StatusService with the provided dependencies.
func NewStatusService(backend MeetingInfoSource, users UserDirectory, cfg StatusConfig, now func() time.Time) *StatusService {
	return NewStatusServiceWithLogger(backend, users, cfg, now, nil)
}

// NewStatusServiceWithLogger constructs a StatusService with a specified logger.
func NewStatusServiceWithLogger(backend MeetingInfoSource, users UserDirectory, cfg StatusConfig, now func() time.Time, logger *slog.Logger) *StatusService {
	if cfg.AvatarSize <= 0 {
		cfg.AvatarSize = defaultAvatarSize
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	return &StatusService{
		backend: backend,
		users:   users,
		cfg:     cfg,
		cache:   newStatusCache(cfg.CacheTTL, 0, now),
		logger:  defaultLogger(logger),
	}
}

func (s *StatusService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "StatusService", operation, attrs...)
}

// GetStatus returns the participant count and the local users present in the
// meeting. A meeting the backend does not report yields an inactive Status and
// no error; ErrStatusUnavailable means the backend could not be asked.
func (s *StatusService) GetStatus(ctx context.Context, meetingID string) (Status, error) {
	if s == nil {
		return Status{}, fmt.Errorf("StatusService is nil")
	}
	if !s.cfg.Enabled {
		return Status{}, ErrDisabled
	}
	meetingID = strings.TrimSpace(meetingID)
	if meetingID == "" {
		return Status{}, newValidationError(ErrMissingFields, "meetingID", "meeting id is required")
	}

	if status, ok := s.cache.Get(meetingID); ok {
		metrics.RecordStatusLookup("cache")
		return status, nil
	}

	// Pollers of the same meeting share one fetch. It runs detached from any
	// single caller so a disconnect only fails the request that went away.
	ch := s.group.DoChan(meetingID, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FetchTimeout)
		defer cancel()
		status, err := s.fetch(fetchCtx, meetingID)
		if err != nil {
			return Status{}, err
		}
		s.cache.Store(meetingID, status)
		return status, nil
	})

	select {
	case <-ctx.Done():
		return Status{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			metrics.RecordStatusLookup("shared")
		} else {
			metrics.RecordStatusLookup("backend")
		}
		if res.Err != nil {
			return Status{}, res.Err
		}
		return cloneStatus(res.Val.(Status)), nil
	}
}

func (s *StatusService) fetch(ctx context.Context, meetingID string) (Status, error) {
	logger := s.loggerWith(ctx, "GetStatus", "meeting_id", meetingID)

	info, err := s.backend.GetMeetingInfo(ctx, meetingID)
	if err != nil {
		var backendErr *bbb.BackendError
		if errors.As(err, &backendErr) {
			logger.DebugContext(ctx, "meeting not reported by backend", "message_key", backendErr.MessageKey)
			return Status{}, nil
		}
		logger.WarnContext(ctx, "status poll failed", "error", err, "error_kind", ErrorKind(err))
		return Status{}, fmt.Errorf("%w: %w", ErrStatusUnavailable, err)
	}

	status := Status{Active: true, ParticipantCount: info.ParticipantCount}
	ids := info.UserIDs()
	if len(ids) == 0 {
		return status, nil
	}

	users, err := s.users.ListUsersByUsernames(ctx, ids)
	if err != nil {
		logger.ErrorContext(ctx, "attendee lookup failed", "error", err, "error_kind", ErrorKind(err))
		return Status{}, fmt.Errorf("%w: %w", ErrStatusUnavailable, err)
	}
	byUsername := make(map[string]User, len(users))
	for _, u := range users {
		byUsername[u.Username] = u
	}

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		u, ok := byUsername[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		status.Attendees = append(status.Attendees, AttendeeSummary{
			DisplayName: ActingUser{Username: u.Username, DisplayName: u.DisplayName}.Name(),
			AvatarURL:   strings.ReplaceAll(u.AvatarTemplate, avatarSizeToken, strconv.Itoa(s.cfg.AvatarSize)),
		})
	}
	logger.DebugContext(ctx, "status resolved", "participants", status.ParticipantCount, "mapped", len(status.Attendees))
	return status, nil
}
