package application

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultDurationMinutes applies when a request carries no usable duration.
	DefaultDurationMinutes = 60
	// DefaultMaxDurationMinutes caps requested durations at one day.
	DefaultMaxDurationMinutes = 1440
	// MaxWindowMinutes is the longest window any meeting may carry, whatever
	// the configured cap.
	MaxWindowMinutes = 366 * 24 * 60

	expiryMarginMinutes = 5
)

var startLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// ScheduleConfig tunes schedule validation.
type ScheduleConfig struct {
	DefaultDurationMinutes int
	// MaxDurationMinutes rejects longer requests. Zero or less, or anything
	// above MaxWindowMinutes, caps at MaxWindowMinutes.
	MaxDurationMinutes int
	// Unbounded drops durations entirely: every window is open-ended.
	Unbounded bool
}

// ScheduleValidator turns raw date, time and duration fields into a ScheduleWindow.
// All instants are interpreted in UTC.
type ScheduleValidator struct {
	cfg ScheduleConfig
	now func() time.Time
}

// NewScheduleValidator constructs a validator. A nil clock uses time.Now.
func NewScheduleValidator(cfg ScheduleConfig, now func() time.Time) *ScheduleValidator {
	if cfg.DefaultDurationMinutes <= 0 {
		cfg.DefaultDurationMinutes = DefaultDurationMinutes
	}
	if cfg.MaxDurationMinutes <= 0 || cfg.MaxDurationMinutes > MaxWindowMinutes {
		cfg.MaxDurationMinutes = MaxWindowMinutes
	}
	if now == nil {
		now = time.Now
	}
	return &ScheduleValidator{cfg: cfg, now: now}
}

// Validate checks a schedule for a meeting about to be created. Start dates
// before the current UTC calendar day are rejected; an earlier time on the
// current day is accepted.
func (v *ScheduleValidator) Validate(startDate, startTime, duration string) (ScheduleWindow, error) {
	window, err := v.Resolve(startDate, startTime, duration)
	if err != nil {
		return ScheduleWindow{}, err
	}

	now := v.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	startDay := time.Date(window.StartAt.Year(), window.StartAt.Month(), window.StartAt.Day(), 0, 0, 0, 0, time.UTC)
	if startDay.Before(today) {
		return ScheduleWindow{}, newValidationError(ErrPastDate, "startDate", "start date must not be in the past")
	}
	return window, nil
}

// Resolve parses the schedule of an existing meeting. Unlike Validate it
// accepts dates in the past, since the join gate decides what happens then.
func (v *ScheduleValidator) Resolve(startDate, startTime, duration string) (ScheduleWindow, error) {
	startDate = strings.TrimSpace(startDate)
	startTime = strings.TrimSpace(startTime)
	if startDate == "" || startTime == "" {
		verr := &ValidationError{Reason: ErrMissingFields}
		if startDate == "" {
			verr.add("startDate", "start date is required")
		}
		if startTime == "" {
			verr.add("startTime", "start time is required")
		}
		return ScheduleWindow{}, verr
	}

	startAt, err := parseStart(startDate, startTime)
	if err != nil {
		return ScheduleWindow{}, newValidationError(ErrInvalidDateTime, "startDate", err.Error())
	}

	minutes, err := v.resolveDuration(duration)
	if err != nil {
		return ScheduleWindow{}, err
	}

	window := ScheduleWindow{
		StartAt:               startAt,
		DurationMinutes:       minutes,
		ExpireIfNoJoinMinutes: expireIfNoJoin(startAt, v.now()),
	}
	if minutes > 0 {
		end := startAt.Add(time.Duration(minutes) * time.Minute)
		window.EndAt = &end
	}
	return window, nil
}

func parseStart(date, clock string) (time.Time, error) {
	value := date + " " + clock
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as YYYY-MM-DD HH:MM", value)
}

func (v *ScheduleValidator) resolveDuration(raw string) (int, error) {
	if v.cfg.Unbounded {
		return 0, nil
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || minutes <= 0 {
		return v.cfg.DefaultDurationMinutes, nil
	}
	if minutes > v.cfg.MaxDurationMinutes {
		return 0, newValidationError(ErrInvalidDuration, "duration",
			fmt.Sprintf("duration must not exceed %d minutes", v.cfg.MaxDurationMinutes))
	}
	return minutes, nil
}

// expireIfNoJoin keeps a room created ahead of time alive until a few minutes
// after its start.
func expireIfNoJoin(startAt, now time.Time) int {
	untilStart := math.Ceil(startAt.Sub(now).Seconds() / 60)
	minutes := int(untilStart) + expiryMarginMinutes
	if minutes < expiryMarginMinutes {
		return expiryMarginMinutes
	}
	return minutes
}

// JoinPolicy decides whether a scheduled meeting accepts joins at a given instant.
type JoinPolicy string

const (
	// JoinPolicyStrict accepts joins between start and end inclusive.
	JoinPolicyStrict JoinPolicy = "strict"
	// JoinPolicyOpen accepts joins any time after start.
	JoinPolicyOpen JoinPolicy = "open"
)

// ParseJoinPolicy normalizes a configured policy name. Empty selects strict.
func ParseJoinPolicy(raw string) (JoinPolicy, error) {
	switch policy := JoinPolicy(strings.ToLower(strings.TrimSpace(raw))); policy {
	case "":
		return JoinPolicyStrict, nil
	case JoinPolicyStrict, JoinPolicyOpen:
		return policy, nil
	default:
		return "", fmt.Errorf("unknown join policy %q", raw)
	}
}

// Check returns nil when window accepts joins at now, otherwise a *WindowError.
func (p JoinPolicy) Check(window ScheduleWindow, now time.Time) error {
	if now.Before(window.StartAt) {
		return &WindowError{Err: ErrMeetingNotStarted, Boundary: window.StartAt}
	}
	if p != JoinPolicyOpen && window.EndAt != nil && now.After(*window.EndAt) {
		return &WindowError{Err: ErrMeetingEnded, Boundary: *window.EndAt}
	}
	return nil
}
