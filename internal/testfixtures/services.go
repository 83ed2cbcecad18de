package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/meeting-gateway/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// MeetingServiceDeps captures dependencies for constructing a meeting service.
type MeetingServiceDeps struct {
	Backend        application.ConferenceBackend
	ModeratorGroup string
	Schedule       application.ScheduleConfig
	Config         application.MeetingConfig
	Logger         *slog.Logger
}

// NewMeetingService builds a meeting service whose clock and random hex come
// from the factory.
func (f *ServiceFactory) NewMeetingService(deps MeetingServiceDeps) *application.MeetingService {
	now := f.Clock.NowFunc()
	return application.NewMeetingServiceWithLogger(
		deps.Backend,
		application.NewRoleResolver(deps.ModeratorGroup),
		application.NewScheduleValidator(deps.Schedule, now),
		deps.Config,
		f.IDGenerator.Hex,
		now,
		deps.Logger,
	)
}

// StatusServiceDeps captures dependencies for constructing a status service.
type StatusServiceDeps struct {
	Backend application.MeetingInfoSource
	Users   application.UserDirectory
	Config  application.StatusConfig
	Logger  *slog.Logger
}

// NewStatusService builds a status service using the factory clock.
func (f *ServiceFactory) NewStatusService(deps StatusServiceDeps) *application.StatusService {
	return application.NewStatusServiceWithLogger(
		deps.Backend,
		deps.Users,
		deps.Config,
		f.Clock.NowFunc(),
		deps.Logger,
	)
}

// AuthServiceDeps captures dependencies for constructing an auth service.
type AuthServiceDeps struct {
	Credentials    application.CredentialStore
	Sessions       application.SessionRepository
	PasswordVerify application.PasswordVerifier
	TokenGenerator func() string
	SessionTTL     time.Duration
	Logger         *slog.Logger
}

// NewAuthService builds an auth service using the supplied dependencies.
func (f *ServiceFactory) NewAuthService(deps AuthServiceDeps) *application.AuthService {
	token := deps.TokenGenerator
	if token == nil {
		token = f.IDGenerator.NextFunc()
	}
	return application.NewAuthServiceWithLogger(
		deps.Credentials,
		deps.Sessions,
		deps.PasswordVerify,
		token,
		f.Clock.NowFunc(),
		deps.SessionTTL,
		deps.Logger,
	)
}
