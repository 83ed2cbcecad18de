package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/meeting-gateway/internal/application"
	"github.com/example/meeting-gateway/internal/bbb"
	"github.com/example/meeting-gateway/internal/config"
	httptransport "github.com/example/meeting-gateway/internal/http"
	"github.com/example/meeting-gateway/internal/logging"
	"github.com/example/meeting-gateway/internal/persistence/sqlite"
	"github.com/example/meeting-gateway/internal/persistence/sqlite/migration"
	"github.com/example/meeting-gateway/internal/seed"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		slog.Error("failed to configure logging", "error", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("gateway stopped with error", "error", err)
		stop()
		closer.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	gw, err := newGateway(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := gw.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           gw.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("meeting gateway listening", "addr", server.Addr, "bbb_enabled", cfg.BBB.Enabled)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// gateway is the fully wired process: storage plus the HTTP handler tree.
type gateway struct {
	storage *sqlite.Storage
	handler http.Handler
}

func (g *gateway) Close() error {
	return g.storage.Close()
}

// newGateway opens storage, applies the seed file and wires services into a
// router. httpClient overrides the client used for backend calls when set.
func newGateway(ctx context.Context, cfg config.Config, logger *slog.Logger, httpClient *http.Client) (*gateway, error) {
	storage, err := sqlite.Open(ctx, migration.DefaultSQLiteConfig(cfg.SQLiteDSN), logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	if err := applySeed(ctx, cfg.SeedFile, storage, logger); err != nil {
		storage.Close()
		return nil, err
	}

	now := time.Now
	tokenGenerator := func() string { return randomToken(32) }

	var (
		conference application.ConferenceBackend
		infoSource application.MeetingInfoSource
	)
	if cfg.BBB.Enabled {
		algorithm, err := bbb.ParseAlgorithm(cfg.BBB.ChecksumAlgorithm)
		if err != nil {
			storage.Close()
			return nil, err
		}
		client, err := bbb.NewClient(bbb.Config{
			Endpoint:  cfg.BBB.Endpoint,
			Secret:    cfg.BBB.Secret,
			Algorithm: algorithm,
			Timeout:   cfg.BBB.Timeout,
		}, httpClient, logger)
		if err != nil {
			storage.Close()
			return nil, fmt.Errorf("configure backend client: %w", err)
		}
		conference, infoSource = client, client
	}

	joinPolicy, err := application.ParseJoinPolicy(cfg.BBB.JoinPolicy)
	if err != nil {
		storage.Close()
		return nil, err
	}

	schedules := application.NewScheduleValidator(application.ScheduleConfig{
		DefaultDurationMinutes: cfg.BBB.DefaultDuration,
		MaxDurationMinutes:     cfg.BBB.MaxDuration,
		Unbounded:              cfg.BBB.UnboundedDuration,
	}, now)

	meetingService := application.NewMeetingServiceWithLogger(
		conference,
		application.NewRoleResolver(cfg.BBB.ModeratorGroup),
		schedules,
		application.MeetingConfig{
			Enabled:            cfg.BBB.Enabled,
			MeetingIDPrefix:    cfg.BBB.MeetingIDPrefix,
			DefaultMeetingName: cfg.BBB.DefaultMeetingName,
			Welcome:            cfg.BBB.Welcome,
			LogoutURL:          cfg.BaseURL,
			JoinPolicy:         joinPolicy,
		},
		application.RandomHex,
		now,
		logger,
	)
	statusService := application.NewStatusServiceWithLogger(
		infoSource,
		newUserDirectoryAdapter(storage.Users),
		application.StatusConfig{
			Enabled:      cfg.BBB.Enabled,
			AvatarSize:   cfg.Status.AvatarSize,
			CacheTTL:     cfg.Status.CacheTTL,
			FetchTimeout: cfg.BBB.Timeout,
		},
		now,
		logger,
	)
	authService := application.NewAuthServiceWithLogger(
		newCredentialStoreAdapter(storage.Users),
		newSessionRepositoryAdapter(storage.Sessions),
		application.VerifyPassword,
		tokenGenerator,
		now,
		cfg.SessionTTL,
		logger,
	)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:           httptransport.NewAuthHandler(authService, logger),
		Meetings:       httptransport.NewMeetingHandler(meetingService, statusService, logger),
		RequireSession: httptransport.RequireSession(authService, logger),
		Metrics:        promhttp.Handler(),
		Middleware:     []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	return &gateway{storage: storage, handler: router}, nil
}

func applySeed(ctx context.Context, path string, storage *sqlite.Storage, logger *slog.Logger) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	file, err := seed.Load(path)
	if err != nil {
		return err
	}
	created, err := seed.Applier{
		Users:  storage.Users,
		Hash:   application.HashPassword,
		NewID:  uuid.NewString,
		Now:    time.Now,
		Logger: logger,
	}.Apply(ctx, file)
	if err != nil {
		return fmt.Errorf("apply seed file: %w", err)
	}
	logger.Info("seed file applied", "path", path, "users_created", created, "users_total", len(file.Users))
	return nil
}

// randomToken returns 2n hex characters and panics when the entropy source fails.
func randomToken(n int) string {
	token, err := application.RandomHex(n)
	if err != nil {
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	return token
}
