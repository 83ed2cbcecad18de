package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures environment driven configuration values for the gateway.
type Config struct {
	HTTPPort   int           `env:"GATEWAY_HTTP_PORT" envDefault:"8080"`
	SQLiteDSN  string        `env:"GATEWAY_SQLITE_DSN" envDefault:"gateway.db"`
	SessionTTL time.Duration `env:"GATEWAY_SESSION_TTL" envDefault:"24h"`
	BaseURL    string        `env:"GATEWAY_BASE_URL"`
	SeedFile   string        `env:"GATEWAY_SEED_FILE"`
	LogLevel   string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFile    string        `env:"LOG_FILE"`

	BBB    BBBConfig
	Status StatusConfig
}

// BBBConfig holds the conferencing backend and meeting settings.
type BBBConfig struct {
	Enabled            bool          `env:"BBB_ENABLED" envDefault:"true"`
	Endpoint           string        `env:"BBB_ENDPOINT"`
	Secret             string        `env:"BBB_SECRET"`
	ChecksumAlgorithm  string        `env:"BBB_CHECKSUM_ALGORITHM" envDefault:"sha1"`
	Timeout            time.Duration `env:"BBB_TIMEOUT" envDefault:"5s"`
	ModeratorGroup     string        `env:"BBB_MODERATOR_GROUP"`
	MeetingIDPrefix    string        `env:"BBB_MEETING_ID_PREFIX" envDefault:"discourse"`
	DefaultMeetingName string        `env:"BBB_DEFAULT_MEETING_NAME"`
	Welcome            string        `env:"BBB_WELCOME"`
	DefaultDuration    int           `env:"BBB_DEFAULT_DURATION" envDefault:"60"`
	MaxDuration        int           `env:"BBB_MAX_DURATION" envDefault:"1440"`
	UnboundedDuration  bool          `env:"BBB_UNBOUNDED_DURATION" envDefault:"false"`
	JoinPolicy         string        `env:"BBB_JOIN_POLICY" envDefault:"strict"`
}

// StatusConfig holds participant status settings.
type StatusConfig struct {
	AvatarSize int           `env:"BBB_AVATAR_SIZE" envDefault:"25"`
	CacheTTL   time.Duration `env:"STATUS_CACHE_TTL" envDefault:"3s"`
}

// Load parses configuration values from the current process environment.
//
// Optional values fall back to defaults. Values that do not parse fail with a
// "parse env" error; required and out of range values are collected and
// reported together by variable name.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()

	var missing, invalid []string
	if cfg.SQLiteDSN == "" {
		missing = append(missing, "GATEWAY_SQLITE_DSN")
	}
	if cfg.BBB.Enabled {
		if cfg.BBB.Endpoint == "" {
			missing = append(missing, "BBB_ENDPOINT")
		}
		if cfg.BBB.Secret == "" {
			missing = append(missing, "BBB_SECRET")
		}
	}

	if cfg.HTTPPort <= 0 {
		invalid = append(invalid, "GATEWAY_HTTP_PORT")
	}
	if cfg.SessionTTL <= 0 {
		invalid = append(invalid, "GATEWAY_SESSION_TTL")
	}
	if cfg.BBB.Timeout <= 0 {
		invalid = append(invalid, "BBB_TIMEOUT")
	}
	switch cfg.BBB.ChecksumAlgorithm {
	case "sha1", "sha256", "sha384", "sha512":
	default:
		invalid = append(invalid, "BBB_CHECKSUM_ALGORITHM")
	}
	if cfg.BBB.DefaultDuration <= 0 || (cfg.BBB.MaxDuration > 0 && cfg.BBB.DefaultDuration > cfg.BBB.MaxDuration) {
		invalid = append(invalid, "BBB_DEFAULT_DURATION")
	}
	if cfg.BBB.MaxDuration <= 0 {
		invalid = append(invalid, "BBB_MAX_DURATION")
	}
	switch cfg.BBB.JoinPolicy {
	case "strict", "open":
	default:
		invalid = append(invalid, "BBB_JOIN_POLICY")
	}
	if cfg.Status.AvatarSize <= 0 {
		invalid = append(invalid, "BBB_AVATAR_SIZE")
	}
	if cfg.Status.CacheTTL < 0 {
		invalid = append(invalid, "STATUS_CACHE_TTL")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.SQLiteDSN = strings.TrimSpace(c.SQLiteDSN)
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.SeedFile = strings.TrimSpace(c.SeedFile)
	c.LogLevel = strings.TrimSpace(c.LogLevel)
	c.LogFile = strings.TrimSpace(c.LogFile)
	c.BBB.Endpoint = strings.TrimSpace(c.BBB.Endpoint)
	c.BBB.Secret = strings.TrimSpace(c.BBB.Secret)
	c.BBB.ChecksumAlgorithm = strings.ToLower(strings.TrimSpace(c.BBB.ChecksumAlgorithm))
	c.BBB.ModeratorGroup = strings.TrimSpace(c.BBB.ModeratorGroup)
	c.BBB.MeetingIDPrefix = strings.TrimSpace(c.BBB.MeetingIDPrefix)
	c.BBB.DefaultMeetingName = strings.TrimSpace(c.BBB.DefaultMeetingName)
	c.BBB.JoinPolicy = strings.ToLower(strings.TrimSpace(c.BBB.JoinPolicy))
}
