package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	goAuthz "github.com/MrEthical07/goAuthz"
)

// settings is the process configuration read from the environment.
type settings struct {
	SecretKey           string
	Algorithm           string
	AccessTTL           time.Duration
	RefreshTTL          time.Duration
	RedisHost           string
	RedisPort           int
	RedisDB             int
	RedisPassword       string
	DatabaseDriver      string
	DatabaseURL         string
	HTTPAddr            string
	ShutdownTimeout     time.Duration
	FirstSuperuser      string
	FirstSuperuserEmail string
	FirstSuperuserPass  string
	LogLevel            slog.Level
	LogFormat           string
	ProductionMode      bool
	MetricsEnabled      bool
	AuditLog            bool
}

func loadSettings() (*settings, error) {
	s := &settings{}
	var err error

	s.SecretKey = os.Getenv("SECRET_KEY")
	if s.SecretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY: required")
	}
	s.Algorithm = strings.ToLower(getEnvDefault("ALGORITHM", "HS256"))

	minutes, err := getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	if err != nil {
		return nil, fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES: %w", err)
	}
	s.AccessTTL = time.Duration(minutes) * time.Minute

	days, err := getEnvInt("REFRESH_TOKEN_EXPIRE_DAYS", 7)
	if err != nil {
		return nil, fmt.Errorf("REFRESH_TOKEN_EXPIRE_DAYS: %w", err)
	}
	s.RefreshTTL = time.Duration(days) * 24 * time.Hour

	s.RedisHost = getEnvDefault("REDIS_HOST", "localhost")
	if s.RedisPort, err = getEnvInt("REDIS_PORT", 6379); err != nil {
		return nil, fmt.Errorf("REDIS_PORT: %w", err)
	}
	if s.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}
	s.RedisPassword = os.Getenv("REDIS_PASSWORD")

	s.DatabaseDriver = strings.ToLower(getEnvDefault("DATABASE_DRIVER", "memory"))
	s.DatabaseURL = os.Getenv("DATABASE_URL")
	switch s.DatabaseDriver {
	case "memory":
	case "postgres", "sqlite":
		if s.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL: required for driver %q", s.DatabaseDriver)
		}
	default:
		return nil, fmt.Errorf("DATABASE_DRIVER: unknown driver %q, expected memory, postgres or sqlite", s.DatabaseDriver)
	}

	s.HTTPAddr = getEnvDefault("HTTP_ADDR", ":8000")
	if s.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return nil, fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
	}

	s.FirstSuperuser = os.Getenv("FIRST_SUPERUSER")
	s.FirstSuperuserEmail = os.Getenv("FIRST_SUPERUSER_EMAIL")
	s.FirstSuperuserPass = os.Getenv("FIRST_SUPERUSER_PASSWORD")
	if s.FirstSuperuserEmail == "" && strings.Contains(s.FirstSuperuser, "@") {
		s.FirstSuperuserEmail = s.FirstSuperuser
	}

	if s.LogLevel, err = parseLogLevel(getEnvDefault("LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	s.LogFormat = getEnvDefault("LOG_FORMAT", "json")
	if s.LogFormat != "json" && s.LogFormat != "text" {
		return nil, fmt.Errorf("LOG_FORMAT: unknown format %q, expected json or text", s.LogFormat)
	}

	if s.ProductionMode, err = getEnvBool("PRODUCTION_MODE", false); err != nil {
		return nil, fmt.Errorf("PRODUCTION_MODE: %w", err)
	}
	if s.MetricsEnabled, err = getEnvBool("METRICS_ENABLED", true); err != nil {
		return nil, fmt.Errorf("METRICS_ENABLED: %w", err)
	}
	if s.AuditLog, err = getEnvBool("AUDIT_LOG", false); err != nil {
		return nil, fmt.Errorf("AUDIT_LOG: %w", err)
	}

	return s, nil
}

// engineConfig maps settings onto the library configuration.
func (s *settings) engineConfig() goAuthz.Config {
	cfg := goAuthz.DefaultConfig()
	cfg.JWT.SigningMethod = s.Algorithm
	cfg.JWT.PrivateKey = []byte(s.SecretKey)
	cfg.JWT.AccessTTL = s.AccessTTL
	cfg.JWT.RefreshTTL = s.RefreshTTL
	cfg.Security.ProductionMode = s.ProductionMode
	cfg.Metrics.Enabled = s.MetricsEnabled
	cfg.Audit.Enabled = s.AuditLog
	return cfg
}

func (s *settings) redisOptions() *redis.Options {
	return &redis.Options{
		Addr:     net.JoinHostPort(s.RedisHost, strconv.Itoa(s.RedisPort)),
		Password: s.RedisPassword,
		DB:       s.RedisDB,
	}
}

func (s *settings) superuserInput() (goAuthz.RegisterInput, error) {
	if s.FirstSuperuser == "" || s.FirstSuperuserPass == "" {
		return goAuthz.RegisterInput{}, fmt.Errorf("FIRST_SUPERUSER and FIRST_SUPERUSER_PASSWORD are required")
	}
	username := s.FirstSuperuser
	if at := strings.IndexByte(username, '@'); at > 0 {
		username = username[:at]
	}
	return goAuthz.RegisterInput{
		Username: username,
		Email:    s.FirstSuperuserEmail,
		Password: s.FirstSuperuserPass,
		FullName: "Superuser",
	}, nil
}

func (s *settings) logger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: s.LogLevel}
	var handler slog.Handler
	if s.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid boolean %q", v)
	}
	return b, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level %q", level)
	}
}
