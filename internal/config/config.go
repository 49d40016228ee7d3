package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Cert         string
	Organization string
	Application  string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// SessionConfig controls client session lifetime and the station code format
type SessionConfig struct {
	IdleTimeout     time.Duration
	TokenTTL        time.Duration
	StationPoolSize int
	CodeLength      int
}

type RateLimitConfig struct {
	LoginPerMinute int
	LoginBurst     int
}

type Config struct {
	Environment string
	Port        string
	LogLevel    slog.Level
	Release     string

	DatabaseURL string
	RedisURL    string

	CorsAllowedOrigin string
	SentryDSN         string

	Casdoor   CasdoorConfig
	Kafka     KafkaConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
}

// LoadConfig reads .env (when present) and the process environment
func LoadConfig() (*Config, error) {
	// .env is optional, real deployments inject the environment directly
	_ = godotenv.Load()

	cfg := &Config{
		Environment:       getEnv("ENVIRONMENT", "development"),
		Port:              getEnv("PORT", "8080"),
		LogLevel:          parseLogLevel(getEnv("LOG_LEVEL", "info")),
		Release:           getEnv("RELEASE", "dev"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		CorsAllowedOrigin: getEnv("CORS_ALLOWED_ORIGIN", "*"),
		SentryDSN:         os.Getenv("SENTRY_DSN"),
		Casdoor: CasdoorConfig{
			Endpoint:     os.Getenv("CASDOOR_ENDPOINT"),
			ClientID:     os.Getenv("CASDOOR_CLIENT_ID"),
			ClientSecret: os.Getenv("CASDOOR_CLIENT_SECRET"),
			Cert:         os.Getenv("CASDOOR_CERT"),
			Organization: getEnv("CASDOOR_ORGANIZATION", "built-in"),
			Application:  getEnv("CASDOOR_APPLICATION", "clinic"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC", "clinic.events"),
		},
	}

	var err error
	if cfg.Session.IdleTimeout, err = getDuration("SESSION_IDLE_TIMEOUT", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Session.TokenTTL, err = getDuration("SESSION_TOKEN_TTL", 12*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Session.StationPoolSize, err = getInt("STATION_POOL_SIZE", 10); err != nil {
		return nil, err
	}
	if cfg.Session.CodeLength, err = getInt("SESSION_CODE_LENGTH", 6); err != nil {
		return nil, err
	}
	if cfg.RateLimit.LoginPerMinute, err = getInt("LOGIN_RATE_PER_MINUTE", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimit.LoginBurst, err = getInt("LOGIN_RATE_BURST", 5); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and value ranges
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}
	if c.Casdoor.Endpoint == "" {
		missing = append(missing, "CASDOOR_ENDPOINT")
	}
	if c.Casdoor.ClientID == "" {
		missing = append(missing, "CASDOOR_CLIENT_ID")
	}
	if c.Casdoor.ClientSecret == "" {
		missing = append(missing, "CASDOOR_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive")
	}
	if c.Session.StationPoolSize < 1 {
		return fmt.Errorf("STATION_POOL_SIZE must be at least 1")
	}
	if c.Session.CodeLength < 4 || c.Session.CodeLength > 16 {
		return fmt.Errorf("SESSION_CODE_LENGTH must be between 4 and 16")
	}
	if c.RateLimit.LoginPerMinute < 1 || c.RateLimit.LoginBurst < 1 {
		return fmt.Errorf("login rate limit values must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
