// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Broker names accepted by CHAT_BROKER.
const (
	BrokerLocal = "local"
	BrokerRedis = "redis"
	BrokerNATS  = "nats"
)

// Config holds server configuration.
type Config struct {
	Env      string
	HTTPAddr string

	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	DBAutoMigrate bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Broker  string
	NATSURL string

	JWTSecret string
	JWTIssuer string

	AllowedOrigins []string
	RequestTimeout time.Duration
	Locale         string

	RateLimitMessages int
	RateLimitWindow   time.Duration
}

// LoadDotEnv loads .env.local and then .env. Variables already present in the
// environment are not overwritten. Returns the files actually loaded.
func LoadDotEnv() []string {
	var loaded []string
	for _, f := range []string{".env.local", ".env"} {
		if _, err := os.Stat(f); err == nil {
			loaded = append(loaded, f)
		}
	}
	if len(loaded) > 0 {
		_ = godotenv.Load(loaded...)
	}
	return loaded
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	cfg := Config{
		Env:            getEnv("APP_ENV", "dev"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "user"),
		DBPassword:     getEnv("DB_PASSWORD", "password"),
		DBName:         getEnv("DB_NAME", "marketchat"),
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		Broker:         strings.ToLower(getEnv("CHAT_BROKER", BrokerLocal)),
		NATSURL:        getEnv("NATS_URL", "nats://localhost:4222"),
		JWTSecret:      strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTIssuer:      getEnv("JWT_ISSUER", "marketchat"),
		AllowedOrigins: splitAndTrim(getEnv("ALLOWED_ORIGINS", "*")),
		Locale:         getEnv("CHAT_LOCALE", "ko"),
	}

	var err error
	if cfg.DBAutoMigrate, err = parseBool("DB_AUTO_MIGRATE", true); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = parseInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitMessages, err = parseInt("RATE_LIMIT_MESSAGES", 20); err != nil {
		return Config{}, err
	}
	if cfg.RequestTimeout, err = parseDuration("REQUEST_TIMEOUT", "5s"); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitWindow, err = parseDuration("RATE_LIMIT_WINDOW", "10s"); err != nil {
		return Config{}, err
	}

	switch cfg.Broker {
	case BrokerLocal, BrokerRedis, BrokerNATS:
	default:
		return Config{}, fmt.Errorf("CHAT_BROKER must be one of local, redis, nats: got %q", cfg.Broker)
	}

	if cfg.JWTSecret == "" {
		if !cfg.IsDev() {
			return Config{}, fmt.Errorf("JWT_SECRET is required")
		}
		cfg.JWTSecret = "dev-only-secret"
	}
	return cfg, nil
}

// IsDev reports whether the process runs in a local environment.
func (c Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "local"
}

// DSN returns a key/value Postgres connection string understood by both pgx
// and lib/pq.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, raw, err)
	}
	return v, nil
}

func parseBool(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: invalid bool %q: %w", key, raw, err)
	}
	return v, nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
