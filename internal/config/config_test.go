package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CHAT_BROKER", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, BrokerLocal, cfg.Broker)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.True(t, cfg.DBAutoMigrate)
	assert.NotEmpty(t, cfg.JWTSecret, "dev gets a placeholder secret")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CHAT_BROKER", "NATS")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("RATE_LIMIT_MESSAGES", "3")
	t.Setenv("RATE_LIMIT_WINDOW", "1m")
	t.Setenv("DB_AUTO_MIGRATE", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BrokerNATS, cfg.Broker)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 3, cfg.RateLimitMessages)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.False(t, cfg.DBAutoMigrate)
	assert.False(t, cfg.IsDev())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "x")
	t.Setenv("CHAT_BROKER", "kafka")
	_, err = Load()
	assert.ErrorContains(t, err, "CHAT_BROKER")

	t.Setenv("CHAT_BROKER", "redis")
	t.Setenv("REQUEST_TIMEOUT", "soon")
	_, err = Load()
	assert.ErrorContains(t, err, "REQUEST_TIMEOUT")
}

func TestDSN(t *testing.T) {
	cfg := Config{DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "chat", DBSSLMode: "disable"}
	assert.Equal(t, "host=db user=u password=p dbname=chat port=5432 sslmode=disable", cfg.DSN())
}
