package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "sessionid", cfg.Auth.CookieName)
	assert.Equal(t, 5, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow())
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL())
	assert.Equal(t, []string{"/", "lookup/"}, cfg.AccessLog.ProtectedPaths)

	assert.Error(t, cfg.Validate(), "session secret has no default")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MINIMALUSER_SERVER_ADDR", "127.0.0.1:9000")
	t.Setenv("MINIMALUSER_AUTH_SESSIONSECRET", "top-secret")
	t.Setenv("MINIMALUSER_RATELIMIT_REQUESTS", "10")
	t.Setenv("MINIMALUSER_RATELIMIT_BACKEND", "memory")
	t.Setenv("MINIMALUSER_ACCESSLOG_PROTECTEDPATHS", "/,/lookup/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "top-secret", cfg.Auth.SessionSecret)
	assert.Equal(t, 10, cfg.RateLimit.Requests)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, []string{"/", "/lookup/"}, cfg.AccessLog.ProtectedPaths)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		var cfg Config
		cfg.Auth.SessionSecret = "secret"
		cfg.Database.Driver = "sqlite"
		cfg.Database.Path = "data/test.db"
		cfg.RateLimit.Requests = 5
		cfg.RateLimit.WindowSeconds = 60
		cfg.RateLimit.Backend = "sql"
		return cfg
	}

	require.NoError(t, valid().Validate())

	data := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secret", func(c *Config) { c.Auth.SessionSecret = " " }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }},
		{"unknown backend", func(c *Config) { c.RateLimit.Backend = "redis" }},
		{"zero window", func(c *Config) { c.RateLimit.WindowSeconds = 0 }},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			cfg := valid()
			d.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
