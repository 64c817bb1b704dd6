package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "MINIMALUSER"

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Driver string
		Path   string
		DSN    string
	}
	Auth struct {
		SessionSecret     string
		SessionTTLMinutes int
		CookieName        string
		SecureCookie      bool
	}
	RateLimit struct {
		Requests      int
		WindowSeconds int
		Backend       string
	}
	AccessLog struct {
		ProtectedPaths []string
	}
	Log struct {
		Level string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	// existing environment variables win over .env entries
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/minimal-user.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("auth.sessionsecret", "")
	v.SetDefault("auth.sessionttlminutes", 24*60)
	v.SetDefault("auth.cookiename", "sessionid")
	v.SetDefault("auth.securecookie", false)
	v.SetDefault("ratelimit.requests", 5)
	v.SetDefault("ratelimit.windowseconds", 60)
	v.SetDefault("ratelimit.backend", "sql")
	v.SetDefault("accesslog.protectedpaths", []string{"/", "lookup/"})
	v.SetDefault("log.level", "info")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.SessionSecret) == "" {
		errs = append(errs, errors.New("auth session secret is required"))
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database path is required for sqlite"))
		}
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}
	switch c.RateLimit.Backend {
	case "sql", "memory":
	default:
		errs = append(errs, fmt.Errorf("unsupported rate limit backend %q", c.RateLimit.Backend))
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.WindowSeconds <= 0 {
		errs = append(errs, errors.New("rate limit requests and window must be positive"))
	}
	return errors.Join(errs...)
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.Auth.SessionTTLMinutes) * time.Minute
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSeconds) * time.Second
}
