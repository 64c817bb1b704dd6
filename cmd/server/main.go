package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"minimal-user/internal/config"
	apphttp "minimal-user/internal/http"
	"minimal-user/internal/ratelimit"
	"minimal-user/internal/repository"
	"minimal-user/internal/repository/postgres"
	"minimal-user/internal/repository/sqlite"
	"minimal-user/internal/service"
	"minimal-user/internal/session"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, using %s", cfg.Log.Level, logger.GetLevel())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	userRepo, hitRepo, closeDB, err := openRepositories(cfg, logger)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer closeDB()

	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}

	var store ratelimit.Store
	switch cfg.RateLimit.Backend {
	case "memory":
		store = ratelimit.NewMemoryStore()
	default:
		if err := hitRepo.Init(ctx); err != nil {
			logger.Fatalf("init rate limit repository: %v", err)
		}
		store = hitRepo
	}

	userService := service.NewUserService(userRepo)
	sessions := session.NewManager(session.Config{
		Secret:     cfg.Auth.SessionSecret,
		TTL:        cfg.SessionTTL(),
		CookieName: cfg.Auth.CookieName,
		Secure:     cfg.Auth.SecureCookie,
	})
	limiter := ratelimit.New(store, cfg.RateLimit.Requests, cfg.RateLimitWindow())

	var janitor *ratelimit.Janitor
	if pruner, ok := store.(ratelimit.Pruner); ok {
		janitor = ratelimit.NewJanitor(pruner, ratelimit.JanitorConfig{
			Retention: cfg.RateLimitWindow(),
			Logger:    logger,
		})
		janitor.Start(ctx)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	handler := apphttp.NewHandler(userService, sessions, limiter, logger, cfg.AccessLog.ProtectedPaths)
	if err := handler.RegisterRoutes(router); err != nil {
		logger.Fatalf("register routes: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if janitor != nil {
		janitor.Shutdown()
	}

	logger.Info("bye")
}

func openRepositories(cfg config.Config, logger *logrus.Logger) (repository.UserRepository, repository.RateLimitRepository, func(), error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.Open(cfg.Database.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("unwrap postgres pool: %w", err)
		}
		logger.Info("using postgres database")
		return postgres.NewUserRepository(db), postgres.NewRateLimitRepository(db), closer(sqlDB, logger), nil
	default:
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Infof("using sqlite database %s", cfg.Database.Path)
		return sqlite.NewUserRepository(db), sqlite.NewRateLimitRepository(db), closer(db, logger), nil
	}
}

func closer(c io.Closer, logger *logrus.Logger) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.Warnf("close database: %v", err)
		}
	}
}
