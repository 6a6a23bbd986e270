package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/webapp-auth/backend/internal/config"
	"github.com/webapp-auth/backend/internal/db"
	"github.com/webapp-auth/backend/internal/handler"
	"github.com/webapp-auth/backend/internal/observability"
	"github.com/webapp-auth/backend/internal/service"
)

const sessionPurgeInterval = time.Hour

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("Failed to read .env")
	}

	cfg := config.Load()
	closeLog := setupLogging(cfg)
	defer closeLog()

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := db.NewSQLite(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close database")
		}
	}()

	authService, err := service.NewAuthService(store, cfg.Auth)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to configure authentication")
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.EnsureSchema(startupCtx); err != nil {
		cancel()
		logrus.WithError(err).Fatal("Failed to provision database")
	}
	if err := authService.EnsureAdmin(startupCtx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, cfg.Auth.AdminEmail); err != nil {
		cancel()
		logrus.WithError(err).Fatal("Failed to seed admin account")
	}
	cancel()

	metrics := observability.NewMetrics()
	router := handler.NewRouter(handler.RouterDeps{
		Auth:    authService,
		Users:   service.NewUserService(store),
		Store:   store,
		Metrics: metrics,
		CORS:    cfg.CORS,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go purgeSessions(ctx, authService, metrics)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithFields(logrus.Fields{
			"addr":     cfg.Server.Addr,
			"env":      cfg.AppEnv,
			"database": store.Path(),
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server shutdown failed")
	}
}

// setupLogging configures the global logrus logger and returns a func that
// closes the log file, if one was opened.
func setupLogging(cfg config.Config) func() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logrus.WithField("level", cfg.Log.Level).Warn("Unknown LOG_LEVEL, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Log.File == "" {
		return func() {}
	}

	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logrus.WithError(err).WithField("file", cfg.Log.File).Warn("Failed to open log file, logging to stderr only")
		return func() {}
	}
	logrus.SetOutput(io.MultiWriter(os.Stderr, f))
	return func() { _ = f.Close() }
}

func purgeSessions(ctx context.Context, authService *service.AuthService, metrics *observability.Metrics) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := authService.PurgeExpiredSessions(ctx)
			if err != nil {
				logrus.WithError(err).Warn("Failed to purge expired sessions")
				continue
			}
			if n > 0 {
				metrics.SessionsPurged.Add(float64(n))
				logrus.WithField("count", n).Info("Purged expired sessions")
			}
		}
	}
}
