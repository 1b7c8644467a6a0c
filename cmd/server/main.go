// Package main runs the team board HTTP server with the live roster feed and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/teamfaces/teamfaces/config"
	"github.com/teamfaces/teamfaces/internal/auth"
	"github.com/teamfaces/teamfaces/internal/emaillogs"
	"github.com/teamfaces/teamfaces/internal/onboarding"
	"github.com/teamfaces/teamfaces/internal/presence"
	"github.com/teamfaces/teamfaces/internal/realtime"
	"github.com/teamfaces/teamfaces/internal/server"
	"github.com/teamfaces/teamfaces/internal/team"
	"github.com/teamfaces/teamfaces/pkg/database"
	"github.com/teamfaces/teamfaces/pkg/queue"
	"github.com/teamfaces/teamfaces/pkg/redis"
	"github.com/teamfaces/teamfaces/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var uploader presence.Uploader = storage.Unavailable{}
	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		MediaBucket:     cfg.AWS.MediaBucket,
		PublicBaseURL:   cfg.AWS.PublicBaseURL,
	}, logger)
	if err != nil {
		logger.Warn("s3 disabled, photo and logo uploads will fail", zap.Error(err))
	} else {
		uploader = s3Client
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	notifier := realtime.NewRedisNotifier(rdb.Client, logger)

	// Team
	teamRepo := team.NewRepository(team.NewPostgresStore(pool), notifier, team.Config{
		InviteTTL:  cfg.Team.InviteTTL(),
		CodeLength: cfg.Team.InviteCodeLen,
	}, logger)

	// Auth
	authService := auth.NewService(
		auth.NewPostgresUserStore(pool),
		auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours),
		auth.NewRedisDenylist(rdb.Client),
		auth.NewRedisResetTokens(rdb.Client),
		jobQueue,
		auth.Config{ResetTTL: cfg.Auth.ResetTTL(), AppURL: cfg.Auth.AppURL},
		logger,
	).WithRoles(teamRepo)

	// Presence editing and onboarding
	editor := presence.NewEditor(teamRepo, authService, uploader, cfg.Team.MaxUploadBytes(), logger)

	hub := realtime.NewHub(logger)

	router := server.NewRouter(server.Deps{
		Team:          teamRepo,
		Auth:          authService,
		Editor:        editor,
		Onboarding:    onboarding.NewService(teamRepo, authService, editor, logger),
		Hub:           hub,
		EmailLogs:     emaillogs.NewRepository(pool),
		ActivityLimit: cfg.Team.ActivityLimit,
		CORSOrigins:   cfg.Server.CORSAllowedOrigins,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	hub.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
