package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pennyme/freestuff/internal/config"
	"github.com/pennyme/freestuff/internal/domain"
	"github.com/pennyme/freestuff/internal/httpserver"
	"github.com/pennyme/freestuff/internal/moderation"
	"github.com/pennyme/freestuff/internal/notify"
	"github.com/pennyme/freestuff/internal/photos"
	"github.com/pennyme/freestuff/internal/postgres"
)

const expirySweepInterval = time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := postgres.NewRepository(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("create repository: %w", err)
	}
	defer repo.Close()
	if err := repo.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	logger.Info("connected to database")

	mod, err := moderation.New(ctx, cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("connect moderation state: %w", err)
	}
	defer mod.Close()

	photoStore, err := newPhotoStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create photo store: %w", err)
	}
	comments, err := photos.NewCommentLog(cfg.CommentDir, cfg.DeletedDir)
	if err != nil {
		return fmt.Errorf("create comment log: %w", err)
	}

	var notifier domain.Notifier = notify.NopNotifier{}
	if cfg.SlackToken != "" {
		notifier = notify.NewSlackNotifier(cfg.SlackToken, cfg.SlackChannel, logger)
	}

	service := domain.NewBoardService(repo, photoStore, comments, notifier, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Sweep expired temporary postings into the archive in the background.
	go service.StartExpirySweeper(ctx, expirySweepInterval)

	server := httpserver.NewServer(cfg, service, mod, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started", "port", cfg.Port)

	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}

func newPhotoStore(ctx context.Context, cfg *config.Config) (domain.PhotoStore, error) {
	switch cfg.PhotoBackend {
	case "s3":
		return photos.NewS3(ctx, cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL)
	case "disk":
		return photos.NewDisk(cfg.PhotoDir, cfg.DeletedDir)
	default:
		return nil, fmt.Errorf("unknown photo backend %q", cfg.PhotoBackend)
	}
}
