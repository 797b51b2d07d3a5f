package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"github.com/pennyme/freestuff/internal/chatstream"
	"github.com/pennyme/freestuff/internal/config"
	"github.com/pennyme/freestuff/internal/consolidate"
	"github.com/pennyme/freestuff/internal/domain"
	"github.com/pennyme/freestuff/internal/extract"
	"github.com/pennyme/freestuff/internal/geo"
	"github.com/pennyme/freestuff/internal/geocode"
	"github.com/pennyme/freestuff/internal/notify"
	"github.com/pennyme/freestuff/internal/photos"
	"github.com/pennyme/freestuff/internal/postgres"
)

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
	if cfg.StreamURL == "" {
		return fmt.Errorf("STREAM_URL is required")
	}
	if len(cfg.ChannelCategories) == 0 {
		return fmt.Errorf("STREAM_CHANNELS is required")
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

	table, err := geo.Load(cfg.StreetsPath, cfg.DistrictsPath)
	if err != nil {
		return fmt.Errorf("load geo tables: %w", err)
	}

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

	extractor := extract.New(table.Vocabulary())
	consolidator := consolidate.New(extractor, "Taken from "+cfg.ChannelLabel+" chat")
	geocoder := geocode.New(table, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
	media := chatstream.NewMediaClient(cfg.StreamURL, cfg.StreamToken)

	subscriber := chatstream.NewSubscriber(
		cfg.StreamURL, cfg.StreamToken,
		cfg.ChannelCategories,
		consolidator, geocoder, service, repo, media, logger,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	logger.Info("crawler started", "channels", len(cfg.ChannelCategories))

	if err := subscriber.Start(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("chat stream subscriber: %w", err)
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
