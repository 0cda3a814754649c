package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"

	"github.com/dskvich/sticker-pack-bot/pkg/auth"
	"github.com/dskvich/sticker-pack-bot/pkg/cache"
	"github.com/dskvich/sticker-pack-bot/pkg/cloudconvert"
	"github.com/dskvich/sticker-pack-bot/pkg/config"
	"github.com/dskvich/sticker-pack-bot/pkg/converter"
	"github.com/dskvich/sticker-pack-bot/pkg/logger"
	"github.com/dskvich/sticker-pack-bot/pkg/resilience"
	"github.com/dskvich/sticker-pack-bot/pkg/services"
	"github.com/dskvich/sticker-pack-bot/pkg/telegram"
	"github.com/dskvich/sticker-pack-bot/pkg/workers"
)

type runMode int

const (
	modeWebhook runMode = iota
	modePolling
)

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(os.Stderr, logger.DefaultOptions)))

	if err := newRootCmd().Execute(); err != nil {
		slog.Error("shutting down due to error", logger.Err(err))
		os.Exit(1)
	}
}

// bootstrap loads the configuration and replaces the default logger with the
// configured sinks.
func bootstrap(envFile string) (config.Config, io.Closer, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, nil, err
	}

	handler, closer, err := logger.NewSinks(logger.SinkOptions{
		Console:  os.Stderr,
		Dir:      cfg.LogLocation,
		LogError: cfg.LogErrors,
		LogDebug: cfg.LogDebug,
	})
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("setting up logging: %w", err)
	}
	slog.SetDefault(slog.New(handler))

	return cfg, closer, nil
}

func runMain(envFile string, mode runMode) error {
	cfg, closer, err := bootstrap(envFile)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	workerGroup, err := setupWorkers(ctx, cfg, mode)
	if err != nil {
		return err
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case s := <-sigCh:
			slog.Info("shutting down due to signal", "signal", s.String())
			cancelFn()
		case <-ctx.Done():
		}
	}()

	if err := workerGroup.Start(ctx); err != nil {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}

func newTelegramClient(cfg config.Config) (telegramClient, error) {
	client, err := telegram.NewClient(telegram.ClientConfig{
		Token:        cfg.TelegramBotToken,
		APIEndpoint:  cfg.TelegramAPIEndpoint,
		DownloadPath: cfg.DownloadPath,
		RateLimit: resilience.RateLimiterConfig{
			GlobalRPS:   cfg.TelegramGlobalRPS,
			GlobalBurst: resilience.DefaultRateLimiterConfig().GlobalBurst,
			KeyRPS:      cfg.TelegramChatRPS,
			KeyBurst:    resilience.DefaultRateLimiterConfig().KeyBurst,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating telegram client: %w", err)
	}
	return client, nil
}

// telegramClient is everything the process needs from the Telegram client.
type telegramClient interface {
	services.TelegramClient
	workers.UpdatesSource
	telegram.UpdateDecoder
	Username() string
	SetWebhook(ctx context.Context, link string) (string, error)
	DeleteWebhook(ctx context.Context) (string, error)
}

func setupWorkers(ctx context.Context, cfg config.Config, mode runMode) (workers.Group, error) {
	client, err := newTelegramClient(cfg)
	if err != nil {
		return nil, err
	}

	imageCache, err := cache.New(cfg.UploadPath)
	if err != nil {
		return nil, fmt.Errorf("creating image cache: %w", err)
	}

	imageConverter := newImageConverter(cfg)
	slog.Info("image converter selected", "converter", imageConverter, "cache_uploads", cfg.CacheUploads)

	stickerService := services.NewStickerService(
		client,
		imageConverter,
		imageCache,
		services.StickerOptions{
			BotUsername:       lo.Ternary(cfg.TelegramBotUsername != "", cfg.TelegramBotUsername, client.Username()),
			CacheUploads:      cfg.CacheUploads,
			PackExistsBackoff: cfg.PackExistsBackoff,
		},
	)

	handler := telegram.NewHandler(stickerService)
	authenticator := auth.NewAuthenticator(cfg.TelegramAuthorizedUserIDs)
	updates := make(chan tgbotapi.Update, cfg.UpdateQueueSize)

	var worker workers.Worker
	var workerGroup workers.Group

	if worker, err = workers.NewTelegramUpdateListener(updates, client, authenticator, handler); err == nil {
		workerGroup = append(workerGroup, worker)
	} else {
		return nil, err
	}

	switch mode {
	case modeWebhook:
		mux := telegram.NewWebhookMux(client, updates, telegram.WebhookConfig{
			Path:  cfg.WebhookPath(),
			RPS:   cfg.WebhookRPS,
			Burst: max(1, int(cfg.WebhookRPS)),
		})
		// The server is the only producer in this mode, the queue closes after it stops.
		closeQueue := func() { close(updates) }
		if worker, err = workers.NewWebhookServer(cfg.ListenAddr, mux, closeQueue); err == nil {
			workerGroup = append(workerGroup, worker)
		} else {
			return nil, err
		}
	case modePolling:
		// getUpdates is refused while a webhook is registered.
		if _, err := client.DeleteWebhook(ctx); err != nil {
			return nil, fmt.Errorf("removing webhook before polling: %w", err)
		}
		if worker, err = workers.NewTelegramPoller(client, cfg.UpdateTimeout, updates); err == nil {
			workerGroup = append(workerGroup, worker)
		} else {
			return nil, err
		}
	}

	return workerGroup, nil
}

func newImageConverter(cfg config.Config) services.ImageConverter {
	if !cfg.CloudConvert {
		return converter.NewLocal()
	}

	breakerCfg := resilience.DefaultBreakerConfig("cloudconvert")
	breakerCfg.Threshold = cfg.CCBreakerThreshold
	breakerCfg.Timeout = cfg.CCBreakerTimeout

	return converter.NewRemote(cloudconvert.NewClient(cfg.CCAPIKey), cfg.CCAPIKey, breakerCfg)
}
