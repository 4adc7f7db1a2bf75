package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"golang.org/x/sync/errgroup"

	"edunexus/internal/app"
	"edunexus/internal/config"
	"edunexus/internal/ratelimit"
	"edunexus/internal/server"
	platformsync "edunexus/internal/sync"
	"edunexus/internal/util"
	"edunexus/pkg/ai"
	"edunexus/pkg/domain"
	"edunexus/pkg/storage"
	"edunexus/pkg/store"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	dataStore, err := buildStore(cfg)
	if err != nil {
		fatal("failed to init store", err)
	}
	sessions, err := buildSessions(cfg, dataStore)
	if err != nil {
		fatal("failed to init sessions", err)
	}

	appCfg := app.Config{
		Store:                 dataStore,
		Sessions:              sessions,
		HistoryLimit:          cfg.HistoryLimit,
		MessageLimit:          cfg.MessagePageSize,
		AttachmentInlineLimit: cfg.AttachmentInlineLimit,
	}
	if cfg.GeminiAPIKey != "" {
		gemini, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.ChatModel, cfg.DocumentModel)
		if err != nil {
			fatal("failed to init gemini client", err)
		}
		appCfg.Generator = gemini
		appCfg.DocReader = gemini
	} else {
		slog.Warn("no Gemini API key configured, tutor replies are disabled")
	}
	if cfg.MinioEndpoint != "" {
		objects, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			fatal("failed to init object storage", err)
		}
		appCfg.Objects = objects
	}
	appCore := app.New(appCfg)

	serverCfg := server.Config{
		App:                 appCore,
		SettingsPollSeconds: cfg.SettingsPollSeconds,
		MessagePollSeconds:  cfg.MessagePollSeconds,
	}
	if cfg.RedisAddr != "" {
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr, cfg.RedisPassword, "edunexus:ratelimit:auth",
			cfg.AuthRateLimit, time.Duration(cfg.AuthRateWindowSeconds)*time.Second,
		)
		if err != nil {
			fatal("failed to init rate limiter", err)
		}
		serverCfg.AuthLimiter = limiter
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.New(serverCfg).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		err := settingsWatcher(appCore, time.Duration(cfg.SettingsPollSeconds)*time.Second).Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

// settingsWatcher mirrors the clients' settings polling on the server:
// it surfaces admin toggles in the logs as they change.
func settingsWatcher(appCore *app.App, interval time.Duration) *platformsync.Poller {
	var last domain.SystemSettings
	var seen bool
	return platformsync.New("settings", interval, func(context.Context) error {
		settings, err := appCore.Settings()
		if err != nil {
			return err
		}
		if seen && settings.Version == last.Version {
			return nil
		}
		if seen {
			slog.Info("settings changed",
				"version", settings.Version,
				"maintenance", settings.MaintenanceMode,
				"chat", settings.EnableChat,
				"ai_teacher", settings.EnableAITeacher,
				"announcement", settings.Announcement,
			)
		}
		last, seen = settings, true
		return nil
	})
}

func buildStore(cfg config.FileConfig) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("no databaseURL configured, using in-memory store")
		return store.NewMemoryStore(), nil
	}
	return store.NewGormStore(cfg.DatabaseURL)
}

func buildSessions(cfg config.FileConfig, dataStore store.Store) (store.SessionStore, error) {
	ttl := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	switch cfg.SessionStrategy {
	case "redis":
		return store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, ttl), nil
	case "jwt":
		return store.NewJWTSessionStore(cfg.JWTSecret, ttl, store.JWTOptions{})
	default:
		if mem, ok := dataStore.(*store.MemoryStore); ok {
			return mem, nil
		}
		return store.NewMemoryStore(), nil
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
