package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"headlines/internal/aggregator"
	"headlines/internal/bot"
	"headlines/internal/config"
	"headlines/internal/fetcher"
	"headlines/internal/httpapi"
	"headlines/internal/pipeline"
	"headlines/internal/scheduler"
	"headlines/internal/storage"
	"headlines/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		log.Error("load sources", "path", cfg.SourcesFile, "error", err)
		os.Exit(1)
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	db, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st := store.New(db, log)
	// Load logs its own failures and leaves the store empty.
	_ = st.Load(ctx)

	svc := pipeline.New(st, aggregator.New(log, newAdapters(cfg, sources)...), log)

	sched := scheduler.New(svc, log)
	sched.SetTickInterval(cfg.RefreshTick)
	go sched.Run(ctx)

	if cfg.TelegramBotToken != "" {
		b, err := bot.New(cfg.TelegramBotToken, svc, cfg, log)
		if err != nil {
			log.Error("create bot", "error", err)
			os.Exit(1)
		}
		go b.Run(ctx)
		log.Info("telegram bot started")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewHandler(httpapi.Deps{Service: svc, Log: log}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error("http server", "error", err)
		}
		cancel()
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown http server", "error", err)
	}

	log.Info("stopped")
}

func newAdapters(cfg *config.Config, sources config.Sources) []fetcher.Adapter {
	client := &http.Client{Timeout: 15 * time.Second}

	feeds := make([]fetcher.FeedSource, len(sources.Feeds))
	for i, f := range sources.Feeds {
		feeds[i] = fetcher.FeedSource{Name: f.Name, URL: f.URL}
	}

	return []fetcher.Adapter{
		fetcher.NewFeedAdapter(client, feeds),
		fetcher.NewAPIAdapter(client, fetcher.APIConfig{
			BaseURL:           sources.NewsAPI.BaseURL,
			APIKey:            cfg.NewsAPIKey,
			Topics:            sources.NewsAPI.Topics,
			RequestsPerMinute: sources.NewsAPI.RequestsPerMinute,
		}),
		fetcher.NewSocialAdapter(client, sources.Social.BaseURL, sources.Social.Subreddits),
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
