package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"sgbus_bot/internal/alerts"
	"sgbus_bot/internal/arrivals"
	"sgbus_bot/internal/bot"
	"sgbus_bot/internal/config"
	"sgbus_bot/internal/datamall"
	"sgbus_bot/internal/dialogue"
	"sgbus_bot/internal/localtime"
	"sgbus_bot/internal/refdata"
	"sgbus_bot/internal/scheduler"
	"sgbus_bot/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	for _, dir := range []string{filepath.Dir(cfg.DatabasePath), cfg.DataDir} {
		if dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	directory, err := refdata.Load(cfg.DataDir)
	if err != nil {
		log.Error("load reference data", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	clock := localtime.New(nil, cfg.Location())
	lta := datamall.New(&http.Client{}, cfg.DataMallBaseURL, cfg.DataMallAccountKey, cfg.HTTPTimeout)
	refresher := refdata.NewRefresher(lta, directory, log)

	var alertSrc alerts.Source = alerts.NewDataMall(lta)
	if cfg.AlertFeedURL != "" {
		alertSrc = alerts.NewFeed(&http.Client{}, cfg.AlertFeedURL, cfg.HTTPTimeout)
	}

	arr := arrivals.New(lta, directory, clock)
	machine := dialogue.New(store, directory, arr, clock, log)

	b, err := bot.New(cfg.TelegramBotToken, store, machine, alertSrc, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	hour, minute := cfg.RefreshClock()
	dispatcher := scheduler.New(store, arr, alertSrc, refresher, b, clock, log, scheduler.Options{
		AlertPollInterval: cfg.AlertPollInterval,
		RefreshHour:       hour,
		RefreshMinute:     minute,
		Concurrency:       cfg.DispatchConcurrency,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if directory.Len() == 0 {
		log.Info("reference data missing, refreshing now", "path", cfg.DataDir)
		if err := refresher.Refresh(ctx); err != nil {
			log.Error("initial reference refresh", "error", err)
		}
	}

	log.Info("starting bot", "timezone", clock.Location().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error {
		b.Run(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error("bot stopped with error", "error", err)
		os.Exit(1)
	}

	log.Info("bot stopped")
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
