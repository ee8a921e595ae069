package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scrypster/kinstory/internal/backup"
	"github.com/scrypster/kinstory/internal/config"
	"github.com/scrypster/kinstory/internal/engine"
	"github.com/scrypster/kinstory/internal/extraction"
	"github.com/scrypster/kinstory/internal/lock"
	"github.com/scrypster/kinstory/internal/logger"
	"github.com/scrypster/kinstory/internal/notify"
	"github.com/scrypster/kinstory/internal/server"
	"github.com/scrypster/kinstory/internal/storage/backends"
	"github.com/scrypster/kinstory/web/handlers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("kinstory stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("kinstory stopped")
}

// run wires the service together and blocks until ctx is cancelled or the
// server fails.
func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	store, err := backends.Open(ctx, cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close storage", zap.Error(err))
		}
	}()

	locker, closeLocker, err := lock.FromConfig(ctx, cfg.Lock)
	if err != nil {
		return fmt.Errorf("init lock: %w", err)
	}
	defer func() { _ = closeLocker() }()

	extractor, err := extraction.New(extraction.Config{
		Provider:           cfg.Extraction.Provider,
		Model:              cfg.Extraction.Model,
		BaseURL:            cfg.Extraction.BaseURL,
		APIKey:             cfg.Extraction.APIKey,
		Timeout:            cfg.Extraction.Timeout,
		ModelDir:           cfg.Extraction.ModelDir,
		BreakerMaxFailures: uint32(cfg.Extraction.BreakerMaxFailures),
		BreakerTimeout:     cfg.Extraction.BreakerTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("init extraction: %w", err)
	}
	if c, ok := extractor.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	hub := handlers.NewEventHub(log)
	eng, err := engine.New(store, engine.Options{
		Extractor:    extractor,
		Locker:       locker,
		Events:       hub,
		Logger:       log,
		PersonLabels: cfg.Extraction.PersonLabels,
	})
	if err != nil {
		return err
	}

	log.Info("starting kinstory",
		zap.String("addr", cfg.Addr()),
		zap.String("storage", cfg.Storage.Engine),
		zap.String("extraction", cfg.Extraction.Provider),
		zap.Bool("redis_lock", cfg.Lock.RedisURL != ""))

	// Offline repairs by kinstory-doctor share the sqlite data path.
	if localData(cfg) {
		watcher := notify.NewWatcher(cfg.Storage.DataPath, hub, log)
		if err := watcher.Start(); err != nil {
			log.Warn("change events from other processes disabled", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.New(cfg, eng, hub, log).Run(gctx)
	})
	if cfg.Backup.Interval > 0 && localData(cfg) {
		svc, err := backup.NewService(backup.Config{
			DBPath:   filepath.Join(cfg.Storage.DataPath, backends.DatabaseFile),
			Dir:      cfg.BackupDir(),
			Interval: cfg.Backup.Interval,
			Verify:   cfg.Backup.Verify,
			Retention: backup.RetentionPolicy{
				Hourly:  cfg.Backup.KeepHourly,
				Daily:   cfg.Backup.KeepDaily,
				Weekly:  cfg.Backup.KeepWeekly,
				Monthly: cfg.Backup.KeepMonthly,
			},
		}, log)
		if err != nil {
			return err
		}
		g.Go(func() error { return svc.Run(gctx) })
	}
	return g.Wait()
}

// localData reports whether the store lives in a sqlite file under the data path.
func localData(cfg *config.Config) bool {
	return (cfg.Storage.Engine == "sqlite" || cfg.Storage.Engine == "") && cfg.Storage.DataPath != ":memory:"
}
