package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Service takes scheduled backups.
type Service struct {
	cfg Config
	log *zap.Logger
	now func() time.Time
}

// NewService validates cfg and creates the backup directory.
func NewService(cfg Config, log *zap.Logger) (*Service, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("backup: database path is required")
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("backup: backup directory is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	cfg.Retention = cfg.Retention.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("backup: create directory: %w", err)
	}
	return &Service{cfg: cfg, log: log, now: time.Now}, nil
}

// Run backs up every Interval until ctx is cancelled. A failed backup is
// logged and retried on the next tick.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.log.Info("backup schedule started",
		zap.Duration("interval", s.cfg.Interval), zap.String("dir", s.cfg.Dir))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			result, err := s.BackupNow(ctx)
			if err != nil {
				s.log.Error("scheduled backup failed", zap.Error(err))
				continue
			}
			s.log.Info("scheduled backup completed",
				zap.String("path", result.Path),
				zap.Int64("size", result.Size),
				zap.Duration("duration", result.Duration),
				zap.Bool("verified", result.Verified))
		}
	}
}

// BackupNow copies the database, verifies the copy when configured and
// prunes old backups.
func (s *Service) BackupNow(ctx context.Context) (*Result, error) {
	start := s.now()
	if _, err := os.Stat(s.cfg.DBPath); err != nil {
		return nil, fmt.Errorf("backup: database not found: %w", err)
	}

	name := FilePrefix + start.UTC().Format("20060102-150405.000000") + ".db"
	path := filepath.Join(s.cfg.Dir, name)
	if err := snapshot(ctx, s.cfg.DBPath, path); err != nil {
		return nil, fmt.Errorf("backup: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("backup: stat %s: %w", path, err)
	}
	result := &Result{Path: path, Size: info.Size()}

	if s.cfg.Verify {
		if err := Verify(ctx, path); err != nil {
			return nil, fmt.Errorf("backup: verify %s: %w", path, err)
		}
		result.Verified = true
	}
	result.Duration = s.now().Sub(start)

	if removed, err := Prune(s.cfg.Dir, s.cfg.Retention, s.now()); err != nil {
		s.log.Warn("failed to apply backup retention", zap.Error(err))
	} else if len(removed) > 0 {
		s.log.Debug("pruned old backups", zap.Int("count", len(removed)))
	}
	return result, nil
}
