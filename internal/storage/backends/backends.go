// Package backends opens the configured storage engine.
package backends

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/scrypster/kinstory/internal/config"
	"github.com/scrypster/kinstory/internal/storage"
	"github.com/scrypster/kinstory/internal/storage/postgres"
	"github.com/scrypster/kinstory/internal/storage/sqlite"
)

// DatabaseFile is the SQLite file created inside the data path.
const DatabaseFile = "kinstory.db"

// Open connects to the engine named by cfg and applies its migrations.
func Open(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (storage.Store, error) {
	switch cfg.Engine {
	case "sqlite", "":
		dsn := cfg.DataPath
		if dsn != ":memory:" {
			if err := os.MkdirAll(cfg.DataPath, 0o750); err != nil {
				return nil, fmt.Errorf("create data path: %w", err)
			}
			dsn = filepath.Join(cfg.DataPath, DatabaseFile)
		}
		s, err := sqlite.Open(ctx, dsn, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres engine requires a DSN")
		}
		s, err := postgres.Open(ctx, cfg.PostgresDSN, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage engine %q", cfg.Engine)
	}
}
