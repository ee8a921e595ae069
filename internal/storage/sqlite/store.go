// Package sqlite opens the SQLite-backed store used for local and
// single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/scrypster/kinstory/internal/storage"
	"github.com/scrypster/kinstory/internal/storage/sqlstore"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Dialect describes SQLite to the shared repository.
var Dialect = sqlstore.Dialect{
	Name:              "sqlite",
	IsUniqueViolation: isUniqueViolation,
}

// Store is a sqlstore.Store that checkpoints the WAL on Close.
type Store struct {
	*sqlstore.Store
	log *zap.Logger
}

// Open opens dsn, applies pending migrations and returns the store. When the
// first open fails because a crashed process left -shm/-wal files behind, the
// files are removed and the open is retried once.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	store, err := open(ctx, dsn, log)
	if err == nil {
		return store, nil
	}
	if !isRecoverableWALError(err) {
		return nil, err
	}

	dbPath := dbPathFromDSN(dsn)
	if dbPath == "" || !isWALStale(dbPath) {
		return nil, err
	}
	removeStaleWAL(dbPath, log)

	store, retryErr := open(ctx, dsn, log)
	if retryErr != nil {
		return nil, fmt.Errorf("sqlite: failed after WAL recovery: %w (original: %v)", retryErr, err)
	}
	log.Warn("recovered from stale WAL files", zap.String("path", dbPath))
	return store, nil
}

func open(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// One writer at a time. This also keeps a :memory: database alive for
	// the lifetime of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	mgr, err := storage.NewMigrationManager(db, migrationsFS, "migrations")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	n, err := mgr.Up(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to run migrations: %w", err)
	}
	if n > 0 {
		log.Info("applied migrations", zap.Int("count", n))
	}

	return &Store{Store: sqlstore.New(db, Dialect), log: log}, nil
}

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	if _, err := s.DB().Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.log.Warn("WAL checkpoint on close failed", zap.Error(err))
	}
	return s.Store.Close()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func dbPathFromDSN(dsn string) string {
	if dsn == "" || strings.Contains(dsn, ":memory:") {
		return ""
	}
	if strings.HasPrefix(dsn, "file:") {
		u, err := url.Parse(dsn)
		if err != nil {
			return ""
		}
		if u.Path != "" {
			return u.Path
		}
		return u.Opaque
	}
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		return dsn[:i]
	}
	return dsn
}

// isRecoverableWALError matches the errors a crash-left WAL produces.
func isRecoverableWALError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "disk I/O error") || strings.Contains(msg, "database is locked")
}

// isWALStale reports whether -shm/-wal files exist and no process holds them.
// Without lsof it answers false.
func isWALStale(dbPath string) bool {
	shm, wal := dbPath+"-shm", dbPath+"-wal"
	if !fileExists(shm) && !fileExists(wal) {
		return false
	}

	lsof, err := exec.LookPath("lsof")
	if err != nil {
		return false
	}
	out, err := exec.Command(lsof, "-t", dbPath, shm, wal).Output()
	if err != nil {
		// exit status 1: nothing has them open
		return true
	}
	return strings.TrimSpace(string(out)) == ""
}

func removeStaleWAL(dbPath string, log *zap.Logger) {
	for _, suffix := range []string{"-shm", "-wal"} {
		path := dbPath + suffix
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove stale WAL file", zap.String("path", path), zap.Error(err))
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
