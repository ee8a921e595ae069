package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

// ErrNoMigration indicates no migration has been applied yet.
var ErrNoMigration = errors.New("no migration")

// MigrationManager applies numbered SQL migrations from a filesystem
// (usually an embed.FS shipped with the backend package). Files are named
// NNN_name.up.sql / NNN_name.down.sql and the applied versions are tracked
// in a schema_migrations table. Each migration runs in its own transaction.
type MigrationManager struct {
	db     *sql.DB
	source fs.FS
	dir    string
}

type migration struct {
	version uint
	name    string
	up      string
	down    string
}

// NewMigrationManager creates a MigrationManager reading files from dir inside source.
func NewMigrationManager(db *sql.DB, source fs.FS, dir string) (*MigrationManager, error) {
	if db == nil {
		return nil, fmt.Errorf("migrations: database connection is required")
	}
	if source == nil {
		return nil, fmt.Errorf("migrations: migration source is required")
	}

	mgr := &MigrationManager{db: db, source: source, dir: dir}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return nil, fmt.Errorf("migrations: failed to create schema table: %w", err)
	}
	return mgr, nil
}

// Up applies every migration above the current version, in ascending order.
func (mgr *MigrationManager) Up(ctx context.Context) (int, error) {
	migrations, err := mgr.load()
	if err != nil {
		return 0, err
	}

	current, err := mgr.Version(ctx)
	if err != nil && !errors.Is(err, ErrNoMigration) {
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		// The version is an unsigned integer parsed from a file name, so it is
		// formatted inline to stay independent of the driver's placeholder style.
		record := fmt.Sprintf("INSERT INTO schema_migrations (version) VALUES (%d)", m.version)
		if err := mgr.exec(ctx, m.up, record); err != nil {
			return applied, fmt.Errorf("migrations: failed to apply version %d (%s): %w", m.version, m.name, err)
		}
		applied++
	}
	return applied, nil
}

// Down rolls back every applied migration in descending order.
func (mgr *MigrationManager) Down(ctx context.Context) error {
	migrations, err := mgr.load()
	if err != nil {
		return err
	}

	current, err := mgr.Version(ctx)
	if errors.Is(err, ErrNoMigration) {
		return nil
	}
	if err != nil {
		return err
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		m := migrations[i]
		if m.version > current {
			continue
		}
		if m.down == "" {
			return fmt.Errorf("migrations: version %d (%s) has no down file", m.version, m.name)
		}
		record := fmt.Sprintf("DELETE FROM schema_migrations WHERE version = %d", m.version)
		if err := mgr.exec(ctx, m.down, record); err != nil {
			return fmt.Errorf("migrations: failed to roll back version %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// Version returns the highest applied version, or ErrNoMigration.
func (mgr *MigrationManager) Version(ctx context.Context) (uint, error) {
	var version uint
	err := mgr.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("migrations: failed to query version: %w", err)
	}
	if version == 0 {
		return 0, ErrNoMigration
	}
	return version, nil
}

func (mgr *MigrationManager) exec(ctx context.Context, file, record string) error {
	body, err := fs.ReadFile(mgr.source, file)
	if err != nil {
		return err
	}

	tx, err := mgr.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, record); err != nil {
		return err
	}
	return tx.Commit()
}

// load pairs up/down files by their numeric prefix, sorted by version.
func (mgr *MigrationManager) load() ([]migration, error) {
	entries, err := fs.ReadDir(mgr.source, mgr.dir)
	if err != nil {
		return nil, fmt.Errorf("migrations: failed to read %s: %w", mgr.dir, err)
	}

	byVersion := make(map[uint]*migration)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		prefix, rest, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}

		m, ok := byVersion[uint(v)]
		if !ok {
			m = &migration{version: uint(v)}
			byVersion[uint(v)] = m
		}

		full := path.Join(mgr.dir, name)
		switch {
		case strings.HasSuffix(rest, ".up.sql"):
			m.name = strings.TrimSuffix(rest, ".up.sql")
			m.up = full
		case strings.HasSuffix(rest, ".down.sql"):
			m.down = full
		}
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.up != "" {
			migrations = append(migrations, *m)
		}
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version < migrations[j].version
	})
	return migrations, nil
}
