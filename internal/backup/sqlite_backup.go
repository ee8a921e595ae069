package backup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

func openReadOnly(path string) (*sql.DB, error) {
	return sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
}

// snapshot copies the database with VACUUM INTO, which yields a consistent
// copy even while the web server holds the file open in WAL mode.
func snapshot(ctx context.Context, sourcePath, destPath string) error {
	db, err := openReadOnly(sourcePath)
	if err != nil {
		return fmt.Errorf("open source database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping source database: %w", err)
	}
	quoted := strings.ReplaceAll(destPath, "'", "''")
	if _, err := db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", quoted)); err != nil {
		return fmt.Errorf("copy database: %w", err)
	}
	return nil
}

// Verify runs PRAGMA integrity_check against a backup file.
func Verify(ctx context.Context, path string) error {
	db, err := openReadOnly(path)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// Restore replaces the database at dbPath with a verified backup. Nothing
// may hold dbPath open. On failure the previous file is put back.
func Restore(ctx context.Context, backupPath, dbPath string) error {
	if err := Verify(ctx, backupPath); err != nil {
		return fmt.Errorf("backup verification failed: %w", err)
	}

	previous := dbPath + ".pre-restore"
	hadPrevious := false
	if _, err := os.Stat(dbPath); err == nil {
		if err := snapshot(ctx, dbPath, previous); err != nil {
			return fmt.Errorf("save current database: %w", err)
		}
		hadPrevious = true
		defer func() { _ = os.Remove(previous) }()
	}

	err := copyFile(backupPath, dbPath)
	if err == nil {
		err = Verify(ctx, dbPath)
	}
	if err == nil {
		// Stale WAL pages belong to the replaced file.
		_ = os.Remove(dbPath + "-wal")
		_ = os.Remove(dbPath + "-shm")
		return nil
	}
	if !hadPrevious {
		return err
	}
	if rbErr := copyFile(previous, dbPath); rbErr != nil {
		return fmt.Errorf("restore failed and rollback failed: %v (restore error: %w)", rbErr, err)
	}
	return fmt.Errorf("restore failed, rolled back to previous state: %w", err)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return fmt.Errorf("sync %s: %w", dst, err)
	}
	return out.Close()
}
