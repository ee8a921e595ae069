package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/scrypster/kinstory/internal/storage"
	"github.com/scrypster/kinstory/internal/storage/storagetest"
)

// newTestStore opens an in-memory database with every migration applied.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), ":memory:", zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return newTestStore(t)
	})
}

func TestOpenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kinstory.db")

	first, err := Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	if _, _, err := first.GetOrCreatePerson(ctx, "o", "Alice"); err != nil {
		t.Fatalf("GetOrCreatePerson() failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	second, err := Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer second.Close()

	mgr, err := storage.NewMigrationManager(second.DB(), migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("NewMigrationManager() failed: %v", err)
	}
	v, err := mgr.Version(ctx)
	if err != nil {
		t.Fatalf("Version() failed: %v", err)
	}
	if v != 1 {
		t.Errorf("Version: got %d, want 1", v)
	}

	if _, err := second.FindPersonByName(ctx, "o", "Alice"); err != nil {
		t.Errorf("person did not survive reopen: %v", err)
	}
}

func TestMigrationDown(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	mgr, err := storage.NewMigrationManager(store.DB(), migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("NewMigrationManager() failed: %v", err)
	}
	if err := mgr.Down(ctx); err != nil {
		t.Fatalf("Down() failed: %v", err)
	}
	if _, err := mgr.Version(ctx); !errors.Is(err, storage.ErrNoMigration) {
		t.Errorf("Version after Down: got %v, want ErrNoMigration", err)
	}
	if _, err := store.ListPeople(ctx, "o"); err == nil {
		t.Error("ListPeople should fail once the schema is dropped")
	}
}

func TestDBPathFromDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{":memory:", ""},
		{"file::memory:?cache=shared", ""},
		{"/var/lib/kinstory.db", "/var/lib/kinstory.db"},
		{"kinstory.db?_pragma=foreign_keys(1)", "kinstory.db"},
		{"file:/tmp/k.db?mode=rwc", "/tmp/k.db"},
	}
	for _, tt := range tests {
		if got := dbPathFromDSN(tt.dsn); got != tt.want {
			t.Errorf("dbPathFromDSN(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if isUniqueViolation(nil) {
		t.Error("nil is not a violation")
	}
	if !isUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: people.owner_id, people.name (2067)")) {
		t.Error("message match should be detected")
	}
	if isUniqueViolation(errors.New("no such table: people")) {
		t.Error("unrelated error should not match")
	}
}
