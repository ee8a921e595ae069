package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/kinstory/internal/backup"
	"github.com/scrypster/kinstory/internal/config"
	"github.com/scrypster/kinstory/internal/engine"
	"github.com/scrypster/kinstory/internal/storage"
	"github.com/scrypster/kinstory/internal/storage/backends"
	"github.com/scrypster/kinstory/internal/storage/sqlite"
	"github.com/scrypster/kinstory/pkg/types"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type recordedEvent struct {
	Type  engine.EventType
	Owner string
	ID    int64
}

type recordingNotifier struct{ events []recordedEvent }

func (r *recordingNotifier) Notify(t engine.EventType, owner string, id int64) error {
	r.events = append(r.events, recordedEvent{t, owner, id})
	return nil
}

func TestCheckDuplicates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	john, err := store.CreatePerson(ctx, "o", types.NewPerson{Name: "John"})
	require.NoError(t, err)
	lower, err := store.CreatePerson(ctx, "o", types.NewPerson{Name: "john"})
	require.NoError(t, err)
	kid, err := store.CreatePerson(ctx, "o", types.NewPerson{Name: "Kid"})
	require.NoError(t, err)
	_, err = store.CreateRelationship(ctx, "o", lower.ID, kid.ID, types.DefaultRelationshipType)
	require.NoError(t, err)

	events := &recordingNotifier{}
	var out bytes.Buffer
	n, err := checkDuplicates(ctx, store, events, "", false, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, out.String(), `"John"`)
	assert.Empty(t, events.events, "report only")

	out.Reset()
	_, err = checkDuplicates(ctx, store, events, "o", true, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "merged")
	assert.Equal(t, []recordedEvent{
		{engine.PersonUpdated, "o", john.ID},
		{engine.PersonDeleted, "o", lower.ID},
	}, events.events)

	_, err = store.GetPerson(ctx, "o", lower.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	edges, err := store.ListRelationships(ctx, "o")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, john.ID, edges[0].ParentID)

	out.Reset()
	n, err = checkDuplicates(ctx, store, events, "", false, &out)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, out.String(), "No duplicate people found!")
}

func TestCheckDuplicatesMergesLinkedPair(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ann, err := store.CreatePerson(ctx, "o", types.NewPerson{Name: "Ann"})
	require.NoError(t, err)
	lower, err := store.CreatePerson(ctx, "o", types.NewPerson{Name: "ann"})
	require.NoError(t, err)
	_, err = store.CreateRelationship(ctx, "o", ann.ID, lower.ID, types.DefaultRelationshipType)
	require.NoError(t, err)
	_, err = store.CreateFriendship(ctx, "o", ann.ID, lower.ID)
	require.NoError(t, err)

	var out bytes.Buffer
	_, err = checkDuplicates(ctx, store, &recordingNotifier{}, "o", true, &out)
	require.NoError(t, err)

	edges, err := store.ListRelationships(ctx, "o")
	require.NoError(t, err)
	assert.Empty(t, edges)
	friends, err := store.ListFriendships(ctx, "o")
	require.NoError(t, err)
	assert.Empty(t, friends)

	out.Reset()
	n, err := checkDangling(ctx, store, &recordingNotifier{}, "o", false, &out)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCheckDangling(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	a, err := store.CreatePerson(ctx, "o", types.NewPerson{Name: "A"})
	require.NoError(t, err)
	b, err := store.CreatePerson(ctx, "o", types.NewPerson{Name: "B"})
	require.NoError(t, err)
	c, err := store.CreatePerson(ctx, "o", types.NewPerson{Name: "C"})
	require.NoError(t, err)
	_, err = store.CreateRelationship(ctx, "o", a.ID, b.ID, types.DefaultRelationshipType)
	require.NoError(t, err)
	_, err = store.CreateRelationship(ctx, "o", a.ID, c.ID, types.DefaultRelationshipType)
	require.NoError(t, err)
	_, err = store.CreateFriendship(ctx, "o", b.ID, c.ID)
	require.NoError(t, err)
	require.NoError(t, store.DeletePerson(ctx, "o", b.ID))

	events := &recordingNotifier{}
	var out bytes.Buffer
	n, err := checkDangling(ctx, store, events, "o", false, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = checkDangling(ctx, store, events, "o", true, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, events.events, 2)
	assert.Equal(t, engine.RelationshipDeleted, events.events[0].Type)
	assert.Equal(t, engine.FriendshipDeleted, events.events[1].Type)

	edges, err := store.ListRelationships(ctx, "o")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, c.ID, edges[0].ChildID)
	friendships, err := store.ListFriendships(ctx, "o")
	require.NoError(t, err)
	assert.Empty(t, friendships)
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--engine", "sqlite", "--data-path", t.TempDir(), "dangling"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "No dangling edges found!")
}

func TestRootCommandWarnsOnBadConfig(t *testing.T) {
	t.Setenv("KINSTORY_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"--engine", "sqlite", "--data-path", t.TempDir(), "dangling"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, errOut.String(), "using defaults")
	assert.Contains(t, errOut.String(), "missing.yaml")
	assert.Contains(t, out.String(), "No dangling edges found!")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFixAnnouncesToDataPath(t *testing.T) {
	ctx := context.Background()
	dataPath := t.TempDir()
	store, err := backends.Open(ctx, config.StorageConfig{Engine: "sqlite", DataPath: dataPath}, nil)
	require.NoError(t, err)
	a, err := store.CreatePerson(ctx, "o", types.NewPerson{Name: "A"})
	require.NoError(t, err)
	b, err := store.CreatePerson(ctx, "o", types.NewPerson{Name: "B"})
	require.NoError(t, err)
	_, err = store.CreateFriendship(ctx, "o", a.ID, b.ID)
	require.NoError(t, err)
	require.NoError(t, store.DeletePerson(ctx, "o", b.ID))
	require.NoError(t, store.Close())

	out, err := execute(t, "--engine", "sqlite", "--data-path", dataPath, "--fix", "dangling")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 1 edge(s).")

	entries, err := os.ReadDir(filepath.Join(dataPath, "events"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBackupAndRestoreCommands(t *testing.T) {
	ctx := context.Background()
	dataPath := t.TempDir()
	backupDir := t.TempDir()

	store, err := backends.Open(ctx, config.StorageConfig{Engine: "sqlite", DataPath: dataPath}, nil)
	require.NoError(t, err)
	_, err = store.CreatePerson(ctx, "o", types.NewPerson{Name: "Ann"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	base := []string{"--engine", "sqlite", "--data-path", dataPath, "--backup-dir", backupDir}

	out, err := execute(t, append(base, "backup", "--list")...)
	require.NoError(t, err)
	assert.Contains(t, out, "No backups found.")

	out, err = execute(t, append(base, "backup")...)
	require.NoError(t, err)
	assert.Contains(t, out, "verified")

	backups, err := backup.List(backupDir)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	name := filepath.Base(backups[0].Path)

	out, err = execute(t, append(base, "backup", "--list")...)
	require.NoError(t, err)
	assert.Contains(t, out, name)

	store, err = backends.Open(ctx, config.StorageConfig{Engine: "sqlite", DataPath: dataPath}, nil)
	require.NoError(t, err)
	_, err = store.CreatePerson(ctx, "o", types.NewPerson{Name: "Later"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err = execute(t, append(base, "restore", name)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Restored")

	store, err = backends.Open(ctx, config.StorageConfig{Engine: "sqlite", DataPath: dataPath}, nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	people, err := store.ListPeople(ctx, "o")
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Equal(t, "Ann", people[0].Name)
}

func TestBackupRequiresSQLiteFile(t *testing.T) {
	_, err := execute(t, "--engine", "sqlite", "--data-path", ":memory:", "backup")
	assert.Error(t, err)
}
