package backends

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/scrypster/kinstory/internal/config"
)

func TestOpenSQLiteCreatesDataPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	store, err := Open(context.Background(), config.StorageConfig{Engine: "sqlite", DataPath: dir}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(context.Background()))
	_, err = os.Stat(filepath.Join(dir, DatabaseFile))
	assert.NoError(t, err)
}

func TestOpenInMemory(t *testing.T) {
	store, err := Open(context.Background(), config.StorageConfig{DataPath: ":memory:"}, nil)
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestOpenRejectsBadConfig(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Engine: "mongo"}, nil)
	assert.ErrorContains(t, err, "unsupported")

	_, err = Open(context.Background(), config.StorageConfig{Engine: "postgres"}, nil)
	assert.ErrorContains(t, err, "DSN")
}
