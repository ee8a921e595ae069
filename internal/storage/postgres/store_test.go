package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/scrypster/kinstory/internal/storage"
	"github.com/scrypster/kinstory/internal/storage/storagetest"
)

var testDSN string

func TestMain(m *testing.M) {
	// Skip the container under -short; testing.Short needs flags parsed.
	if !hasShortFlag() {
		ctx := context.Background()
		container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
			tcpostgres.WithDatabase("kinstory"),
			tcpostgres.WithUsername("kinstory"),
			tcpostgres.WithPassword("kinstory"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			log.Printf("postgres container unavailable, integration tests will skip: %v", err)
		} else {
			testDSN, err = container.ConnectionString(ctx, "sslmode=disable")
			if err != nil {
				log.Fatalf("error reading connection string: %v", err)
			}
			code := m.Run()
			if err := testcontainers.TerminateContainer(container); err != nil {
				log.Printf("error tearing down postgres container: %v", err)
			}
			os.Exit(code)
		}
	}
	os.Exit(m.Run())
}

func hasShortFlag() bool {
	for _, arg := range os.Args[1:] {
		if arg == "-test.short" || arg == "-test.short=true" {
			return true
		}
	}
	return false
}

// newTestStore returns a store on a freshly truncated database.
func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	if testDSN == "" {
		t.Skip("postgres container not running")
	}
	ctx := context.Background()
	store, err := Open(ctx, testDSN, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.DB().ExecContext(ctx, `TRUNCATE people, person_aliases, locations,
		relationships, friendships, stories, story_people RESTART IDENTITY`)
	require.NoError(t, err)
	return store
}

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, newTestStore)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", &pq.Error{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("duplicate key")))
}
