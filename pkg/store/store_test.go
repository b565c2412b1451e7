package store

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	container "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kalutskii/etil-sterahstib/pkg/log"
)

func setupTestSqlite(t testing.TB) *gorm.DB {
	t.Helper()

	uniqueDSN := fmt.Sprintf("file::memory:test%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(uniqueDSN), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, migrateSqlite(db))
	return db
}

// setupTestPostgres runs the real connect path, migrations included, against
// a throwaway container.
func setupTestPostgres(ctx context.Context, t testing.TB) (*gorm.DB, testcontainers.Container) {
	t.Helper()

	postgresContainer, err := container.Run(ctx,
		"postgres:16-alpine",
		container.WithDatabase("postgres"),
		container.WithUsername("postgres"),
		container.WithPassword("postgres"),
		testcontainers.WithEnv(map[string]string{
			"POSTGRES_HOST_AUTH_METHOD": "trust",
		}),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForLog("database system is ready to accept connections"),
				wait.ForListeningPort("5432/tcp"),
			)))
	require.NoError(t, err)

	url, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := ConnectToDB(DatabaseConfig{URL: url}, log.NewNoopLogger())
	require.NoError(t, err)

	return db, postgresContainer
}

// setupTestDB chooses SQLite or Postgres based on TEST_DB_DRIVER.
func setupTestDB(t testing.TB) (*gorm.DB, func()) {
	t.Helper()

	ctx := context.Background()
	switch os.Getenv("TEST_DB_DRIVER") {
	case "postgres":
		db, c := setupTestPostgres(ctx, t)
		return db, func() {
			if err := c.Terminate(ctx); err != nil {
				t.Logf("failed to terminate postgres container: %v", err)
			}
		}
	default:
		return setupTestSqlite(t), func() {}
	}
}
