package testhelpers

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/database"
)

// PostgresTestImage is the stock PostgreSQL image used for integration tests.
const PostgresTestImage = "postgres:16-alpine"

// EngineDB holds a shared test database with all migrations applied.
// Use this for testing handlers, services, and repositories against a real
// database: the engine metadata tables and the wifi star schema live in the
// same database, as they do in production.
type EngineDB struct {
	Container testcontainers.Container
	DB        *database.DB
	ConnStr   string
}

var (
	sharedEngineDB     *EngineDB
	sharedEngineDBOnce sync.Once
	sharedEngineDBErr  error
)

// GetEngineDB returns a shared PostgreSQL container for integration tests.
// The container is created once, migrated, and reused across all tests in
// the run.
func GetEngineDB(t *testing.T) *EngineDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedEngineDBOnce.Do(func() {
		sharedEngineDB, sharedEngineDBErr = setupEngineDB()
	})

	if sharedEngineDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedEngineDBErr)
	}

	return sharedEngineDB
}

func setupEngineDB() (*EngineDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresTestImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "netsight_test",
			"POSTGRES_USER":     "netsight",
			"POSTGRES_PASSWORD": "test_password",
		},
		// Stock postgres images restart once during init, so wait for the
		// second ready line before connecting.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://netsight:test_password@%s:%s/netsight_test?sslmode=disable",
		host, port.Port())

	// Connect with retry in case the server is still settling
	var db *database.DB
	for i := 0; i < 10; i++ {
		db, err = database.NewConnection(ctx, &database.Config{
			URL:            connStr,
			MaxConnections: 5,
		})
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}

	// Run migrations using database/sql (required by golang-migrate)
	sqlDB, err := database.OpenSQL(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open sql connection: %w", err)
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, migrationsDir(), zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &EngineDB{
		Container: container,
		DB:        db,
		ConnStr:   connStr,
	}, nil
}

// migrationsDir resolves the repository migrations directory relative to this
// source file, so integration tests find it regardless of the package they
// run from.
func migrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}
