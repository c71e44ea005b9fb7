// Package testutil provides a migrated PostgreSQL database for repository tests
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/wrale/adsign/internal/adsignd/migrations"
)

// Session parameters for the test database
const (
	defaultStatementTimeout  = "5s"
	defaultLockTimeout       = "1s"
	defaultIdleInTransaction = "5s"
)

// SetupTestDB returns a freshly migrated database. It uses TEST_DATABASE_URL
// when set, starts a postgres container when TEST_INTEGRATION is set, and
// skips the test otherwise.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	baseURL := os.Getenv("TEST_DATABASE_URL")
	if baseURL == "" {
		if os.Getenv("TEST_INTEGRATION") == "" {
			t.Skip("skipping integration test: set TEST_DATABASE_URL or TEST_INTEGRATION")
		}
		baseURL = startContainer(t)
	}

	adminDB, err := tryConnect(t, baseURL)
	require.NoError(t, err, "failed to connect to postgres")
	defer adminDB.Close()

	dbName := fmt.Sprintf("adsign_test_%d", time.Now().UnixNano())
	_, err = adminDB.Exec(fmt.Sprintf("CREATE DATABASE %s", dbName))
	require.NoError(t, err)
	require.NoError(t, configureTestDatabase(adminDB, dbName))

	db, err := tryConnect(t, withDatabase(baseURL, dbName))
	require.NoError(t, err)
	require.NoError(t, migrations.NewManager(db).ApplyMigrations(context.Background()))

	t.Cleanup(func() {
		if cerr := db.Close(); cerr != nil {
			t.Logf("error closing test database: %v", cerr)
		}
		adminDB, err := sql.Open("postgres", baseURL)
		if err != nil {
			t.Logf("error connecting to drop test database: %v", err)
			return
		}
		defer adminDB.Close()
		if _, err := adminDB.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", dbName)); err != nil {
			t.Logf("error dropping test database: %v", err)
		}
	})

	return db
}

func startContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("postgres"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("error terminating container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return url
}

// withDatabase swaps the database name in a postgres:// URL
func withDatabase(url, name string) string {
	query := ""
	if i := strings.Index(url, "?"); i >= 0 {
		url, query = url[:i], url[i:]
	}
	if i := strings.LastIndex(url, "/"); i > len("postgres://") {
		url = url[:i]
	}
	return url + "/" + name + query
}

// configureTestDatabase sets defaults every pooled session inherits
func configureTestDatabase(adminDB *sql.DB, dbName string) error {
	params := map[string]string{
		"statement_timeout":                   defaultStatementTimeout,
		"lock_timeout":                        defaultLockTimeout,
		"idle_in_transaction_session_timeout": defaultIdleInTransaction,
	}
	for param, value := range params {
		if _, err := adminDB.Exec(fmt.Sprintf("ALTER DATABASE %s SET %s = '%s'", dbName, param, value)); err != nil {
			return fmt.Errorf("failed to set %s: %w", param, err)
		}
	}
	return nil
}

// tryConnect attempts to connect with retries
func tryConnect(t *testing.T, dbURL string) (*sql.DB, error) {
	t.Helper()

	var db *sql.DB
	var err error
	const maxRetries = 5

	for i := 0; i < maxRetries; i++ {
		db, err = sql.Open("postgres", dbURL)
		if err != nil {
			t.Logf("failed to open database (attempt %d/%d): %v", i+1, maxRetries, err)
			time.Sleep(time.Second)
			continue
		}
		if err = db.Ping(); err == nil {
			return db, nil
		}
		t.Logf("failed to ping database (attempt %d/%d): %v", i+1, maxRetries, err)
		db.Close()
		time.Sleep(time.Second)
	}
	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxRetries, err)
}
