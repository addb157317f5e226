package integration

import (
	"context"
	"database/sql"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vncsmyrnk/curation/internal/adapters/kv/sqlkv"
	"github.com/vncsmyrnk/curation/internal/app"
	"github.com/vncsmyrnk/curation/internal/config"
)

const migrationsDir = "../../internal/adapters/kv/sqlkv/migrations"

type TestApp struct {
	Node        *app.App
	Server      *httptest.Server
	DB          *sql.DB
	DBContainer testcontainers.Container
}

func setupPostgresContainer(ctx context.Context) (*postgres.PostgresContainer, error) {
	pgContainer, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("curation"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}
	return pgContainer, nil
}

func applyMigrations(db *sql.DB) error {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "up.sql") {
			continue
		}

		content, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func setupTestApp(t *testing.T) *TestApp {
	t.Helper()
	ctx := context.Background()

	container, err := setupPostgresContainer(ctx)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := config.Default()
	cfg.StoreBackend = config.StorePostgres
	cfg.Postgres = config.Postgres{
		Host:     host,
		Port:     port.Port(),
		User:     "user",
		Password: "password",
		DB:       "curation",
	}
	cfg.JWTSecret = "test-secret"
	cfg.OracleKeyFile = filepath.Join(t.TempDir(), "oracle-keys.json")
	cfg.OracleKeyBits = 512
	cfg.StatusClearDelay = time.Minute
	cfg.CacheTTL = 100 * time.Millisecond

	db, err := sql.Open(sqlkv.Postgres.Driver, sqlkv.PostgresConnString(cfg.Postgres.User, cfg.Postgres.Password, host, port.Port(), cfg.Postgres.DB))
	require.NoError(t, err)
	require.NoError(t, applyMigrations(db))

	node, err := app.New(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)

	return &TestApp{
		Node:        node,
		Server:      httptest.NewServer(node.HTTPHandler()),
		DB:          db,
		DBContainer: container,
	}
}

func (a *TestApp) Teardown(t *testing.T) {
	a.Server.Close()
	if err := a.Node.Close(); err != nil {
		t.Logf("failed to close node: %v", err)
	}
	a.DB.Close()
	if err := a.DBContainer.Terminate(context.Background()); err != nil {
		t.Logf("failed to terminate container: %v", err)
	}
}
