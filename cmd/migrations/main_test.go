package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilePath(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000001_create_ledger_kv.up.sql", "000001_create_ledger_kv.down.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600))
	}

	name, err := migrationFilePath(dir, "create_ledger_kv.up")
	require.NoError(t, err)
	assert.Equal(t, "000001_create_ledger_kv.up.sql", name)

	content, err := migrationFileContent(dir, "create_ledger_kv.down")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;", string(content))

	_, err = migrationFilePath(dir, "missing")
	assert.Error(t, err)
}

func TestShippedMigrationsResolve(t *testing.T) {
	dir := filepath.Join("..", "..", "internal", "adapters", "kv", "sqlkv", "migrations")
	_, err := migrationFilePath(dir, "create_ledger_kv.up")
	assert.NoError(t, err)
}
