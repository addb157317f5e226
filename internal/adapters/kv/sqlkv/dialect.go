package sqlkv

// Dialect holds the statements that differ between database engines. A NULL
// value marks a row that only exists as a lock placeholder; it reads as absent.
type Dialect struct {
	Name string
	// Driver is the database/sql driver name.
	Driver       string
	schema       string
	get          string
	upsert       string
	placeholder  string
	selectLocked string
	scan         string
	// scanArgs expands the prefix into the scan statement's arguments.
	scanArgs func(prefix string) []any
}

var Postgres = Dialect{
	Name:   "postgres",
	Driver: "postgres",
	schema: `
		CREATE TABLE IF NOT EXISTS ledger_kv (
			key        TEXT PRIMARY KEY,
			value      BYTEA,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`,
	get: `SELECT value FROM ledger_kv WHERE key = $1 AND value IS NOT NULL`,
	upsert: `
		INSERT INTO ledger_kv (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    updated_at = NOW()
	`,
	// gives FOR UPDATE a row to lock when the key does not exist yet
	placeholder:  `INSERT INTO ledger_kv (key, value) VALUES ($1, NULL) ON CONFLICT (key) DO NOTHING`,
	selectLocked: `SELECT value FROM ledger_kv WHERE key = $1 FOR UPDATE`,
	scan: `
		SELECT key FROM ledger_kv
		WHERE substr(key, 1, length($1::text)) = $1::text AND value IS NOT NULL
		ORDER BY key COLLATE "C"
	`,
	scanArgs: func(prefix string) []any { return []any{prefix} },
}

// SQLite relies on a single open connection to serialize Update; there is no
// row locking.
var SQLite = Dialect{
	Name:   "sqlite",
	Driver: "sqlite",
	schema: `
		CREATE TABLE IF NOT EXISTS ledger_kv (
			key        TEXT PRIMARY KEY,
			value      BLOB,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`,
	get: `SELECT value FROM ledger_kv WHERE key = ? AND value IS NOT NULL`,
	upsert: `
		INSERT INTO ledger_kv (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE
		SET value = excluded.value,
		    updated_at = CURRENT_TIMESTAMP
	`,
	selectLocked: `SELECT value FROM ledger_kv WHERE key = ?`,
	scan: `
		SELECT key FROM ledger_kv
		WHERE substr(key, 1, length(?)) = ? AND value IS NOT NULL
		ORDER BY key
	`,
	scanArgs: func(prefix string) []any { return []any{prefix, prefix} },
}
