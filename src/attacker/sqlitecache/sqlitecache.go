// Package sqlitecache is the default ReplayCache backend: a single
// SQLite file holding one row per (scenario, step, state, action-hash,
// context-hash) tuple a policy has ever decided.
package sqlitecache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS attacker_decisions (
	decision_id TEXT PRIMARY KEY,
	scenario_id TEXT NOT NULL,
	step INTEGER NOT NULL,
	attacker_state TEXT NOT NULL,
	agent_action_hash TEXT NOT NULL,
	attacker_context_hash TEXT NOT NULL DEFAULT 'none',
	decision_json TEXT NOT NULL,
	model TEXT,
	temperature REAL,
	created_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_attacker_cache
	ON attacker_decisions (scenario_id, step, attacker_state, agent_action_hash, attacker_context_hash);
`

// Cache is a SQLite-backed attacker.ReplayCache.
type Cache struct {
	db *sql.DB
}

// Open creates (or reuses) the SQLite file at path, migrating an
// attacker_decisions table left over from before attacker_context_hash
// existed by adding the column and rebuilding the unique index on it.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitecache: open: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

func migrate(db *sql.DB) error {
	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='attacker_decisions'",
	).Scan(&name)
	if err == sql.ErrNoRows {
		_, err := db.Exec(schemaSQL)
		return err
	}
	if err != nil {
		return fmt.Errorf("sqlitecache: inspect schema: %w", err)
	}

	rows, err := db.Query("PRAGMA table_info(attacker_decisions)")
	if err != nil {
		return fmt.Errorf("sqlitecache: table_info: %w", err)
	}
	hasContextHash := false
	for rows.Next() {
		var cid int
		var colName, colType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			rows.Close()
			return err
		}
		if colName == "attacker_context_hash" {
			hasContextHash = true
		}
	}
	rows.Close()
	if hasContextHash {
		return nil
	}

	if _, err := db.Exec("ALTER TABLE attacker_decisions ADD COLUMN attacker_context_hash TEXT NOT NULL DEFAULT 'none'"); err != nil {
		return fmt.Errorf("sqlitecache: add attacker_context_hash: %w", err)
	}
	if _, err := db.Exec("DROP INDEX IF EXISTS idx_attacker_cache"); err != nil {
		return err
	}
	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_attacker_cache
		ON attacker_decisions (scenario_id, step, attacker_state, agent_action_hash, attacker_context_hash)`)
	return err
}

// Close closes the underlying SQLite connection.
func (c *Cache) Close() error { return c.db.Close() }

// Get returns the cached decision for the given key, or (nil, false) on
// a cache miss.
func (c *Cache) Get(scenarioID string, step int, attackerState, agentActionHash, attackerContextHash string) (map[string]any, bool, error) {
	var decisionJSON string
	err := c.db.QueryRow(`
		SELECT decision_json FROM attacker_decisions
		WHERE scenario_id = ? AND step = ? AND attacker_state = ? AND agent_action_hash = ? AND attacker_context_hash = ?`,
		scenarioID, step, attackerState, agentActionHash, attackerContextHash,
	).Scan(&decisionJSON)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var decision map[string]any
	if err := json.Unmarshal([]byte(decisionJSON), &decision); err != nil {
		return nil, false, fmt.Errorf("sqlitecache: decode cached decision: %w", err)
	}
	return decision, true, nil
}

// Set records the decision reached for the given key, replacing any
// prior entry at that key.
func (c *Cache) Set(scenarioID string, step int, attackerState, agentActionHash, attackerContextHash string, decisionJSON map[string]any, model string, temperature float64) error {
	encoded, err := json.Marshal(decisionJSON)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(`
		INSERT OR REPLACE INTO attacker_decisions
		(decision_id, scenario_id, step, attacker_state, agent_action_hash, attacker_context_hash,
		 decision_json, model, temperature, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strconv.FormatInt(time.Now().UnixMilli(), 10),
		scenarioID, step, attackerState, agentActionHash, attackerContextHash,
		string(encoded), model, temperature, time.Now().UTC().Format("2006-01-02T15:04:05Z"),
	)
	return err
}
