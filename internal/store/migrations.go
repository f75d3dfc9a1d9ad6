package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// ingest_state is a key/value table holding the schema version, the
// ingestion checkpoint and the truncation flag. It is created outside the
// versioned migrations because the version itself lives in it.
const createStateTable = `CREATE TABLE IF NOT EXISTS ingest_state (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
)`

const upsertState = `INSERT INTO ingest_state (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

// migrate brings the schema up to date, applying each pending script in
// its own transaction together with the version bump.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(createStateTable); err != nil {
		return fmt.Errorf("create ingest_state: %w", err)
	}

	applied, err := appliedVersion(db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if applied > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this build supports", applied)
	}

	for i := applied; i < len(migrations); i++ {
		if err := applyMigration(db, i+1, migrations[i]); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(db *sql.DB, version int, script string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migration %d: %w", version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(script); err != nil {
		return fmt.Errorf("migration %d: %w", version, err)
	}
	if _, err := tx.Exec(upsertState, "schema_version", strconv.Itoa(version), nowUTC()); err != nil {
		return fmt.Errorf("migration %d: record version: %w", version, err)
	}
	return tx.Commit()
}

// appliedVersion returns 0 when no version has been recorded yet.
func appliedVersion(db *sql.DB) (int, error) {
	var val string
	switch err := db.QueryRow(`SELECT value FROM ingest_state WHERE key = 'schema_version'`).Scan(&val); {
	case err == sql.ErrNoRows:
		return 0, nil
	case err != nil:
		return 0, err
	}
	return strconv.Atoi(val)
}

// GetState reads a value from ingest_state. Missing keys return "".
func (s *Store) GetState(key string) (string, error) {
	var val string
	err := s.db.QueryRow(`SELECT value FROM ingest_state WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return val, err
}

// SetState writes a value to ingest_state, replacing any previous value.
func (s *Store) SetState(key, value string) error {
	_, err := s.db.Exec(upsertState, key, value, nowUTC())
	return err
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
