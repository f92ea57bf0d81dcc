package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mtzanidakis/kinema/internal/config"
	_ "modernc.org/sqlite"
)

// Store is the telemetry database of an agent or hub: agent definitions,
// controller runs, status transitions and knowledge snapshots.
type Store struct {
	db     *sql.DB
	cipher Cipher
}

// Cipher seals snapshot blobs at rest.
type Cipher interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

func New(cfg config.StoreConfig) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// The controller and the checkpoint loop write concurrently.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("exec %s: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// SetCipher enables encryption of snapshots written from now on.
func (s *Store) SetCipher(c Cipher) {
	s.cipher = c
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS agents (
			id               INTEGER PRIMARY KEY,
			platform         TEXT NOT NULL,
			algorithm        TEXT NOT NULL,
			home             TEXT,
			move_speed       REAL DEFAULT 0,
			proximity        REAL DEFAULT 0,
			created_at       DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at       DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			agent_id    INTEGER NOT NULL,
			platform    TEXT NOT NULL,
			algorithm   TEXT NOT NULL,
			started_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
			stopped_at  DATETIME,
			executions  INTEGER DEFAULT 0,
			last_error  TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_agent ON runs(agent_id, started_at)`,
		`CREATE TABLE IF NOT EXISTS status_events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL REFERENCES runs(id),
			agent_id    INTEGER NOT NULL,
			call        TEXT NOT NULL,
			status      TEXT NOT NULL,
			detail      TEXT,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_status_events_run ON status_events(run_id, id)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL REFERENCES runs(id),
			taken_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
			keys        INTEGER NOT NULL,
			data        BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_run ON snapshots(run_id, id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}

	// Schema additions (idempotent ALTER TABLE)
	alterations := []string{
		`ALTER TABLE snapshots ADD COLUMN encrypted BOOLEAN DEFAULT FALSE`,
	}
	for _, a := range alterations {
		_, _ = s.db.Exec(a) // ignore "duplicate column" errors
	}

	return nil
}
