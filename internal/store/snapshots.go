package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/mtzanidakis/kinema/internal/knowledge"
)

// Snapshot is a point-in-time copy of an agent's knowledge base.
type Snapshot struct {
	ID        int64                      `json:"id"`
	RunID     string                     `json:"run_id"`
	TakenAt   time.Time                  `json:"taken_at"`
	Keys      int                        `json:"keys"`
	Encrypted bool                       `json:"encrypted"`
	Data      map[string]knowledge.Value `json:"data,omitempty"`
}

var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

// SaveSnapshot stores data as zstd-compressed JSON, sealed with the store
// cipher when one is set.
func (s *Store) SaveSnapshot(runID string, data map[string]knowledge.Value) (*Snapshot, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	blob := encoder.EncodeAll(raw, nil)

	encrypted := false
	if s.cipher != nil {
		blob, err = s.cipher.Seal(blob)
		if err != nil {
			return nil, fmt.Errorf("seal snapshot: %w", err)
		}
		encrypted = true
	}

	snap := &Snapshot{RunID: runID, TakenAt: time.Now().UTC(), Keys: len(data), Encrypted: encrypted}
	res, err := s.db.Exec(`INSERT INTO snapshots (run_id, taken_at, keys, data, encrypted) VALUES (?, ?, ?, ?, ?)`,
		snap.RunID, snap.TakenAt, snap.Keys, blob, encrypted)
	if err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	if snap.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	return snap, nil
}

// LatestSnapshot returns the newest snapshot of a run with its data, or nil
// when the run has none.
func (s *Store) LatestSnapshot(runID string) (*Snapshot, error) {
	snap := &Snapshot{}
	var blob []byte
	err := s.db.QueryRow(`
		SELECT id, run_id, taken_at, keys, data, encrypted
		FROM snapshots WHERE run_id = ? ORDER BY id DESC LIMIT 1`, runID).
		Scan(&snap.ID, &snap.RunID, &snap.TakenAt, &snap.Keys, &blob, &snap.Encrypted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	if snap.Encrypted {
		if s.cipher == nil {
			return nil, fmt.Errorf("open snapshot %d: encrypted and no passphrase configured", snap.ID)
		}
		if blob, err = s.cipher.Open(blob); err != nil {
			return nil, fmt.Errorf("open snapshot %d: %w", snap.ID, err)
		}
	}
	raw, err := decoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot %d: %w", snap.ID, err)
	}
	if err := json.Unmarshal(raw, &snap.Data); err != nil {
		return nil, fmt.Errorf("decode snapshot %d: %w", snap.ID, err)
	}
	return snap, nil
}

// CountSnapshots returns how many snapshots a run has.
func (s *Store) CountSnapshots(runID string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM snapshots WHERE run_id = ?`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}
