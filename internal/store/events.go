package store

import (
	"database/sql"
	"fmt"
	"time"
)

// StatusEvent is one status transition of a platform or algorithm call.
type StatusEvent struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	AgentID   int       `json:"agent_id"`
	Call      string    `json:"call"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) SaveStatusEvent(e *StatusEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`INSERT INTO status_events (run_id, agent_id, call, status, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, e.AgentID, e.Call, e.Status, e.Detail, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("save status event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("save status event: %w", err)
	}
	e.ID = id
	return nil
}

// ListStatusEvents returns the events of a run in the order they happened.
func (s *Store) ListStatusEvents(runID string, limit int) ([]StatusEvent, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.Query(`
		SELECT id, run_id, agent_id, call, status, detail, created_at
		FROM status_events WHERE run_id = ? ORDER BY id LIMIT ?`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("list status events: %w", err)
	}
	defer rows.Close()

	var events []StatusEvent
	for rows.Next() {
		var e StatusEvent
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &e.AgentID, &e.Call, &e.Status, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan status event: %w", err)
		}
		e.Detail = detail.String
		events = append(events, e)
	}
	return events, rows.Err()
}
