package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Run is one controller session of one agent.
type Run struct {
	ID         string     `json:"id"`
	AgentID    int        `json:"agent_id"`
	Platform   string     `json:"platform"`
	Algorithm  string     `json:"algorithm"`
	StartedAt  time.Time  `json:"started_at"`
	StoppedAt  *time.Time `json:"stopped_at,omitempty"`
	Executions int64      `json:"executions"`
	LastError  string     `json:"last_error,omitempty"`
}

func scanRun(scanner interface {
	Scan(dest ...any) error
}) (*Run, error) {
	r := &Run{}
	var lastError sql.NullString
	err := scanner.Scan(&r.ID, &r.AgentID, &r.Platform, &r.Algorithm, &r.StartedAt, &r.StoppedAt, &r.Executions, &lastError)
	if err != nil {
		return nil, err
	}
	r.LastError = lastError.String
	return r, nil
}

func (s *Store) StartRun(r *Run) error {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO runs (id, agent_id, platform, algorithm, started_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.AgentID, r.Platform, r.Algorithm, r.StartedAt)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// UpdateRunExecutions records progress of a run that is still going.
func (s *Store) UpdateRunExecutions(id string, executions int64) error {
	_, err := s.db.Exec(`UPDATE runs SET executions = ? WHERE id = ?`, executions, id)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// FinishRun closes a run; runErr is the error that stopped it, if any.
func (s *Store) FinishRun(id string, executions int64, runErr error) error {
	var lastError *string
	if runErr != nil {
		msg := runErr.Error()
		lastError = &msg
	}
	_, err := s.db.Exec(`UPDATE runs SET stopped_at = ?, executions = ?, last_error = ? WHERE id = ?`,
		time.Now().UTC(), executions, lastError, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// GetRun returns nil when the run is unknown.
func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`SELECT id, agent_id, platform, algorithm, started_at, stopped_at, executions, last_error FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs of an agent first.
func (s *Store) ListRuns(agentID, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, agent_id, platform, algorithm, started_at, stopped_at, executions, last_error
		FROM runs WHERE agent_id = ? ORDER BY started_at DESC LIMIT ?`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}
