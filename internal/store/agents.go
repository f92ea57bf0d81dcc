package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Agent is the resolved definition of one swarm member.
type Agent struct {
	ID        int       `json:"id"`
	Platform  string    `json:"platform"`
	Algorithm string    `json:"algorithm"`
	Home      []float64 `json:"home,omitempty"`
	MoveSpeed float64   `json:"move_speed"`
	Proximity float64   `json:"proximity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Store) SaveAgent(a *Agent) error {
	home, err := json.Marshal(a.Home)
	if err != nil {
		return fmt.Errorf("marshal home: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO agents (id, platform, algorithm, home, move_speed, proximity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			platform = excluded.platform,
			algorithm = excluded.algorithm,
			home = excluded.home,
			move_speed = excluded.move_speed,
			proximity = excluded.proximity,
			updated_at = CURRENT_TIMESTAMP`,
		a.ID, a.Platform, a.Algorithm, string(home), a.MoveSpeed, a.Proximity)
	if err != nil {
		return fmt.Errorf("save agent: %w", err)
	}
	return nil
}

func scanAgent(scanner interface {
	Scan(dest ...any) error
}) (*Agent, error) {
	a := &Agent{}
	var home sql.NullString
	if err := scanner.Scan(&a.ID, &a.Platform, &a.Algorithm, &home, &a.MoveSpeed, &a.Proximity, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if home.Valid && home.String != "" {
		if err := json.Unmarshal([]byte(home.String), &a.Home); err != nil {
			return nil, fmt.Errorf("decode home: %w", err)
		}
	}
	return a, nil
}

// GetAgent returns nil when the agent is unknown.
func (s *Store) GetAgent(id int) (*Agent, error) {
	row := s.db.QueryRow(`SELECT id, platform, algorithm, home, move_speed, proximity, created_at, updated_at FROM agents WHERE id = ?`, id)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

func (s *Store) ListAgents() ([]Agent, error) {
	rows, err := s.db.Query(`SELECT id, platform, algorithm, home, move_speed, proximity, created_at, updated_at FROM agents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

// DeleteAgentsNotIn removes definitions for agents that left the swarm.
func (s *Store) DeleteAgentsNotIn(ids []int) error {
	if len(ids) == 0 {
		_, err := s.db.Exec(`DELETE FROM agents`)
		return err
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.Exec(`DELETE FROM agents WHERE id NOT IN (`+placeholders+`)`, args...)
	return err
}
