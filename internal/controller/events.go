package controller

const (
	EventRunStarted = "run_started"
	EventRunStopped = "run_stopped"
	EventStatus     = "status"
	EventPosition   = "position"
	EventCommand    = "command"
)

// Event is published on events.agent.<id> for every run boundary, status
// change and location change.
type Event struct {
	Type       string    `json:"type"`
	Agent      int       `json:"agent"`
	RunID      string    `json:"run_id"`
	Call       string    `json:"call,omitempty"`
	Status     string    `json:"status,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Location   []float64 `json:"location,omitempty"`
	Executions int64     `json:"executions"`
	Timestamp  string    `json:"timestamp"`
}
