package web

import (
	"slices"
	"sync"
	"time"

	"github.com/mtzanidakis/kinema/internal/controller"
)

// Seen is what the monitor last heard from an agent's controller.
type Seen struct {
	Agent      int       `json:"agent"`
	RunID      string    `json:"run_id"`
	LastSeen   time.Time `json:"last_seen"`
	LastStatus string    `json:"last_status,omitempty"`
	LastCall   string    `json:"last_call,omitempty"`
	Executions int64     `json:"executions"`
	Stopped    bool      `json:"stopped"`
}

// Presence tracks controller liveness from the event stream.
type Presence struct {
	mu     sync.RWMutex
	agents map[int]*Seen
	now    func() time.Time
}

func NewPresence() *Presence {
	return &Presence{
		agents: make(map[int]*Seen),
		now:    time.Now,
	}
}

func (p *Presence) Observe(e controller.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.agents[e.Agent]
	if !ok || s.RunID != e.RunID {
		s = &Seen{Agent: e.Agent, RunID: e.RunID}
		p.agents[e.Agent] = s
	}
	s.LastSeen = p.now()
	s.Executions = e.Executions
	switch e.Type {
	case controller.EventStatus:
		s.LastCall = e.Call
		s.LastStatus = e.Status
	case controller.EventRunStopped:
		s.Stopped = true
	}
}

func (p *Presence) Get(agent int) (Seen, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.agents[agent]
	if !ok {
		return Seen{}, false
	}
	return *s, true
}

// Online reports whether the agent has a running controller heard from
// within timeout.
func (p *Presence) Online(agent int, timeout time.Duration) bool {
	s, ok := p.Get(agent)
	return ok && !s.Stopped && p.now().Sub(s.LastSeen) <= timeout
}

// ListIdle returns agents whose controllers have gone quiet, sorted.
func (p *Presence) ListIdle(timeout time.Duration) []int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var idle []int
	now := p.now()
	for id, s := range p.agents {
		if !s.Stopped && now.Sub(s.LastSeen) > timeout {
			idle = append(idle, id)
		}
	}
	slices.Sort(idle)
	return idle
}
