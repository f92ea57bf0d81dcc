// Package registry resolves per-agent definitions and builds the platform
// and decider each agent runs.
package registry

import (
	"fmt"
	"strconv"

	"github.com/mtzanidakis/kinema/internal/algorithm"
	"github.com/mtzanidakis/kinema/internal/config"
	"github.com/mtzanidakis/kinema/internal/platform"
	"github.com/mtzanidakis/kinema/internal/pose"
	"github.com/mtzanidakis/kinema/internal/store"
)

type Registry struct {
	store    *store.Store
	agents   map[string]config.AgentDefinition
	defaults config.AgentDefinition
	size     int
}

func New(s *store.Store, agents map[string]config.AgentDefinition, defaults config.AgentDefinition, size int) *Registry {
	return &Registry{
		store:    s,
		agents:   agents,
		defaults: defaults,
		size:     size,
	}
}

// Sync records the resolved definition of every swarm member and drops
// members that are no longer part of the swarm.
func (r *Registry) Sync() error {
	ids := make([]int, 0, r.size)
	for id := 0; id < r.size; id++ {
		ids = append(ids, id)
		def := r.Resolve(id)
		a := &store.Agent{
			ID:        id,
			Platform:  def.Platform,
			Algorithm: def.Algorithm,
			Home:      def.Home,
			MoveSpeed: def.MoveSpeed,
			Proximity: def.Proximity,
		}
		if err := r.store.SaveAgent(a); err != nil {
			return fmt.Errorf("save agent %d: %w", id, err)
		}
	}

	if err := r.store.DeleteAgentsNotIn(ids); err != nil {
		return fmt.Errorf("delete stale agents: %w", err)
	}
	return nil
}

func (r *Registry) Get(id int) (*store.Agent, error) {
	return r.store.GetAgent(id)
}

func (r *Registry) List() ([]store.Agent, error) {
	return r.store.ListAgents()
}

// Resolve merges the agents.<id> section over the defaults. Zero fields fall
// back to the default value.
func (r *Registry) Resolve(id int) config.AgentDefinition {
	def := r.defaults
	over, ok := r.agents[strconv.Itoa(id)]
	if !ok {
		return def
	}
	if over.Platform != "" {
		def.Platform = over.Platform
	}
	if over.Algorithm != "" {
		def.Algorithm = over.Algorithm
	}
	if over.MoveSpeed != 0 {
		def.MoveSpeed = over.MoveSpeed
	}
	if len(over.Home) == 3 {
		def.Home = over.Home
	}
	if over.TakeoffAltitude != 0 {
		def.TakeoffAltitude = over.TakeoffAltitude
	}
	if over.Proximity != 0 {
		def.Proximity = over.Proximity
	}
	if over.MaxRetries != 0 {
		def.MaxRetries = over.MaxRetries
	}
	return def
}

// NewPlatform builds the platform configured for agent id. The simulator
// starts at the agent's home.
func (r *Registry) NewPlatform(id int, opts ...platform.SimOption) (platform.Platform, error) {
	def := r.Resolve(id)
	switch def.Platform {
	case platform.DebuggerID:
		return platform.NewDebugger(), nil
	case platform.SimID:
		home := pose.FromArray(def.Home)
		return platform.NewSim(platform.SimConfig{
			Start:           home,
			Home:            home,
			MoveSpeed:       def.MoveSpeed,
			TakeoffAltitude: def.TakeoffAltitude,
			Proximity:       def.Proximity,
		}, opts...), nil
	default:
		return nil, fmt.Errorf("agent %d: unknown platform %q", id, def.Platform)
	}
}

func (r *Registry) NewDecider(id int) (algorithm.Decider, error) {
	def := r.Resolve(id)
	d, err := algorithm.New(def.Algorithm, algorithm.Config{
		Proximity:  def.Proximity,
		MaxRetries: def.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("agent %d: %w", id, err)
	}
	return d, nil
}
