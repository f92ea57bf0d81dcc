package registry

import (
	"path/filepath"
	"testing"

	"github.com/mtzanidakis/kinema/internal/config"
	"github.com/mtzanidakis/kinema/internal/platform"
	"github.com/mtzanidakis/kinema/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.New(config.StoreConfig{Path: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	agents := map[string]config.AgentDefinition{
		"1": {
			Platform:  "sim",
			Algorithm: "follow",
			Home:      []float64{5, 5, 0},
			MoveSpeed: 3,
		},
		"2": {
			Proximity: 0.5,
		},
	}

	defaults := config.AgentDefinition{
		Platform:        "debugger",
		Algorithm:       "debug",
		MoveSpeed:       1,
		Home:            []float64{0, 0, 0},
		TakeoffAltitude: 2,
		Proximity:       0.1,
		MaxRetries:      3,
	}

	return New(s, agents, defaults, 3), s
}

func TestResolve(t *testing.T) {
	reg, _ := newTestRegistry(t)

	d0 := reg.Resolve(0)
	if d0.Platform != "debugger" || d0.Algorithm != "debug" {
		t.Errorf("expected defaults for agent 0, got %+v", d0)
	}

	d1 := reg.Resolve(1)
	if d1.Platform != "sim" || d1.Algorithm != "follow" || d1.MoveSpeed != 3 {
		t.Errorf("expected overrides for agent 1, got %+v", d1)
	}
	if d1.Proximity != 0.1 || d1.MaxRetries != 3 {
		t.Errorf("expected defaults for unset fields, got %+v", d1)
	}

	d2 := reg.Resolve(2)
	if d2.Proximity != 0.5 || d2.Platform != "debugger" {
		t.Errorf("unexpected agent 2 definition %+v", d2)
	}
}

func TestSync(t *testing.T) {
	reg, s := newTestRegistry(t)

	if err := reg.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	agents, err := s.ListAgents()
	if err != nil {
		t.Fatalf("list agents: %v", err)
	}
	if len(agents) != 3 {
		t.Fatalf("expected 3 agents, got %d", len(agents))
	}

	a, err := reg.Get(1)
	if err != nil {
		t.Fatalf("get agent 1: %v", err)
	}
	if a.Platform != "sim" || a.Home[0] != 5 {
		t.Errorf("unexpected stored agent %+v", a)
	}
}

func TestSyncDeletesStale(t *testing.T) {
	reg, s := newTestRegistry(t)

	_ = s.SaveAgent(&store.Agent{ID: 7, Platform: "sim", Algorithm: "debug"})

	if err := reg.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	stale, err := s.GetAgent(7)
	if err != nil {
		t.Fatalf("get stale: %v", err)
	}
	if stale != nil {
		t.Error("expected agent outside the swarm to be deleted")
	}
}

func TestNewPlatform(t *testing.T) {
	reg, _ := newTestRegistry(t)

	p0, err := reg.NewPlatform(0)
	if err != nil {
		t.Fatalf("platform 0: %v", err)
	}
	if p0.ID() != platform.DebuggerID {
		t.Errorf("expected debugger, got %s", p0.ID())
	}

	p1, err := reg.NewPlatform(1)
	if err != nil {
		t.Fatalf("platform 1: %v", err)
	}
	sim, ok := p1.(*platform.Sim)
	if !ok {
		t.Fatalf("expected *platform.Sim, got %T", p1)
	}
	if v, _ := sim.MoveSpeed(); v != 3 {
		t.Errorf("expected move speed 3, got %v", v)
	}
}

func TestNewPlatformUnknown(t *testing.T) {
	reg, _ := newTestRegistry(t)
	reg.agents["0"] = config.AgentDefinition{Platform: "hovercraft"}
	if _, err := reg.NewPlatform(0); err == nil {
		t.Error("expected unknown platform to fail")
	}
}

func TestNewDecider(t *testing.T) {
	reg, _ := newTestRegistry(t)

	d, err := reg.NewDecider(1)
	if err != nil {
		t.Fatalf("decider 1: %v", err)
	}
	if d.Name() != "follow" {
		t.Errorf("expected follow, got %s", d.Name())
	}

	reg.agents["0"] = config.AgentDefinition{Algorithm: "zigzag"}
	if _, err := reg.NewDecider(0); err == nil {
		t.Error("expected unknown algorithm to fail")
	}
}
