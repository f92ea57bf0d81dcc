package algorithm

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mtzanidakis/kinema/internal/knowledge"
	"github.com/mtzanidakis/kinema/internal/platform"
	"github.com/mtzanidakis/kinema/internal/pose"
	"github.com/mtzanidakis/kinema/internal/variables"
)

func debugBinding(t *testing.T) (*Binding, *knowledge.Memory, *variables.Self) {
	t.Helper()
	kb := knowledge.NewMemory()
	self, err := variables.NewSelf(kb, 0)
	if err != nil {
		t.Fatalf("new self: %v", err)
	}
	p := platform.NewDebugger()
	if err := p.Attach(kb, self); err != nil {
		t.Fatalf("attach: %v", err)
	}
	b := NewBinding(Debug{})
	if err := b.Init(Context{KB: kb, Platform: p, Self: self}); err != nil {
		t.Fatalf("init: %v", err)
	}
	return b, kb, self
}

func TestBindingBeforeInit(t *testing.T) {
	b := NewBinding(Debug{})

	st, err := b.Analyze()
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
	if !errors.Is(err, platform.ErrDeadBinding) {
		t.Errorf("expected ErrDeadBinding in chain, got %v", err)
	}
	if st != platform.Error {
		t.Errorf("expected Error status, got %v", st)
	}
	if _, err := b.Cycle(); err == nil {
		t.Error("expected cycle before init to fail")
	}
	if b.Executions() != 0 {
		t.Errorf("expected no executions, got %d", b.Executions())
	}
}

func TestBindingCountsCycles(t *testing.T) {
	b, kb, _ := debugBinding(t)

	for i := 0; i < 5; i++ {
		if _, err := b.Cycle(); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}
	if b.Executions() != 5 {
		t.Errorf("expected 5 executions, got %d", b.Executions())
	}
	v, _, _ := kb.Get("self.0.algorithm.executions")
	if v.AsInt() != 5 {
		t.Errorf("expected published executions 5, got %v", v)
	}
	if v, _, _ := kb.Get("self.0.agent.algorithm"); v.Str != "debug" {
		t.Errorf("expected algorithm name published, got %v", v)
	}
}

// flakyExecutions fails writes of the executions counter while broken is set.
type flakyExecutions struct {
	*knowledge.Memory
	broken bool
}

func (f *flakyExecutions) Set(key string, v knowledge.Value) error {
	if f.broken && strings.HasSuffix(key, ".algorithm.executions") {
		return errors.New("write refused")
	}
	return f.Memory.Set(key, v)
}

func TestBindingCountsOnlyPublishedCycles(t *testing.T) {
	kb := &flakyExecutions{Memory: knowledge.NewMemory()}
	self, err := variables.NewSelf(kb, 0)
	if err != nil {
		t.Fatalf("new self: %v", err)
	}
	p := platform.NewDebugger()
	if err := p.Attach(kb, self); err != nil {
		t.Fatalf("attach: %v", err)
	}
	b := NewBinding(Debug{})
	if err := b.Init(Context{KB: kb, Platform: p, Self: self}); err != nil {
		t.Fatalf("init: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := b.Cycle(); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}

	kb.broken = true
	if _, err := b.Cycle(); err == nil {
		t.Fatal("expected cycle to fail when the count cannot be published")
	}
	if n := b.Executions(); n != 2 {
		t.Errorf("expected executions to stay at 2, got %d", n)
	}
	if v, _, _ := kb.Get("self.0.algorithm.executions"); v.AsInt() != 2 {
		t.Errorf("expected published executions 2, got %v", v)
	}

	kb.broken = false
	if _, err := b.Cycle(); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if n := b.Executions(); n != 3 {
		t.Errorf("expected executions 3, got %d", n)
	}
	if v, _, _ := kb.Get("self.0.algorithm.executions"); v.AsInt() != 3 {
		t.Errorf("expected published executions 3, got %v", v)
	}
}

func TestBindingReinitResets(t *testing.T) {
	b, kb, self := debugBinding(t)
	_, _ = b.Cycle()
	_, _ = b.Cycle()

	p := platform.NewDebugger()
	_ = p.Attach(kb, self)
	if err := b.Init(Context{KB: kb, Platform: p, Self: self}); err != nil {
		t.Fatalf("reinit: %v", err)
	}
	if b.Executions() != 0 {
		t.Errorf("expected reset to 0, got %d", b.Executions())
	}
	if b.Platform() != platform.Platform(p) {
		t.Error("expected new platform after reinit")
	}
}

func TestBindingDeadIdentity(t *testing.T) {
	b, _, self := debugBinding(t)
	self.Release()

	_, err := b.Cycle()
	if !errors.Is(err, platform.ErrDeadBinding) {
		t.Errorf("expected ErrDeadBinding, got %v", err)
	}
	if b.Executions() != 0 {
		t.Errorf("expected failed cycle not counted, got %d", b.Executions())
	}
}

func TestInitRejectsMissingReferences(t *testing.T) {
	kb := knowledge.NewMemory()
	self, _ := variables.NewSelf(kb, 0)
	b := NewBinding(Debug{})

	if err := b.Init(Context{KB: kb, Self: self}); !errors.Is(err, platform.ErrDeadBinding) {
		t.Errorf("expected ErrDeadBinding without platform, got %v", err)
	}
	self.Release()
	err := b.Init(Context{KB: kb, Platform: platform.NewDebugger(), Self: self})
	if !errors.Is(err, variables.ErrReleased) {
		t.Errorf("expected ErrReleased, got %v", err)
	}
}

func TestNew(t *testing.T) {
	for _, name := range Names {
		d, err := New(name, Config{Proximity: 0.1, MaxRetries: 1})
		if err != nil {
			t.Fatalf("new %s: %v", name, err)
		}
		if d.Name() != name {
			t.Errorf("expected %s, got %s", name, d.Name())
		}
	}
	if _, err := New("zigzag", Config{}); err == nil {
		t.Error("expected unknown algorithm to fail")
	}
	if _, err := New("follow", Config{}); err == nil {
		t.Error("expected follow without proximity to fail")
	}
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func followBinding(t *testing.T, retries int) (*Binding, *Follow, *platform.Sim, *clock, *knowledge.Memory) {
	t.Helper()
	c := &clock{t: time.Unix(1700000000, 0)}
	kb := knowledge.NewMemory()
	self, _ := variables.NewSelf(kb, 0)
	sim := platform.NewSim(platform.SimConfig{MoveSpeed: 1}, platform.WithClock(c.now))
	if err := sim.Attach(kb, self); err != nil {
		t.Fatalf("attach: %v", err)
	}
	f := NewFollow(0.1, retries)
	b := NewBinding(f)
	if err := b.Init(Context{KB: kb, Platform: sim, Self: self}); err != nil {
		t.Fatalf("init: %v", err)
	}
	return b, f, sim, c, kb
}

func state(t *testing.T, b *Binding) variables.AlgorithmState {
	t.Helper()
	s, err := b.Status().Get()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	return s
}

func TestFollowWaitsWithoutDestination(t *testing.T) {
	b, _, _, _, _ := followBinding(t, 0)
	if _, err := b.Cycle(); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if s := state(t, b); s != variables.AlgorithmWaiting {
		t.Errorf("expected waiting, got %s", s)
	}
}

func TestFollowReachesDestination(t *testing.T) {
	b, _, sim, c, kb := followBinding(t, 0)
	if _, err := variables.PublishDest(kb, 0, []float64{2, 0, 0}); err != nil {
		t.Fatal(err)
	}

	st, _ := b.Cycle()
	if st != platform.InProgress {
		t.Fatalf("expected InProgress, got %v", st)
	}
	c.t = c.t.Add(3 * time.Second)
	st, _ = b.Cycle()
	if st != platform.Arrived {
		t.Fatalf("expected Arrived, got %v", st)
	}
	if s := state(t, b); s != variables.AlgorithmFinished {
		t.Errorf("expected finished, got %s", s)
	}
	_, _ = sim.Sense()
	pos, _ := sim.Position()
	if pos != pose.NewPosition(2, 0, 0) {
		t.Errorf("unexpected position %v", pos)
	}

	// a fresh publish of the same point is a new command
	_, _ = variables.PublishDest(kb, 0, []float64{2, 0, 0})
	if st, _ := b.Cycle(); st != platform.Arrived {
		t.Errorf("expected immediate arrival, got %v", st)
	}
}

func TestFollowRetriesThenFails(t *testing.T) {
	b, f, sim, _, kb := followBinding(t, 2)
	_, _ = variables.PublishDest(kb, 0, []float64{5, 0, 0})
	sim.InjectFault(errors.New("rotor"))

	for i := 0; i < 3; i++ {
		st, err := b.Cycle()
		if err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
		if st != platform.Error {
			t.Fatalf("cycle %d: expected Error, got %v", i, st)
		}
	}
	if s := state(t, b); s != variables.AlgorithmFailed {
		t.Errorf("expected failed after retries, got %s", s)
	}
	if _, ok := f.Target(); ok {
		t.Error("expected follow to drop the destination")
	}
}

func TestFollowRecoversAfterFault(t *testing.T) {
	b, _, sim, c, kb := followBinding(t, 3)
	_, _ = variables.PublishDest(kb, 0, []float64{1, 0, 0})
	sim.InjectFault(nil)

	if st, _ := b.Cycle(); st != platform.Error {
		t.Fatalf("expected Error, got %v", st)
	}
	sim.ClearFault()
	if st, _ := b.Cycle(); st != platform.InProgress {
		t.Fatalf("expected retry to proceed, got %v", st)
	}
	c.t = c.t.Add(time.Second)
	if st, _ := b.Cycle(); st != platform.Arrived {
		t.Errorf("expected Arrived, got %v", st)
	}
}

func TestFollowStoreUnavailable(t *testing.T) {
	b, _, _, _, kb := followBinding(t, 0)
	_ = kb.Close()
	if _, err := b.Cycle(); !errors.Is(err, knowledge.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}
