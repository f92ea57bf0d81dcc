// Package algorithm binds decision logic to one agent's platform, identity
// and store handle, and drives its decision cycles.
package algorithm

import (
	"fmt"
	"sync/atomic"

	"github.com/mtzanidakis/kinema/internal/knowledge"
	"github.com/mtzanidakis/kinema/internal/platform"
	"github.com/mtzanidakis/kinema/internal/variables"
)

// ErrNotInitialized is returned by decision methods called before Init.
var ErrNotInitialized = fmt.Errorf("binding not initialized: %w", platform.ErrDeadBinding)

// Decider is the decision unit of an agent. Each phase runs once per cycle,
// in order, and must return promptly.
type Decider interface {
	Name() string
	Analyze(b *Binding) (platform.Status, error)
	Plan(b *Binding) (platform.Status, error)
	Execute(b *Binding) (platform.Status, error)
}

// Context is what the controller hands a binding on Init.
type Context struct {
	KB       knowledge.KnowledgeBase
	Platform platform.Platform
	Self     *variables.Self
	// Status is created under the agent's prefix when nil.
	Status *variables.AlgorithmStatus
}

// Binding owns one decider and the references it operates on.
type Binding struct {
	decider Decider

	kb       knowledge.KnowledgeBase
	platform platform.Platform
	self     *variables.Self
	status   *variables.AlgorithmStatus

	executions atomic.Int64
}

func NewBinding(d Decider) *Binding {
	return &Binding{decider: d}
}

// Init resolves the references the decider works with and resets the
// execution count. Calling it again replaces the previous binding.
func (b *Binding) Init(ctx Context) error {
	if b.decider == nil {
		return fmt.Errorf("init binding: no decider")
	}
	if ctx.KB == nil || ctx.Platform == nil || ctx.Self == nil {
		return fmt.Errorf("init %s: %w", b.decider.Name(), platform.ErrDeadBinding)
	}
	if err := ctx.Self.Alive(); err != nil {
		return fmt.Errorf("init %s: %w: %w", b.decider.Name(), platform.ErrDeadBinding, err)
	}

	status := ctx.Status
	if status == nil {
		status = variables.NewAlgorithmStatus(ctx.KB, ctx.Self.ID())
	}
	if err := status.Executions.Set(0); err != nil {
		return fmt.Errorf("init %s: %w", b.decider.Name(), err)
	}
	if err := ctx.Self.Agent.Algorithm.Set(b.decider.Name()); err != nil {
		return fmt.Errorf("init %s: %w", b.decider.Name(), err)
	}

	b.kb = ctx.KB
	b.platform = ctx.Platform
	b.self = ctx.Self
	b.status = status
	b.executions.Store(0)
	return nil
}

func (b *Binding) check() error {
	if b.kb == nil || b.platform == nil || b.self == nil {
		return ErrNotInitialized
	}
	if err := b.self.Alive(); err != nil {
		return fmt.Errorf("%s: %w: %w", b.decider.Name(), platform.ErrDeadBinding, err)
	}
	return nil
}

func (b *Binding) Name() string { return b.decider.Name() }

func (b *Binding) Platform() platform.Platform            { return b.platform }
func (b *Binding) Self() *variables.Self                  { return b.self }
func (b *Binding) KnowledgeBase() knowledge.KnowledgeBase { return b.kb }
func (b *Binding) Status() *variables.AlgorithmStatus     { return b.status }

// Executions is the number of cycles completed since the last Init.
func (b *Binding) Executions() int64 { return b.executions.Load() }

func (b *Binding) Analyze() (platform.Status, error) {
	if err := b.check(); err != nil {
		return platform.Error, err
	}
	return b.decider.Analyze(b)
}

func (b *Binding) Plan() (platform.Status, error) {
	if err := b.check(); err != nil {
		return platform.Error, err
	}
	return b.decider.Plan(b)
}

func (b *Binding) Execute() (platform.Status, error) {
	if err := b.check(); err != nil {
		return platform.Error, err
	}
	return b.decider.Execute(b)
}

// Cycle runs analyze, plan and execute once and returns the execute status.
// The execution count only advances when all three phases return without
// error and the new count has been published.
func (b *Binding) Cycle() (platform.Status, error) {
	phases := []struct {
		name string
		fn   func() (platform.Status, error)
	}{
		{"analyze", b.Analyze},
		{"plan", b.Plan},
		{"execute", b.Execute},
	}

	var st platform.Status
	for _, p := range phases {
		var err error
		st, err = p.fn()
		if err != nil {
			return platform.Error, fmt.Errorf("%s %s: %w", b.Name(), p.name, err)
		}
		if !st.Valid() {
			return platform.Error, fmt.Errorf("%s %s: undefined status %d", b.Name(), p.name, int(st))
		}
	}

	n := b.executions.Load() + 1
	if err := b.status.Executions.Set(n); err != nil {
		return platform.Error, fmt.Errorf("%s: %w", b.Name(), err)
	}
	b.executions.Store(n)
	return st, nil
}
