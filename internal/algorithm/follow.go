package algorithm

import (
	"fmt"
	"log/slog"

	"github.com/mtzanidakis/kinema/internal/platform"
	"github.com/mtzanidakis/kinema/internal/pose"
	"github.com/mtzanidakis/kinema/internal/variables"
)

// Follow drives the platform to whatever destination was last published
// for the agent. A destination counts as new whenever its sequence number
// changes, so the same point can be commanded twice.
type Follow struct {
	Proximity  float64
	MaxRetries int

	seq     int64
	target  pose.Position
	active  bool
	retries int
	state   variables.AlgorithmState
}

func NewFollow(proximity float64, maxRetries int) *Follow {
	return &Follow{Proximity: proximity, MaxRetries: maxRetries}
}

func (f *Follow) Name() string { return "follow" }

// Target returns the destination being pursued.
func (f *Follow) Target() (pose.Position, bool) {
	return f.target, f.active
}

func (f *Follow) Analyze(b *Binding) (platform.Status, error) {
	dest, seq, err := b.Self().Dest()
	if err != nil {
		return platform.Error, err
	}
	if seq == 0 || seq == f.seq {
		return platform.OK, nil
	}
	slog.Info("new destination", "agent", b.Self().ID(), "dest", dest.String(), "seq", seq)
	f.seq = seq
	f.target = dest
	f.active = true
	f.retries = 0
	return platform.OK, nil
}

// Plan is a no-op: the platform moves in a straight line.
func (f *Follow) Plan(*Binding) (platform.Status, error) {
	return platform.OK, nil
}

func (f *Follow) Execute(b *Binding) (platform.Status, error) {
	if !f.active {
		return platform.OK, f.mark(b, variables.AlgorithmWaiting)
	}

	st, err := b.Platform().Move(f.target, f.Proximity)
	if err != nil {
		return platform.Error, err
	}

	switch st {
	case platform.Arrived:
		f.active = false
		slog.Info("destination reached", "agent", b.Self().ID(), "dest", f.target.String())
		return st, f.mark(b, variables.AlgorithmFinished)
	case platform.InProgress:
		return st, f.mark(b, variables.AlgorithmOK)
	}

	f.retries++
	if err := b.Platform().StopMove(); err != nil {
		return platform.Error, fmt.Errorf("stop after failed move: %w", err)
	}
	if f.retries > f.MaxRetries {
		f.active = false
		slog.Warn("giving up on destination", "agent", b.Self().ID(), "dest", f.target.String(), "attempts", f.retries)
		return st, f.mark(b, variables.AlgorithmFailed)
	}
	slog.Warn("move failed, retrying", "agent", b.Self().ID(), "attempt", f.retries, "max_retries", f.MaxRetries)
	return st, f.mark(b, variables.AlgorithmOK)
}

// mark publishes state changes only.
func (f *Follow) mark(b *Binding, state variables.AlgorithmState) error {
	if f.state == state {
		return nil
	}
	if err := b.Status().Mark(state); err != nil {
		return err
	}
	f.state = state
	return nil
}
