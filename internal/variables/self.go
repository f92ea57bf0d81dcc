// Package variables maps agent-published state onto knowledge base keys.
//
// Layout:
//
//	swarm.size                     number of agents
//	self.<id>.id                   agent index
//	self.<id>.agent.<field>        Agent sub-state (location, dest, ...)
//	self.<id>.algorithm.<field>    AlgorithmStatus
//	<platform>.<id>.<field>        PlatformStatus and platform diagnostics
package variables

import (
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/mtzanidakis/kinema/internal/knowledge"
	"github.com/mtzanidakis/kinema/internal/pose"
)

// ErrReleased is returned by a Self after Release.
var ErrReleased = errors.New("identity released")

// Self is the published identity of the agent owned by this process. Only the
// owning agent writes it; any number of observers read the same keys.
type Self struct {
	id       int
	Agent    Agent
	idVar    knowledge.Integer
	released atomic.Bool
}

// NewSelf attaches identity id to a store view, which may be a full knowledge
// base or any narrower Variables implementation. When swarm.size is known the
// id must fall in [0, size-1].
func NewSelf(vars knowledge.Variables, id int) (*Self, error) {
	if vars == nil {
		return nil, fmt.Errorf("attach self %d: %w", id, knowledge.ErrUnbound)
	}
	if id < 0 {
		return nil, fmt.Errorf("attach self: negative agent id %d", id)
	}

	size, err := NewSwarm(vars).Size()
	if err != nil {
		return nil, fmt.Errorf("attach self %d: %w", id, err)
	}
	if size > 0 && int64(id) >= size {
		return nil, fmt.Errorf("attach self: agent id %d outside swarm of %d", id, size)
	}

	s := &Self{
		id:    id,
		Agent: AgentOf(vars, id),
		idVar: knowledge.NewInteger(vars, SelfPrefix(id)+".id"),
	}
	if err := s.idVar.Set(int64(id)); err != nil {
		return nil, fmt.Errorf("attach self %d: %w", id, err)
	}
	return s, nil
}

// SelfPrefix is the key prefix of agent id.
func SelfPrefix(id int) string {
	return "self." + strconv.Itoa(id)
}

// ID is fixed for the lifetime of the identity.
func (s *Self) ID() int { return s.id }

// Alive reports ErrReleased once the identity has been released.
func (s *Self) Alive() error {
	if s == nil || s.released.Load() {
		return ErrReleased
	}
	return nil
}

// Release detaches the identity from the store. Later accesses through the
// helper methods fail with ErrReleased.
func (s *Self) Release() {
	s.released.Store(true)
}

func (s *Self) Location() (pose.Position, error) {
	if err := s.Alive(); err != nil {
		return pose.Position{}, err
	}
	v, err := s.Agent.Location.Get()
	if err != nil {
		return pose.Position{}, err
	}
	return pose.FromArray(v), nil
}

// SetLocation publishes all three components in a single write.
func (s *Self) SetLocation(p pose.Position) error {
	if err := s.Alive(); err != nil {
		return err
	}
	return s.Agent.Location.Set(p.Array())
}

func (s *Self) Orientation() (pose.Axes, error) {
	if err := s.Alive(); err != nil {
		return pose.Axes{}, err
	}
	v, err := s.Agent.Orientation.Get()
	if err != nil {
		return pose.Axes{}, err
	}
	return pose.AxesFromArray(v), nil
}

func (s *Self) SetOrientation(a pose.Axes) error {
	if err := s.Alive(); err != nil {
		return err
	}
	return s.Agent.Orientation.Set(a.Array())
}

// Dest returns the published destination with its sequence number. A zero
// sequence means no destination was ever published.
func (s *Self) Dest() (pose.Position, int64, error) {
	if err := s.Alive(); err != nil {
		return pose.Position{}, 0, err
	}
	v, err := s.Agent.Dest.Get()
	if err != nil {
		return pose.Position{}, 0, err
	}
	seq, err := s.Agent.DestSeq.Get()
	if err != nil {
		return pose.Position{}, 0, err
	}
	return pose.FromArray(v), seq, nil
}

func (s *Self) String() string {
	return fmt.Sprintf("self{id:%d}", s.id)
}
