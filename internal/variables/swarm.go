package variables

import (
	"github.com/mtzanidakis/kinema/internal/knowledge"
	"github.com/mtzanidakis/kinema/internal/pose"
)

// Swarm holds swarm-wide variables.
type Swarm struct {
	vars    knowledge.Variables
	sizeVar knowledge.Integer
}

func NewSwarm(vars knowledge.Variables) *Swarm {
	return &Swarm{vars: vars, sizeVar: knowledge.NewInteger(vars, "swarm.size")}
}

// Size returns the published swarm size, zero when unknown.
func (s *Swarm) Size() (int64, error) {
	return s.sizeVar.Get()
}

func (s *Swarm) SetSize(n int) error {
	return s.sizeVar.Set(int64(n))
}

// Locations reads the published location of every agent that has one.
func (s *Swarm) Locations() (map[int]pose.Position, error) {
	n, err := s.Size()
	if err != nil {
		return nil, err
	}
	out := make(map[int]pose.Position, n)
	for id := 0; id < int(n); id++ {
		v, ok, err := s.vars.Get(LocationKey(id))
		if err != nil {
			return nil, err
		}
		if ok {
			out[id] = pose.FromArray(v.AsDoubles())
		}
	}
	return out, nil
}
