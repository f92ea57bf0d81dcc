package variables

import (
	"strconv"

	"github.com/mtzanidakis/kinema/internal/knowledge"
)

// AlgorithmState is the coarse state an algorithm publishes about itself.
type AlgorithmState string

const (
	AlgorithmUnknown    AlgorithmState = "unknown"
	AlgorithmOK         AlgorithmState = "ok"
	AlgorithmWaiting    AlgorithmState = "waiting"
	AlgorithmDeadlocked AlgorithmState = "deadlocked"
	AlgorithmFailed     AlgorithmState = "failed"
	AlgorithmPaused     AlgorithmState = "paused"
	AlgorithmFinished   AlgorithmState = "finished"
)

// AlgorithmStatus is the status record of the algorithm bound to one agent.
type AlgorithmStatus struct {
	State      knowledge.String
	Executions knowledge.Integer
}

func NewAlgorithmStatus(vars knowledge.Variables, id int) *AlgorithmStatus {
	p := SelfPrefix(id) + ".algorithm."
	return &AlgorithmStatus{
		State:      knowledge.NewString(vars, p+"state"),
		Executions: knowledge.NewInteger(vars, p+"executions"),
	}
}

func (s *AlgorithmStatus) Mark(state AlgorithmState) error {
	return s.State.Set(string(state))
}

func (s *AlgorithmStatus) Get() (AlgorithmState, error) {
	v, err := s.State.Get()
	if err != nil {
		return AlgorithmUnknown, err
	}
	if v == "" {
		return AlgorithmUnknown, nil
	}
	return AlgorithmState(v), nil
}

// PlatformStatus holds the flags a platform publishes under
// <platform-id>.<agent-id> so other agents can see what it is doing.
type PlatformStatus struct {
	prefix   string
	OK       knowledge.Integer
	Moving   knowledge.Integer
	Rotating knowledge.Integer
	Failed   knowledge.Integer
}

func NewPlatformStatus(vars knowledge.Variables, platformID string, agentID int) *PlatformStatus {
	p := PlatformPrefix(platformID, agentID)
	return &PlatformStatus{
		prefix:   p,
		OK:       knowledge.NewInteger(vars, p+".ok"),
		Moving:   knowledge.NewInteger(vars, p+".moving"),
		Rotating: knowledge.NewInteger(vars, p+".rotating"),
		Failed:   knowledge.NewInteger(vars, p+".failed"),
	}
}

// PlatformPrefix is the namespace of a platform's variables for one agent.
func PlatformPrefix(platformID string, agentID int) string {
	return platformID + "." + strconv.Itoa(agentID)
}

func (s *PlatformStatus) Prefix() string { return s.prefix }

// Update publishes the flags only when they differ from what is stored.
func (s *PlatformStatus) Update(moving, rotating, failed bool) error {
	flags := []struct {
		c knowledge.Integer
		v bool
	}{
		{s.Moving, moving},
		{s.Rotating, rotating},
		{s.Failed, failed},
		{s.OK, !failed},
	}
	for _, f := range flags {
		cur, err := f.c.Get()
		if err != nil {
			return err
		}
		want := int64(0)
		if f.v {
			want = 1
		}
		if cur != want {
			if err := f.c.Set(want); err != nil {
				return err
			}
		}
	}
	return nil
}
