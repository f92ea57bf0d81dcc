package variables

import "github.com/mtzanidakis/kinema/internal/knowledge"

// Agent is the agent-specific sub-state of a Self.
type Agent struct {
	Location         knowledge.DoubleArray
	Orientation      knowledge.DoubleArray
	Dest             knowledge.DoubleArray
	DestSeq          knowledge.Integer
	Home             knowledge.DoubleArray
	Source           knowledge.DoubleArray
	BatteryRemaining knowledge.Integer
	IsMobile         knowledge.Integer
	Command          knowledge.String
	Algorithm        knowledge.String
}

// AgentOf binds the Agent containers of agent id. Observers use it to read
// another agent's state without claiming its identity.
func AgentOf(vars knowledge.Variables, id int) Agent {
	p := SelfPrefix(id) + ".agent."
	return Agent{
		Location:         knowledge.NewDoubleArray(vars, p+"location", 3),
		Orientation:      knowledge.NewDoubleArray(vars, p+"orientation", 3),
		Dest:             knowledge.NewDoubleArray(vars, p+"dest", 3),
		DestSeq:          knowledge.NewInteger(vars, p+"dest_seq"),
		Home:             knowledge.NewDoubleArray(vars, p+"home", 3),
		Source:           knowledge.NewDoubleArray(vars, p+"source", 3),
		BatteryRemaining: knowledge.NewInteger(vars, p+"battery_remaining"),
		IsMobile:         knowledge.NewInteger(vars, p+"is_mobile"),
		Command:          knowledge.NewString(vars, p+"command"),
		Algorithm:        knowledge.NewString(vars, p+"algorithm"),
	}
}

// LocationKey is the store key holding agent id's location.
func LocationKey(id int) string {
	return SelfPrefix(id) + ".agent.location"
}

// PublishDest writes a new destination for agent id and bumps its sequence
// number, so that repeating the same point still reads as a fresh command.
// It is the operator-side counterpart of Self.Dest.
func PublishDest(vars knowledge.Variables, id int, dest []float64) (int64, error) {
	a := AgentOf(vars, id)
	if err := a.Dest.Set(dest); err != nil {
		return 0, err
	}
	return a.DestSeq.Inc()
}
