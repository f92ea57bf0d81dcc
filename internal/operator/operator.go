// Package operator turns operator commands into knowledge base writes. The
// CLI and the Telegram bot share it.
package operator

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/mtzanidakis/kinema/internal/controller"
	"github.com/mtzanidakis/kinema/internal/knowledge"
	"github.com/mtzanidakis/kinema/internal/variables"
)

// Help lists the accepted commands.
const Help = `Commands:
/positions - where every agent is
/status - algorithm state of every agent
/goto <agent> <x> <y> <z> - send an agent somewhere
/command <agent> <home|land|takeoff|stop> - run a maneuver
/clear <agent> - cancel the active maneuver`

// ErrUsage marks a command called with the wrong arguments.
var ErrUsage = errors.New("usage")

// Operator runs commands against the swarm.
type Operator struct {
	kb knowledge.Variables
}

func New(kb knowledge.Variables) *Operator {
	return &Operator{kb: kb}
}

// Handle runs one command and returns the reply text.
func (o *Operator) Handle(name string, args []string) (string, error) {
	switch name {
	case "start", "help":
		return Help, nil
	case "positions":
		return o.positions()
	case "status":
		return o.status()
	case "goto":
		return o.goTo(args)
	case "command":
		return o.command(args)
	case "clear":
		if len(args) != 1 {
			return "", fmt.Errorf("%w: clear <agent>", ErrUsage)
		}
		id, err := o.agentID(args[0])
		if err != nil {
			return "", err
		}
		if err := variables.AgentOf(o.kb, id).Command.Set(""); err != nil {
			return "", err
		}
		return fmt.Sprintf("Agent %d: command cleared", id), nil
	default:
		return "Unknown command.\n\n" + Help, nil
	}
}

func (o *Operator) positions() (string, error) {
	locations, err := variables.NewSwarm(o.kb).Locations()
	if err != nil {
		return "", err
	}
	if len(locations) == 0 {
		return "No agent has reported a position yet.", nil
	}

	ids := make([]int, 0, len(locations))
	for id := range locations {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var sb strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&sb, "Agent %d: %s\n", id, locations[id])
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (o *Operator) status() (string, error) {
	size, err := variables.NewSwarm(o.kb).Size()
	if err != nil {
		return "", err
	}
	if size == 0 {
		return "Swarm size unknown.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Swarm of %d\n", size)
	for id := 0; id < int(size); id++ {
		st := variables.NewAlgorithmStatus(o.kb, id)
		state, err := st.Get()
		if err != nil {
			return "", err
		}
		n, err := st.Executions.Get()
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "Agent %d: %s after %d cycles\n", id, state, n)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (o *Operator) goTo(args []string) (string, error) {
	if len(args) != 4 {
		return "", fmt.Errorf("%w: goto <agent> <x> <y> <z>", ErrUsage)
	}
	id, err := o.agentID(args[0])
	if err != nil {
		return "", err
	}
	dest := make([]float64, 3)
	for i, a := range args[1:] {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return "", fmt.Errorf("invalid coordinate %q", a)
		}
		dest[i] = v
	}

	seq, err := variables.PublishDest(o.kb, id, dest)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Agent %d: heading to [%g %g %g] (#%d)", id, dest[0], dest[1], dest[2], seq), nil
}

func (o *Operator) command(args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("%w: command <agent> <%s>", ErrUsage, strings.Join(controller.Commands, "|"))
	}
	id, err := o.agentID(args[0])
	if err != nil {
		return "", err
	}
	cmd := strings.ToLower(args[1])
	if !slices.Contains(controller.Commands, cmd) {
		return "", fmt.Errorf("unknown command %q", args[1])
	}
	if err := variables.AgentOf(o.kb, id).Command.Set(cmd); err != nil {
		return "", err
	}
	return fmt.Sprintf("Agent %d: %s", id, cmd), nil
}

// agentID accepts ids inside the published swarm size.
func (o *Operator) agentID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid agent id %q", raw)
	}
	size, err := variables.NewSwarm(o.kb).Size()
	if err != nil {
		return 0, err
	}
	if int64(id) >= size {
		return 0, fmt.Errorf("agent %d is outside a swarm of %d", id, size)
	}
	return id, nil
}
