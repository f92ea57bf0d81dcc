package controller

import (
	"fmt"
	"log/slog"

	"github.com/mtzanidakis/kinema/internal/platform"
)

// Operator commands read from self.<id>.agent.command. While one is active
// it replaces the decision cycle; it is cleared once the maneuver arrives.
const (
	CommandHome    = "home"
	CommandLand    = "land"
	CommandTakeoff = "takeoff"
	CommandStop    = "stop"
)

// Commands lists the accepted command names.
var Commands = []string{CommandHome, CommandLand, CommandTakeoff, CommandStop}

// runCommand reports whether a command consumed this cycle.
func (c *Controller) runCommand() (bool, error) {
	cmd, err := c.self.Agent.Command.Get()
	if err != nil {
		return false, fmt.Errorf("read command: %w", err)
	}
	if cmd == "" {
		c.command = ""
		return false, nil
	}
	if cmd != c.command {
		c.command = cmd
		slog.Info("operator command", "agent", c.self.ID(), "command", cmd)
		c.publish(Event{Type: EventCommand, Call: cmd})
	}

	var st platform.Status
	switch cmd {
	case CommandHome:
		st, err = c.platform.Home()
	case CommandLand:
		st, err = c.platform.Land()
	case CommandTakeoff:
		st, err = c.platform.Takeoff()
	case CommandStop:
		err = c.platform.StopMove()
		st = platform.OK
	default:
		slog.Warn("ignoring unknown command", "agent", c.self.ID(), "command", cmd)
		return false, c.clearCommand()
	}
	if err := c.observe(cmd, st, err); err != nil {
		return true, err
	}
	if st == platform.Arrived {
		return true, c.clearCommand()
	}
	return true, nil
}

func (c *Controller) clearCommand() error {
	c.command = ""
	if err := c.self.Agent.Command.Set(""); err != nil {
		return fmt.Errorf("clear command: %w", err)
	}
	return nil
}
