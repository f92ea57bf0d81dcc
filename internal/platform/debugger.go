package platform

import (
	"log/slog"

	"github.com/mtzanidakis/kinema/internal/knowledge"
	"github.com/mtzanidakis/kinema/internal/pose"
	"github.com/mtzanidakis/kinema/internal/variables"
)

const (
	DebuggerID   = "debugger"
	DebuggerName = "Debugger"
)

// Debugger is a conformance fixture: it never moves, reports success for
// every maneuver and counts its calls under <id>.<agent>.executions.
type Debugger struct {
	Base
	executions knowledge.Integer
	speed      float64
}

func NewDebugger() *Debugger {
	return &Debugger{Base: NewBase(DebuggerID, DebuggerName)}
}

func (d *Debugger) Attach(kb knowledge.KnowledgeBase, self *variables.Self) error {
	if err := d.Base.Attach(kb, self); err != nil {
		return err
	}
	d.executions = knowledge.NewInteger(kb, d.Prefix()+".executions")
	return nil
}

// call bumps the published counter and logs the invocation.
func (d *Debugger) call(method string) error {
	if err := d.Check(); err != nil {
		return err
	}
	n, err := d.executions.Inc()
	if err != nil {
		return err
	}
	slog.Debug("platform call", "agent", d.self.ID(), "executions", n, "method", method)
	return nil
}

func (d *Debugger) status(method string) (Status, error) {
	if err := d.call(method); err != nil {
		return Error, err
	}
	return Arrived, nil
}

// Executions returns the number of calls made since the counter was created.
func (d *Debugger) Executions() (int64, error) {
	if err := d.Check(); err != nil {
		return 0, err
	}
	return d.executions.Get()
}

func (d *Debugger) Analyze() (Status, error) { return d.status("analyze") }
func (d *Debugger) Home() (Status, error)    { return d.status("home") }
func (d *Debugger) Land() (Status, error)    { return d.status("land") }
func (d *Debugger) Takeoff() (Status, error) { return d.status("takeoff") }

func (d *Debugger) Move(target pose.Position, proximity float64) (Status, error) {
	return d.status("move")
}

func (d *Debugger) Rotate(axes pose.Axes) (Status, error) {
	return d.status("rotate")
}

func (d *Debugger) StopMove() error {
	if d.Check() != nil {
		return nil
	}
	return d.call("stop_move")
}

func (d *Debugger) Sense() (Status, error) {
	if err := d.call("sense"); err != nil {
		return Error, err
	}
	if err := d.publishLocation(pose.Position{}); err != nil {
		return Error, err
	}
	return OK, nil
}

func (d *Debugger) Position() (pose.Position, error) {
	if err := d.call("get_position"); err != nil {
		return pose.Position{}, err
	}
	return pose.Position{}, nil
}

func (d *Debugger) Accuracy() (float64, error) {
	return 0, d.call("get_accuracy")
}

func (d *Debugger) PositionAccuracy() (float64, error) {
	return 0, d.call("get_position_accuracy")
}

func (d *Debugger) MinSensorRange() (float64, error) {
	return 0, d.call("get_min_sensor_range")
}

func (d *Debugger) MoveSpeed() (float64, error) {
	return d.speed, d.call("get_move_speed")
}

func (d *Debugger) SetMoveSpeed(speed float64) error {
	if err := d.call("set_move_speed"); err != nil {
		return err
	}
	d.speed = speed
	return nil
}
