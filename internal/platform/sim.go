package platform

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mtzanidakis/kinema/internal/knowledge"
	"github.com/mtzanidakis/kinema/internal/pose"
	"github.com/mtzanidakis/kinema/internal/variables"
)

const (
	SimID   = "sim"
	SimName = "Kinematic Simulator"

	// Angular rate of the simulated actuator in rad/s.
	simTurnRate = math.Pi / 2
	// Tolerance used for Rotate goals in radians.
	simAngleTolerance = 0.01
)

// SimConfig describes the simulated vehicle.
type SimConfig struct {
	Start           pose.Position
	Home            pose.Position
	MoveSpeed       float64
	TakeoffAltitude float64
	// Proximity is the tolerance used by Home, Land and Takeoff.
	Proximity float64
}

type SimOption func(*Sim)

// WithClock replaces time.Now, letting tests drive the simulation.
func WithClock(now func() time.Time) SimOption {
	return func(s *Sim) { s.now = now }
}

// Sim is a kinematic simulator. Motion is integrated from elapsed clock time
// whenever the platform is called, so no call ever waits for it.
type Sim struct {
	Base
	cfg SimConfig
	now func() time.Time

	pos    pose.Position
	sensed pose.Position
	axes   pose.Axes
	speed  float64
	last   time.Time
	move   Tracker[pose.Position]
	rotate Tracker[pose.Axes]
	fault  error
}

func NewSim(cfg SimConfig, opts ...SimOption) *Sim {
	if cfg.Proximity <= 0 {
		cfg.Proximity = 0.1
	}
	s := &Sim{
		Base:   NewBase(SimID, SimName),
		cfg:    cfg,
		now:    time.Now,
		pos:    cfg.Start,
		sensed: cfg.Start,
		speed:  cfg.MoveSpeed,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.last = s.now()
	return s
}

func (s *Sim) Attach(kb knowledge.KnowledgeBase, self *variables.Self) error {
	if err := s.Base.Attach(kb, self); err != nil {
		return err
	}
	s.last = s.now()
	return nil
}

// advance integrates motion toward the active goals up to the current time.
func (s *Sim) advance() {
	now := s.now()
	dt := now.Sub(s.last).Seconds()
	s.last = now
	if dt <= 0 || s.fault != nil {
		return
	}
	if goal, _, ok := s.move.Goal(); ok {
		s.pos = s.pos.Toward(goal, s.speed*dt)
	}
	if goal, _, ok := s.rotate.Goal(); ok {
		s.axes = s.axes.Toward(goal, simTurnRate*dt)
	}
}

func (s *Sim) publish() error {
	return s.publishStatus(s.move.Busy(), s.rotate.Busy(), s.fault != nil || s.move.Failed() || s.rotate.Failed())
}

func (s *Sim) Analyze() (Status, error) {
	if err := s.Check(); err != nil {
		return Error, err
	}
	s.advance()
	if err := s.publish(); err != nil {
		return Error, err
	}
	if s.fault != nil {
		return Error, nil
	}
	return OK, nil
}

func (s *Sim) Accuracy() (float64, error)         { return s.cfg.Proximity, nil }
func (s *Sim) PositionAccuracy() (float64, error) { return s.cfg.Proximity / 2, nil }
func (s *Sim) MinSensorRange() (float64, error)   { return 0, nil }

// Position is the estimate taken by the last Sense, the same value published
// as the agent location.
func (s *Sim) Position() (pose.Position, error) {
	if err := s.Check(); err != nil {
		return pose.Position{}, err
	}
	return s.sensed, nil
}

// Orientation is the current attitude of the vehicle.
func (s *Sim) Orientation() pose.Axes {
	s.advance()
	return s.axes
}

func (s *Sim) Move(target pose.Position, proximity float64) (Status, error) {
	if err := s.Check(); err != nil {
		return Error, err
	}
	s.advance()
	if s.move.Set(target, proximity) {
		slog.Debug("sim goal", "agent", s.self.ID(), "target", target.String(), "proximity", proximity)
	}
	if s.fault != nil {
		s.move.Fail()
	}
	st := s.move.Resolve(s.pos.Within(target, proximity))
	if err := s.publish(); err != nil {
		return Error, err
	}
	return st, nil
}

func (s *Sim) Rotate(axes pose.Axes) (Status, error) {
	if err := s.Check(); err != nil {
		return Error, err
	}
	s.advance()
	s.rotate.Set(axes, simAngleTolerance)
	if s.fault != nil {
		s.rotate.Fail()
	}
	st := s.rotate.Resolve(s.axes.Within(axes, simAngleTolerance))
	if err := s.publish(); err != nil {
		return Error, err
	}
	return st, nil
}

func (s *Sim) Home() (Status, error) {
	return s.Move(s.cfg.Home, s.cfg.Proximity)
}

// Takeoff climbs vertically from where the vehicle is when first called.
func (s *Sim) Takeoff() (Status, error) {
	return s.Move(s.vertical(s.cfg.TakeoffAltitude), s.cfg.Proximity)
}

func (s *Sim) Land() (Status, error) {
	return s.Move(s.vertical(0), s.cfg.Proximity)
}

// vertical keeps an in-flight vertical goal so repeated calls stay idempotent
// while the vehicle climbs or descends.
func (s *Sim) vertical(z float64) pose.Position {
	if goal, _, ok := s.move.Goal(); ok && goal.Z == z {
		return goal
	}
	s.advance()
	p := s.pos
	p.Z = z
	return p
}

func (s *Sim) StopMove() error {
	s.advance()
	s.move.Stop()
	s.rotate.Stop()
	if s.Check() != nil {
		return nil
	}
	return s.publish()
}

func (s *Sim) Sense() (Status, error) {
	if err := s.Check(); err != nil {
		return Error, err
	}
	s.advance()
	s.sensed = s.pos
	if err := s.publishLocation(s.sensed); err != nil {
		return Error, err
	}
	if err := s.self.SetOrientation(s.axes); err != nil {
		return Error, fmt.Errorf("publish orientation: %w", err)
	}
	return OK, nil
}

func (s *Sim) MoveSpeed() (float64, error) { return s.speed, nil }

func (s *Sim) SetMoveSpeed(speed float64) error {
	if speed < 0 || math.IsNaN(speed) {
		return fmt.Errorf("set move speed: invalid speed %v", speed)
	}
	s.advance()
	s.speed = speed
	return nil
}

// InjectFault makes every actuation report Error until ClearFault followed
// by StopMove. The vehicle halts where it is.
func (s *Sim) InjectFault(cause error) {
	s.advance()
	if cause == nil {
		cause = fmt.Errorf("injected fault")
	}
	s.fault = cause
	s.move.Fail()
	s.rotate.Fail()
}

func (s *Sim) ClearFault() {
	s.last = s.now()
	s.fault = nil
}

// Fault returns the injected fault, if any.
func (s *Sim) Fault() error { return s.fault }
