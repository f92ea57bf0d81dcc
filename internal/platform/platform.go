// Package platform defines the actuation contract every agent drives.
//
// No method blocks for the duration of the physical action it starts. Long
// actions return InProgress after initiation and are polled by calling the
// same method again with the same goal.
package platform

import (
	"errors"
	"regexp"

	"github.com/mtzanidakis/kinema/internal/knowledge"
	"github.com/mtzanidakis/kinema/internal/pose"
	"github.com/mtzanidakis/kinema/internal/variables"
)

// ErrDeadBinding reports that the store or identity a platform depends on
// is gone, or was never attached.
var ErrDeadBinding = errors.New("dead binding")

var idPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidID reports whether id can be used as a store path segment.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

type Platform interface {
	// Analyze checks platform health for this cycle.
	Analyze() (Status, error)

	Accuracy() (float64, error)
	PositionAccuracy() (float64, error)
	// Position is the best current estimate; it may be stale between senses.
	Position() (pose.Position, error)

	Home() (Status, error)
	Land() (Status, error)
	Takeoff() (Status, error)

	// Move starts or continues translation toward target and reports Arrived
	// once the position is within proximity of it. Calling it again with the
	// same goal continues the same maneuver; a different goal replaces it.
	Move(target pose.Position, proximity float64) (Status, error)
	// Rotate turns to the given absolute extrinsic angles.
	Rotate(axes pose.Axes) (Status, error)
	// StopMove cancels any translation or rotation. It is a no-op when idle.
	StopMove() error

	// Sense reads sensors and publishes the resulting position into the
	// bound identity.
	Sense() (Status, error)

	MinSensorRange() (float64, error)
	MoveSpeed() (float64, error)
	SetMoveSpeed(speed float64) error

	ID() string
	Name() string

	// Attach binds the platform to a store and the agent's identity.
	Attach(kb knowledge.KnowledgeBase, self *variables.Self) error
}

var (
	_ Platform = (*Debugger)(nil)
	_ Platform = (*Sim)(nil)
)
