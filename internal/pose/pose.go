// Package pose holds the spatial value types shared by platforms, identities
// and observers. Positions live in one Cartesian world frame.
package pose

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Position is a point (x, y, z) in the shared world frame, in meters.
type Position struct {
	X, Y, Z float64
}

// Axes is an extrinsic rotation about x, then y, then z, in radians.
type Axes struct {
	X, Y, Z float64
}

func NewPosition(x, y, z float64) Position {
	return Position{X: x, Y: y, Z: z}
}

func NewAxes(x, y, z float64) Axes {
	return Axes{X: x, Y: y, Z: z}
}

// FromArray builds a Position from a 3-element slice such as a published
// location. Missing components read as zero.
func FromArray(v []float64) Position {
	var p Position
	if len(v) > 0 {
		p.X = v[0]
	}
	if len(v) > 1 {
		p.Y = v[1]
	}
	if len(v) > 2 {
		p.Z = v[2]
	}
	return p
}

func (p Position) Array() []float64 {
	return []float64{p.X, p.Y, p.Z}
}

// Distance is the Euclidean distance between two positions.
func (p Position) Distance(o Position) float64 {
	dx := o.X - p.X
	dy := o.Y - p.Y
	dz := o.Z - p.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Within reports whether p lies within proximity of target (inclusive).
func (p Position) Within(target Position, proximity float64) bool {
	return p.Distance(target) <= proximity
}

// Toward returns the point reached after travelling at most step meters from
// p in the direction of target. It never overshoots.
func (p Position) Toward(target Position, step float64) Position {
	d := p.Distance(target)
	if d <= step || d == 0 {
		return target
	}
	f := step / d
	return Position{
		X: p.X + (target.X-p.X)*f,
		Y: p.Y + (target.Y-p.Y)*f,
		Z: p.Z + (target.Z-p.Z)*f,
	}
}

// Point projects the position onto the ground plane.
func (p Position) Point() orb.Point {
	return orb.Point{p.X, p.Y}
}

func (p Position) String() string {
	return fmt.Sprintf("(%g, %g, %g)", p.X, p.Y, p.Z)
}

func (a Axes) Array() []float64 {
	return []float64{a.X, a.Y, a.Z}
}

// AxesFromArray is the Axes counterpart of FromArray.
func AxesFromArray(v []float64) Axes {
	p := FromArray(v)
	return Axes{X: p.X, Y: p.Y, Z: p.Z}
}

// Within reports whether every angle of a is within tolerance of target,
// comparing angles on the circle.
func (a Axes) Within(target Axes, tolerance float64) bool {
	return math.Abs(AngleDiff(a.X, target.X)) <= tolerance &&
		math.Abs(AngleDiff(a.Y, target.Y)) <= tolerance &&
		math.Abs(AngleDiff(a.Z, target.Z)) <= tolerance
}

// Toward turns each angle of a by at most step radians along the shortest arc
// to target.
func (a Axes) Toward(target Axes, step float64) Axes {
	return Axes{
		X: turn(a.X, target.X, step),
		Y: turn(a.Y, target.Y, step),
		Z: turn(a.Z, target.Z, step),
	}
}

func (a Axes) String() string {
	return fmt.Sprintf("[%g, %g, %g]", a.X, a.Y, a.Z)
}

// AngleDiff returns to-from wrapped into (-pi, pi].
func AngleDiff(from, to float64) float64 {
	d := math.Mod(to-from, 2*math.Pi)
	if d > math.Pi {
		d -= 2 * math.Pi
	} else if d <= -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

func turn(from, to, step float64) float64 {
	d := AngleDiff(from, to)
	if math.Abs(d) <= step {
		return to
	}
	if d > 0 {
		return from + step
	}
	return from - step
}

// Bound is the ground-plane bounding box of a set of positions.
func Bound(ps []Position) orb.Bound {
	if len(ps) == 0 {
		return orb.Bound{}
	}
	b := ps[0].Point().Bound()
	for _, p := range ps[1:] {
		b = b.Extend(p.Point())
	}
	return b
}

// Centroid is the ground-plane centroid of a set of positions.
func Centroid(ps []Position) orb.Point {
	mp := make(orb.MultiPoint, 0, len(ps))
	for _, p := range ps {
		mp = append(mp, p.Point())
	}
	c, _ := planar.CentroidArea(mp)
	return c
}
