// Package vision defines the data model this repository consumes from the
// external vision stage: detected objects and the per-tick snapshot of what
// each camera saw. Acquisition, blob detection, and FPS counting are not
// part of this repository (camera pipeline is an explicit non-goal); only
// the shape of what arrives and the selectors the robot and behavior layers
// need are implemented here.
package vision

import "math"

// Side identifies a goal color.
type Side int

const (
	SideBlue Side = iota
	SideYellow
)

// Dir identifies which way a ball search should favor.
type Dir int

const (
	DirAny Dir = iota
	DirFront
	DirBehind
)

// Kind identifies what a VisionObject represents.
type Kind int

const (
	KindBall Kind = iota
	KindGoalBlue
	KindGoalYellow
)

// VisionObject is one detected thing, in robot-local polar and Cartesian
// form simultaneously — the Cartesian fields are the rectangular form of
// the polar (Distance, Angle) pair, kept alongside rather than recomputed
// on every access.
type VisionObject struct {
	Kind Kind

	Distance  float64
	Angle     float64
	DistanceX float64
	DistanceY float64

	Width float64
	X, Y  float64 // pixel-space centroid, used by pixel/metric mixed behaviors

	Behind bool // true if this camera is the rear camera
}

// NewVisionObject builds a VisionObject from polar measurements, deriving
// the Cartesian distanceX/distanceY fields.
func NewVisionObject(kind Kind, distance, angle, width, x, y float64, behind bool) VisionObject {
	return VisionObject{
		Kind:      kind,
		Distance:  distance,
		Angle:     angle,
		DistanceX: distance * math.Cos(angle),
		DistanceY: distance * math.Sin(angle),
		Width:     width,
		X:         x,
		Y:         y,
		Behind:    behind,
	}
}

// Results is the per-tick snapshot handed to Robot.Step: front- and
// rear-camera detections plus the selectors the tick loop and behavior
// layer need. Owned by the vision stage; the robot must not retain a
// reference to it past the tick it was passed into.
type Results struct {
	Front []VisionObject
	Rear  []VisionObject
}

// LargestGoal returns the largest-width goal object of the given side
// across both cameras, or ok=false if none was seen this tick.
func (r Results) LargestGoal(side Side) (obj VisionObject, ok bool) {
	want := KindGoalBlue
	if side == SideYellow {
		want = KindGoalYellow
	}

	found := false
	var best VisionObject
	for _, list := range [][]VisionObject{r.Front, r.Rear} {
		for _, o := range list {
			if o.Kind != want {
				continue
			}
			if !found || o.Width > best.Width {
				best = o
				found = true
			}
		}
	}
	return best, found
}

// ClosestBall returns the nearest ball detection constrained to the given
// direction (DirAny considers both cameras), or ok=false if none was seen.
func (r Results) ClosestBall(dir Dir) (obj VisionObject, ok bool) {
	found := false
	var best VisionObject

	consider := func(o VisionObject) {
		if o.Kind != KindBall {
			return
		}
		if !found || o.Distance < best.Distance {
			best = o
			found = true
		}
	}

	if dir == DirAny || dir == DirFront {
		for _, o := range r.Front {
			consider(o)
		}
	}
	if dir == DirAny || dir == DirBehind {
		for _, o := range r.Rear {
			consider(o)
		}
	}
	return best, found
}
