// Package tasks implements the motion-primitive task queue: small state
// machines the robot layer drains one tick at a time. Tasks are owned
// exclusively by the queue that holds them, matching the ownership
// invariant in this repository's data model.
package tasks

import (
	"math"

	"github.com/cemot/soccervision/geom"
)

// Mover is the subset of Robot a task needs to drive the chassis and read
// its state. Kept narrow and local to this package rather than importing
// the robot package, to avoid a dependency cycle (robot owns the Queue).
type Mover interface {
	SetTargetDir(vx, vy, omega float64)
	Pose() geom.Pose
	WheelsOmega() float64
}

// Task is a motion-script state machine: onStart runs once, onStep runs
// every tick until it returns false, onEnd then runs once.
type Task interface {
	OnStart(m Mover, dt float64)
	OnStep(m Mover, dt float64) bool
	OnEnd(m Mover, dt float64)
}

// Queue is a FIFO of tasks; at most the front task is active and only it
// receives OnStep calls.
type Queue struct {
	items   []Task
	started []bool
}

// Enqueue appends a task to the back of the queue.
func (q *Queue) Enqueue(t Task) {
	q.items = append(q.items, t)
	q.started = append(q.started, false)
}

// Len reports the number of queued tasks, front task included.
func (q *Queue) Len() int {
	return len(q.items)
}

// Clear discards every queued task without running OnEnd, used by a hard
// stop/reset.
func (q *Queue) Clear() {
	q.items = nil
	q.started = nil
}

// Drain runs the front task's OnStart (if not yet started) and OnStep for
// this tick; while OnStep returns false it runs OnEnd, discards the task,
// and immediately processes the next task in the same tick, up to maxTasks
// iterations. Returning early at the bound defers remaining instant-complete
// tasks to the next tick rather than recursing unboundedly.
func (q *Queue) Drain(m Mover, dt float64, maxTasks int) {
	for i := 0; i < maxTasks; i++ {
		if len(q.items) == 0 {
			return
		}

		front := q.items[0]
		if !q.started[0] {
			q.started[0] = true
			front.OnStart(m, dt)
		}

		if front.OnStep(m, dt) {
			return
		}

		front.OnEnd(m, dt)
		q.items = q.items[1:]
		q.started = q.started[1:]
	}
}

// TurnBy rotates in place by angle (radians, signed) at the given angular
// speed magnitude, terminating once accumulated yaw reaches |angle|.
type TurnBy struct {
	Angle, Speed float64

	startOrientation float64
	accumulated      float64
}

func NewTurnBy(angle, speed float64) *TurnBy {
	return &TurnBy{Angle: angle, Speed: speed}
}

func (t *TurnBy) OnStart(m Mover, dt float64) {
	t.startOrientation = m.Pose().Orientation
}

func (t *TurnBy) OnStep(m Mover, dt float64) bool {
	omega := geom.Sign(t.Angle) * math.Abs(t.Speed)
	m.SetTargetDir(0, 0, omega)

	t.accumulated += math.Abs(omega) * dt
	return t.accumulated < math.Abs(t.Angle)
}

func (t *TurnBy) OnEnd(m Mover, dt float64) {
	m.SetTargetDir(0, 0, 0)
}

// DriveTo drives toward a field-frame pose at a constant Speed along the
// local error vector (the translation does not scale with the size of the
// error), with a proportional, clamped yaw command toward Theta, terminating
// when position and orientation error both fall within tolerance.
type DriveTo struct {
	X, Y, Theta, Speed float64
	PosTolerance       float64
	AngTolerance       float64
	GainOmega          float64
}

func NewDriveTo(x, y, theta, speed float64) *DriveTo {
	return &DriveTo{X: x, Y: y, Theta: theta, Speed: speed, PosTolerance: 0.02, AngTolerance: 0.02, GainOmega: 2.0}
}

func (d *DriveTo) OnStart(m Mover, dt float64) {}

func (d *DriveTo) OnStep(m Mover, dt float64) bool {
	pose := m.Pose()
	dx := d.X - pose.X
	dy := d.Y - pose.Y
	distance := math.Hypot(dx, dy)

	angErr := geom.WrapSigned(d.Theta - pose.Orientation)

	if distance < d.PosTolerance && math.Abs(angErr) < d.AngTolerance {
		return false
	}

	// Rotate the field-frame error vector into the robot-local frame.
	cos, sin := math.Cos(-pose.Orientation), math.Sin(-pose.Orientation)
	localX := dx*cos - dy*sin
	localY := dx*sin + dy*cos

	scale := d.Speed
	if distance > 0 {
		localX = localX / distance * scale
		localY = localY / distance * scale
	}

	omega := geom.Clamp(angErr*d.GainOmega, 4.0)
	m.SetTargetDir(localX, localY, omega)
	return true
}

func (d *DriveTo) OnEnd(m Mover, dt float64) {
	m.SetTargetDir(0, 0, 0)
}

// DriveFacing behaves like DriveTo but its orientation target always points
// toward a separate face point rather than a fixed heading.
type DriveFacing struct {
	DriveTo
	FaceX, FaceY float64
}

func NewDriveFacing(targetX, targetY, faceX, faceY, speed float64) *DriveFacing {
	df := &DriveFacing{FaceX: faceX, FaceY: faceY}
	df.DriveTo = *NewDriveTo(targetX, targetY, 0, speed)
	return df
}

func (d *DriveFacing) OnStep(m Mover, dt float64) bool {
	pose := m.Pose()
	d.DriveTo.Theta = math.Atan2(d.FaceY-pose.Y, d.FaceX-pose.X)
	return d.DriveTo.OnStep(m, dt)
}

func (d *DriveFacing) OnEnd(m Mover, dt float64) {
	d.DriveTo.OnEnd(m, dt)
}

// DrivePath consumes a queue of poses, driving to each with a DriveTo and
// advancing once the current target is reached, terminating when the queue
// is empty.
type DrivePath struct {
	Poses []geom.Pose
	Speed float64

	current *DriveTo
}

func NewDrivePath(poses []geom.Pose, speed float64) *DrivePath {
	return &DrivePath{Poses: poses, Speed: speed}
}

func (d *DrivePath) OnStart(m Mover, dt float64) {
	d.advance()
}

func (d *DrivePath) advance() {
	if len(d.Poses) == 0 {
		d.current = nil
		return
	}
	next := d.Poses[0]
	d.Poses = d.Poses[1:]
	d.current = NewDriveTo(next.X, next.Y, next.Orientation, d.Speed)
}

func (d *DrivePath) OnStep(m Mover, dt float64) bool {
	if d.current == nil {
		return false
	}
	if !d.current.OnStep(m, dt) {
		d.advance()
		if d.current == nil {
			return false
		}
	}
	return true
}

func (d *DrivePath) OnEnd(m Mover, dt float64) {
	m.SetTargetDir(0, 0, 0)
}

// StopRotation commands a zero chassis velocity every tick, terminating once
// measured wheel-derived angular velocity is near zero. The linear target is
// zeroed along with the angular one; it is not preserved.
type StopRotation struct {
	Epsilon float64
}

func NewStopRotation() *StopRotation {
	return &StopRotation{Epsilon: 0.05}
}

func (s *StopRotation) OnStart(m Mover, dt float64) {}

func (s *StopRotation) OnStep(m Mover, dt float64) bool {
	m.SetTargetDir(0, 0, 0)
	return math.Abs(m.WheelsOmega()) >= s.Epsilon
}

func (s *StopRotation) OnEnd(m Mover, dt float64) {}

// JumpAngle issues a single impulsive turn command and terminates after one
// tick has elapsed.
type JumpAngle struct {
	Angle, Speed float64
	fired        bool
}

func NewJumpAngle(angle, speed float64) *JumpAngle {
	return &JumpAngle{Angle: angle, Speed: speed}
}

func (j *JumpAngle) OnStart(m Mover, dt float64) {}

func (j *JumpAngle) OnStep(m Mover, dt float64) bool {
	if j.fired {
		return false
	}
	j.fired = true
	m.SetTargetDir(0, 0, geom.Sign(j.Angle)*math.Abs(j.Speed))
	return true
}

func (j *JumpAngle) OnEnd(m Mover, dt float64) {
	m.SetTargetDir(0, 0, 0)
}

// DriveFor sets a fixed chassis velocity for a fixed duration.
type DriveFor struct {
	VX, VY, Omega, Duration float64

	elapsed float64
}

func NewDriveFor(vx, vy, omega, duration float64) *DriveFor {
	return &DriveFor{VX: vx, VY: vy, Omega: omega, Duration: duration}
}

func (d *DriveFor) OnStart(m Mover, dt float64) {}

func (d *DriveFor) OnStep(m Mover, dt float64) bool {
	m.SetTargetDir(d.VX, d.VY, d.Omega)
	d.elapsed += dt
	return d.elapsed < d.Duration
}

func (d *DriveFor) OnEnd(m Mover, dt float64) {
	m.SetTargetDir(0, 0, 0)
}
