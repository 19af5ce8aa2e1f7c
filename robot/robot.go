// Package robot implements the per-tick orchestrator: it owns the
// odometer, localizer, actuators, and task queue, and exposes the motion
// API the behavior layer drives. Robot.Step runs the exact sequence this
// repository's control loop depends on; reordering it changes what pose
// gets published and when, so the steps are numbered in comments matching
// the tick sequence they implement.
package robot

import (
	"fmt"
	"math"

	"github.com/benbjohnson/clock"

	"github.com/cemot/soccervision/actuators"
	"github.com/cemot/soccervision/config"
	"github.com/cemot/soccervision/geom"
	"github.com/cemot/soccervision/kinematics"
	"github.com/cemot/soccervision/localization"
	"github.com/cemot/soccervision/logging"
	"github.com/cemot/soccervision/protocol"
	"github.com/cemot/soccervision/tasks"
	"github.com/cemot/soccervision/vision"
)

// FirmwarePublisher is the outbound surface the robot needs from the
// firmware link: one text line per call.
type FirmwarePublisher interface {
	Publish(text string)
}

// Robot owns its wheels, dribbler, coilgun, odometer, localizer, and task
// queue exclusively; controllers hold only a non-owning reference to it.
type Robot struct {
	logger logging.Logger
	cfg    config.Config

	odometer *kinematics.Odometer
	localizer *localization.Localizer
	firmware FirmwarePublisher

	wheelFL, wheelFR, wheelRL, wheelRR *actuators.Wheel
	dribbler                          *actuators.Dribbler
	coilgun                           *actuators.Coilgun

	taskQueue tasks.Queue

	targetDirX, targetDirY, targetOmega float64
	frameTargetSpeedSet                  bool

	lastDt    float64
	totalTime float64

	coilgunCharged bool

	pose geom.Pose

	lastMovement kinematics.ChassisVelocity
}

// New builds a Robot from its configuration and collaborators. odometer and
// localizer are constructed by the caller (their own constructors validate
// geometry/particle-count invariants) and handed in already wired.
func New(
	logger logging.Logger,
	cfg config.Config,
	odometer *kinematics.Odometer,
	localizer *localization.Localizer,
	firmware FirmwarePublisher,
	clk clock.Clock,
) *Robot {
	r := &Robot{
		logger:    logger,
		cfg:       cfg,
		odometer:  odometer,
		localizer: localizer,
		firmware:  firmware,
		wheelFL:   actuators.NewWheel("fl", clk, cfg.WheelStallEpsilonOmega, cfg.WheelStallDebounce),
		wheelFR:   actuators.NewWheel("fr", clk, cfg.WheelStallEpsilonOmega, cfg.WheelStallDebounce),
		wheelRL:   actuators.NewWheel("rl", clk, cfg.WheelStallEpsilonOmega, cfg.WheelStallDebounce),
		wheelRR:   actuators.NewWheel("rr", clk, cfg.WheelStallEpsilonOmega, cfg.WheelStallDebounce),
		dribbler:  actuators.NewDribbler(clk, cfg.WheelStallEpsilonOmega, cfg.WheelStallDebounce),
		coilgun:   actuators.NewCoilgun(clk, firmware, cfg.CoilgunCoolingWindow),
	}
	return r
}

// Step runs one control tick, in the exact order this repository requires:
//
//  1. Stamp lastDt/totalTime.
//  2. One-shot coilgun charge.
//  3. Drain the task queue head.
//  4. Inverse-kinematic the current target direction into wheel targets.
//  5. Tick each actuator.
//  6. Emit the outbound speeds: message.
//  7. Forward-kinematic real wheel speeds into chassis velocity.
//  8. Build the landmark measurement map from vision results.
//  9. Localizer measurement update, then motion update.
//  10. Replace pose with the localizer's output.
//  11. Clear frameTargetSpeedSet.
func (r *Robot) Step(dt float64, results vision.Results) {
	// 1.
	r.lastDt = dt
	r.totalTime += dt

	// 2.
	if !r.coilgunCharged {
		r.coilgun.Charge()
		r.coilgunCharged = true
	}

	// 3.
	r.taskQueue.Drain(r, dt, r.cfg.MaxTasksPerTick)

	// 4.
	wheelTargets := r.odometer.Inverse(kinematics.ChassisVelocity{
		VX: r.targetDirX, VY: r.targetDirY, Omega: r.targetOmega,
	})
	r.wheelFL.SetTarget(wheelTargets.FL)
	r.wheelFR.SetTarget(wheelTargets.FR)
	r.wheelRL.SetTarget(wheelTargets.RL)
	r.wheelRR.SetTarget(wheelTargets.RR)

	// 5.
	r.wheelFL.Tick()
	r.wheelFR.Tick()
	r.wheelRL.Tick()
	r.wheelRR.Tick()
	r.coilgun.Tick()

	// 6. Wire speeds are RPM. The wheels' targets are rad/s the core
	// computes from chassis kinematics, converted only at this wire
	// boundary (spec.md §6). The dribbler has no kinematics of its own —
	// its target is already carried in wire rpm (set from the operator's
	// set-dribbler command, sign-inverted by manual control, or a
	// behavior-layer run speed) — so
	// it is published as-is, without the wheels' rad/s->rpm conversion.
	r.firmware.Publish(fmt.Sprintf("speeds:%d:%d:%d:%d:%d",
		round(radPerSecToRPM(r.wheelFL.TargetOmega())),
		round(radPerSecToRPM(r.wheelFR.TargetOmega())),
		round(radPerSecToRPM(r.wheelRL.TargetOmega())),
		round(radPerSecToRPM(r.wheelRR.TargetOmega())),
		round(r.targetDribblerRPM()),
	))

	// 7.
	movement := r.odometer.Forward(kinematics.WheelSpeeds{
		FL: r.wheelFL.RealOmega(),
		FR: r.wheelFR.RealOmega(),
		RL: r.wheelRL.RealOmega(),
		RR: r.wheelRR.RealOmega(),
	})
	r.lastMovement = movement

	// 8.
	measurements := map[string]localization.Measurement{}
	if goal, ok := results.LargestGoal(vision.SideBlue); ok {
		measurements["blue-center"] = localization.Measurement{Distance: goal.Distance, Angle: goal.Angle}
	}
	if goal, ok := results.LargestGoal(vision.SideYellow); ok {
		measurements["yellow-center"] = localization.Measurement{Distance: goal.Distance, Angle: goal.Angle}
	}

	// 9. Measurement update runs before motion update: the historical
	// source order, preserved so the published pose reflects the most
	// recent correction before prediction is applied.
	r.localizer.Update(measurements)
	r.localizer.Move(movement.VX, movement.VY, movement.Omega, dt, len(measurements) != 0)

	// 10.
	r.pose = r.localizer.Pose()

	// 11.
	r.frameTargetSpeedSet = false
}

// HandleFirmwareCommand feeds one inbound firmware command (wheel-<id>-speed,
// ball, stall) into whichever actuator owns it, per spec.md §4.7: the
// firmware pipe's inbound messages go straight to the actuators that own
// them, never through the behavior layer's command dispatch. Reports
// whether any actuator recognized the command.
func (r *Robot) HandleFirmwareCommand(cmd protocol.Command) bool {
	for _, w := range []*actuators.Wheel{r.wheelFL, r.wheelFR, r.wheelRL, r.wheelRR} {
		if w.HandleCommand(cmd) {
			return true
		}
	}
	if r.dribbler.HandleCommand(cmd) {
		return true
	}
	// stall/voltage are informational firmware telemetry (spec.md §6); each
	// wheel already computes its own stalled flag from the target/real
	// debounce (spec.md §4.3), so there is no actuator-owned state to
	// update here beyond acknowledging the wire message.
	if cmd.Name == "stall" || cmd.Name == "voltage" {
		return true
	}
	return false
}

// targetDribblerRPM returns the dribbler's latched target, already in wire
// rpm units (spec.md §6) and thus published verbatim, unlike the wheels'
// rad/s targets which are converted at the wire boundary.
func (r *Robot) targetDribblerRPM() float64 {
	return r.dribbler.TargetOmega()
}

func round(v float64) int {
	if v >= 0 {
		return int(v + 0.5)
	}
	return int(v - 0.5)
}

func radPerSecToRPM(radPerSec float64) float64 {
	return radPerSec * 60 / (2 * math.Pi)
}

// --- motion API ---

// SetTargetDir sets the desired chassis velocity directly.
func (r *Robot) SetTargetDir(vx, vy, omega float64) {
	r.targetDirX, r.targetDirY, r.targetOmega = vx, vy, omega
	r.frameTargetSpeedSet = true
}

// SetTargetDirPolar sets the desired chassis velocity from a heading angle
// and speed, plus a separate angular velocity.
func (r *Robot) SetTargetDirPolar(angle, speed, omega float64) {
	r.SetTargetDir(math.Cos(angle)*speed, math.Sin(angle)*speed, omega)
}

// Stop zeroes the chassis velocity.
func (r *Robot) Stop() {
	r.SetTargetDir(0, 0, 0)
}

// SetVelocity sets the translational component of the target chassis
// velocity, leaving the current angular velocity target untouched — the
// two-argument form of setTargetDir the behavior layer uses when it wants
// to drive and separately steer (typically via LookAt) in the same tick.
func (r *Robot) SetVelocity(vx, vy float64) {
	r.SetTargetDir(vx, vy, r.targetOmega)
}

// SpinAroundDribbler drives a circle of the given radius and period around
// the dribbler while optionally reversing direction, with an additional
// constant forward component. Chassis velocity is (vForward, -2πr/T, ±2π/T).
func (r *Robot) SpinAroundDribbler(reverse bool, period, radius, forwardSpeed float64) {
	omega := 2 * math.Pi / period
	if reverse {
		omega = -omega
	}
	vy := -2 * math.Pi * radius / period
	r.SetTargetDir(forwardSpeed, vy, omega)
}

// LookAt sets angular velocity to steer toward an object's bearing: a
// proportional gain on the angle, clamped to the configured max omega. vx/vy
// are left at their current value so a caller can combine LookAt with
// independent translation.
func (r *Robot) LookAt(angle float64) {
	omega := geom.Clamp(angle*r.cfg.LookAtP, r.cfg.LookAtMaxOmega)
	r.SetTargetDir(r.targetDirX, r.targetDirY, omega)
}

// IsStalled reports whether any wheel is currently stalled.
func (r *Robot) IsStalled() bool {
	return r.wheelFL.IsStalled() || r.wheelFR.IsStalled() || r.wheelRL.IsStalled() || r.wheelRR.IsStalled()
}

// SetPosition teleports the reported pose (and the localizer's particle
// set) to the given pose, used by the operator's reset-position command.
func (r *Robot) SetPosition(pose geom.Pose) {
	r.localizer.SetPose(pose)
	r.pose = pose
}

// Pose returns the most recently published pose.
func (r *Robot) Pose() geom.Pose { return r.pose }

// WheelsOmega returns the last forward-kinematic chassis angular velocity,
// used by tasks like StopRotation that wait for rotation to settle.
func (r *Robot) WheelsOmega() float64 {
	return r.lastMovement.Omega
}

// Speed returns the magnitude of the last forward-kinematic translational
// velocity, used by behavior-layer states that scale a pursuit distance
// threshold by how fast the chassis is currently moving.
func (r *Robot) Speed() float64 {
	return math.Hypot(r.lastMovement.VX, r.lastMovement.VY)
}

// Dribbler exposes the dribbler actuator for controllers that need to set
// its target speed or read gotBall directly.
func (r *Robot) Dribbler() *actuators.Dribbler { return r.dribbler }

// Coilgun exposes the coilgun actuator for controllers that charge/kick.
func (r *Robot) Coilgun() *actuators.Coilgun { return r.coilgun }

// EnqueueTask appends a task to the robot's task queue.
func (r *Robot) EnqueueTask(t tasks.Task) {
	r.taskQueue.Enqueue(t)
}

// ClearTasks discards the task queue without running OnEnd on any of them,
// used by a hard stop.
func (r *Robot) ClearTasks() {
	r.taskQueue.Clear()
}

// TaskQueueLen reports how many tasks remain queued, front task included.
func (r *Robot) TaskQueueLen() int {
	return r.taskQueue.Len()
}

// LastDt returns the delta time stamped by the most recent Step call.
func (r *Robot) LastDt() float64 { return r.lastDt }

// TotalTime returns cumulative elapsed time across every Step call.
func (r *Robot) TotalTime() float64 { return r.totalTime }
