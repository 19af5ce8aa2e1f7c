// Package actuators implements the firmware-facing actuator handles: Wheel,
// Dribbler, and Coilgun. Each latches a target set by the robot layer,
// tracks what firmware last reported, and exposes handleCommand so the
// firmware UDP link can feed inbound text commands straight into the
// component that owns them, matching the original source's per-actuator
// handleCommand dispatch.
package actuators

import (
	"fmt"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/cemot/soccervision/protocol"
)

// Wheel latches a target angular velocity and tracks the real angular
// velocity firmware reports for one wheel, flagging a stall when the two
// disagree for longer than a debounce window.
type Wheel struct {
	id string

	clock clock.Clock

	targetOmega float64
	realOmega   float64

	epsilonOmega float64
	debounce     time.Duration

	mismatchSince time.Time
	mismatching   bool
}

// NewWheel builds a Wheel identified by id (one of "fl","fr","rl","rr",
// matching the firmware wire protocol's wheel-<id>-speed command), stalling
// after a real/target mismatch persists longer than debounce.
func NewWheel(id string, clk clock.Clock, epsilonOmega float64, debounce time.Duration) *Wheel {
	return &Wheel{id: id, clock: clk, epsilonOmega: epsilonOmega, debounce: debounce}
}

// SetTarget latches the target angular velocity, in rad/s.
func (w *Wheel) SetTarget(omega float64) { w.targetOmega = omega }

// TargetOmega returns the latched target angular velocity.
func (w *Wheel) TargetOmega() float64 { return w.targetOmega }

// RealOmega returns the most recently reported real angular velocity.
func (w *Wheel) RealOmega() float64 { return w.realOmega }

// IsStalled reports whether the wheel has been commanded to move but has
// reported near-zero real speed for longer than the debounce window.
func (w *Wheel) IsStalled() bool {
	return w.mismatching && w.clock.Since(w.mismatchSince) >= w.debounce
}

// Tick re-evaluates the stall debounce against the current target/real
// pair. Called once per robot tick, after handleCommand has applied any
// inbound firmware reports for this tick.
func (w *Wheel) Tick() {
	mismatched := absF(w.targetOmega) > w.epsilonOmega && absF(w.realOmega) < w.epsilonOmega
	if !mismatched {
		w.mismatching = false
		return
	}
	if !w.mismatching {
		w.mismatching = true
		w.mismatchSince = w.clock.Now()
	}
}

// HandleCommand applies an inbound wheel-<id>-speed:<rpm> command, reporting
// whether it recognized and consumed it.
func (w *Wheel) HandleCommand(cmd protocol.Command) bool {
	want := fmt.Sprintf("wheel-%s-speed", w.id)
	if cmd.Name != want || len(cmd.Parameters) < 1 {
		return false
	}
	rpm, err := strconv.ParseFloat(cmd.Parameters[0], 64)
	if err != nil {
		return false
	}
	w.realOmega = rpmToRadPerSec(rpm)
	return true
}

// Dribbler is a Wheel with an additional ball-presence latch reported by
// firmware's ball:<0|1> message. Unlike Wheel, whose target/real omega are
// rad/s the core computes from chassis kinematics, the dribbler has no
// kinematics of its own: its target is carried directly in the wire rpm
// units the speeds: message publishes (spec.md §6), set from the operator's
// set-dribbler command (sign-inverted by the manual-control state) or a
// behavior-layer run speed, with no rad/s conversion at either end.
type Dribbler struct {
	Wheel
	gotBall bool
}

// NewDribbler builds a Dribbler.
func NewDribbler(clk clock.Clock, epsilonOmega float64, debounce time.Duration) *Dribbler {
	return &Dribbler{Wheel: *NewWheel("dribbler", clk, epsilonOmega, debounce)}
}

// GotBall reports the last latched ball-presence state.
func (d *Dribbler) GotBall() bool { return d.gotBall }

// HandleCommand applies either the dribbler's own wheel-speed report or the
// ball-presence message.
func (d *Dribbler) HandleCommand(cmd protocol.Command) bool {
	if cmd.Name == "ball" {
		if len(cmd.Parameters) < 1 {
			return false
		}
		d.gotBall = cmd.Parameters[0] == "1"
		return true
	}
	return d.Wheel.HandleCommand(cmd)
}

// CoilgunState is one state of the coilgun's FSM.
type CoilgunState int

const (
	CoilgunIdle CoilgunState = iota
	CoilgunCharging
	CoilgunCharged
	CoilgunKicking
	CoilgunCooling
)

// Publisher is the minimal outbound surface a Coilgun needs from the
// firmware link: one text command per call, matching the `speeds:`/`kick:`/
// `charge` outbound grammar in the protocol package.
type Publisher interface {
	Publish(text string)
}

// Coilgun is the kicker FSM: idle -> charging -> charged -> kicking ->
// cooling -> idle, matching the one-shot charge-then-refractory-window
// behavior of the original source.
type Coilgun struct {
	clock    clock.Clock
	pub      Publisher
	cooling   time.Duration
	state     CoilgunState
	coolSince time.Time
}

// NewCoilgun builds a Coilgun that publishes outbound commands through pub
// and enters a fixed cooling window after every kick.
func NewCoilgun(clk clock.Clock, pub Publisher, coolingWindow time.Duration) *Coilgun {
	return &Coilgun{clock: clk, pub: pub, cooling: coolingWindow, state: CoilgunIdle}
}

// State returns the current FSM state.
func (c *Coilgun) State() CoilgunState { return c.state }

// Charge requests a one-time charge. A no-op outside the idle state.
func (c *Coilgun) Charge() {
	if c.state != CoilgunIdle {
		return
	}
	c.state = CoilgunCharging
	c.pub.Publish("charge")
}

// Kick transitions charged -> kicking, publishing kick:<strength>. A no-op
// in any other state.
func (c *Coilgun) Kick(strength int) {
	if c.state != CoilgunCharged {
		return
	}
	c.state = CoilgunKicking
	c.pub.Publish(fmt.Sprintf("kick:%d", strength))
}

// Tick advances the FSM: charging transitions to charged immediately once
// firmware would have latched it (modeled here as a direct transition since
// charge-completion feedback is not part of the wire protocol in §6);
// kicking transitions to cooling, and cooling returns to idle once the
// window elapses.
func (c *Coilgun) Tick() {
	switch c.state {
	case CoilgunCharging:
		c.state = CoilgunCharged
	case CoilgunKicking:
		c.state = CoilgunCooling
		c.coolSince = c.clock.Now()
	case CoilgunCooling:
		if c.clock.Since(c.coolSince) >= c.cooling {
			c.state = CoilgunIdle
		}
	}
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func rpmToRadPerSec(rpm float64) float64 {
	return rpm * 2 * 3.141592653589793 / 60
}
