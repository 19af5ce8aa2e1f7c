// Package config gathers the process-wide tunables that the original
// source kept as global Config:: static constants into one aggregate,
// injected at construction into every component that needs it. Loading
// this from a file is out of scope (spec.md §1); callers build it in Go,
// typically starting from Default().
package config

import "time"

// Config is the single configuration aggregate read by every component
// handle in this repository; nothing here is reached through a
// process-wide mutable.
type Config struct {
	// Field geometry.
	FieldWidthM  float64
	FieldHeightM float64

	// Four-wheel omni-drive geometry (spec.md §4.1).
	WheelAngles  [4]float64 // α₁..α₄, radians from the forward axis, order FL,FR,RL,RR
	WheelOffsetM float64    // d
	WheelRadiusM float64    // r

	// Particle filter localizer (spec.md §4.2).
	ParticleCount     int
	MotionNoiseStdVX  float64
	MotionNoiseStdVY  float64
	MotionNoiseStdOmega float64
	MeasurementNoiseStdDistance float64
	MeasurementNoiseStdAngle    float64

	// Actuators (spec.md §4.3).
	WheelStallDebounce    time.Duration
	WheelStallEpsilonOmega float64
	CoilgunCoolingWindow  time.Duration
	KickMinIntervalS      float64
	DribblerRunSpeedRPM   float64 // wire rpm used to start the dribbler, matching the original source's Config::dribblerSpeed

	// Robot motion API (spec.md §4.5).
	LookAtP              float64
	LookAtMaxOmega       float64
	MaxTasksPerTick       int
	SpinAroundDribblerPeriodS        float64
	SpinAroundDribblerRadiusM        float64
	SpinAroundDribblerForwardSpeed   float64

	// Vision/pixel space (spec.md §9 open question on fetch-ball-infront).
	CameraWidthPx int

	// Behavior layer tunables (TestController / MatchController).
	GoalKickThreshold float64 // fraction of goal width used as the kick-alignment margin

	// Transport (spec.md §6).
	FirmwareHost string
	FirmwarePort int
	OperatorNoCommandTimeout time.Duration
}

// Default returns the configuration used throughout the test suite and the
// reference cmd/robotd wiring, with values drawn from spec.md §8's worked
// scenarios (wheel angles 45/135/225/315°, d=0.1m, r=0.05m) and the
// original source's Config:: defaults where the spec is silent.
func Default() Config {
	const (
		deg45  = 0.7853981633974483
		deg135 = 2.356194490192345
		deg225 = 3.9269908169872414
		deg315 = 5.497787143782138
	)
	return Config{
		FieldWidthM:  4.5,
		FieldHeightM: 3.0,

		// FL, FR, RL, RR are mounted at 45°, 225°, 315°, 135°. With this
		// assignment (vx=1,vy=0,ω=0) yields wheel targets
		// (-14.142, 14.142, 14.142, -14.142) rad/s.
		WheelAngles:  [4]float64{deg45, deg225, deg315, deg135},
		WheelOffsetM: 0.1,
		WheelRadiusM: 0.05,

		ParticleCount:       1000,
		MotionNoiseStdVX:    0.02,
		MotionNoiseStdVY:    0.02,
		MotionNoiseStdOmega: 0.02,
		MeasurementNoiseStdDistance: 0.1,
		MeasurementNoiseStdAngle:    0.05,

		WheelStallDebounce:     250 * time.Millisecond,
		WheelStallEpsilonOmega: 0.5,
		CoilgunCoolingWindow:   1200 * time.Millisecond,
		KickMinIntervalS:       1.0,
		DribblerRunSpeedRPM:    100.0,

		LookAtP:        2.0,
		LookAtMaxOmega: 4.0,
		MaxTasksPerTick: 32,
		SpinAroundDribblerPeriodS:      2.0,
		SpinAroundDribblerRadiusM:      0.15,
		SpinAroundDribblerForwardSpeed: 0.0,

		CameraWidthPx: 640,

		GoalKickThreshold: 0.15,

		FirmwareHost:             "127.0.0.1",
		FirmwarePort:             8042,
		OperatorNoCommandTimeout: 500 * time.Millisecond,
	}
}
