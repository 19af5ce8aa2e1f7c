// Package kinematics implements the omnidirectional drive transform between
// chassis velocity and individual wheel angular velocities, spec.md §4.1.
package kinematics

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ChassisVelocity is the robot-local chassis velocity: vx forward, vy
// leftward, ω counter-clockwise.
type ChassisVelocity struct {
	VX, VY, Omega float64
}

// WheelSpeeds are the four wheel angular velocities in rad/s.
type WheelSpeeds struct {
	FL, FR, RL, RR float64
}

// Values returns the speeds in FL,FR,RL,RR order, the order every wheel
// mounting angle in Config.WheelAngles is given in.
func (w WheelSpeeds) Values() [4]float64 {
	return [4]float64{w.FL, w.FR, w.RL, w.RR}
}

// Odometer is the omnidirectional kinematics engine for a four-wheeled
// omni-drive. Construction precomputes (MᵀM)⁻¹Mᵀ, which depends only on the
// fixed geometry.
type Odometer struct {
	angles      [4]float64
	offsetM     float64
	radiusM     float64
	forwardGain *mat.Dense // precomputed (MᵀM)⁻¹Mᵀ, 3x4
}

// New builds an Odometer from four wheel mounting angles (radians, measured
// from the robot's forward axis), the radial offset from chassis center to
// wheel contact point, and the wheel radius. It rejects geometry where the
// wheels are collinear (the forward-kinematics matrix would be singular).
func New(angles [4]float64, offsetM, radiusM float64) (*Odometer, error) {
	if radiusM <= 0 {
		return nil, errors.New("wheel radius must be positive")
	}
	if offsetM <= 0 {
		return nil, errors.New("wheel offset must be positive")
	}

	m := buildM(angles, offsetM, radiusM)

	var mt mat.Dense
	mt.CloneFrom(m.T())

	var mtm mat.Dense
	mtm.Mul(&mt, m)

	var mtmInv mat.Dense
	if err := mtmInv.Inverse(&mtm); err != nil {
		return nil, errors.Wrap(err, "degenerate wheel geometry (wheels collinear)")
	}

	var gain mat.Dense
	gain.Mul(&mtmInv, &mt)

	return &Odometer{angles: angles, offsetM: offsetM, radiusM: radiusM, forwardGain: &gain}, nil
}

func buildM(angles [4]float64, offsetM, radiusM float64) *mat.Dense {
	m := mat.NewDense(4, 3, nil)
	for i, alpha := range angles {
		m.SetRow(i, []float64{
			-math.Sin(alpha) / radiusM,
			math.Cos(alpha) / radiusM,
			offsetM / radiusM,
		})
	}
	return m
}

// Inverse decomposes a desired chassis velocity into the four wheel target
// angular velocities:
//
//	ω_i = (-sin(αᵢ)·vx + cos(αᵢ)·vy + d·ω) / r
func (o *Odometer) Inverse(v ChassisVelocity) WheelSpeeds {
	out := make([]float64, 4)
	for i, alpha := range o.angles {
		out[i] = (-math.Sin(alpha)*v.VX+math.Cos(alpha)*v.VY+o.offsetM*v.Omega) / o.radiusM
	}
	return WheelSpeeds{FL: out[0], FR: out[1], RL: out[2], RR: out[3]}
}

// Forward solves the over-determined system of four measured wheel angular
// velocities for the chassis velocity that best explains them, via
// (MᵀM)⁻¹Mᵀ·ω_wheels.
func (o *Odometer) Forward(w WheelSpeeds) ChassisVelocity {
	wheels := mat.NewVecDense(4, []float64{w.FL, w.FR, w.RL, w.RR})

	var result mat.VecDense
	result.MulVec(o.forwardGain, wheels)

	return ChassisVelocity{VX: result.AtVec(0), VY: result.AtVec(1), Omega: result.AtVec(2)}
}
