// Package localization implements the particle-filter localizer that
// resolves global pose from noisy landmark bearings plus odometry, per the
// motion/measurement update cycle in this repository's tick loop. It is
// grounded in the same validate-and-wrap style as the teacher's
// services/motion/localizer.go, adapted to a Monte Carlo localization filter
// instead of a SLAM/movement-sensor wrapper.
package localization

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/cemot/soccervision/geom"
	"github.com/cemot/soccervision/logging"
)

// Landmark is a fixed, uniquely identifiable field feature used for
// triangulation.
type Landmark struct {
	ID   string
	X, Y float64
}

// Measurement is a polar, robot-local observation of one landmark.
type Measurement struct {
	Distance float64
	Angle    float64
}

// Particle is one pose hypothesis carried by the filter.
type Particle struct {
	X, Y        float64
	Orientation float64
	Weight      float64
}

// Localizer is a particle-filter pose estimator. Particle count is fixed at
// construction and never changes.
type Localizer struct {
	logger logging.Logger
	rng    *randSource

	particles []Particle

	landmarks map[string]Landmark

	sigmaVX, sigmaVY, sigmaOmega float64
	sigmaDistance, sigmaAngle    float64

	nEffMin float64
}

// New builds a Localizer with n particles, all initialized to initial with
// weight 1/n. landmarks maps a landmark id to its known field position.
func New(
	logger logging.Logger,
	n int,
	initial geom.Pose,
	landmarks []Landmark,
	sigmaVX, sigmaVY, sigmaOmega float64,
	sigmaDistance, sigmaAngle float64,
) (*Localizer, error) {
	if n <= 0 {
		return nil, errors.New("particle count must be positive")
	}

	lm := make(map[string]Landmark, len(landmarks))
	for _, l := range landmarks {
		lm[l.ID] = l
	}

	particles := make([]Particle, n)
	weight := 1.0 / float64(n)
	for i := range particles {
		particles[i] = Particle{X: initial.X, Y: initial.Y, Orientation: initial.Orientation, Weight: weight}
	}

	return &Localizer{
		logger:        logger,
		rng:           newRand(),
		particles:     particles,
		landmarks:     lm,
		sigmaVX:       sigmaVX,
		sigmaVY:       sigmaVY,
		sigmaOmega:    sigmaOmega,
		sigmaDistance: sigmaDistance,
		sigmaAngle:    sigmaAngle,
		nEffMin:       float64(n) / 2,
	}, nil
}

// ParticleCount returns the fixed particle count.
func (l *Localizer) ParticleCount() int {
	return len(l.particles)
}

// Particles returns a copy of the current particle set, for introspection
// and tests.
func (l *Localizer) Particles() []Particle {
	out := make([]Particle, len(l.particles))
	copy(out, l.particles)
	return out
}

// Move applies the motion update for one tick: local chassis velocity
// (vx, vy, omega), elapsed time dt, and whether to inject motion noise.
// useNoise is set to false by the caller when there were zero landmark
// measurements that tick, to avoid injecting noise that cannot be corrected.
func (l *Localizer) Move(vx, vy, omega, dt float64, useNoise bool) {
	for i := range l.particles {
		p := &l.particles[i]

		nx, ny, nOmega := 0.0, 0.0, 0.0
		if useNoise {
			nx = l.sampleNormal(l.sigmaVX)
			ny = l.sampleNormal(l.sigmaVY)
			nOmega = l.sampleNormal(l.sigmaOmega)
		}

		cos, sin := math.Cos(p.Orientation), math.Sin(p.Orientation)
		dxGlobal := (vx+nx)*cos - (vy+ny)*sin
		dyGlobal := (vx+nx)*sin + (vy+ny)*cos

		p.X += dxGlobal * dt
		p.Y += dyGlobal * dt
		p.Orientation = geom.NormalizeAngle(p.Orientation + (omega+nOmega)*dt)
	}
}

// Update applies the measurement update for one tick given a mapping of
// landmark id to observed measurement. Landmark ids not present in the
// filter's known map are silently ignored.
func (l *Localizer) Update(measurements map[string]Measurement) {
	if len(measurements) == 0 {
		return
	}

	var weightSum float64
	for i := range l.particles {
		p := &l.particles[i]

		likelihood := 1.0
		for id, meas := range measurements {
			landmark, ok := l.landmarks[id]
			if !ok {
				continue
			}

			dx := landmark.X - p.X
			dy := landmark.Y - p.Y
			expectedDistance := math.Hypot(dx, dy)
			expectedAngle := geom.NormalizeAngle(math.Atan2(dy, dx) - p.Orientation)

			distanceResidual := meas.Distance - expectedDistance
			angleResidual := geom.WrapSigned(meas.Angle - expectedAngle)

			likelihood *= gaussianLikelihood(distanceResidual, l.sigmaDistance)
			likelihood *= gaussianLikelihood(angleResidual, l.sigmaAngle)
		}

		p.Weight = likelihood
		weightSum += likelihood
	}

	if weightSum == 0 {
		l.logger.Warnf("localizer: zero weight sum after measurement update, resetting to uniform")
		uniform := 1.0 / float64(len(l.particles))
		for i := range l.particles {
			l.particles[i].Weight = uniform
		}
		return
	}

	for i := range l.particles {
		l.particles[i].Weight /= weightSum
	}

	if nEff := l.effectiveSampleSize(); nEff < l.nEffMin {
		l.resample()
	}
}

// Pose returns the weight-weighted mean pose of the current particle set:
// arithmetic mean for position, circular mean for orientation.
func (l *Localizer) Pose() geom.Pose {
	var x, y, sinSum, cosSum float64
	for _, p := range l.particles {
		x += p.Weight * p.X
		y += p.Weight * p.Y
		sinSum += p.Weight * math.Sin(p.Orientation)
		cosSum += p.Weight * math.Cos(p.Orientation)
	}
	return geom.NewPose(x, y, math.Atan2(sinSum, cosSum))
}

// SetPose forces every particle to the given pose with uniform weight,
// matching a hard position reset from the operator channel.
func (l *Localizer) SetPose(pose geom.Pose) {
	weight := 1.0 / float64(len(l.particles))
	for i := range l.particles {
		l.particles[i] = Particle{X: pose.X, Y: pose.Y, Orientation: pose.Orientation, Weight: weight}
	}
}

func (l *Localizer) effectiveSampleSize() float64 {
	var sumSquares float64
	for _, p := range l.particles {
		sumSquares += p.Weight * p.Weight
	}
	if sumSquares == 0 {
		return 0
	}
	return 1 / sumSquares
}

// resample performs low-variance (systematic) resampling: draws N particles
// with probability proportional to weight, each resampled particle
// receiving weight 1/N.
func (l *Localizer) resample() {
	n := len(l.particles)
	out := make([]Particle, n)

	step := 1.0 / float64(n)
	start := l.rng.Float64() * step

	cumulative := l.particles[0].Weight
	j := 0
	for i := 0; i < n; i++ {
		target := start + float64(i)*step
		for cumulative < target && j < n-1 {
			j++
			cumulative += l.particles[j].Weight
		}
		out[i] = l.particles[j]
		out[i].Weight = step
	}

	l.particles = out
}

func (l *Localizer) sampleNormal(sigma float64) float64 {
	if sigma == 0 {
		return 0
	}
	dist := distuv.Normal{Mu: 0, Sigma: sigma}
	return dist.Rand()
}

func gaussianLikelihood(residual, sigma float64) float64 {
	if sigma == 0 {
		if residual == 0 {
			return 1
		}
		return 0
	}
	exponent := -(residual * residual) / (2 * sigma * sigma)
	return math.Exp(exponent) / (sigma * math.Sqrt(2*math.Pi))
}
