package localization_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.viam.com/test"

	"github.com/cemot/soccervision/geom"
	"github.com/cemot/soccervision/localization"
	"github.com/cemot/soccervision/logging"
)

// almostEqualFloats compares two float64 slices within a fixed tolerance,
// used where test.ShouldResemble's exact equality is too strict for
// particle positions.
func almostEqualFloats() cmp.Option {
	return cmp.Comparer(func(a, b float64) bool {
		return math.Abs(a-b) < 1e-9
	})
}

func TestInitialPoseIsExact(t *testing.T) {
	logger := logging.NewTestLogger(t)
	initial := geom.NewPose(1.0, 2.0, 0.5)

	loc, err := localization.New(logger, 500, initial, nil, 0.02, 0.02, 0.02, 0.1, 0.05)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loc.ParticleCount(), test.ShouldEqual, 500)

	pose := loc.Pose()
	test.That(t, pose.X, test.ShouldAlmostEqual, 1.0, 1e-9)
	test.That(t, pose.Y, test.ShouldAlmostEqual, 2.0, 1e-9)
	test.That(t, pose.Orientation, test.ShouldAlmostEqual, 0.5, 1e-9)
}

func TestMoveWithoutNoiseIsDeterministic(t *testing.T) {
	logger := logging.NewTestLogger(t)
	initial := geom.NewPose(0, 0, 0)

	loc, err := localization.New(logger, 200, initial, nil, 0.02, 0.02, 0.02, 0.1, 0.05)
	test.That(t, err, test.ShouldBeNil)

	loc.Move(1.0, 0.0, 0.0, 1.0, false)

	pose := loc.Pose()
	test.That(t, pose.X, test.ShouldAlmostEqual, 1.0, 1e-9)
	test.That(t, pose.Y, test.ShouldAlmostEqual, 0.0, 1e-9)
}

func TestWeightsSumToOneAfterMeasurementUpdate(t *testing.T) {
	logger := logging.NewTestLogger(t)
	initial := geom.NewPose(0, 0, 0)

	landmarks := []localization.Landmark{
		{ID: "blue-center", X: 4.5, Y: 1.5},
		{ID: "yellow-center", X: 0, Y: 1.5},
	}

	loc, err := localization.New(logger, 300, initial, landmarks, 0.02, 0.02, 0.02, 0.1, 0.05)
	test.That(t, err, test.ShouldBeNil)

	loc.Update(map[string]localization.Measurement{
		"blue-center": {Distance: 4.5, Angle: 0.0},
	})

	var sum float64
	for _, p := range loc.Particles() {
		sum += p.Weight
	}
	test.That(t, sum, test.ShouldAlmostEqual, 1.0, 1e-9)
}

func TestUnknownLandmarkIDIsIgnored(t *testing.T) {
	logger := logging.NewTestLogger(t)
	initial := geom.NewPose(0, 0, 0)

	loc, err := localization.New(logger, 100, initial, nil, 0.02, 0.02, 0.02, 0.1, 0.05)
	test.That(t, err, test.ShouldBeNil)

	before := loc.Pose()
	loc.Update(map[string]localization.Measurement{
		"not-a-real-landmark": {Distance: 1.0, Angle: 0.0},
	})
	after := loc.Pose()

	test.That(t, after.X, test.ShouldAlmostEqual, before.X, 1e-9)
	test.That(t, after.Y, test.ShouldAlmostEqual, before.Y, 1e-9)
}

func TestZeroWeightSumResetsToUniform(t *testing.T) {
	logger := logging.NewTestLogger(t)
	initial := geom.NewPose(0, 0, 0)

	landmarks := []localization.Landmark{
		{ID: "blue-center", X: 4.5, Y: 1.5},
	}

	// Measurement noise so tight that a distance residual of many meters
	// drives every particle's likelihood to float64 zero.
	loc, err := localization.New(logger, 50, initial, landmarks, 0.02, 0.02, 0.02, 1e-6, 1e-6)
	test.That(t, err, test.ShouldBeNil)

	loc.Update(map[string]localization.Measurement{
		"blue-center": {Distance: 1000, Angle: 3.0},
	})

	for _, p := range loc.Particles() {
		test.That(t, p.Weight, test.ShouldAlmostEqual, 1.0/50.0, 1e-9)
	}
}

func TestOrientationStaysNormalized(t *testing.T) {
	logger := logging.NewTestLogger(t)
	initial := geom.NewPose(0, 0, 0)

	loc, err := localization.New(logger, 50, initial, nil, 0, 0, 0, 0.1, 0.05)
	test.That(t, err, test.ShouldBeNil)

	for i := 0; i < 20; i++ {
		loc.Move(0, 0, 4.0, 1.0, false)
	}

	pose := loc.Pose()
	test.That(t, pose.Orientation >= 0, test.ShouldBeTrue)
	test.That(t, pose.Orientation < geom.TwoPi, test.ShouldBeTrue)
}

func TestConvergesTowardTrueLandmarkGeometry(t *testing.T) {
	logger := logging.NewTestLogger(t)

	// Particles start together at a pose offset from the true pose. Each
	// round spreads them with a noisy zero-velocity motion update, then
	// consistent measurements of both landmarks pull the weighted mean
	// toward the true position (spec.md §8 scenario 3's convergence check).
	landmarks := []localization.Landmark{
		{ID: "blue-center", X: 4.5, Y: 1.5},
		{ID: "yellow-center", X: 0, Y: 1.5},
	}

	truePose := geom.NewPose(2.0, 1.5, 0.0)
	loc, err := localization.New(logger, 2000, geom.NewPose(1.5, 1.2, 0.1), landmarks, 0.02, 0.02, 0.02, 0.05, 0.03)
	test.That(t, err, test.ShouldBeNil)

	trueDistBlue := math.Hypot(landmarks[0].X-truePose.X, landmarks[0].Y-truePose.Y)
	trueAngleBlue := geom.NormalizeAngle(math.Atan2(landmarks[0].Y-truePose.Y, landmarks[0].X-truePose.X) - truePose.Orientation)
	trueDistYellow := math.Hypot(landmarks[1].X-truePose.X, landmarks[1].Y-truePose.Y)
	trueAngleYellow := geom.NormalizeAngle(math.Atan2(landmarks[1].Y-truePose.Y, landmarks[1].X-truePose.X) - truePose.Orientation)

	for i := 0; i < 10; i++ {
		loc.Move(0, 0, 0, 5.0, true)
		loc.Update(map[string]localization.Measurement{
			"blue-center":   {Distance: trueDistBlue, Angle: trueAngleBlue},
			"yellow-center": {Distance: trueDistYellow, Angle: trueAngleYellow},
		})
	}

	pose := loc.Pose()
	test.That(t, math.Abs(pose.X-truePose.X) < 0.3, test.ShouldBeTrue)
	test.That(t, math.Abs(pose.Y-truePose.Y) < 0.3, test.ShouldBeTrue)
}

func TestSetPoseResetsAllParticles(t *testing.T) {
	logger := logging.NewTestLogger(t)
	loc, err := localization.New(logger, 10, geom.NewPose(0, 0, 0), nil, 0.02, 0.02, 0.02, 0.1, 0.05)
	test.That(t, err, test.ShouldBeNil)

	loc.SetPose(geom.NewPose(3, 4, 1.0))

	for _, p := range loc.Particles() {
		test.That(t, p.X, test.ShouldAlmostEqual, 3.0, 1e-9)
		test.That(t, p.Y, test.ShouldAlmostEqual, 4.0, 1e-9)
		test.That(t, p.Weight, test.ShouldAlmostEqual, 0.1, 1e-9)
	}
}

func TestNewRejectsNonPositiveParticleCount(t *testing.T) {
	logger := logging.NewTestLogger(t)
	_, err := localization.New(logger, 0, geom.NewPose(0, 0, 0), nil, 0.02, 0.02, 0.02, 0.1, 0.05)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSetPoseParticleCoordinatesMatchExactly(t *testing.T) {
	logger := logging.NewTestLogger(t)
	loc, err := localization.New(logger, 25, geom.NewPose(0, 0, 0), nil, 0.02, 0.02, 0.02, 0.1, 0.05)
	test.That(t, err, test.ShouldBeNil)

	loc.SetPose(geom.NewPose(2.5, -1.5, 0))

	wantX := make([]float64, 25)
	gotX := make([]float64, 25)
	for i, p := range loc.Particles() {
		wantX[i] = 2.5
		gotX[i] = p.X
	}

	if diff := cmp.Diff(wantX, gotX, almostEqualFloats()); diff != "" {
		t.Errorf("particle X coordinates mismatch after SetPose (-want +got):\n%s", diff)
	}
}
