package vision_test

import (
	"math"
	"testing"

	"go.viam.com/test"

	"github.com/cemot/soccervision/vision"
)

func TestNewVisionObjectDerivesCartesianFromPolar(t *testing.T) {
	o := vision.NewVisionObject(vision.KindBall, 2.0, math.Pi/2, 10, 320, 240, false)
	test.That(t, o.DistanceX, test.ShouldAlmostEqual, 0.0, 1e-9)
	test.That(t, o.DistanceY, test.ShouldAlmostEqual, 2.0, 1e-9)
}

func TestLargestGoalPicksWidestAcrossBothCameras(t *testing.T) {
	results := vision.Results{
		Front: []vision.VisionObject{
			vision.NewVisionObject(vision.KindGoalBlue, 1.0, 0, 50, 300, 200, false),
		},
		Rear: []vision.VisionObject{
			vision.NewVisionObject(vision.KindGoalBlue, 1.0, 0, 90, 300, 200, true),
		},
	}

	goal, ok := results.LargestGoal(vision.SideBlue)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, goal.Width, test.ShouldAlmostEqual, 90.0, 1e-9)
	test.That(t, goal.Behind, test.ShouldBeTrue)
}

func TestLargestGoalMissingReturnsFalse(t *testing.T) {
	_, ok := vision.Results{}.LargestGoal(vision.SideYellow)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestClosestBallRespectsDirection(t *testing.T) {
	results := vision.Results{
		Front: []vision.VisionObject{
			vision.NewVisionObject(vision.KindBall, 3.0, 0, 10, 300, 200, false),
		},
		Rear: []vision.VisionObject{
			vision.NewVisionObject(vision.KindBall, 1.0, 0, 10, 300, 200, true),
		},
	}

	frontBall, ok := results.ClosestBall(vision.DirFront)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, frontBall.Distance, test.ShouldAlmostEqual, 3.0, 1e-9)

	anyBall, ok := results.ClosestBall(vision.DirAny)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, anyBall.Distance, test.ShouldAlmostEqual, 1.0, 1e-9)
}

func TestClosestBallNoneSeenReturnsFalse(t *testing.T) {
	_, ok := vision.Results{}.ClosestBall(vision.DirAny)
	test.That(t, ok, test.ShouldBeFalse)
}
