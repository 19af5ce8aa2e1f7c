package robot_test

import (
	"strings"
	"testing"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/cemot/soccervision/config"
	"github.com/cemot/soccervision/geom"
	"github.com/cemot/soccervision/kinematics"
	"github.com/cemot/soccervision/localization"
	"github.com/cemot/soccervision/logging"
	"github.com/cemot/soccervision/protocol"
	"github.com/cemot/soccervision/robot"
	"github.com/cemot/soccervision/tasks"
	"github.com/cemot/soccervision/vision"
)

type capturingFirmware struct {
	published []string
}

func (c *capturingFirmware) Publish(text string) {
	c.published = append(c.published, text)
}

func newTestRobot(t *testing.T) (*robot.Robot, *capturingFirmware, *clock.Mock) {
	t.Helper()
	logger := logging.NewTestLogger(t)
	cfg := config.Default()

	odo, err := kinematics.New(cfg.WheelAngles, cfg.WheelOffsetM, cfg.WheelRadiusM)
	test.That(t, err, test.ShouldBeNil)

	loc, err := localization.New(logger, 100, geom.NewPose(2.25, 1.5, 0), []localization.Landmark{
		{ID: "blue-center", X: 4.5, Y: 1.5},
		{ID: "yellow-center", X: 0, Y: 1.5},
	}, cfg.MotionNoiseStdVX, cfg.MotionNoiseStdVY, cfg.MotionNoiseStdOmega, cfg.MeasurementNoiseStdDistance, cfg.MeasurementNoiseStdAngle)
	test.That(t, err, test.ShouldBeNil)

	mock := clock.NewMock()
	firmware := &capturingFirmware{}

	r := robot.New(logger, cfg, odo, loc, firmware, mock)
	return r, firmware, mock
}

func TestStepEmitsSpeedsMessage(t *testing.T) {
	r, firmware, _ := newTestRobot(t)

	r.SetTargetDir(1, 0, 0)
	r.Step(0.02, vision.Results{})

	test.That(t, len(firmware.published), test.ShouldBeGreaterThan, 0)
	// The one-shot coilgun charge is published before the speeds: message.
	test.That(t, strings.HasPrefix(firmware.published[len(firmware.published)-1], "speeds:"), test.ShouldBeTrue)
}

func TestStepChargesCoilgunExactlyOnce(t *testing.T) {
	r, firmware, _ := newTestRobot(t)

	r.Step(0.02, vision.Results{})
	r.Step(0.02, vision.Results{})
	r.Step(0.02, vision.Results{})

	chargeCount := 0
	for _, msg := range firmware.published {
		if msg == "charge" {
			chargeCount++
		}
	}
	test.That(t, chargeCount, test.ShouldEqual, 1)
}

func TestStepAccumulatesTotalTime(t *testing.T) {
	r, _, _ := newTestRobot(t)

	r.Step(0.02, vision.Results{})
	r.Step(0.03, vision.Results{})

	test.That(t, r.TotalTime(), test.ShouldAlmostEqual, 0.05, 1e-9)
	test.That(t, r.LastDt(), test.ShouldAlmostEqual, 0.03, 1e-9)
}

func TestStepBuildsMeasurementsFromLargestGoals(t *testing.T) {
	r, _, _ := newTestRobot(t)

	results := vision.Results{
		Front: []vision.VisionObject{
			vision.NewVisionObject(vision.KindGoalBlue, 2.25, 0, 50, 320, 240, false),
			vision.NewVisionObject(vision.KindGoalBlue, 2.3, 0.05, 30, 300, 240, false),
		},
	}

	// Should not panic and should update pose toward the landmark geometry
	// implied by the larger-width blue goal detection.
	r.Step(0.02, results)

	pose := r.Pose()
	test.That(t, pose.X, test.ShouldBeGreaterThan, 0)
}

func TestStopZeroesTargetVelocity(t *testing.T) {
	r, firmware, _ := newTestRobot(t)

	r.SetTargetDir(1, 1, 1)
	r.Stop()
	r.Step(0.02, vision.Results{})

	test.That(t, len(firmware.published) > 0, test.ShouldBeTrue)
	test.That(t, firmware.published[len(firmware.published)-1], test.ShouldEqual, "speeds:0:0:0:0:0")
}

func TestSetPositionTeleportsPose(t *testing.T) {
	r, _, _ := newTestRobot(t)

	r.SetPosition(geom.NewPose(1.0, 1.0, 0.2))
	pose := r.Pose()

	test.That(t, pose.X, test.ShouldAlmostEqual, 1.0, 1e-9)
	test.That(t, pose.Y, test.ShouldAlmostEqual, 1.0, 1e-9)
}

func TestEnqueueTaskDrainsDuringStep(t *testing.T) {
	r, _, _ := newTestRobot(t)

	task := tasks.NewDriveFor(0, 0, 0, 0.01)
	r.EnqueueTask(task)
	test.That(t, r.TaskQueueLen(), test.ShouldEqual, 1)

	r.Step(0.02, vision.Results{})
	test.That(t, r.TaskQueueLen(), test.ShouldEqual, 0)
}

func TestHandleFirmwareCommandRoutesWheelSpeedToWheel(t *testing.T) {
	r, _, _ := newTestRobot(t)

	ok := r.HandleFirmwareCommand(protocol.Command{Name: "wheel-fl-speed", Parameters: []string{"60"}})
	test.That(t, ok, test.ShouldBeTrue)

	r.SetTargetDir(0, 0, 0)
	r.Step(0.02, vision.Results{})

	// With only wheel-fl reporting a nonzero real speed, the forward
	// kinematics solve over the four (now asymmetric) wheel readings
	// cannot land exactly on the zero vector.
	test.That(t, r.Speed() != 0 || r.WheelsOmega() != 0, test.ShouldBeTrue)
}

func TestHandleFirmwareCommandRoutesBallToDribbler(t *testing.T) {
	r, _, _ := newTestRobot(t)

	ok := r.HandleFirmwareCommand(protocol.Command{Name: "ball", Parameters: []string{"1"}})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, r.Dribbler().GotBall(), test.ShouldBeTrue)
}

func TestHandleFirmwareCommandReportsUnhandled(t *testing.T) {
	r, _, _ := newTestRobot(t)

	ok := r.HandleFirmwareCommand(protocol.Command{Name: "not-a-real-message"})
	test.That(t, ok, test.ShouldBeFalse)
}

func TestHandleFirmwareCommandAcknowledgesTelemetry(t *testing.T) {
	r, _, _ := newTestRobot(t)

	test.That(t, r.HandleFirmwareCommand(protocol.Command{Name: "stall", Parameters: []string{"fl", "1"}}), test.ShouldBeTrue)
	test.That(t, r.HandleFirmwareCommand(protocol.Command{Name: "voltage", Parameters: []string{"12.1"}}), test.ShouldBeTrue)
}

func TestIsStalledFalseWithoutFirmwareFeedback(t *testing.T) {
	r, _, _ := newTestRobot(t)
	r.SetTargetDir(0, 0, 0)
	r.Step(0.02, vision.Results{})
	test.That(t, r.IsStalled(), test.ShouldBeFalse)
}
