package behavior

import (
	"math"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/cemot/soccervision/config"
	"github.com/cemot/soccervision/geom"
	"github.com/cemot/soccervision/logging"
	"github.com/cemot/soccervision/protocol"
	"github.com/cemot/soccervision/robot"
	"github.com/cemot/soccervision/tasks"
	"github.com/cemot/soccervision/vision"
)

// MatchController is the port of the original source's TestController: the
// example controller demonstrating manual control plus the full set of
// ball-fetching and aiming behaviors.
type MatchController struct {
	*Controller

	robot  *robot.Robot
	cfg    config.Config
	clock  clock.Clock
	logger logging.Logger
	debug  *debugValues

	manualSpeedX, manualSpeedY, manualOmega float64
	manualDribblerSpeed                     int
	manualKickStrength                      int
	lastCommandTime                         time.Time
	haveLastCommand                         bool

	blueGoalDistance, yellowGoalDistance float64

	// Parameters is a sparse index->string slot map, set by the operator's
	// `parameter` command and consumed by fetch-ball-infront's tunable
	// gains, matching the original source's parameters map.
	Parameters map[int]string

	driveTo      *driveToState
	lastKickTime time.Time
	haveLastKick bool

	loggedFetchBallBehindStub bool
}

// NewMatchController builds a MatchController wired to the given robot,
// registering all nine states.
func NewMatchController(logger logging.Logger, r *robot.Robot, cfg config.Config, clk clock.Clock) *MatchController {
	mc := &MatchController{
		Controller: NewController("match"),
		robot:      r,
		cfg:        cfg,
		clock:      clk,
		logger:     logger,
		debug:      newDebugValues(),
		Parameters: make(map[int]string),
	}

	mc.driveTo = &driveToState{mc: mc}

	mc.Register("manual-control", &manualControlState{mc: mc})
	mc.Register("watch-ball", &watchBallState{mc: mc})
	mc.Register("watch-goal", &watchGoalState{mc: mc})
	mc.Register("spin-around-dribbler", &spinAroundDribblerState{mc: mc})
	mc.Register("drive-to", mc.driveTo)
	mc.Register("fetch-ball-infront", &fetchBallInfrontState{mc: mc})
	mc.Register("fetch-ball-behind", &fetchBallBehindState{mc: mc})
	mc.Register("fetch-ball-straight", &fetchBallStraightState{mc: mc})
	mc.Register("aim", &aimState{mc: mc})

	return mc
}

// Step refreshes the tracked goal distances before delegating to the
// active state, entering manual-control on first activation.
func (mc *MatchController) Step(dt float64, results vision.Results) {
	mc.updateGoalDistances(results)

	if mc.CurrentStateName() == "" {
		mc.SetState("manual-control")
	}

	mc.Controller.Step(dt, results)
}

func (mc *MatchController) updateGoalDistances(results vision.Results) {
	mc.blueGoalDistance = 0
	mc.yellowGoalDistance = 0
	if goal, ok := results.LargestGoal(vision.SideBlue); ok {
		mc.blueGoalDistance = goal.Distance
	}
	if goal, ok := results.LargestGoal(vision.SideYellow); ok {
		mc.yellowGoalDistance = goal.Distance
	}
}

// HandleCommand applies MatchController's own command vocabulary, falling
// back to the generic run-/reset/toggle-side handling in Controller.
func (mc *MatchController) HandleCommand(cmd protocol.Command) bool {
	switch {
	case cmd.Name == "target-vector" && len(cmd.Parameters) == 3:
		mc.manualSpeedX = mustFloat(cmd.Parameters[0])
		mc.manualSpeedY = mustFloat(cmd.Parameters[1])
		mc.manualOmega = mustFloat(cmd.Parameters[2])
		mc.touchLastCommand()
		return true
	case cmd.Name == "set-dribbler" && len(cmd.Parameters) == 1:
		mc.manualDribblerSpeed = mustInt(cmd.Parameters[0])
		mc.touchLastCommand()
		return true
	case cmd.Name == "kick" && len(cmd.Parameters) == 1:
		mc.manualKickStrength = mustInt(cmd.Parameters[0])
		mc.touchLastCommand()
		return true
	case cmd.Name == "reset-position":
		mc.robot.SetPosition(geom.NewPose(mc.cfg.FieldWidthM/2, mc.cfg.FieldHeightM/2, 0))
		return true
	case cmd.Name == "stop":
		mc.robot.ClearTasks()
		mc.robot.Stop()
		mc.SetState("manual-control")
		return true
	case cmd.Name == "drive-to" && len(cmd.Parameters) == 3:
		mc.driveTo.x = mustFloat(cmd.Parameters[0])
		mc.driveTo.y = mustFloat(cmd.Parameters[1])
		mc.driveTo.orientation = mustFloat(cmd.Parameters[2])
		mc.SetState("drive-to")
		return true
	case cmd.Name == "parameter" && len(cmd.Parameters) == 2:
		idx := mustInt(cmd.Parameters[0])
		mc.Parameters[idx] = cmd.Parameters[1]
		return true
	}
	return mc.Controller.HandleCommand(cmd)
}

// HandleRequest has no request vocabulary of its own beyond handleCommand.
func (mc *MatchController) HandleRequest(text string) bool {
	return false
}

// SetController satisfies protocol.Dispatcher. This repository wires a
// single MatchController rather than a set of swappable top-level
// controllers, so set-controller always fails here.
func (mc *MatchController) SetController(name string) bool {
	return false
}

// DebugJSON renders the accumulated introspection values plus the fields
// getJSON always includes, matching the original source's getJSON.
func (mc *MatchController) DebugJSON() (string, error) {
	return mc.debug.renderJSON(map[string]interface{}{
		"currentState":      mc.CurrentStateName(),
		"stateDuration":     mc.currentStateDuration,
		"totalDuration":     mc.totalDuration,
		"blueGoalDistance":  mc.blueGoalDistance,
		"yellowGoalDistance": mc.yellowGoalDistance,
	})
}

func (mc *MatchController) touchLastCommand() {
	mc.lastCommandTime = mc.clock.Now()
	mc.haveLastCommand = true
}

func (mc *MatchController) parameterFloat(index int, fallback float64) float64 {
	raw, ok := mc.Parameters[index]
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func mustFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func mustInt(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

// --- manual-control ---

type manualControlState struct {
	mc *MatchController
}

func (s *manualControlState) OnEnter() {}
func (s *manualControlState) OnExit()  {}

func (s *manualControlState) Step(dt float64, results vision.Results, totalDuration, stateDuration float64) {
	mc := s.mc
	if mc.haveLastCommand && mc.clock.Now().Sub(mc.lastCommandTime) < mc.cfg.OperatorNoCommandTimeout {
		mc.robot.SetTargetDir(mc.manualSpeedX, mc.manualSpeedY, mc.manualOmega)
		mc.robot.Dribbler().SetTarget(-float64(mc.manualDribblerSpeed))

		if mc.manualKickStrength != 0 {
			mc.robot.Coilgun().Kick(mc.manualKickStrength)
			mc.manualKickStrength = 0
		}
		return
	}

	mc.robot.Stop()
	mc.robot.Dribbler().SetTarget(0)
}

// --- watch-ball ---

type watchBallState struct {
	mc *MatchController
}

func (s *watchBallState) OnEnter() {}
func (s *watchBallState) OnExit()  {}

func (s *watchBallState) Step(dt float64, results vision.Results, totalDuration, stateDuration float64) {
	mc := s.mc
	ball, ok := results.ClosestBall(vision.DirFront)
	if !ok {
		mc.robot.SetTargetDir(mc.manualSpeedX, mc.manualSpeedY, mc.manualOmega)
		return
	}
	mc.robot.SetVelocity(mc.manualSpeedX, mc.manualSpeedY)
	mc.robot.LookAt(ball.Angle)
}

// --- watch-goal ---

type watchGoalState struct {
	mc *MatchController
}

func (s *watchGoalState) OnEnter() {}
func (s *watchGoalState) OnExit()  {}

func (s *watchGoalState) Step(dt float64, results vision.Results, totalDuration, stateDuration float64) {
	mc := s.mc
	goal, ok := results.LargestGoal(vision.SideBlue)
	if !ok {
		mc.robot.SetTargetDir(mc.manualSpeedX, mc.manualSpeedY, mc.manualOmega)
		return
	}
	mc.robot.SetVelocity(mc.manualSpeedX, mc.manualSpeedY)
	mc.robot.LookAt(goal.Angle)
}

// --- spin-around-dribbler ---

type spinAroundDribblerState struct {
	mc *MatchController
}

func (s *spinAroundDribblerState) OnEnter() {}
func (s *spinAroundDribblerState) OnExit()  {}

func (s *spinAroundDribblerState) Step(dt float64, results vision.Results, totalDuration, stateDuration float64) {
	mc := s.mc
	mc.robot.SpinAroundDribbler(false, mc.cfg.SpinAroundDribblerPeriodS, mc.cfg.SpinAroundDribblerRadiusM, mc.cfg.SpinAroundDribblerForwardSpeed)
}

// --- drive-to ---

type driveToState struct {
	mc                     *MatchController
	x, y, orientation      float64
}

func (s *driveToState) OnEnter() {
	s.mc.robot.EnqueueTask(tasks.NewDriveTo(s.x, s.y, s.orientation, 1.0))
}

func (s *driveToState) OnExit() {}

func (s *driveToState) Step(dt float64, results vision.Results, totalDuration, stateDuration float64) {}

// --- fetch-ball-infront ---

type fetchBallInfrontState struct {
	mc *MatchController
}

func (s *fetchBallInfrontState) OnEnter() {}
func (s *fetchBallInfrontState) OnExit()  {}

func (s *fetchBallInfrontState) Step(dt float64, results vision.Results, totalDuration, stateDuration float64) {
	mc := s.mc

	if mc.robot.Dribbler().GotBall() {
		mc.debug.set("gotBall", true)
		mc.SetState("aim")
		return
	}

	ball, hasBall := results.ClosestBall(vision.DirFront)
	goal, hasGoal := results.LargestGoal(vision.SideBlue)

	mc.debug.set("ballVisible", hasBall)
	mc.debug.set("goalVisible", hasGoal)

	if !hasBall || !hasGoal {
		mc.robot.Stop()
		return
	}

	if stateDuration < 5.0 {
		mc.robot.LookAt(goal.Angle)
		return
	}

	ballDistance := ball.Distance
	onLeft := ball.X < goal.X
	var ballSideDistance float64
	if onLeft {
		ballSideDistance = ball.X - ball.Width/2
	} else {
		ballSideDistance = float64(mc.cfg.CameraWidthPx) - ball.X + ball.Width/2
	}

	farApproachP := mc.parameterFloat(0, 2.0)
	farSideP := 1.0
	nearApproachP := mc.parameterFloat(2, 0.75)
	nearSideP := 1.0
	nearZeroSpeedAngle := mc.parameterFloat(3, 15.0)
	nearMaxSideSpeedAngle := 40.0
	nearDistance := mc.parameterFloat(1, geom.Map(mc.robot.Speed(), 0.0, 2.0, 0.25, 1.0))

	dribblerStartDistance := 0.5
	maxSideSpeedThreshold := 0.0
	minSideSpeedThreshold := float64(mc.cfg.CameraWidthPx) / 2

	var sideSpeed, forwardSpeed float64

	if ballDistance > nearDistance {
		forwardSideRatio := geom.Map(ballSideDistance, maxSideSpeedThreshold, minSideSpeedThreshold, 0.0, 1.0)
		forwardSpeed = farApproachP * forwardSideRatio
		sideSpeed = (1.0 - forwardSideRatio) * geom.Sign(ball.DistanceX) * farSideP
	} else {
		forwardSpeed = nearApproachP * geom.Map(math.Abs(geom.RadToDeg(ball.Angle)), 0.0, nearZeroSpeedAngle, 1.0, 0.0)
		sideSpeed = geom.Sign(ball.DistanceX) * geom.Map(math.Abs(geom.RadToDeg(ball.Angle)), 0.0, nearMaxSideSpeedAngle, 0.0, 1.0) * nearSideP
	}

	if ballDistance < dribblerStartDistance {
		mc.robot.Dribbler().SetTarget(mc.cfg.DribblerRunSpeedRPM)
	} else {
		mc.robot.Dribbler().SetTarget(0)
	}

	mc.debug.set("ballDistance", ballDistance)
	mc.debug.set("ballDistanceX", ball.DistanceX)
	mc.debug.set("nearDistance", nearDistance)
	mc.debug.set("ballAngle", geom.RadToDeg(ball.Angle))
	mc.debug.set("sideSpeed", sideSpeed)
	mc.debug.set("forwardSpeed", forwardSpeed)
	mc.debug.set("onLeft", onLeft)
	mc.debug.set("ballDistanceFromSide", ballSideDistance)

	mc.robot.SetVelocity(forwardSpeed, sideSpeed)
	mc.robot.LookAt(goal.Angle)
}

// --- fetch-ball-behind ---

// fetchBallBehindState is a deliberate stub: the original source never
// implements this state beyond checking ball/goal visibility (a `// TODO`
// in TestController.cpp). Kept a stub here rather than inventing
// unconfirmed behavior.
type fetchBallBehindState struct {
	mc *MatchController
}

func (s *fetchBallBehindState) OnEnter() {}
func (s *fetchBallBehindState) OnExit()  {}

func (s *fetchBallBehindState) Step(dt float64, results vision.Results, totalDuration, stateDuration float64) {
	mc := s.mc
	_, hasBall := results.ClosestBall(vision.DirBehind)
	_, hasGoal := results.LargestGoal(vision.SideBlue)
	if !hasBall || !hasGoal {
		return
	}
	if !mc.loggedFetchBallBehindStub {
		mc.logger.Warnf("fetch-ball-behind: ball and goal visible but approach behavior is unimplemented")
		mc.loggedFetchBallBehindStub = true
	}
	mc.robot.Stop()
}

// --- fetch-ball-straight ---

type fetchBallStraightState struct {
	mc *MatchController
}

func (s *fetchBallStraightState) OnEnter() {}
func (s *fetchBallStraightState) OnExit()  {}

func (s *fetchBallStraightState) Step(dt float64, results vision.Results, totalDuration, stateDuration float64) {
	mc := s.mc

	if mc.robot.Dribbler().GotBall() {
		mc.debug.set("gotBall", true)
		mc.SetState("aim")
		return
	}

	ball, hasBall := results.ClosestBall(vision.DirFront)
	goal, hasGoal := results.LargestGoal(vision.SideBlue)

	mc.debug.set("ballVisible", hasBall)
	mc.debug.set("goalVisible", hasGoal)

	if !hasBall || !hasGoal {
		mc.robot.Stop()
		return
	}

	targetAngle := targetPosAwayFromGoal(goal.DistanceX, goal.DistanceY, ball.DistanceX, ball.DistanceY, 0.25, mc.debug)

	mc.debug.set("goalX", goal.DistanceX)
	mc.debug.set("goalY", goal.DistanceY)
	mc.debug.set("ballX", ball.DistanceX)
	mc.debug.set("ballY", ball.DistanceY)
	mc.debug.set("ballDistance", ball.Distance)
	mc.debug.set("targetAngle", targetAngle)

	mc.robot.SetTargetDirPolar(targetAngle, 0.5, 0)
	mc.robot.LookAt(goal.Angle)
}

// targetPosAwayFromGoal finds the line through the ball and the goal, the
// two points on that line at distance D from the ball, and returns the
// bearing of whichever of those two points is farther from the goal —
// the geometry behind FetchBallStraightState::getTargetPos.
func targetPosAwayFromGoal(goalX, goalY, ballX, ballY, d float64, debug *debugValues) float64 {
	a := (ballY - goalY) / (ballX - goalX)
	b := goalY - a*goalX

	c := d / math.Sqrt(1+a*a)
	targetX1 := ballX + c
	targetX2 := ballX - c
	targetY1 := a*targetX1 + b
	targetY2 := a*targetX2 + b

	dist1 := (goalX-targetX1)*(goalX-targetX1) + (goalY-targetY1)*(goalY-targetY1)
	dist2 := (goalX-targetX2)*(goalX-targetX2) + (goalY-targetY2)*(goalY-targetY2)

	var targetX, targetY float64
	if dist1 > dist2 {
		targetX, targetY = targetX1, targetY1
	} else {
		targetX, targetY = targetX2, targetY2
	}

	if debug != nil {
		debug.set("a", a)
		debug.set("b", b)
		debug.set("c", c)
		debug.set("targetX", targetX)
		debug.set("targetY", targetY)
	}

	return math.Atan2(targetY, targetX)
}

// --- aim ---

type aimState struct {
	mc *MatchController
}

func (s *aimState) OnEnter() {}
func (s *aimState) OnExit()  {}

func (s *aimState) Step(dt float64, results vision.Results, totalDuration, stateDuration float64) {
	mc := s.mc
	mc.robot.Stop()

	if !mc.robot.Dribbler().GotBall() {
		return
	}

	goal, ok := results.LargestGoal(vision.SideBlue)
	if !ok {
		mc.debug.set("goalVisible", false)
		return
	}
	mc.debug.set("goalVisible", true)

	mc.robot.SetTargetDir(0, 0, 0)
	mc.robot.Dribbler().SetTarget(mc.cfg.DribblerRunSpeedRPM)

	halfWidth := float64(mc.cfg.CameraWidthPx) / 2
	leftEdge := goal.X - goal.Width/2
	rightEdge := goal.X + goal.Width/2
	goalKickThresholdPixels := goal.Width * mc.cfg.GoalKickThreshold

	shouldKick := false
	if !goal.Behind {
		if leftEdge+goalKickThresholdPixels < halfWidth && rightEdge-goalKickThresholdPixels > halfWidth {
			shouldKick = true
		}
	}

	mc.debug.set("shouldKick", shouldKick)

	if shouldKick && (!mc.haveLastKick || mc.clock.Now().Sub(mc.lastKickTime) >= time.Duration(mc.cfg.KickMinIntervalS*float64(time.Second))) {
		mc.robot.Coilgun().Kick(255)
		mc.lastKickTime = mc.clock.Now()
		mc.haveLastKick = true
	} else {
		mc.robot.LookAt(goal.Angle)
	}
}
