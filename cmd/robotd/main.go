// Command robotd wires every component package into the running control
// core: the firmware UDP link, the operator WebSocket link, the robot
// orchestrator, and the match controller, then drives the single-threaded
// tick loop spec.md §5 describes. Shutdown is a single atomic running flag,
// flipped by a signal handler, observed at tick boundaries; background
// threads close their own sockets and are joined before main returns.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/cemot/soccervision/behavior"
	"github.com/cemot/soccervision/config"
	"github.com/cemot/soccervision/geom"
	"github.com/cemot/soccervision/kinematics"
	"github.com/cemot/soccervision/localization"
	"github.com/cemot/soccervision/logging"
	"github.com/cemot/soccervision/protocol"
	"github.com/cemot/soccervision/robot"
	"github.com/cemot/soccervision/vision"
)

// visionSource is the boundary this process reads per-tick detections
// through. Camera acquisition and blob detection are out of scope; a real
// deployment plugs in a source that talks to the vision process over
// whatever transport it uses (shared memory, a socket, the two-worker
// fan-out/join spec.md §5 describes), none of which robotd needs to know.
type visionSource interface {
	Results() vision.Results
}

// noVision is the source used when no vision process is configured: every
// tick reports no detections, so the control loop still runs (manual
// control, task-queue motions) without a camera attached.
type noVision struct{}

func (noVision) Results() vision.Results { return vision.Results{} }

func main() {
	operatorAddr := flag.String("operator-addr", ":8080", "operator WebSocket listen address")
	firmwareHost := flag.String("firmware-host", "", "firmware UDP host (overrides config default)")
	firmwarePort := flag.Int("firmware-port", 0, "firmware UDP port (overrides config default)")
	tickHz := flag.Float64("tick-hz", 50, "control loop frequency")
	flag.Parse()

	logger := logging.NewLogger("robotd")
	cfg := config.Default()
	if *firmwareHost != "" {
		cfg.FirmwareHost = *firmwareHost
	}
	if *firmwarePort != 0 {
		cfg.FirmwarePort = *firmwarePort
	}

	odometer, err := kinematics.New(cfg.WheelAngles, cfg.WheelOffsetM, cfg.WheelRadiusM)
	if err != nil {
		logger.Errorf("building odometer: %v", err)
		os.Exit(1)
	}

	localizer, err := localization.New(
		logger.Named("localization"),
		cfg.ParticleCount,
		geom.NewPose(cfg.FieldWidthM/2, cfg.FieldHeightM/2, 0),
		[]localization.Landmark{
			{ID: "blue-center", X: cfg.FieldWidthM, Y: cfg.FieldHeightM / 2},
			{ID: "yellow-center", X: 0, Y: cfg.FieldHeightM / 2},
		},
		cfg.MotionNoiseStdVX, cfg.MotionNoiseStdVY, cfg.MotionNoiseStdOmega,
		cfg.MeasurementNoiseStdDistance, cfg.MeasurementNoiseStdAngle,
	)
	if err != nil {
		logger.Errorf("building localizer: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	firmware, err := protocol.DialFirmware(logger.Named("firmware"), cfg.FirmwareHost, cfg.FirmwarePort)
	if err != nil {
		logger.Errorf("dialing firmware: %v", err)
		os.Exit(1)
	}
	firmware.Start(ctx)
	defer firmware.Close()

	operator := protocol.NewOperatorServer(logger.Named("operator"), *operatorAddr)
	operator.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := operator.Close(shutdownCtx); err != nil {
			logger.Warnf("operator server shutdown: %v", err)
		}
	}()

	clk := clock.New()
	r := robot.New(logger.Named("robot"), cfg, odometer, localizer, firmware, clk)
	controller := behavior.NewMatchController(logger.Named("controller"), r, cfg, clk)

	var vis visionSource = noVision{}

	var running atomic.Bool
	running.Store(true)
	go func() {
		<-ctx.Done()
		running.Store(false)
	}()

	runTickLoop(logger, &running, controller, r, firmware, operator, vis, time.Duration(float64(time.Second)/ *tickHz))

	logger.Infof("robotd: shutting down")
}

// runTickLoop drives the single-threaded control loop: drain inbound
// commands from both transports, route firmware commands to the robot's
// actuators and dispatch operator commands to the controller, step the
// controller (which sets the robot's target velocity/tasks) then the robot
// (which executes actuators, publishes wire speeds, and updates the
// localizer), and observe the running flag at the tick boundary — never
// mid-tick.
func runTickLoop(
	logger logging.Logger,
	running *atomic.Bool,
	controller *behavior.MatchController,
	r *robot.Robot,
	firmware *protocol.FirmwareLink,
	operator *protocol.OperatorServer,
	vis visionSource,
	period time.Duration,
) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	dt := period.Seconds()
	lastTick := time.Now()

	for running.Load() {
		<-ticker.C
		now := time.Now()
		dt = now.Sub(lastTick).Seconds()
		lastTick = now

		for _, cmd := range firmware.Inbound.DrainAll() {
			if !r.HandleFirmwareCommand(cmd) {
				logger.Warnf("firmware link: unhandled command %s", cmd.String())
			}
		}
		for _, cmd := range operator.Inbound.DrainAll() {
			protocol.Dispatch(logger, controller, cmd)
		}

		results := vis.Results()
		controller.Step(dt, results)
		r.Step(dt, results)

		if debugJSON, err := controller.DebugJSON(); err != nil {
			logger.Warnf("controller debug JSON: %v", err)
		} else {
			operator.Broadcast(context.Background(), debugJSON)
		}
	}
}
