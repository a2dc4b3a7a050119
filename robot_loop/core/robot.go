package core

import (
	"fmt"
	"time"

	control "romi-fusion-core/robot_loop/cascade_control"
	"romi-fusion-core/robot_loop/fusion"
	"romi-fusion-core/robot_loop/maneuver"
	"romi-fusion-core/robot_loop/register"
	"romi-fusion-core/robot_loop/sched"
	"romi-fusion-core/utils"
)

// Robot wires the control core onto a set of hardware collaborators.
type Robot struct {
	cfg Config
	log *utils.Logger
	hw  Hardware

	trigger *maneuver.Trigger
	bumpers *maneuver.Bumpers
	inner   *InnerTask
	outer   *OuterTask

	left, right *Actuator

	wheelCmd       *register.Register[control.RobotCommand]
	wheelSpeed     *register.Register[control.WheelSpeeds]
	finalPending   *register.Register[bool]
	lineCrossed    *register.Register[bool]
	maneuverActive *register.Register[bool] // Reverse..FindLine running

	initialHeading float64
}

// NewRobot builds the registers and both tasks. The current IMU heading becomes the
// reference for the finish turnaround, and encoder positions are zeroed at now.
func NewRobot(cfg Config, hw Hardware, now time.Duration, log *utils.Logger) (*Robot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := hw.validate(); err != nil {
		return nil, err
	}

	encL, err := fusion.NewEncoder(hw.LeftEncoder, cfg.Encoder, now)
	if err != nil {
		return nil, fmt.Errorf("left encoder: %w", err)
	}
	encR, err := fusion.NewEncoder(hw.RightEncoder, cfg.Encoder, now)
	if err != nil {
		return nil, fmt.Errorf("right encoder: %w", err)
	}

	g := cfg.Gains
	outerStage, err := control.NewOuterStage(g.OuterVelocity, g.OuterYaw, cfg.Geometry)
	if err != nil {
		return nil, err
	}
	arcStage, err := control.NewOuterStage(g.ArcVelocity, g.ArcYaw, cfg.Geometry)
	if err != nil {
		return nil, err
	}

	wheelCmd := register.New[control.RobotCommand]("wheel_cmd")
	wheelSpeed := register.New[control.WheelSpeeds]("wheel_speed")
	finalPending := register.New[bool]("final_pending")
	lineCrossed := register.New[bool]("line_crossed")
	maneuverActive := register.New[bool]("maneuver_active")

	initialHeading := fusion.HeadingDegrees(hw.IMU.ReadHeading())
	trigger := maneuver.NewTrigger(cfg.Maneuver.Debounce())

	r := &Robot{
		cfg:            cfg,
		log:            log,
		hw:             hw,
		trigger:        trigger,
		bumpers:        maneuver.NewBumpers(trigger),
		left:           NewActuator("left", hw.LeftMotor, log.Named("motor")),
		right:          NewActuator("right", hw.RightMotor, log.Named("motor")),
		wheelCmd:       wheelCmd,
		wheelSpeed:     wheelSpeed,
		finalPending:   finalPending,
		lineCrossed:    lineCrossed,
		maneuverActive: maneuverActive,
		initialHeading: initialHeading,
	}

	r.inner = &InnerTask{
		log:            log.Named("inner"),
		dt:             cfg.Tasks.Inner.Period().Seconds(),
		left:           r.left,
		right:          r.right,
		encL:           encL,
		encR:           encR,
		imu:            hw.IMU,
		line:           hw.Line,
		lineCfg:        cfg.Line,
		stage:          control.NewInnerStage(g.Inner),
		arc:            arcStage,
		seq:            maneuver.NewSequencer(cfg.Maneuver, trigger, initialHeading, log.Named("maneuver")),
		wheelCmd:       wheelCmd,
		lineCrossed:    lineCrossed,
		wheelSpeed:     wheelSpeed.MustClaim(),
		finalPending:   finalPending.MustClaim(),
		maneuverActive: maneuverActive.MustClaim(),
	}

	r.outer = &OuterTask{
		log:            log.Named("outer"),
		dt:             cfg.Tasks.Outer.Period().Seconds(),
		setpoint:       cfg.Tracking.LongitudinalSetpoint,
		imu:            hw.IMU,
		line:           hw.Line,
		lineCfg:        cfg.Line,
		stage:          outerStage,
		linePID:        control.NewPIDController(g.Line),
		yaw:            fusion.LowPass{Alpha: cfg.Tracking.YawAlpha},
		wheelSpeed:     wheelSpeed,
		finalPending:   finalPending,
		maneuverActive: maneuverActive,
		wheelCmd:       wheelCmd.MustClaim(),
		lineCrossed:    lineCrossed.MustClaim(),
	}

	log.Info("robot ready: initial heading %.2f deg, inner %v/p%d, outer %v/p%d",
		initialHeading, cfg.Tasks.Inner.Period(), cfg.Tasks.Inner.Priority,
		cfg.Tasks.Outer.Period(), cfg.Tasks.Outer.Priority)
	return r, nil
}

// Tasks returns the inner and outer tasks for the scheduler.
func (r *Robot) Tasks() []sched.Task {
	return []sched.Task{
		{Name: "InnerLoop", Period: r.cfg.Tasks.Inner.Period(), Priority: r.cfg.Tasks.Inner.Priority, Unit: r.inner},
		{Name: "OuterLoop", Period: r.cfg.Tasks.Outer.Period(), Priority: r.cfg.Tasks.Outer.Priority, Unit: r.outer},
	}
}

// Trigger is the interrupt-side entry point for bumper events.
func (r *Robot) Trigger() *maneuver.Trigger { return r.trigger }

func (r *Robot) Bumpers() *maneuver.Bumpers { return r.bumpers }

func (r *Robot) State() maneuver.State { return r.inner.State() }

func (r *Robot) InitialHeading() float64 { return r.initialHeading }

// Enable powers both motor stages at zero duty.
func (r *Robot) Enable() {
	r.left.Stop()
	r.right.Stop()
	r.hw.LeftMotor.Enable()
	r.hw.RightMotor.Enable()
}

// Halt is the emergency stop: zero duty, then disable both stages.
func (r *Robot) Halt() {
	r.left.Stop()
	r.right.Stop()
	r.hw.LeftMotor.Disable()
	r.hw.RightMotor.Disable()
	r.log.Warn("motors halted")
}
