package core

import (
	"time"

	control "romi-fusion-core/robot_loop/cascade_control"
	"romi-fusion-core/robot_loop/fusion"
	"romi-fusion-core/robot_loop/register"
	"romi-fusion-core/robot_loop/sched"
	"romi-fusion-core/utils"
)

// OuterTask is the slow loop: line following plus velocity and yaw-rate tracking, producing
// wheel-speed setpoints for the inner task.
type OuterTask struct {
	log      *utils.Logger
	dt       float64
	setpoint float64

	imu     Orientation
	line    LineArray
	lineCfg fusion.LineConfig

	stage   *control.OuterStage
	linePID *control.PIDController
	yaw     fusion.LowPass

	wheelSpeed     register.Reader[control.WheelSpeeds]
	finalPending   register.Reader[bool]
	maneuverActive register.Reader[bool]
	wheelCmd       *register.Writer[control.RobotCommand]
	lineCrossed    *register.Writer[bool]

	crossed bool
}

func (t *OuterTask) Step(now time.Duration) sched.Status {
	// the inner task owns the wheels until the recovery maneuver ends
	if t.maneuverActive.Read() {
		return sched.Continue
	}

	meas := t.wheelSpeed.Read()
	v := t.stage.LinearVelocity(meas)
	yaw := t.yaw.Update(fusion.YawRateRadians(t.imu.ReadYawRate()))

	frame := t.lineCfg.Process(t.line.ReadAll())
	if !t.crossed && t.finalPending.Read() && frame.Crossing(t.lineCfg.CrossingCount) {
		t.crossed = true
		t.lineCrossed.Write(true)
		t.log.Info("finish line crossed at %v (%d sensors)", now, frame.Sum)
	}

	var steer float64
	if frame.Present() {
		steer = t.linePID.Update(t.lineCfg.Setpoint, frame.Centroid, t.dt)
	}

	cmd := t.stage.Step(t.setpoint, v, steer, yaw, t.dt)
	t.wheelCmd.Write(cmd)

	if t.log.Enabled(utils.TRACE) {
		t.log.Trace("outer t=%v v=%.3f yaw=%.3f centroid=%.2f line=%v steer=%.2f cmd=(%.2f, %.2f)",
			now, v, yaw, frame.Centroid, frame.Present(), steer, cmd.Left, cmd.Right)
	}
	return sched.Continue
}
