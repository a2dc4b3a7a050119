package core

import (
	"time"

	control "romi-fusion-core/robot_loop/cascade_control"
	"romi-fusion-core/robot_loop/fusion"
	"romi-fusion-core/robot_loop/maneuver"
	"romi-fusion-core/robot_loop/register"
	"romi-fusion-core/robot_loop/sched"
	"romi-fusion-core/utils"
)

// InnerTask is the fast loop. It owns both encoders and the motors, runs the maneuver
// sequencer, and in normal tracking drives the wheels toward the outer task's setpoints.
type InnerTask struct {
	log *utils.Logger
	dt  float64

	left, right *Actuator
	encL, encR  *fusion.Encoder
	imu         Orientation
	line        LineArray
	lineCfg     fusion.LineConfig

	stage *control.InnerStage
	arc   *control.OuterStage
	seq   *maneuver.Sequencer

	wheelCmd       register.Reader[control.RobotCommand]
	lineCrossed    register.Reader[bool]
	wheelSpeed     *register.Writer[control.WheelSpeeds]
	finalPending   *register.Writer[bool]
	maneuverActive *register.Writer[bool]
}

// Step is one control iteration.
func (t *InnerTask) Step(now time.Duration) sched.Status {
	t.encL.Update(now)
	t.encR.Update(now)
	meas := control.WheelSpeeds{Left: t.encL.Speed(), Right: t.encR.Speed()}
	t.wheelSpeed.Write(meas)

	act := t.seq.Step(now, t.lineCrossed.Read(), t)
	t.finalPending.Write(t.seq.FinalPending())
	t.maneuverActive.Write(t.seq.State().Recovering())

	switch act.Kind {
	case maneuver.ActionTrack:
		l, r := t.stage.Step(t.wheelCmd.Read(), meas, t.dt)
		t.apply(l, r)
	case maneuver.ActionOpenLoop:
		t.apply(act.Left, act.Right)
	case maneuver.ActionArc:
		v := t.arc.LinearVelocity(meas)
		yaw := fusion.YawRateRadians(t.imu.ReadYawRate())
		sp := t.arc.Step(act.Velocity, v, act.YawRate, yaw, t.dt)
		l, r := t.stage.Step(sp, meas, t.dt)
		t.apply(l, r)
	case maneuver.ActionDone:
		t.left.Stop()
		t.right.Stop()
		t.log.Info("finish sequence complete at %v after %d transitions", now, t.seq.Transitions())
		return sched.Done
	}
	if t.log.Enabled(utils.TRACE) {
		encL, encR := t.encL.Sample(), t.encR.Sample()
		pl, pr := t.stage.Left().GetDiagnostics(), t.stage.Right().GetDiagnostics()
		t.log.Trace("inner t=%v state=%s wl=%.2f wr=%.2f pos=(%d, %d) int=(%.2f, %.2f) duty=(%.1f, %.1f)",
			now, t.seq.State(), meas.Left, meas.Right, encL.Position, encR.Position,
			pl.Integral, pr.Integral, t.left.Last(), t.right.Last())
	}
	return sched.Continue
}

func (t *InnerTask) apply(left, right float64) {
	_ = t.left.Set(left)
	_ = t.right.Set(right)
}

// LinePresent reads the line array on demand for the sequencer.
func (t *InnerTask) LinePresent() bool {
	return t.lineCfg.Process(t.line.ReadAll()).Present()
}

func (t *InnerTask) HeadingDegrees() float64 {
	return fusion.HeadingDegrees(t.imu.ReadHeading())
}

func (t *InnerTask) State() maneuver.State { return t.seq.State() }
