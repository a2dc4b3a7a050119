package control

// DutyLimit is the motor driver's duty range, ±100 %.
const DutyLimit = 100.0

// OuterStage turns (linear velocity, yaw rate) tracking errors into wheel-speed setpoints.
// Each stage owns its PIDs and its Drive, so the normal outer loop and the arc maneuver
// never share controller state.
type OuterStage struct {
	velocity *PIDController
	yaw      *PIDController
	drive    *Drive
}

func NewOuterStage(velocity, yaw PIDConfig, g GeometryConfig) (*OuterStage, error) {
	drive, err := NewDrive(g)
	if err != nil {
		return nil, err
	}
	return &OuterStage{
		velocity: NewPIDController(velocity),
		yaw:      NewPIDController(yaw),
		drive:    drive,
	}, nil
}

// Step runs both outer PIDs and decouples their outputs into per-wheel setpoints.
func (s *OuterStage) Step(vSet, vMeas, yawSet, yawMeas, dt float64) RobotCommand {
	vOut := s.velocity.Update(vSet, vMeas, dt)
	yawOut := s.yaw.Update(yawSet, yawMeas, dt)
	return s.drive.WheelSpeeds(vOut, yawOut)
}

// LinearVelocity estimates chassis speed from the wheels.
func (s *OuterStage) LinearVelocity(w WheelSpeeds) float64 {
	return s.drive.LinearVelocity(w)
}

// InnerStage runs one PID per wheel from angular-speed error to PWM duty.
type InnerStage struct {
	left  *PIDController
	right *PIDController
}

func NewInnerStage(cfg PIDConfig) *InnerStage {
	return &InnerStage{
		left:  NewPIDController(cfg),
		right: NewPIDController(cfg),
	}
}

// Step returns left/right duty in [-DutyLimit, DutyLimit].
func (s *InnerStage) Step(cmd RobotCommand, meas WheelSpeeds, dt float64) (left, right float64) {
	left = s.left.Update(cmd.Left, meas.Left, dt)
	right = s.right.Update(cmd.Right, meas.Right, dt)
	return Clamp(left, -DutyLimit, DutyLimit), Clamp(right, -DutyLimit, DutyLimit)
}

func (s *InnerStage) Left() *PIDController  { return s.left }
func (s *InnerStage) Right() *PIDController { return s.right }
