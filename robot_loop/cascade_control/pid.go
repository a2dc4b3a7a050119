package control

import (
	"math"
	"time"
)

// PIDController is a discrete PID with a clamped integral and a clamped output.
// An instance belongs to exactly one control loop.
type PIDController struct {
	cfg PIDConfig

	// State
	integral  float64
	prevError float64
	prevTime  time.Duration
	hasPrev   bool
	lastOut   float64
}

// NewPIDController creates a new PID controller with given configuration
func NewPIDController(cfg PIDConfig) *PIDController {
	return &PIDController{cfg: cfg}
}

// Reset clears the PID state
func (pid *PIDController) Reset() {
	pid.integral = 0.0
	pid.prevError = 0.0
	pid.prevTime = 0
	pid.hasPrev = false
	pid.lastOut = 0
}

// SetGains swaps the gains while keeping the integral and derivative history.
func (pid *PIDController) SetGains(kp, ki, kd float64) {
	pid.cfg.Kp = kp
	pid.cfg.Ki = ki
	pid.cfg.Kd = kd
}

// Update computes the PID output for one sample taken dt seconds after the previous one.
//
// The integral is clamped to ±IntegralLimit before it contributes, and the output to
// ±OutMax. With dt <= 0 the derivative term is zero. A sample with a non-finite error or dt
// is skipped: state is untouched and the previous output is returned.
func (pid *PIDController) Update(setpoint, measurement, dt float64) float64 {
	error := setpoint - measurement
	if !finite(error) || !finite(dt) {
		return pid.lastOut
	}

	pid.integral += error * dt
	pid.integral = Clamp(pid.integral, -pid.cfg.IntegralLimit, pid.cfg.IntegralLimit)

	var derivative float64
	if dt > 0 {
		derivative = (error - pid.prevError) / dt
	}

	pid.prevError = error

	output := pid.cfg.Kp*error + pid.cfg.Ki*pid.integral + pid.cfg.Kd*derivative
	if math.IsNaN(output) {
		return pid.lastOut
	}
	pid.lastOut = Clamp(output, -pid.cfg.OutMax, pid.cfg.OutMax)
	return pid.lastOut
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// UpdateAt is Update with dt taken from the previous sample's timestamp. The first sample
// after construction or Reset uses dt = 0.
func (pid *PIDController) UpdateAt(setpoint, measurement float64, now time.Duration) float64 {
	var dt float64
	if pid.hasPrev {
		dt = (now - pid.prevTime).Seconds()
	}
	pid.prevTime = now
	pid.hasPrev = true
	return pid.Update(setpoint, measurement, dt)
}

// GetDiagnostics returns current PID state for logging/debugging
func (pid *PIDController) GetDiagnostics() PIDDiagnostics {
	return PIDDiagnostics{
		Error:    pid.prevError,
		Integral: pid.integral,
		P:        pid.cfg.Kp * pid.prevError,
		I:        pid.cfg.Ki * pid.integral,
	}
}

// PIDDiagnostics contains PID internal state for monitoring
type PIDDiagnostics struct {
	Error    float64
	Integral float64
	P        float64
	I        float64
}

// Config returns the controller's current configuration, including live gain changes.
func (pid *PIDController) Config() PIDConfig {
	return pid.cfg
}
