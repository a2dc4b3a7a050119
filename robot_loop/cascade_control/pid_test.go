package control

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPIDController_Proportional(t *testing.T) {
	pid := NewPIDController(PIDConfig{Kp: 2, OutMax: 100, IntegralLimit: 100})

	// Error = 5, output = 2 * 5
	assert.Equal(t, 10.0, pid.Update(20, 15, 0.01))
}

func TestPIDController_IntegralAndDerivative(t *testing.T) {
	pid := NewPIDController(PIDConfig{Ki: 1, Kd: 0.5, OutMax: 100, IntegralLimit: 100})

	// error 2 for 0.1 s: integral 0.2, derivative (2-0)/0.1 = 20
	out := pid.Update(2, 0, 0.1)
	assert.InDelta(t, 0.2+0.5*20, out, 1e-9)

	// same error again: integral 0.4, derivative 0
	out = pid.Update(2, 0, 0.1)
	assert.InDelta(t, 0.4, out, 1e-9)
}

func TestPIDController_ZeroDtHasNoDerivative(t *testing.T) {
	pid := NewPIDController(PIDConfig{Kd: 1, OutMax: 100, IntegralLimit: 100})
	assert.Equal(t, 0.0, pid.Update(5, 0, 0))
	assert.Equal(t, 5.0, pid.GetDiagnostics().Error)
}

func TestPIDController_Clamping(t *testing.T) {
	pid := NewPIDController(PIDConfig{Kp: 1, Ki: 100, OutMax: 10, IntegralLimit: 0.5})

	out := pid.Update(1000, 0, 1)
	assert.Equal(t, 10.0, out)
	assert.Equal(t, 0.5, pid.GetDiagnostics().Integral, "integral should be clamped")

	out = pid.Update(-1000, 0, 1)
	assert.Equal(t, -10.0, out)
	assert.Equal(t, -0.5, pid.GetDiagnostics().Integral)
}

func TestPIDController_BoundsHoldForAnySequence(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		cfg := PIDConfig{
			Kp:            rng.Float64()*20 - 10,
			Ki:            rng.Float64()*20 - 10,
			Kd:            rng.Float64()*2 - 1,
			OutMax:        rng.Float64() * 100,
			IntegralLimit: rng.Float64() * 50,
		}
		pid := NewPIDController(cfg)
		for i := 0; i < 500; i++ {
			sp := rng.NormFloat64() * 1e3
			meas := rng.NormFloat64() * 1e3
			dt := rng.Float64()*0.1 - 0.01 // occasionally non-positive
			switch i % 97 {
			case 13:
				meas = math.NaN()
			case 41:
				sp = math.Inf(1)
			case 73:
				dt = math.NaN()
			}
			out := pid.Update(sp, meas, dt)

			assert.False(t, math.IsNaN(out))

			assert.LessOrEqual(t, math.Abs(out), cfg.OutMax)
			assert.LessOrEqual(t, math.Abs(pid.GetDiagnostics().Integral), cfg.IntegralLimit)
		}
	}
}

func TestPIDController_SetGainsKeepsHistory(t *testing.T) {
	pid := NewPIDController(PIDConfig{Ki: 1, OutMax: 100, IntegralLimit: 100})
	pid.Update(1, 0, 1)
	pid.SetGains(0, 2, 0)

	assert.Equal(t, 1.0, pid.GetDiagnostics().Integral)
	// integral 2 after the next second, scaled by the new Ki
	assert.InDelta(t, 4.0, pid.Update(1, 0, 1), 1e-9)
	assert.Equal(t, 2.0, pid.Config().Ki)

	pid.Reset()
	assert.Equal(t, 0.0, pid.GetDiagnostics().Integral)
}

func TestPIDController_UpdateAt(t *testing.T) {
	pid := NewPIDController(PIDConfig{Ki: 1, OutMax: 100, IntegralLimit: 100})

	// first sample: dt = 0
	assert.Equal(t, 0.0, pid.UpdateAt(1, 0, 5*time.Second))
	// 500 ms later
	assert.InDelta(t, 0.5, pid.UpdateAt(1, 0, 5500*time.Millisecond), 1e-9)
}

func TestPIDConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultGains().Validate())

	tests := []struct {
		name string
		cfg  PIDConfig
	}{
		{"negative out_max", PIDConfig{Kp: 1, OutMax: -10, IntegralLimit: 10}},
		{"zero out_max", PIDConfig{Kp: 1, IntegralLimit: 10}},
		{"negative integral_limit", PIDConfig{Kp: 1, OutMax: 10, IntegralLimit: -1}},
		{"nan gain", PIDConfig{Kp: math.NaN(), OutMax: 10}},
		{"inf gain", PIDConfig{Kd: math.Inf(1), OutMax: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())

			g := DefaultGains()
			g.ArcYaw = tt.cfg
			assert.ErrorContains(t, g.Validate(), "arc_yaw")
		})
	}
}

func TestPIDController_SkipsNonFiniteSamples(t *testing.T) {
	pid := NewPIDController(PIDConfig{Kp: 1, Ki: 1, OutMax: 100, IntegralLimit: 100})

	first := pid.Update(1, 0, 0.01)
	assert.Equal(t, first, pid.Update(1, math.NaN(), 0.01))
	assert.Equal(t, first, pid.Update(math.Inf(-1), 0, 0.01))
	assert.Equal(t, first, pid.Update(1, 0, math.NaN()))
	assert.InDelta(t, 0.01, pid.GetDiagnostics().Integral, 1e-12)

	// a clean sample afterwards is computed normally
	assert.InDelta(t, 1+0.02, pid.Update(1, 0, 0.01), 1e-12)
}
