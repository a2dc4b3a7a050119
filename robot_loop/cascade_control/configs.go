package control

import (
	"fmt"
	"math"
)

// PIDConfig holds PID controller parameters
type PIDConfig struct {
	Kp            float64 `json:"kp"`
	Ki            float64 `json:"ki"`
	Kd            float64 `json:"kd"`
	OutMax        float64 `json:"out_max"`
	IntegralLimit float64 `json:"integral_limit"`
}

// Validate requires finite gains, a positive output limit and a non-negative integral limit.
func (c PIDConfig) Validate() error {
	for name, v := range map[string]float64{
		"kp": c.Kp, "ki": c.Ki, "kd": c.Kd, "out_max": c.OutMax, "integral_limit": c.IntegralLimit,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be finite, got %v", name, v)
		}
	}
	if c.OutMax <= 0 {
		return fmt.Errorf("out_max must be positive, got %v", c.OutMax)
	}
	if c.IntegralLimit < 0 {
		return fmt.Errorf("integral_limit must not be negative, got %v", c.IntegralLimit)
	}
	return nil
}

// GeometryConfig describes the differential drive. Units only need to be consistent; the
// Romi defaults are in feet.
type GeometryConfig struct {
	WheelRadius float64 `json:"wheel_radius"`
	TrackWidth  float64 `json:"track_width"`
}

// GainsConfig groups every PID instance of the cascade.
type GainsConfig struct {
	Inner         PIDConfig `json:"inner"`
	OuterVelocity PIDConfig `json:"outer_velocity"`
	OuterYaw      PIDConfig `json:"outer_yaw"`
	Line          PIDConfig `json:"line"`
	ArcVelocity   PIDConfig `json:"arc_velocity"`
	ArcYaw        PIDConfig `json:"arc_yaw"`
}

// Validate checks every gain set, naming the one that failed.
func (g GainsConfig) Validate() error {
	sets := []struct {
		name string
		cfg  PIDConfig
	}{
		{"inner", g.Inner},
		{"outer_velocity", g.OuterVelocity},
		{"outer_yaw", g.OuterYaw},
		{"line", g.Line},
		{"arc_velocity", g.ArcVelocity},
		{"arc_yaw", g.ArcYaw},
	}
	for _, s := range sets {
		if err := s.cfg.Validate(); err != nil {
			return fmt.Errorf("gains %s: %w", s.name, err)
		}
	}
	return nil
}

// DefaultGeometry is the Pololu Romi chassis: 2.75 in wheels, 5.5 in track.
func DefaultGeometry() GeometryConfig {
	return GeometryConfig{
		WheelRadius: 1.375 / 12,
		TrackWidth:  5.5 / 12,
	}
}

// DefaultGains are the hand-tuned gains the robot ran with.
func DefaultGains() GainsConfig {
	inner := PIDConfig{Kp: 0.3, Ki: 0.9, Kd: 0.02, OutMax: 100, IntegralLimit: 100}
	outerV := PIDConfig{Kp: 1.5, Ki: 0.2, Kd: 0.05, OutMax: 10, IntegralLimit: 10}
	outerYaw := PIDConfig{Kp: 3, Ki: 0.15, Kd: 0.05, OutMax: 50, IntegralLimit: 50}
	return GainsConfig{
		Inner:         inner,
		OuterVelocity: outerV,
		OuterYaw:      outerYaw,
		Line:          PIDConfig{Kp: 3, Ki: 0.15, Kd: 0.1, OutMax: 10, IntegralLimit: 10},
		ArcVelocity:   outerV,
		ArcYaw:        outerYaw,
	}
}
