package core

import (
	"fmt"
	"time"

	control "romi-fusion-core/robot_loop/cascade_control"
	"romi-fusion-core/robot_loop/fusion"
	"romi-fusion-core/robot_loop/maneuver"
)

type TaskConfig struct {
	PeriodMS int `json:"period_ms"`
	Priority int `json:"priority"`
}

func (t TaskConfig) Period() time.Duration { return time.Duration(t.PeriodMS) * time.Millisecond }

type TasksConfig struct {
	Inner TaskConfig `json:"inner"`
	Outer TaskConfig `json:"outer"`
}

// TrackingConfig is the normal line-following target.
type TrackingConfig struct {
	LongitudinalSetpoint float64 `json:"longitudinal_setpoint"` // ft/s
	YawAlpha             float64 `json:"yaw_alpha"`
}

// Config is everything the control core needs.
type Config struct {
	Geometry control.GeometryConfig `json:"geometry"`
	Gains    control.GainsConfig    `json:"gains"`
	Tasks    TasksConfig            `json:"tasks"`
	Tracking TrackingConfig         `json:"tracking"`
	Encoder  fusion.EncoderConfig   `json:"encoder"`
	Line     fusion.LineConfig      `json:"line"`
	Maneuver maneuver.Config        `json:"maneuver"`
}

func DefaultConfig() Config {
	return Config{
		Geometry: control.DefaultGeometry(),
		Gains:    control.DefaultGains(),
		Tasks: TasksConfig{
			Inner: TaskConfig{PeriodMS: 10, Priority: 2},
			Outer: TaskConfig{PeriodMS: 30, Priority: 1},
		},
		Tracking: TrackingConfig{LongitudinalSetpoint: 0.4, YawAlpha: 0},
		Encoder:  fusion.DefaultEncoderConfig(),
		Line:     fusion.DefaultLineConfig(),
		Maneuver: maneuver.DefaultConfig(),
	}
}

func (c Config) Validate() error {
	if c.Geometry.WheelRadius <= 0 || c.Geometry.TrackWidth <= 0 {
		return fmt.Errorf("geometry must be positive")
	}
	if err := c.Gains.Validate(); err != nil {
		return err
	}
	if c.Tasks.Inner.PeriodMS <= 0 || c.Tasks.Outer.PeriodMS <= 0 {
		return fmt.Errorf("task periods must be positive (inner=%d outer=%d)", c.Tasks.Inner.PeriodMS, c.Tasks.Outer.PeriodMS)
	}
	if c.Tasks.Inner.Priority <= c.Tasks.Outer.Priority {
		return fmt.Errorf("inner priority (%d) must be above outer priority (%d)", c.Tasks.Inner.Priority, c.Tasks.Outer.Priority)
	}
	if c.Tracking.YawAlpha < 0 || c.Tracking.YawAlpha >= 1 {
		return fmt.Errorf("tracking yaw_alpha must be in [0,1), got %v", c.Tracking.YawAlpha)
	}
	if err := c.Encoder.Validate(); err != nil {
		return err
	}
	if err := c.Line.Validate(); err != nil {
		return err
	}
	return c.Maneuver.Validate()
}
