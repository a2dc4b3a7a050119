package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"romi-fusion-core/robot_loop/core"
	"romi-fusion-core/robot_loop/fusion"
)

// Config is the robot JSON file. The control sections sit at the top level next to meta,
// imu and run.
type Config struct {
	Meta ConfigMeta `json:"meta"`
	core.Config
	IMU IMUConfig `json:"imu"`
	Run RunConfig `json:"run"`
}

type ConfigMeta struct {
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Description string `json:"description"`
}

type IMUConfig struct {
	Mode string `json:"mode"` // imu | compass | m4g | ndof_fmc | ndof

	mode fusion.ImuMode
}

// OprMode is the parsed operating mode; valid after LoadConfig.
func (c IMUConfig) OprMode() fusion.ImuMode { return c.mode }

// RunConfig controls startup and reporting around the control loop.
type RunConfig struct {
	StartupDelayMS       int  `json:"startup_delay_ms"`
	CalibrationTimeoutMS int  `json:"calibration_timeout_ms"`
	CalibrationPollMS    int  `json:"calibration_poll_ms"`
	SkipCalibration      bool `json:"skip_calibration"`
	ReportIntervalS      int  `json:"report_interval_s"`
}

func (r RunConfig) StartupDelay() time.Duration {
	return time.Duration(r.StartupDelayMS) * time.Millisecond
}

func (r RunConfig) CalibrationTimeout() time.Duration {
	return time.Duration(r.CalibrationTimeoutMS) * time.Millisecond
}

func (r RunConfig) CalibrationPoll() time.Duration {
	return time.Duration(r.CalibrationPollMS) * time.Millisecond
}

func (r RunConfig) ReportInterval() time.Duration {
	return time.Duration(r.ReportIntervalS) * time.Second
}

func DefaultConfig() Config {
	return Config{
		Meta:   ConfigMeta{Name: "romi", Version: 1},
		Config: core.DefaultConfig(),
		IMU:    IMUConfig{Mode: "ndof", mode: fusion.ModeNDOF},
		Run: RunConfig{
			StartupDelayMS:       5000,
			CalibrationTimeoutMS: 120000,
			CalibrationPollMS:    100,
			ReportIntervalS:      5,
		},
	}
}

// LoadConfig reads a config file over the defaults and validates it.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes JSON over DefaultConfig. Fields left out keep their defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section and resolves the IMU mode.
func (c *Config) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}

	mode, err := fusion.ParseImuMode(c.IMU.Mode)
	if err != nil {
		return fmt.Errorf("imu: %w", err)
	}
	c.IMU.mode = mode

	r := c.Run
	if r.StartupDelayMS < 0 || r.CalibrationTimeoutMS < 0 {
		return fmt.Errorf("run: startup_delay_ms and calibration_timeout_ms must not be negative")
	}
	if r.CalibrationPollMS <= 0 {
		return fmt.Errorf("run: invalid calibration_poll_ms: %d", r.CalibrationPollMS)
	}
	if r.ReportIntervalS <= 0 {
		return fmt.Errorf("run: invalid report_interval_s: %d", r.ReportIntervalS)
	}
	return nil
}
