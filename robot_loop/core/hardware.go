// Package core assembles the inner and outer control tasks from the cascade engine, sensor
// fusion, registers and the maneuver sequencer.
package core

import (
	"errors"

	"romi-fusion-core/robot_loop/fusion"
)

// MotorDriver is one H-bridge channel. SetDuty takes a signed percentage; 0 stops.
type MotorDriver interface {
	SetDuty(duty float64)
	Enable()
	Disable()
}

// Orientation is the IMU. Heading is in 1/16 degrees, yaw rate in 1/16 deg/s.
type Orientation interface {
	ReadHeading() int16
	ReadYawRate() int16
	CalibrationStatus() fusion.CalibrationStatus
}

// LineArray returns one decay time in µs per sensor, left to right. Larger is darker.
type LineArray interface {
	ReadAll() []uint32
}

// Hardware bundles the collaborators the control core drives.
type Hardware struct {
	LeftMotor, RightMotor     MotorDriver
	LeftEncoder, RightEncoder fusion.Counter
	IMU                       Orientation
	Line                      LineArray
}

func (h Hardware) validate() error {
	switch {
	case h.LeftMotor == nil || h.RightMotor == nil:
		return errors.New("hardware: motor driver missing")
	case h.LeftEncoder == nil || h.RightEncoder == nil:
		return errors.New("hardware: encoder missing")
	case h.IMU == nil:
		return errors.New("hardware: imu missing")
	case h.Line == nil:
		return errors.New("hardware: line array missing")
	}
	return nil
}
