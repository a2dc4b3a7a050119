package fusion

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownMode is returned for an IMU operating mode name outside the supported set.
var ErrUnknownMode = errors.New("unknown imu operating mode")

// ImuMode is a BNO055 fusion operating mode; the value is the OPR_MODE register setting.
type ImuMode uint8

const (
	ModeIMU        ImuMode = 0x08
	ModeCompass    ImuMode = 0x09
	ModeM4G        ImuMode = 0x0A
	ModeNDOFFMCOff ImuMode = 0x0B
	ModeNDOF       ImuMode = 0x0C
)

var modeNames = map[string]ImuMode{
	"imu":      ModeIMU,
	"compass":  ModeCompass,
	"m4g":      ModeM4G,
	"ndof_fmc": ModeNDOFFMCOff,
	"ndof":     ModeNDOF,
}

// ParseImuMode maps a case-insensitive mode name to its register value.
func ParseImuMode(name string) (ImuMode, error) {
	m, ok := modeNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
	return m, nil
}

func (m ImuMode) String() string {
	for name, v := range modeNames {
		if v == m {
			return name
		}
	}
	return fmt.Sprintf("ImuMode(0x%02X)", uint8(m))
}

// CalibrationStatus holds the four 0..3 calibration levels.
type CalibrationStatus struct {
	Sys, Gyro, Accel, Mag uint8
}

// ParseCalibration unpacks the CALIB_STAT byte: sys[7:6] gyro[5:4] accel[3:2] mag[1:0].
func ParseCalibration(b uint8) CalibrationStatus {
	return CalibrationStatus{
		Sys:   (b >> 6) & 0x03,
		Gyro:  (b >> 4) & 0x03,
		Accel: (b >> 2) & 0x03,
		Mag:   b & 0x03,
	}
}

func (c CalibrationStatus) FullyCalibrated() bool {
	return c.Sys == 3 && c.Gyro == 3 && c.Accel == 3 && c.Mag == 3
}

func (c CalibrationStatus) String() string {
	return fmt.Sprintf("sys=%d gyro=%d accel=%d mag=%d", c.Sys, c.Gyro, c.Accel, c.Mag)
}

// OrientationSample carries raw IMU fixed-point values (1/16 units).
type OrientationSample struct {
	Heading     int16
	YawRate     int16
	Calibration CalibrationStatus
}

// HeadingDegrees converts a ×16 heading to degrees.
func HeadingDegrees(raw int16) float64 { return float64(raw) / 16 }

// YawRateRadians converts a ×16 deg/s yaw rate to rad/s.
func YawRateRadians(raw int16) float64 { return float64(raw) / 16 * math.Pi / 180 }

func (s OrientationSample) HeadingDegrees() float64 { return HeadingDegrees(s.Heading) }

func (s OrientationSample) YawRateRadians() float64 { return YawRateRadians(s.YawRate) }
