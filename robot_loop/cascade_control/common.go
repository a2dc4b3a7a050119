package control

import "golang.org/x/exp/constraints"

// RobotCommand is a pair of wheel angular-speed setpoints (rad/s). It is the only thing the
// outer loop (or the arc maneuver) hands to the inner loop.
type RobotCommand struct {
	Left  float64
	Right float64
}

// WheelSpeeds is a pair of measured, filtered wheel angular speeds (rad/s).
type WheelSpeeds struct {
	Left  float64
	Right float64
}

// Clamp limits value to [min, max].
func Clamp[T constraints.Ordered](value, min, max T) T {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// BoolToFloat converts bool to float64 (for CAN encoding)
func BoolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
