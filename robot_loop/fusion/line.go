package fusion

import "fmt"

// NoLine is the centroid reported when no sensor sees the line. It collides with the
// leftmost index, so callers check LineFrame.Present.
const NoLine = 0.0

// LineConfig holds the decay-time reflectance array parameters.
type LineConfig struct {
	Min           float64 `json:"min"`
	Max           float64 `json:"max"`
	Threshold     float64 `json:"threshold"`
	TimeoutUS     uint32  `json:"timeout_us"`
	Setpoint      float64 `json:"setpoint"`
	CrossingCount int     `json:"crossing_count"`
}

// DefaultLineConfig is an 8-sensor array centred at index 3.5.
func DefaultLineConfig() LineConfig {
	return LineConfig{
		Min:           0,
		Max:           1000,
		Threshold:     0.9,
		TimeoutUS:     1000,
		Setpoint:      3.5,
		CrossingCount: 7,
	}
}

func (c LineConfig) Validate() error {
	if c.Min >= c.Max {
		return fmt.Errorf("line min (%v) must be below max (%v)", c.Min, c.Max)
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("line threshold must be in (0,1], got %v", c.Threshold)
	}
	if c.TimeoutUS == 0 {
		return fmt.Errorf("line timeout_us must be positive")
	}
	if c.CrossingCount < 1 {
		return fmt.Errorf("line crossing_count must be at least 1, got %d", c.CrossingCount)
	}
	return nil
}

// Saturate caps each decay time at the timeout. A timed-out sensor reads fully dark.
func Saturate(raw []uint32, timeout uint32) []uint32 {
	out := make([]uint32, len(raw))
	for i, r := range raw {
		out[i] = min(r, timeout)
	}
	return out
}

// Normalize maps a reading to [0,1] over [lo,hi].
func Normalize(reading, lo, hi float64) float64 {
	return max(0.0, min(1.0, (reading-lo)/(hi-lo)))
}

// Threshold classifies a normalized reading: 1 for dark, 0 for light.
func Threshold(normalized, threshold float64) int {
	if normalized >= threshold {
		return 1
	}
	return 0
}

// Centroid returns Σ(i·bᵢ)/Σbᵢ and Σbᵢ. With a zero sum the centroid is NoLine.
func Centroid(bits []int) (centroid float64, sum int) {
	weighted := 0
	for i, b := range bits {
		sum += b
		weighted += i * b
	}
	if sum == 0 {
		return NoLine, 0
	}
	return float64(weighted) / float64(sum), sum
}

// LineFrame is one processed read of the array.
type LineFrame struct {
	Bits     []int
	Centroid float64
	Sum      int
}

// Present reports whether any sensor sees the line.
func (f LineFrame) Present() bool { return f.Sum >= 1 }

// Crossing reports whether at least n sensors see the line at once.
func (f LineFrame) Crossing(n int) bool { return f.Sum >= n }

// Process runs raw decay times through saturation, normalization, thresholding and the centroid.
func (c LineConfig) Process(raw []uint32) LineFrame {
	bits := make([]int, len(raw))
	for i, r := range Saturate(raw, c.TimeoutUS) {
		bits[i] = Threshold(Normalize(float64(r), c.Min, c.Max), c.Threshold)
	}
	centroid, sum := Centroid(bits)
	return LineFrame{Bits: bits, Centroid: centroid, Sum: sum}
}
