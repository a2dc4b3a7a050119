// Package fusion turns raw encoder, IMU and line-array readings into the quantities the
// control loops consume.
package fusion

// LowPass is an exponential filter: y = α·y_prev + (1-α)·x.
// The state starts at zero; α = 0 passes input straight through.
type LowPass struct {
	Alpha float64
	value float64
}

func (f *LowPass) Update(x float64) float64 {
	f.value = f.Alpha*f.value + (1-f.Alpha)*x
	return f.value
}

func (f *LowPass) Value() float64 { return f.value }

func (f *LowPass) Reset() { f.value = 0 }
