package fusion

import (
	"fmt"
	"math"
	"time"
)

// Counter is a free-running quadrature counter that wraps modulo its range.
type Counter interface {
	Count() uint16
}

// EncoderConfig describes one wheel encoder.
type EncoderConfig struct {
	CPR          float64 `json:"cpr"`
	GearRatio    float64 `json:"gear_ratio"`
	Alpha        float64 `json:"alpha"`
	Inverted     bool    `json:"inverted"`
	CounterRange int64   `json:"counter_range"`
}

// DefaultEncoderConfig is the Romi motor encoder: 12 CPR behind a 120:1 gearbox on a 16-bit timer.
func DefaultEncoderConfig() EncoderConfig {
	return EncoderConfig{
		CPR:          12,
		GearRatio:    120,
		Alpha:        0.8,
		Inverted:     true,
		CounterRange: 65536,
	}
}

func (c EncoderConfig) Validate() error {
	if c.CPR <= 0 || c.GearRatio <= 0 {
		return fmt.Errorf("encoder cpr and gear_ratio must be positive (cpr=%v gear_ratio=%v)", c.CPR, c.GearRatio)
	}
	if c.Alpha < 0 || c.Alpha >= 1 {
		return fmt.Errorf("encoder alpha must be in [0,1), got %v", c.Alpha)
	}
	if c.CounterRange < 2 || c.CounterRange > 1<<16 {
		return fmt.Errorf("encoder counter_range must be in [2,65536], got %d", c.CounterRange)
	}
	return nil
}

func (c EncoderConfig) RadiansPerTick() float64 {
	return 2 * math.Pi / (c.CPR * c.GearRatio)
}

// UnwrapDelta corrects a raw counter difference that crossed the counter's wrap point.
func UnwrapDelta(delta, counterRange int64) int64 {
	half := counterRange / 2
	switch {
	case delta > half:
		return delta - counterRange
	case delta < -half:
		return delta + counterRange
	}
	return delta
}

// EncoderSample is a snapshot of one encoder's state.
type EncoderSample struct {
	Position  int64
	Delta     int64
	Speed     float64 // rad/s, filtered
	Timestamp time.Duration
}

// Encoder accumulates ticks from a Counter and tracks a filtered wheel speed.
// It is owned by one task; Update must not be called concurrently.
type Encoder struct {
	cfg     EncoderConfig
	counter Counter

	prevCount uint16
	position  int64
	delta     int64
	speed     LowPass
	last      time.Duration
}

// NewEncoder latches the counter's current value as the zero position at time now.
func NewEncoder(c Counter, cfg EncoderConfig, now time.Duration) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Encoder{
		cfg:       cfg,
		counter:   c,
		prevCount: c.Count(),
		speed:     LowPass{Alpha: cfg.Alpha},
		last:      now,
	}, nil
}

// Update samples the counter. A non-positive interval updates position only.
func (e *Encoder) Update(now time.Duration) {
	count := e.counter.Count()
	e.delta = UnwrapDelta(int64(count)-int64(e.prevCount), e.cfg.CounterRange)
	e.prevCount = count
	e.position += e.delta

	dt := (now - e.last).Seconds()
	e.last = now
	if dt <= 0 {
		return
	}
	raw := float64(e.delta) * e.cfg.RadiansPerTick() / dt
	e.speed.Update(raw)
}

func (e *Encoder) sign() float64 {
	if e.cfg.Inverted {
		return -1
	}
	return 1
}

// Speed is the filtered angular speed in rad/s, positive forward.
func (e *Encoder) Speed() float64 { return e.sign() * e.speed.Value() }

// Position is the accumulated tick count, positive forward.
func (e *Encoder) Position() int64 { return int64(e.sign()) * e.position }

// Delta is the tick change over the last Update, positive forward.
func (e *Encoder) Delta() int64 { return int64(e.sign()) * e.delta }

// Zero resets the accumulated position without touching the speed filter.
func (e *Encoder) Zero() {
	e.position = 0
	e.prevCount = e.counter.Count()
}

func (e *Encoder) Sample() EncoderSample {
	return EncoderSample{
		Position:  e.Position(),
		Delta:     e.Delta(),
		Speed:     e.Speed(),
		Timestamp: e.last,
	}
}
