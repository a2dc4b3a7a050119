package maneuver

import (
	"fmt"
	"math"
	"time"

	"romi-fusion-core/utils"
)

// Config holds the scripted maneuver timings and duties. Durations are in milliseconds.
type Config struct {
	Duty           float64 `json:"duty"`
	LeftCorrection float64 `json:"left_correction"`
	TurnTime       float64 `json:"turn_time"`
	DebounceMS     int     `json:"debounce_ms"`

	ReverseMS     int     `json:"reverse_ms"`
	ArcMS         int     `json:"arc_ms"`
	ArcVelocity   float64 `json:"arc_velocity"`
	ArcYawRate    float64 `json:"arc_yaw_rate"`
	FindLineMinMS int     `json:"find_line_min_ms"`

	FinishForwardMS  int     `json:"finish_forward_ms"`
	FinishStopMS     int     `json:"finish_stop_ms"`
	FinishStraightMS int     `json:"finish_straight_ms"`
	TurnaroundDuty   float64 `json:"turnaround_duty"`
	StraightTrim     float64 `json:"straight_trim"`
	HeadingTolerance float64 `json:"heading_tolerance_deg"`
}

func DefaultConfig() Config {
	return Config{
		Duty:           20,
		LeftCorrection: 3,
		TurnTime:       0.65,
		DebounceMS:     200,

		ReverseMS:     750,
		ArcMS:         3500,
		ArcVelocity:   1.0,
		ArcYawRate:    0.95,
		FindLineMinMS: 400,

		FinishForwardMS:  1200,
		FinishStopMS:     1000,
		FinishStraightMS: 6600,
		TurnaroundDuty:   10,
		StraightTrim:     0.5,
		HeadingTolerance: 0.5,
	}
}

func (c Config) Validate() error {
	for name, d := range map[string]float64{
		"duty":            c.Duty,
		"left_correction": c.LeftCorrection,
		"turnaround_duty": c.TurnaroundDuty,
	} {
		if math.Abs(d) > 100 {
			return fmt.Errorf("maneuver %s must be within ±100, got %v", name, d)
		}
	}
	if c.Duty < 0 || c.TurnaroundDuty < 0 {
		return fmt.Errorf("maneuver duty and turnaround_duty must not be negative")
	}
	if math.Abs(c.Duty-c.StraightTrim) > 100 || math.Abs(c.Duty+c.StraightTrim) > 100 {
		return fmt.Errorf("maneuver duty ± straight_trim must be within ±100 (duty=%v straight_trim=%v)", c.Duty, c.StraightTrim)
	}
	if math.Abs(c.Duty)+math.Abs(c.LeftCorrection) > 100 || math.Abs(c.TurnaroundDuty)+math.Abs(c.LeftCorrection) > 100 {
		return fmt.Errorf("maneuver duty plus left_correction exceeds 100")
	}
	if c.TurnTime <= 0 {
		return fmt.Errorf("maneuver turn_time must be positive, got %v", c.TurnTime)
	}
	if c.HeadingTolerance <= 0 {
		return fmt.Errorf("maneuver heading_tolerance_deg must be positive, got %v", c.HeadingTolerance)
	}
	for name, ms := range map[string]int{
		"debounce_ms":        c.DebounceMS,
		"reverse_ms":         c.ReverseMS,
		"arc_ms":             c.ArcMS,
		"find_line_min_ms":   c.FindLineMinMS,
		"finish_forward_ms":  c.FinishForwardMS,
		"finish_stop_ms":     c.FinishStopMS,
		"finish_straight_ms": c.FinishStraightMS,
	} {
		if ms < 0 {
			return fmt.Errorf("maneuver %s must not be negative, got %d", name, ms)
		}
	}
	return nil
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// Turn1Duration is the pivot time, turn_time·900 ms truncated to whole milliseconds.
func (c Config) Turn1Duration() time.Duration {
	return ms(int(c.TurnTime * 900))
}

func (c Config) Debounce() time.Duration { return ms(c.DebounceMS) }

// Probe gives the sequencer on-demand access to sensors. It is only polled in states whose
// exit depends on it.
type Probe interface {
	LinePresent() bool
	HeadingDegrees() float64
}

// Sequencer is the maneuver state machine. It is owned by the inner task; the only state
// shared with other contexts is the Trigger.
type Sequencer struct {
	cfg     Config
	trigger *Trigger
	log     *utils.Logger

	state          State
	entered        time.Duration
	finalPending   bool
	initialHeading float64
	transitions    int
}

// NewSequencer starts in Idle. initialHeading is the heading in degrees captured before the run.
func NewSequencer(cfg Config, trigger *Trigger, initialHeading float64, log *utils.Logger) *Sequencer {
	return &Sequencer{
		cfg:            cfg,
		trigger:        trigger,
		log:            log,
		initialHeading: initialHeading,
	}
}

func (s *Sequencer) State() State { return s.state }

// FinalPending is set once a recovery has found the line again.
func (s *Sequencer) FinalPending() bool { return s.finalPending }

// Transitions counts state changes since construction.
func (s *Sequencer) Transitions() int { return s.transitions }

// Elapsed is the time spent in the current state.
func (s *Sequencer) Elapsed(now time.Duration) time.Duration { return now - s.entered }

// Step advances at most one transition and returns what to do with the wheels.
// lineCrossed is the outer task's crossing flag.
func (s *Sequencer) Step(now time.Duration, lineCrossed bool, p Probe) Action {
	s.advance(now, lineCrossed, p)
	return s.action()
}

func (s *Sequencer) advance(now time.Duration, lineCrossed bool, p Probe) {
	c := s.cfg
	elapsed := now - s.entered

	switch s.state {
	case Idle:
		switch {
		case s.trigger.Pending():
			s.enter(Reverse, now)
		case s.finalPending && lineCrossed:
			s.enter(FinishForward, now)
		}
	case Reverse:
		if elapsed > ms(c.ReverseMS) {
			s.enter(Turn1, now)
		}
	case Turn1:
		if elapsed > c.Turn1Duration() {
			s.enter(Arc, now)
		}
	case Arc:
		if elapsed > ms(c.ArcMS) {
			s.enter(FindLine, now)
		}
	case FindLine:
		if elapsed > ms(c.FindLineMinMS) && p.LinePresent() {
			s.finalPending = true
			s.enter(Idle, now)
			s.trigger.Clear()
		}
	case FinishForward:
		if elapsed > ms(c.FinishForwardMS) {
			s.enter(FinishStop, now)
		}
	case FinishStop:
		if elapsed > ms(c.FinishStopMS) {
			s.enter(FinishTurnaround, now)
		}
	case FinishTurnaround:
		// TODO: compare headings modulo 360; a start heading near 0/360 can match early or never.
		if math.Abs(s.initialHeading-p.HeadingDegrees()) <= c.HeadingTolerance {
			s.enter(FinishStraight, now)
		}
	case FinishStraight:
		if elapsed > ms(c.FinishStraightMS) {
			s.enter(Done, now)
		}
	case Done:
	}
}

func (s *Sequencer) enter(next State, now time.Duration) {
	s.log.Info("maneuver %s -> %s after %v", s.state, next, s.Elapsed(now))
	s.state = next
	s.entered = now
	s.transitions++
}

func (s *Sequencer) action() Action {
	c := s.cfg
	switch s.state {
	case Reverse:
		return openLoop(-c.Duty-c.LeftCorrection, -c.Duty)
	case Turn1, FindLine:
		return openLoop(c.Duty+c.LeftCorrection, -c.Duty)
	case Arc:
		return Action{Kind: ActionArc, Velocity: c.ArcVelocity, YawRate: c.ArcYawRate}
	case FinishForward:
		return openLoop(c.Duty, c.Duty)
	case FinishStop:
		return openLoop(0, 0)
	case FinishTurnaround:
		return openLoop(c.TurnaroundDuty+c.LeftCorrection, -c.TurnaroundDuty)
	case FinishStraight:
		return openLoop(c.Duty-c.StraightTrim, c.Duty)
	case Done:
		return Action{Kind: ActionDone}
	}
	return Action{Kind: ActionTrack}
}

func openLoop(left, right float64) Action {
	return Action{Kind: ActionOpenLoop, Left: left, Right: right}
}
