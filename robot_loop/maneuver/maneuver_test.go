package maneuver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"romi-fusion-core/utils"
)

type fakeProbe struct {
	line    bool
	heading float64
	polls   int
}

func (p *fakeProbe) LinePresent() bool {
	p.polls++
	return p.line
}

func (p *fakeProbe) HeadingDegrees() float64 { return p.heading }

const tick = 10 * time.Millisecond

func newSequencer(initialHeading float64) (*Sequencer, *Trigger) {
	trig := NewTrigger(DefaultDebounce)
	return NewSequencer(DefaultConfig(), trig, initialHeading, utils.Discard()), trig
}

// stepUntil steps every tick until the sequencer leaves its current state, failing after limit.
func stepUntil(t *testing.T, s *Sequencer, now time.Duration, want State, p Probe, limit time.Duration) time.Duration {
	t.Helper()
	from := s.State()
	end := now + limit
	for now < end {
		now += tick
		s.Step(now, false, p)
		if s.State() != from {
			require.Equal(t, want, s.State(), "left %s into the wrong state", from)
			return now
		}
	}
	t.Fatalf("still in %s after %v", from, limit)
	return now
}

func TestTrigger_Debounce(t *testing.T) {
	trig := NewTrigger(DefaultDebounce)
	start := 5 * time.Second

	assert.True(t, trig.Fire(start))
	assert.False(t, trig.Fire(start+50*time.Millisecond), "pending trigger must ignore new edges")

	trig.Clear()
	assert.False(t, trig.Fire(start+100*time.Millisecond), "inside debounce window")
	assert.True(t, trig.Fire(start+201*time.Millisecond))
	assert.Equal(t, uint32(2), trig.Accepted())
}

func TestBumpers_FallingEdges(t *testing.T) {
	trig := NewTrigger(DefaultDebounce)
	b := NewBumpers(trig)

	assert.False(t, b.Sample(0x3F, 0), "all released")
	assert.True(t, b.Sample(0x3E, time.Second), "contact 0 pressed")
	assert.False(t, b.Sample(0x3C, time.Second+10*time.Millisecond), "trigger already pending")

	trig.Clear()
	assert.False(t, b.Sample(0x3C, 2*time.Second), "no new edge while held")
	assert.False(t, b.Sample(0x3F, 2*time.Second), "release is not an edge")
	assert.True(t, b.Sample(0x1F, 3*time.Second), "contact 5 pressed")

	_, err := b.Falling(BumperCount, 0)
	assert.Error(t, err)
}

func TestSequencer_ReverseThenTurn1(t *testing.T) {
	s, trig := newSequencer(0)
	p := &fakeProbe{}
	start := time.Second

	assert.Equal(t, ActionTrack, s.Step(start-tick, false, p).Kind)

	require.True(t, trig.Fire(start))
	a := s.Step(start, false, p)
	assert.Equal(t, Reverse, s.State())
	assert.Equal(t, Action{Kind: ActionOpenLoop, Left: -23, Right: -20}, a)

	assert.False(t, trig.Fire(start+50*time.Millisecond))

	for now := start + tick; now <= start+750*time.Millisecond; now += tick {
		s.Step(now, false, p)
		require.Equal(t, Reverse, s.State(), "at %v", now-start)
	}

	a = s.Step(start+751*time.Millisecond, false, p)
	assert.Equal(t, Turn1, s.State())
	assert.Equal(t, 2, s.Transitions())
	assert.Equal(t, Action{Kind: ActionOpenLoop, Left: 23, Right: -20}, a)
	assert.Equal(t, uint32(1), trig.Accepted())
}

func TestSequencer_FullRecovery(t *testing.T) {
	s, trig := newSequencer(0)
	p := &fakeProbe{}

	now := time.Second
	require.True(t, trig.Fire(now))
	s.Step(now, false, p)

	turnStart := stepUntil(t, s, now, Turn1, p, time.Second)
	assert.Equal(t, 585*time.Millisecond, DefaultConfig().Turn1Duration())

	arcStart := stepUntil(t, s, turnStart, Arc, p, time.Second)
	assert.Greater(t, arcStart-turnStart, 585*time.Millisecond)

	a := s.Step(arcStart+tick, false, p)
	assert.Equal(t, Action{Kind: ActionArc, Velocity: 1.0, YawRate: 0.95}, a)

	findStart := stepUntil(t, s, arcStart, FindLine, p, 4*time.Second)
	assert.Greater(t, findStart-arcStart, 3500*time.Millisecond)
	assert.Zero(t, p.polls, "line is not polled before FindLine")

	// no line: the robot keeps pivoting in place
	for now = findStart; now < findStart+10*time.Second; now += tick {
		a = s.Step(now, false, p)
	}
	assert.Equal(t, FindLine, s.State())
	assert.Equal(t, ActionOpenLoop, a.Kind)
	assert.True(t, trig.Pending())

	p.line = true
	a = s.Step(now, false, p)
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, ActionTrack, a.Kind)
	assert.True(t, s.FinalPending())
	assert.False(t, trig.Pending())
}

func TestSequencer_FindLineWaitsMinimum(t *testing.T) {
	s, trig := newSequencer(0)
	p := &fakeProbe{line: true}

	now := time.Second
	trig.Fire(now)
	s.Step(now, false, p)
	now = stepUntil(t, s, now, Turn1, p, time.Second)
	now = stepUntil(t, s, now, Arc, p, time.Second)
	findStart := stepUntil(t, s, now, FindLine, p, 4*time.Second)

	idleAt := stepUntil(t, s, findStart, Idle, p, time.Second)
	assert.Greater(t, idleAt-findStart, 400*time.Millisecond)
}

func TestSequencer_FinishSequence(t *testing.T) {
	s, trig := newSequencer(90)
	s.finalPending = true
	p := &fakeProbe{heading: 180}

	now := time.Second
	assert.Equal(t, ActionTrack, s.Step(now, false, p).Kind, "needs the crossing")

	a := s.Step(now, true, p)
	assert.Equal(t, FinishForward, s.State())
	assert.Equal(t, Action{Kind: ActionOpenLoop, Left: 20, Right: 20}, a)

	// bumps during the finish sequence do not start a recovery
	trig.Fire(now + tick)

	stopAt := stepUntil(t, s, now, FinishStop, p, 2*time.Second)
	assert.Greater(t, stopAt-now, 1200*time.Millisecond)
	assert.Equal(t, Action{Kind: ActionOpenLoop}, s.Step(stopAt, false, p))

	turnAt := stepUntil(t, s, stopAt, FinishTurnaround, p, 2*time.Second)
	a = s.Step(turnAt+tick, false, p)
	assert.Equal(t, Action{Kind: ActionOpenLoop, Left: 13, Right: -10}, a)

	for now = turnAt; now < turnAt+3*time.Second; now += tick {
		s.Step(now, false, p)
	}
	assert.Equal(t, FinishTurnaround, s.State())

	p.heading = 90.4
	a = s.Step(now, false, p)
	assert.Equal(t, FinishStraight, s.State())
	assert.Equal(t, Action{Kind: ActionOpenLoop, Left: 19.5, Right: 20}, a)

	doneAt := stepUntil(t, s, now, Done, p, 7*time.Second)
	assert.Greater(t, doneAt-now, 6600*time.Millisecond)
	assert.Equal(t, ActionDone, s.Step(doneAt+tick, false, p).Kind)
	assert.Equal(t, Done, s.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "FinishTurnaround", FinishTurnaround.String())
	assert.Equal(t, "Unknown", State(42).String())
	assert.True(t, Arc.Recovering())
	assert.False(t, FinishStop.Recovering())
	assert.False(t, Idle.Recovering())
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	c := DefaultConfig()
	c.Duty = 99
	assert.Error(t, c.Validate())

	c = DefaultConfig()
	c.TurnTime = 0
	assert.Error(t, c.Validate())

	c = DefaultConfig()
	c.Duty = -20
	assert.Error(t, c.Validate(), "negative duty flips every open-loop phase")

	c = DefaultConfig()
	c.Duty = 97
	c.LeftCorrection = 0
	c.StraightTrim = -5
	assert.Error(t, c.Validate(), "straight duty would exceed 100")
}
