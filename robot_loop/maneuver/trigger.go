package maneuver

import (
	"fmt"
	"time"

	"go.uber.org/atomic"
)

// DefaultDebounce is the minimum spacing between accepted bumper triggers.
const DefaultDebounce = 200 * time.Millisecond

// Trigger is the bumper flag shared between interrupt context and the inner task.
// Fire only touches atomics and may be called from any goroutine.
type Trigger struct {
	window time.Duration

	pending  atomic.Bool
	last     atomic.Int64 // time.Duration of the last accepted trigger
	accepted atomic.Uint32
}

func NewTrigger(window time.Duration) *Trigger {
	return &Trigger{window: window}
}

// Fire requests a recovery maneuver. It is ignored while one is pending and within the
// debounce window of the previous accepted trigger. Reports whether it was accepted.
func (t *Trigger) Fire(now time.Duration) bool {
	if t.pending.Load() {
		return false
	}
	if t.accepted.Load() > 0 && now-time.Duration(t.last.Load()) <= t.window {
		return false
	}
	if !t.pending.CompareAndSwap(false, true) {
		return false
	}
	t.last.Store(int64(now))
	t.accepted.Inc()
	return true
}

func (t *Trigger) Pending() bool { return t.pending.Load() }

// Clear re-arms the trigger once the maneuver has finished.
func (t *Trigger) Clear() { t.pending.Store(false) }

// Accepted is the number of triggers that started a maneuver.
func (t *Trigger) Accepted() uint32 { return t.accepted.Load() }

// BumperCount is the number of contact switches on the bumper.
const BumperCount = 6

const bumperMask = 1<<BumperCount - 1

// Bumpers ORs six active-low contact inputs into one Trigger.
type Bumpers struct {
	trigger *Trigger
	levels  atomic.Uint32
}

// NewBumpers starts with every contact released (all lines high).
func NewBumpers(t *Trigger) *Bumpers {
	b := &Bumpers{trigger: t}
	b.levels.Store(bumperMask)
	return b
}

// Falling handles a falling edge on contact index.
func (b *Bumpers) Falling(index int, now time.Duration) (bool, error) {
	if index < 0 || index >= BumperCount {
		return false, fmt.Errorf("bumper index %d out of range [0,%d)", index, BumperCount)
	}
	return b.trigger.Fire(now), nil
}

// Sample takes the packed contact levels (bit i = contact i, 1 = released) and fires on
// every high-to-low transition since the previous sample.
func (b *Bumpers) Sample(levels uint8, now time.Duration) bool {
	cur := uint32(levels) & bumperMask
	prev := b.levels.Swap(cur)
	falling := prev &^ cur

	fired := false
	for i := 0; i < BumperCount; i++ {
		if falling&(1<<i) == 0 {
			continue
		}
		ok, _ := b.Falling(i, now)
		fired = fired || ok
	}
	return fired
}
