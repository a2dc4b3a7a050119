// Package sched runs periodic control tasks cooperatively: one task iteration at a time,
// highest priority first, each task no more often than its period.
package sched

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/atomic"

	"romi-fusion-core/utils"
)

// Status is returned by a Unit after one iteration.
type Status int

const (
	// Continue keeps the task scheduled.
	Continue Status = iota
	// Done ends the whole run.
	Done
)

// Unit is one resumable task body. Step runs exactly one iteration and must not block.
// now is the time since the scheduler started.
type Unit interface {
	Step(now time.Duration) Status
}

// UnitFunc adapts a function to Unit.
type UnitFunc func(now time.Duration) Status

func (f UnitFunc) Step(now time.Duration) Status { return f(now) }

type Task struct {
	Name     string
	Period   time.Duration
	Priority int // larger runs first
	Unit     Unit
}

// Stats are updated by the scheduler goroutine and may be read from any goroutine.
type Stats struct {
	Runs       atomic.Uint64
	Late       atomic.Uint64 // started more than one period after it was due
	MaxLatency atomic.Duration
	MaxExec    atomic.Duration
	TotalExec  atomic.Duration
}

// Profile is a snapshot of one task's Stats.
type Profile struct {
	Name       string
	Period     time.Duration
	Priority   int
	Runs       uint64
	Late       uint64
	MaxLatency time.Duration
	MaxExec    time.Duration
	AvgExec    time.Duration
}

type entry struct {
	task  Task
	next  time.Duration
	stats Stats
}

type Scheduler struct {
	log     *utils.Logger
	entries []*entry
	running atomic.Bool
}

func New(log *utils.Logger) *Scheduler {
	return &Scheduler{log: log}
}

// Add registers a task. Tasks can only be added before Run.
func (s *Scheduler) Add(t Task) error {
	if s.running.Load() {
		return fmt.Errorf("task %q: scheduler already running", t.Name)
	}
	if t.Period <= 0 {
		return fmt.Errorf("task %q: period must be positive, got %v", t.Name, t.Period)
	}
	if t.Unit == nil {
		return fmt.Errorf("task %q: nil unit", t.Name)
	}
	for _, e := range s.entries {
		if e.task.Name == t.Name {
			return fmt.Errorf("task %q already registered", t.Name)
		}
	}
	s.entries = append(s.entries, &entry{task: t})
	s.log.Debug("task %s added: period=%v priority=%d", t.Name, t.Period, t.Priority)
	return nil
}

// Tick runs the highest-priority task that is due at now, if any. Equal priorities run in
// registration order. done is true once that task reports Done.
func (s *Scheduler) Tick(now time.Duration) (ran, done bool) {
	var pick *entry
	for _, e := range s.entries {
		if now < e.next {
			continue
		}
		if pick == nil || e.task.Priority > pick.task.Priority {
			pick = e
		}
	}
	if pick == nil {
		return false, false
	}

	st := &pick.stats
	if st.Runs.Load() > 0 {
		latency := now - pick.next
		if latency > st.MaxLatency.Load() {
			st.MaxLatency.Store(latency)
		}
		if latency > pick.task.Period {
			st.Late.Inc()
		}
	}

	begin := time.Now()
	status := pick.task.Unit.Step(now)
	exec := time.Since(begin)

	st.Runs.Inc()
	st.TotalExec.Add(exec)
	if exec > st.MaxExec.Load() {
		st.MaxExec.Store(exec)
	}
	pick.next = now + pick.task.Period

	if status == Done {
		s.log.Info("task %s finished the run at %v", pick.task.Name, now)
		return true, true
	}
	return true, false
}

// NextDue is the earliest time any task becomes runnable.
func (s *Scheduler) NextDue() time.Duration {
	var due time.Duration
	for i, e := range s.entries {
		if i == 0 || e.next < due {
			due = e.next
		}
	}
	return due
}

// Run drives Tick from the monotonic clock until a task reports Done (nil) or ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.entries) == 0 {
		return fmt.Errorf("no tasks registered")
	}
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("scheduler already running")
	}
	defer s.running.Store(false)

	start := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ran, done := s.Tick(time.Since(start))
		if done {
			return nil
		}
		if ran {
			continue
		}

		wait := s.NextDue() - time.Since(start)
		if wait <= 0 {
			continue
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Profiles snapshots per-task statistics in registration order.
func (s *Scheduler) Profiles() []Profile {
	out := make([]Profile, 0, len(s.entries))
	for _, e := range s.entries {
		p := Profile{
			Name:       e.task.Name,
			Period:     e.task.Period,
			Priority:   e.task.Priority,
			Runs:       e.stats.Runs.Load(),
			Late:       e.stats.Late.Load(),
			MaxLatency: e.stats.MaxLatency.Load(),
			MaxExec:    e.stats.MaxExec.Load(),
		}
		if p.Runs > 0 {
			p.AvgExec = e.stats.TotalExec.Load() / time.Duration(p.Runs)
		}
		out = append(out, p)
	}
	return out
}

func (p Profile) String() string {
	return fmt.Sprintf("%-10s period=%v pri=%d runs=%d late=%d max_latency=%v avg_exec=%v max_exec=%v",
		p.Name, p.Period, p.Priority, p.Runs, p.Late, p.MaxLatency, p.AvgExec, p.MaxExec)
}
