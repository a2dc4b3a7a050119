// Package maneuver implements the bumper recovery maneuver and the finish sequence that
// temporarily take over the wheels from normal tracking.
package maneuver

// State is the active maneuver, or Idle during normal tracking.
type State int

const (
	Idle State = iota
	Reverse
	Turn1
	Arc
	FindLine
	FinishForward
	FinishStop
	FinishTurnaround
	FinishStraight
	Done
)

var stateNames = [...]string{
	Idle:             "Idle",
	Reverse:          "Reverse",
	Turn1:            "Turn1",
	Arc:              "Arc",
	FindLine:         "FindLine",
	FinishForward:    "FinishForward",
	FinishStop:       "FinishStop",
	FinishTurnaround: "FinishTurnaround",
	FinishStraight:   "FinishStraight",
	Done:             "Done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Recovering is true for the bumper recovery states.
func (s State) Recovering() bool { return s >= Reverse && s <= FindLine }

// ActionKind tells the inner task how to drive the wheels this iteration.
type ActionKind int

const (
	// ActionTrack: normal closed-loop tracking of the outer task's wheel setpoints.
	ActionTrack ActionKind = iota
	// ActionOpenLoop: apply Left/Right duty directly.
	ActionOpenLoop
	// ActionArc: run the cascade toward the Velocity/YawRate target.
	ActionArc
	// ActionDone: stop the motors and end the run.
	ActionDone
)

type Action struct {
	Kind ActionKind

	Left, Right float64 // duty %, ActionOpenLoop

	Velocity, YawRate float64 // ActionArc
}
