package utils

import "sort"

// Direction is seen from the robot controller: tx frames are sent by us, rx frames are
// produced by the sensor / motor nodes on the bus.
type Direction string

const (
	DirTX Direction = "tx"
	DirRX Direction = "rx"
)

type SignalDef struct {
	Name      string
	StartBit  int
	BitLength int
	Signed    bool
	Factor    float64
	Offset    float64
	Min       float64
	Max       float64
	Default   float64
	Unit      string
	Comment   string
}

type FrameDef struct {
	ID        uint32
	Name      string
	DLC       int
	Direction Direction
	CycleMS   int
	Signals   []SignalDef
}

// Signal returns the named signal definition.
func (fd *FrameDef) Signal(name string) (SignalDef, bool) {
	for _, s := range fd.Signals {
		if s.Name == name {
			return s, true
		}
	}
	return SignalDef{}, false
}

type CANMap struct {
	ByID   map[uint32]*FrameDef
	ByName map[string]*FrameDef
}

func (m *CANMap) FrameNames() []string {
	out := make([]string, 0, len(m.ByName))
	for k := range m.ByName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Require checks that every named frame exists with the expected direction.
func (m *CANMap) Require(dir Direction, names ...string) error {
	for _, n := range names {
		fd, err := m.FrameByName(n)
		if err != nil {
			return err
		}
		if fd.Direction != dir {
			return &DirectionError{Frame: n, Want: dir, Got: fd.Direction}
		}
	}
	return nil
}

type DirectionError struct {
	Frame     string
	Want, Got Direction
}

func (e *DirectionError) Error() string {
	return "frame " + e.Frame + ": direction " + string(e.Got) + ", want " + string(e.Want)
}
