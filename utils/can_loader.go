package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

var requiredColumns = []string{
	"direction", "frame_id", "frame_name", "cycle_ms", "dlc",
	"signal_name", "start_bit", "bit_length", "endianness",
	"signed", "factor", "offset", "min", "max", "default", "unit", "comment",
}

// LoadCANMap reads the bench frame map from a CSV file.
func LoadCANMap(csvPath string) (*CANMap, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseCANMap(f)
}

// ParseCANMap reads one signal per row; rows sharing a frame_id form one frame.
func ParseCANMap(src io.Reader) (*CANMap, error) {
	r := csv.NewReader(src)
	r.TrimLeadingSpace = true
	r.Comment = '#'

	header, err := r.Read()
	if err != nil {
		return nil, err
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, k := range requiredColumns {
		if _, ok := idx[k]; !ok {
			return nil, fmt.Errorf("can map missing required column: %q", k)
		}
	}

	m := &CANMap{
		ByID:   map[uint32]*FrameDef{},
		ByName: map[string]*FrameDef{},
	}

	line := 1
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++

		col := func(name string) string { return strings.TrimSpace(rec[idx[name]]) }

		frameID, err := parseHexOrDecUint32(col("frame_id"))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid frame_id %q: %w", line, col("frame_id"), err)
		}
		frameName := col("frame_name")

		direction := Direction(strings.ToLower(col("direction")))
		if direction != DirTX && direction != DirRX {
			return nil, fmt.Errorf("line %d: frame %s: direction must be tx or rx, got %q", line, frameName, direction)
		}

		cycleMS, err := strconv.Atoi(col("cycle_ms"))
		if err != nil {
			return nil, fmt.Errorf("line %d: frame %s: cycle_ms: %w", line, frameName, err)
		}
		dlc, err := strconv.Atoi(col("dlc"))
		if err != nil {
			return nil, fmt.Errorf("line %d: frame %s: dlc: %w", line, frameName, err)
		}
		if dlc <= 0 || dlc > 8 {
			return nil, fmt.Errorf("frame %s (0x%X): invalid dlc %d", frameName, frameID, dlc)
		}

		row := rowParser{line: line, frame: frameName, col: col}
		sig := SignalDef{
			Name:      col("signal_name"),
			StartBit:  row.intCell("start_bit"),
			BitLength: row.intCell("bit_length"),
			Signed:    row.boolCell("signed"),
			Factor:    row.floatCell("factor"),
			Offset:    row.floatCell("offset"),
			Min:       row.floatCell("min"),
			Max:       row.floatCell("max"),
			Default:   row.floatCell("default"),
			Unit:      col("unit"),
			Comment:   col("comment"),
		}
		if row.err != nil {
			return nil, row.err
		}

		if e := col("endianness"); e != "" && e != "little" {
			return nil, fmt.Errorf("frame %s signal %s: unsupported endianness %q (only little supported)",
				frameName, sig.Name, e)
		}
		if sig.BitLength <= 0 || sig.StartBit < 0 || sig.StartBit+sig.BitLength > dlc*8 {
			return nil, fmt.Errorf("frame %s signal %s: bits [%d,+%d) outside %d-byte payload",
				frameName, sig.Name, sig.StartBit, sig.BitLength, dlc)
		}
		if sig.Factor == 0 {
			return nil, fmt.Errorf("frame %s signal %s: factor must be non-zero", frameName, sig.Name)
		}

		fd, ok := m.ByID[frameID]
		if !ok {
			if _, dup := m.ByName[frameName]; dup {
				return nil, fmt.Errorf("frame name %s used by more than one id", frameName)
			}
			fd = &FrameDef{
				ID:        frameID,
				Name:      frameName,
				DLC:       dlc,
				Direction: direction,
				CycleMS:   cycleMS,
			}
			m.ByID[frameID] = fd
			m.ByName[frameName] = fd
		}

		if fd.DLC != dlc || fd.Direction != direction {
			return nil, fmt.Errorf("frame %s (0x%X) has inconsistent dlc/direction across rows", frameName, frameID)
		}

		fd.Signals = append(fd.Signals, sig)
	}

	for _, fd := range m.ByID {
		sort.Slice(fd.Signals, func(i, j int) bool { return fd.Signals[i].StartBit < fd.Signals[j].StartBit })
	}

	return m, nil
}

func (m *CANMap) FrameByName(name string) (*FrameDef, error) {
	fd, ok := m.ByName[name]
	if !ok {
		return nil, fmt.Errorf("unknown frame %q (available: %v)", name, m.FrameNames())
	}
	return fd, nil
}

func (m *CANMap) FrameByID(id uint32) (*FrameDef, error) {
	fd, ok := m.ByID[id]
	if !ok {
		return nil, fmt.Errorf("unknown frame id 0x%X", id)
	}
	return fd, nil
}

func parseHexOrDecUint32(s string) (uint32, error) {
	ss := strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(ss, "0x") || strings.HasPrefix(ss, "0X") {
		base = 16
		ss = ss[2:]
	}
	u, err := strconv.ParseUint(ss, base, 32)
	if err != nil {
		return 0, err
	}
	return uint32(u), nil
}

// rowParser converts the numeric cells of one CSV row, keeping the first error.
type rowParser struct {
	line  int
	frame string
	col   func(string) string
	err   error
}

func (p *rowParser) fail(name string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("line %d: frame %s: %s: %w", p.line, p.frame, name, err)
	}
}

func (p *rowParser) intCell(name string) int {
	v, err := strconv.Atoi(p.col(name))
	if err != nil {
		p.fail(name, err)
	}
	return v
}

func (p *rowParser) floatCell(name string) float64 {
	v, err := strconv.ParseFloat(p.col(name), 64)
	if err != nil {
		p.fail(name, err)
	}
	return v
}

func (p *rowParser) boolCell(name string) bool {
	switch strings.ToLower(p.col(name)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	p.fail(name, fmt.Errorf("invalid boolean %q", p.col(name)))
	return false
}
