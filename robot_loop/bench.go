package main

import (
	"context"
	"fmt"
	"time"

	"go.einride.tech/can"
	"go.uber.org/atomic"

	control "romi-fusion-core/robot_loop/cascade_control"
	"romi-fusion-core/robot_loop/core"
	"romi-fusion-core/robot_loop/fusion"
	"romi-fusion-core/robot_loop/maneuver"
	"romi-fusion-core/utils"
)

const (
	frameMotorCmd  = "MOTOR_CMD"
	frameImuConfig = "IMU_CONFIG"
	frameWheelEnc  = "WHEEL_ENC"
	frameImuState  = "IMU_STATE"
	frameLineA     = "LINE_A"
	frameLineB     = "LINE_B"
	frameBumper    = "BUMPER"
)

// lineSignals maps each line frame to the channels it carries, in sensor order.
var lineSignals = map[string][]string{
	frameLineA: {"s0_us", "s1_us", "s2_us", "s3_us"},
	frameLineB: {"s4_us", "s5_us", "s6_us", "s7_us"},
}

const lineChannels = 8

// benchSignals lists every signal the bench reads or writes, per frame.
var benchSignals = map[string][]string{
	frameMotorCmd:  {"left_duty_pct", "right_duty_pct", "motor_enable"},
	frameImuConfig: {"opr_mode"},
	frameWheelEnc:  {"left_count", "right_count"},
	frameImuState:  {"heading_x16", "yaw_rate_x16", "calib_stat"},
	frameLineA:     lineSignals[frameLineA],
	frameLineB:     lineSignals[frameLineB],
	frameBumper:    {"bumper_levels"},
}

// canMotor is a MotorDriver whose duty is picked up by the transmit loop.
type canMotor struct {
	duty    atomic.Float64
	enabled atomic.Bool
}

func (m *canMotor) SetDuty(d float64) { m.duty.Store(d) }
func (m *canMotor) Enable()           { m.enabled.Store(true) }
func (m *canMotor) Disable()          { m.enabled.Store(false) }

// canCounter holds the latest raw timer count from WHEEL_ENC.
type canCounter struct{ n atomic.Uint32 }

func (c *canCounter) Count() uint16 { return uint16(c.n.Load()) }

type canIMU struct {
	heading atomic.Int32
	yaw     atomic.Int32
	calib   atomic.Uint32
	seen    atomic.Bool
}

func (i *canIMU) ReadHeading() int16 { return int16(i.heading.Load()) }
func (i *canIMU) ReadYawRate() int16 { return int16(i.yaw.Load()) }
func (i *canIMU) CalibrationStatus() fusion.CalibrationStatus {
	return fusion.ParseCalibration(uint8(i.calib.Load()))
}

// canLine keeps the most recent decay time per channel. Channels never heard from read as
// saturated, which the line pipeline treats as dark.
type canLine struct {
	us [lineChannels]atomic.Uint32
}

func newCanLine(timeout uint32) *canLine {
	l := &canLine{}
	for i := range l.us {
		l.us[i].Store(timeout)
	}
	return l
}

func (l *canLine) ReadAll() []uint32 {
	out := make([]uint32, lineChannels)
	for i := range l.us {
		out[i] = l.us[i].Load()
	}
	return out
}

// Bench connects the control core to sensor and motor nodes on a CAN bus.
type Bench struct {
	log    *utils.Logger
	cmap   *utils.CANMap
	writer utils.CANWriter
	reader utils.CANReader
	motor  *utils.FrameDef
	start  time.Time

	left, right *canMotor
	encL, encR  *canCounter
	imu         *canIMU
	line        *canLine
	bumpers     atomic.Pointer[maneuver.Bumpers]

	rxFrames  atomic.Uint64
	rxErrors  atomic.Uint64
	txFrames  atomic.Uint64
	bumpCount atomic.Uint64
}

func NewBench(cmap *utils.CANMap, writer utils.CANWriter, reader utils.CANReader, lineTimeout uint32, log *utils.Logger) (*Bench, error) {
	if err := cmap.Require(utils.DirTX, frameMotorCmd, frameImuConfig); err != nil {
		return nil, err
	}
	if err := cmap.Require(utils.DirRX, frameWheelEnc, frameImuState, frameLineA, frameLineB, frameBumper); err != nil {
		return nil, err
	}
	for frame, signals := range benchSignals {
		fd, _ := cmap.FrameByName(frame)
		for _, name := range signals {
			if _, ok := fd.Signal(name); !ok {
				return nil, fmt.Errorf("frame %s: missing signal %q", frame, name)
			}
		}
	}
	motor, _ := cmap.FrameByName(frameMotorCmd)
	if motor.CycleMS <= 0 {
		return nil, fmt.Errorf("frame %s has invalid cycle_ms %d", motor.Name, motor.CycleMS)
	}

	return &Bench{
		log:    log,
		cmap:   cmap,
		writer: writer,
		reader: reader,
		motor:  motor,
		start:  time.Now(),
		left:   &canMotor{},
		right:  &canMotor{},
		encL:   &canCounter{},
		encR:   &canCounter{},
		imu:    &canIMU{},
		line:   newCanLine(lineTimeout),
	}, nil
}

func (b *Bench) Hardware() core.Hardware {
	return core.Hardware{
		LeftMotor:    b.left,
		RightMotor:   b.right,
		LeftEncoder:  b.encL,
		RightEncoder: b.encR,
		IMU:          b.imu,
		Line:         b.line,
	}
}

// AttachBumpers routes BUMPER frames to bp. Until then BUMPER frames are ignored.
func (b *Bench) AttachBumpers(bp *maneuver.Bumpers) { b.bumpers.Store(bp) }

// ImuSeen reports whether at least one IMU_STATE frame has arrived.
func (b *Bench) ImuSeen() bool { return b.imu.seen.Load() }

func (b *Bench) Calibration() fusion.CalibrationStatus { return b.imu.CalibrationStatus() }

// Handle applies one received frame. It runs on the receive goroutine, which stands in for
// interrupt context: it only stores values and fires the bumper trigger.
func (b *Bench) Handle(frame can.Frame) error {
	fd, err := b.cmap.FrameByID(frame.ID)
	if err != nil {
		return err
	}
	if fd.Direction != utils.DirRX {
		return nil
	}
	vals, err := b.cmap.DecodeFrame(frame)
	if err != nil {
		return err
	}
	b.rxFrames.Inc()

	switch fd.Name {
	case frameWheelEnc:
		b.encL.n.Store(uint32(vals["left_count"]))
		b.encR.n.Store(uint32(vals["right_count"]))
	case frameImuState:
		b.imu.heading.Store(int32(vals["heading_x16"]))
		b.imu.yaw.Store(int32(vals["yaw_rate_x16"]))
		b.imu.calib.Store(uint32(vals["calib_stat"]))
		b.imu.seen.Store(true)
	case frameLineA, frameLineB:
		base := 0
		if fd.Name == frameLineB {
			base = 4
		}
		for i, name := range lineSignals[fd.Name] {
			b.line.us[base+i].Store(uint32(vals[name]))
		}
	case frameBumper:
		if bp := b.bumpers.Load(); bp != nil {
			if bp.Sample(uint8(vals["bumper_levels"]), time.Since(b.start)) {
				b.bumpCount.Inc()
			}
		}
	}
	return nil
}

// ReceiveLoop feeds frames to Handle until ctx ends or the reader fails.
func (b *Bench) ReceiveLoop(ctx context.Context) {
	b.log.Debug("RX loop started")
	defer b.log.Debug("RX loop stopped")

	for {
		frame, err := b.reader.Receive()
		if err != nil {
			if ctx.Err() == nil {
				b.log.Error("RX error: %v", err)
			}
			return
		}
		if err := b.Handle(frame); err != nil {
			b.rxErrors.Inc()
			b.log.Trace("RX id=0x%X dropped: %v", frame.ID, err)
			continue
		}
		b.log.Trace("RX id=0x%X len=%d data=% X", frame.ID, frame.Length, frame.Data[:frame.Length])
	}
}

// MotorFrame encodes the current duties and enable state.
func (b *Bench) MotorFrame() (can.Frame, error) {
	return b.cmap.EncodeFrame(frameMotorCmd, map[string]float64{
		"left_duty_pct":  b.left.duty.Load(),
		"right_duty_pct": b.right.duty.Load(),
		"motor_enable":   control.BoolToFloat(b.left.enabled.Load() && b.right.enabled.Load()),
	})
}

// SendMotors transmits one MOTOR_CMD frame now.
func (b *Bench) SendMotors(ctx context.Context) error {
	frame, err := b.MotorFrame()
	if err != nil {
		return fmt.Errorf("encode %s: %w", frameMotorCmd, err)
	}
	if err := b.writer.WriteFrame(ctx, frame); err != nil {
		return fmt.Errorf("transmit %s: %w", frameMotorCmd, err)
	}
	b.txFrames.Inc()
	return nil
}

// TransmitLoop sends MOTOR_CMD every cycle_ms until ctx ends.
func (b *Bench) TransmitLoop(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(b.motor.CycleMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := b.SendMotors(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				b.log.Error("%v", err)
			}
		}
	}
}

// SendImuMode writes the operating mode register on the IMU node.
func (b *Bench) SendImuMode(ctx context.Context, mode fusion.ImuMode) error {
	frame, err := b.cmap.EncodeFrame(frameImuConfig, map[string]float64{"opr_mode": float64(mode)})
	if err != nil {
		return fmt.Errorf("encode %s: %w", frameImuConfig, err)
	}
	if err := b.writer.WriteFrame(ctx, frame); err != nil {
		return fmt.Errorf("transmit %s: %w", frameImuConfig, err)
	}
	b.txFrames.Inc()
	b.log.Info("IMU mode set to %s (0x%02X)", mode, uint8(mode))
	return nil
}

// Counters returns rx, rx errors, tx and accepted bumper events.
func (b *Bench) Counters() (rx, rxErr, tx, bumps uint64) {
	return b.rxFrames.Load(), b.rxErrors.Load(), b.txFrames.Load(), b.bumpCount.Load()
}
