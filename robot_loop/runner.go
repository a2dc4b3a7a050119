package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"romi-fusion-core/robot_loop/core"
	"romi-fusion-core/robot_loop/sched"
	"romi-fusion-core/utils"
)

type RunnerConfig struct {
	Interface  string
	MapPath    string
	ConfigPath string
}

type Runner struct {
	cfg    RunnerConfig
	log    *utils.Logger
	robotC Config
	writer *utils.SocketCANWriter
	reader *utils.SocketCANReader
	bench  *Bench
}

func NewRunner(ctx context.Context, cfg RunnerConfig, log *utils.Logger) (*Runner, error) {
	robotCfg, err := LoadConfig(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cmap, err := utils.LoadCANMap(cfg.MapPath)
	if err != nil {
		return nil, fmt.Errorf("load can map: %w", err)
	}

	writer, err := utils.NewSocketCANWriter(ctx, cfg.Interface)
	if err != nil {
		return nil, err
	}
	reader, err := utils.NewSocketCANReader(ctx, cfg.Interface)
	if err != nil {
		writer.Close()
		return nil, err
	}

	bench, err := NewBench(cmap, writer, reader, robotCfg.Line.TimeoutUS, log.Named("bench"))
	if err != nil {
		reader.Close()
		writer.Close()
		return nil, err
	}

	return &Runner{
		cfg:    cfg,
		log:    log,
		robotC: robotCfg,
		writer: writer,
		reader: reader,
		bench:  bench,
	}, nil
}

func (r *Runner) Close() {
	if r.reader != nil {
		_ = r.reader.Close()
	}
	if r.writer != nil {
		_ = r.writer.Close()
	}
}

// Run performs the startup sequence, then runs the control tasks until the finish sequence
// completes or ctx is cancelled. Motors are always halted on the way out.
func (r *Runner) Run(ctx context.Context) error {
	cfg := r.robotC
	r.log.Info("Starting %s v%d: iface=%s inner=%v outer=%v imu=%s",
		cfg.Meta.Name, cfg.Meta.Version, r.cfg.Interface,
		cfg.Tasks.Inner.Period(), cfg.Tasks.Outer.Period(), cfg.IMU.OprMode())

	rxCtx, stopRx := context.WithCancel(ctx)
	defer stopRx()
	go r.bench.ReceiveLoop(rxCtx)

	if err := r.bench.SendImuMode(ctx, cfg.IMU.OprMode()); err != nil {
		return err
	}
	if !cfg.Run.SkipCalibration {
		if err := r.waitForCalibration(ctx); err != nil {
			return err
		}
	}

	r.log.Info("Starting in %v", cfg.Run.StartupDelay())
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(cfg.Run.StartupDelay()):
	}

	robot, err := core.NewRobot(cfg.Config, r.bench.Hardware(), 0, r.log.Named("core"))
	if err != nil {
		return fmt.Errorf("build robot: %w", err)
	}
	r.bench.AttachBumpers(robot.Bumpers())

	s := sched.New(r.log.Named("sched"))
	for _, t := range robot.Tasks() {
		if err := s.Add(t); err != nil {
			return err
		}
	}

	txCtx, stopTx := context.WithCancel(ctx)
	txDone := make(chan struct{})
	go func() {
		defer close(txDone)
		_ = r.bench.TransmitLoop(txCtx)
	}()

	cron, err := sched.StartReporter(s, r.log.Named("profile"), cfg.Run.ReportInterval(), func() {
		rx, rxErr, tx, bumps := r.bench.Counters()
		r.log.Debug("bus rx=%d rx_err=%d tx=%d bumps=%d", rx, rxErr, tx, bumps)
	})
	if err != nil {
		stopTx()
		<-txDone
		return err
	}

	robot.Enable()
	runErr := s.Run(ctx)

	cron.Stop()
	stopTx()
	<-txDone
	r.halt(robot)

	for _, p := range s.Profiles() {
		r.log.Info("%s", p)
	}

	if runErr != nil {
		r.log.Warn("Control loop interrupted in state %s: %v", robot.State(), runErr)
		return runErr
	}
	r.log.Info("Run complete")
	return nil
}

// halt zeroes and disables the motors and pushes that to the bus once, even when ctx is gone.
func (r *Runner) halt(robot *core.Robot) {
	robot.Halt()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := r.bench.SendMotors(ctx); err != nil {
		r.log.Error("Halt frame not sent: %v", err)
	}
}

var errCalibrationTimeout = errors.New("imu calibration timed out")

// waitForCalibration polls IMU_STATE until every subsystem reports level 3.
func (r *Runner) waitForCalibration(ctx context.Context) error {
	poll := r.robotC.Run.CalibrationPoll()
	timeout := r.robotC.Run.CalibrationTimeout()
	r.log.Info("Waiting for IMU calibration (timeout %v)", timeout)

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var last string
	for {
		if r.bench.ImuSeen() {
			status := r.bench.Calibration()
			if status.FullyCalibrated() {
				r.log.Info("IMU fully calibrated")
				return nil
			}
			if s := status.String(); s != last {
				r.log.Info("Calibration status: %s", s)
				last = s
			}
		}
		if timeout > 0 && time.Now().After(deadline) {
			return fmt.Errorf("%w after %v (last: %s)", errCalibrationTimeout, timeout, r.bench.Calibration())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
