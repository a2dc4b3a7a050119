package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"romi-fusion-core/utils"
)

func main() {
	app := cli.NewApp()
	app.Name = "robot_loop"
	app.Usage = "run the Romi cascade control loop over SocketCAN"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "iface",
			Value: "vcan0",
			Usage: "SocketCAN interface name",
		},
		cli.StringFlag{
			Name:  "map",
			Value: "config/can/romi_can_map.csv",
			Usage: "path to the CAN signal map",
		},
		cli.StringFlag{
			Name:  "config",
			Value: "config/romi.json",
			Usage: "robot config JSON file",
		},
		cli.StringFlag{
			Name:  "log",
			Value: "info",
			Usage: "trace|debug|info|warn|error|critical",
		},
		cli.StringFlag{
			Name:  "logfile",
			Value: "robot_loop.log",
			Usage: "log file, mirrored to stdout",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		_, _ = os.Stderr.WriteString("ERROR: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log, err := utils.NewFileLogger(c.String("logfile"), utils.ParseLevel(c.String("log")), true)
	if err != nil {
		return cli.NewExitError("cannot open "+c.String("logfile")+": "+err.Error(), 1)
	}
	defer log.Close()

	cfg := RunnerConfig{
		Interface:  c.String("iface"),
		MapPath:    c.String("map"),
		ConfigPath: c.String("config"),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := NewRunner(ctx, cfg, log)
	if err != nil {
		log.Critical("Startup failed: %v", err)
		return cli.NewExitError(err.Error(), 1)
	}
	defer runner.Close()

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Critical("Run failed: %v", err)
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}
