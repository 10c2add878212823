package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/nucypher/monitor/internal/config"
	"github.com/nucypher/monitor/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// runtimeEnv is filled by the app's Before hook and shared with every command.
type runtimeEnv struct {
	cfg *config.Config
	log *zap.Logger
}

func newApp() *cli.App {
	env := &runtimeEnv{}
	return &cli.App{
		Name:    "monitor",
		Usage:   "Serve the network status dashboard and query a running monitor",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config.yaml",
				Usage:   "Load configuration from `FILE`",
				EnvVars: []string{"MONITOR_CONFIG"},
			},
		},
		Before: func(c *cli.Context) error {
			// init writes the config file every other command reads
			if c.Args().First() == "init" {
				return nil
			}
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			zapLogger, err := logger.New(cfg.Logger.Verbosity, cfg.Logger.Format)
			if err != nil {
				return err
			}
			env.cfg = cfg
			env.log = zapLogger.Named("cli")
			return nil
		},
		Commands: []*cli.Command{
			initCommand(),
			serveCommand(env),
			geoCommand(env),
			historyCommand(env),
			supplyCommand(env),
			stakerCommand(env),
		},
	}
}

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
