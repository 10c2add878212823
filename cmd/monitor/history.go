package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/nucypher/monitor/internal/history"
)

func historyCommand(env *runtimeEnv) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Manage the metrics store",
		Subcommands: []*cli.Command{
			{
				Name:        "import-events",
				Usage:       "Record network events from a CSV file",
				ArgsUsage:   "<csv>",
				Description: "Columns: " + strings.Join(history.EventColumns, ",") + ". time is RFC 3339 or unix seconds.",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("expected exactly one CSV file, got %d arguments", c.NArg())
					}
					path := c.Args().First()
					f, err := os.Open(path)
					if err != nil {
						return err
					}
					defer f.Close()

					store, err := history.Open(env.cfg.History.Path, env.log)
					if err != nil {
						return err
					}
					defer store.Close()

					n, err := store.ImportEvents(c.Context, f)
					if err != nil {
						return err
					}
					env.log.Info("Events imported",
						zap.String("source", path),
						zap.String("path", env.cfg.History.Path),
						zap.Int("events", n))
					return nil
				},
			},
		},
	}
}
