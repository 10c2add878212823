package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/nucypher/monitor/internal/geo"
)

func geoCommand(env *runtimeEnv) *cli.Command {
	return &cli.Command{
		Name:  "geo",
		Usage: "Manage the geolocation table",
		Subcommands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Build the geolocation table from an IP2Location DB5 CSV file",
				ArgsUsage: "<csv>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("expected exactly one CSV file, got %d arguments", c.NArg())
					}
					path := c.Args().First()
					rows, err := geo.Import(c.Context, path, env.cfg.Geolocation.Path, env.log)
					if err != nil {
						return err
					}
					env.log.Info("Geolocation table built",
						zap.String("source", path),
						zap.String("path", env.cfg.Geolocation.Path),
						zap.Int("ranges", rows))
					return nil
				},
			},
		},
	}
}
