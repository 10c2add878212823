package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/nucypher/monitor/internal/config"
	"github.com/nucypher/monitor/pkg/monitorclient"
)

var urlFlag = &cli.StringFlag{
	Name:  "url",
	Usage: "Base `URL` of the running monitor (defaults to the configured listen address)",
}

// monitorURL is where the configured monitor listens, as seen from this host.
func monitorURL(cfg *config.Config) string {
	host := cfg.Dashboard.ListenAddress
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Dashboard.ListenPort))
}

func queryClient(c *cli.Context, env *runtimeEnv) *monitorclient.Client {
	base := c.String(urlFlag.Name)
	if base == "" {
		base = monitorURL(env.cfg)
	}
	return monitorclient.New(base, nil)
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(w)
	return err
}

func supplyCommand(env *runtimeEnv) *cli.Command {
	return &cli.Command{
		Name:  "supply",
		Usage: "Print the token supply breakdown",
		Flags: []cli.Flag{urlFlag},
		Action: func(c *cli.Context) error {
			body, err := queryClient(c, env).Supply(c.Context)
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, body)
		},
	}
}

func stakerCommand(env *runtimeEnv) *cli.Command {
	return &cli.Command{
		Name:      "staker",
		Usage:     "Print the on-chain status of a staker",
		ArgsUsage: "<address>",
		Flags:     []cli.Flag{urlFlag},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one staker address, got %d arguments", c.NArg())
			}
			body, err := queryClient(c, env).Staker(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, body)
		},
	}
}
