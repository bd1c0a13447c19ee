package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/storepos/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "storepos",
		Usage:   "Point-of-sale client and licence service",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE` (default: ./storepos.toml or ~/.storepos.toml)",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from `FILE` before reading configuration",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Also write JSON logs to `FILE`",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			cmd.ServeCommand(),
			cmd.StatusCommand(),
			cmd.ActivateCommand(),
			cmd.SessionCommand(),
			cmd.CodesCommand(),
			cmd.ConfigCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
