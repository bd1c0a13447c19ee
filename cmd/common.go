package cmd

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/storepos/internal/config"
	"github.com/storepos/internal/logging"
)

// bootstrap loads the configuration named by the global --config flag and
// installs the logger. The closer must be closed when the command ends.
func bootstrap(c *cli.Context) (*config.Config, io.Closer, error) {
	if envFile := c.String("env-file"); envFile != "" {
		if err := LoadEnvFile(envFile); err != nil {
			return nil, nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level := cfg.Log.Level
	if c.Bool("verbose") {
		level = "debug"
	}
	closer, err := logging.Setup(logging.Options{
		Level:  level,
		Pretty: cfg.Log.Pretty,
		File:   c.String("log-file"),
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, closer, nil
}
