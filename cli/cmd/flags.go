// Package cmd provides CLI commands for the assay binary.
package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/assay/config"
)

// DefaultListenAddr is the HTTP bind address when neither the config file
// nor LISTEN_ADDR sets one.
const DefaultListenAddr = ":8000"

// ConfigFlag points a service at an optional YAML config file. Environment
// variables override file values either way.
var ConfigFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to YAML config file (optional; env vars take precedence)",
}

// ServiceFlags returns the shared flags for all service commands.
func ServiceFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
	}
}

// loadConfig resolves the service configuration from the --config flag and
// the environment.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	return cfg, nil
}

// signalContext derives a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
