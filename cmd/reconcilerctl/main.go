// Command reconcilerctl runs one-off operations against the payment store:
// expiry sweeps for external cron, manual event replays, migrations and seeding.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"payment-reconciler/internal/application"
	"payment-reconciler/internal/config"
	"payment-reconciler/internal/infra/logging"
)

var version = "dev"

type rootOptions struct {
	configPath string
	dev        bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "reconcilerctl",
		Short:         "Operate the payment reconciler from the command line",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "path to config yaml")
	rootCmd.PersistentFlags().BoolVar(&opts.dev, "dev", false, "development mode")

	rootCmd.AddCommand(sweepCmd(opts))
	rootCmd.AddCommand(reconcileCmd(opts))
	rootCmd.AddCommand(migrateCmd(opts))
	rootCmd.AddCommand(orderCmd(opts))
	rootCmd.AddCommand(tokenCmd(opts))
	return rootCmd
}

func (o *rootOptions) load() (*config.Config, *zerolog.Logger, error) {
	cfg, err := config.Load(o.configPath, o.dev)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(cfg.Log, cfg.Runtime.Dev), nil
}

// withContainer builds the full dependency graph, runs fn and drains side effects before returning.
func (o *rootOptions) withContainer(ctx context.Context, fn func(c *application.Container) error) error {
	cfg, logger, err := o.load()
	if err != nil {
		return err
	}
	c, err := application.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()
	return fn(c)
}
