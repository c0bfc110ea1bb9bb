package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"payment-reconciler/internal/application"
)

func sweepCmd(opts *rootOptions) *cobra.Command {
	var cutoff time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire pending payments older than --cutoff",
		Long: `Run one expiry pass, exactly like the in-process timer and POST /admin/sweep.

The pass takes the shared Redis lock when Redis is configured, so it is safe to
schedule from cron on several hosts.

Examples:
  reconcilerctl sweep
  reconcilerctl sweep --cutoff 45m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withContainer(cmd.Context(), func(c *application.Container) error {
				if cutoff <= 0 {
					cutoff = c.Cfg.Sweep.Cutoff
				}
				res, err := c.SweepRunner.Run(cmd.Context(), cutoff, "cli")
				if err != nil {
					return err
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
			})
		},
	}
	cmd.Flags().DurationVar(&cutoff, "cutoff", 0, "age after which a pending payment expires (default: sweep.cutoff)")
	return cmd
}
