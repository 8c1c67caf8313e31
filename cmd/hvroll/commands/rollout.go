package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/hvroll/cmd/hvroll/handlers"
)

// Rollout returns the command that patches hosts one at a time.
//
// Environment variables:
//
//	RHEV_ENGINE_ADDRESS, RHEV_ENGINE_USERNAME, RHEV_ENGINE_PASSWORD
//	HYPHOST_USERNAME, HYPHOST_PASSWORD, HYPHOST_SSH_KEY
//	HVROLL_WAIT_TIMEOUT, HVROLL_POLL_INTERVAL, HVROLL_REBOOT_GRACE,
//	HVROLL_SSH_CONNECT_TIMEOUT, HVROLL_SSH_RETRIES
func Rollout() *cobra.Command {
	var opts handlers.RolloutOptions

	cmd := &cobra.Command{
		Use:   "rollout",
		Short: "Patch every in-service host, one at a time",
		Long: `Patch the in-service hosts of the selected datacenters, fewest running
VMs first. For each host:

1. Move it to maintenance (the engine migrates its VMs away)
2. Check for updates over SSH; if there are none, reactivate it
3. Install updates and reboot
4. Wait until it answers again and the engine reports it in maintenance
5. Reactivate it

Failed hosts are recorded and the rollout continues. Once more hosts than
--failure-threshold have failed, each further failure needs confirmation;
without a terminal (and without --yes) the rollout stops there.

Use --dry-run to print the plan without touching any host.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.ThresholdSet = cmd.Flags().Changed("failure-threshold")
			return handlers.Rollout(cmd.Context(), opts)
		},
	}

	bindCommon(cmd, &opts.Common)
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Print the plan without patching")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Continue past the failure threshold without asking")
	cmd.Flags().IntVar(&opts.FailureThreshold, "failure-threshold", 2, "Failed hosts tolerated before asking to continue")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics in textfile format to this path")
	cmd.Flags().StringVar(&opts.ReportFile, "report-file", "", "Write the JSON report to this path")
	cmd.Flags().StringVar(&opts.ReportBucket, "report-bucket", "", "Archive the JSON report to this S3 bucket")

	return cmd
}
