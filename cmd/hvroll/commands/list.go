package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/hvroll/cmd/hvroll/handlers"
)

// List returns the command that shows datacenters, clusters and hosts.
//
// Environment variables:
//
//	RHEV_ENGINE_ADDRESS, RHEV_ENGINE_USERNAME, RHEV_ENGINE_PASSWORD
func List() *cobra.Command {
	var opts handlers.ListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show datacenters, clusters and hypervisor hosts",
		Long: `List every datacenter visible to the engine user with its clusters and
hosts, including host state, OS and the number of running VMs.

Nothing is changed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.List(cmd.Context(), opts)
		},
	}

	bindCommon(cmd, &opts.Common)
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print the inventory as JSON")

	return cmd
}
