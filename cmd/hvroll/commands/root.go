// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/hvroll/cmd/hvroll/handlers"
)

// Root returns the root command for the hvroll CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hvroll",
		Short:         "Rolling OS patching for oVirt / RHV hypervisor hosts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(List())
	cmd.AddCommand(Rollout())
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}

// bindCommon registers the flags every operational command shares.
func bindCommon(cmd *cobra.Command, c *handlers.Common) {
	cmd.Flags().StringVarP(&c.ConfigPath, "config", "c", "", "Path to configuration file (optional, environment is always read)")
	cmd.Flags().StringSliceVarP(&c.Datacenters, "datacenter", "d", nil, "Datacenter to include (repeatable, default all)")
	cmd.Flags().StringVar(&c.LogLevel, "log-level", "", "Log level: debug, info, warn, error (default from config, else info)")
	cmd.Flags().BoolVar(&c.LogJSON, "log-json", false, "Emit logs as JSON")
}
