package cmd

import (
	"github.com/spf13/cobra"

	"nodectl/internal/flow"
	"nodectl/internal/manager"
)

// startCmd starts an installed instance's containers
var startCmd = &cobra.Command{
	Use:   "start <name>",
	Short: "Start an installed instance",
	Long: `Start the containers of an installed instance. Networks are ensured
first, so a start after a manual docker cleanup heals itself.`,
	Args: cobra.ExactArgs(1),
	RunE: runStart,
}

// stopCmd stops an instance's containers, keeping all state
var stopCmd = &cobra.Command{
	Use:   "stop <name>",
	Short: "Stop an instance's containers",
	Long: `Stop the containers of an installed instance. Volumes, networks and
configuration stay untouched; start brings it back.`,
	Args: cobra.ExactArgs(1),
	RunE: runStop,
}

// updateCmd pulls fresh images and restarts on re-rendered config
var updateCmd = &cobra.Command{
	Use:   "update <name>",
	Short: "Pull newer images and restart an instance",
	Long: `Pull the instance's images, stop it, re-render its configuration and
start it again. Assigned host ports are kept. A failed pull is a
warning; the restart still runs on the images already present.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

var updateCompose string

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().StringVar(&updateCompose, "compose", "", "replacement compose file for a plugin")
}

func runStart(cmd *cobra.Command, args []string) error {
	return operate(cmd, flow.ActionStart, args[0], manager.Options{Yes: assumeYes})
}

func runStop(cmd *cobra.Command, args []string) error {
	return operate(cmd, flow.ActionStop, args[0], manager.Options{Yes: assumeYes})
}

func runUpdate(cmd *cobra.Command, args []string) error {
	return operate(cmd, flow.ActionUpdate, args[0], manager.Options{Yes: assumeYes, PluginCompose: updateCompose})
}

func operate(cmd *cobra.Command, action flow.Action, name string, opts manager.Options) error {
	application, err := newApplication()
	if err != nil {
		return err
	}
	result, err := application.Manager().Operate(cmd.Context(), action, name, opts)
	return reportResult(cmd, result, err)
}
