package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// planCmd previews a removal without touching anything
var planCmd = &cobra.Command{
	Use:   "plan <name>",
	Short: "Show what removing an instance would destroy",
	Long: `Compute and print the removal plan for an installed instance: the
containers, volumes, networks and directory a remove would delete.
Nothing is changed.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	application, err := newApplication()
	if err != nil {
		return err
	}
	plan, err := application.Manager().Plan(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), plan.Render())
	return nil
}
