package cmd

import (
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

// listCmd summarizes every installed instance
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed instances",
	Long: `List every installed instance with its kind and a one-word state
summary: running, stopped, degraded (some containers down) or not
created (installed but never started).`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	application, err := newApplication()
	if err != nil {
		return err
	}
	summaries, err := application.Manager().List(cmd.Context())
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No instances installed.")
		return nil
	}

	table := uitable.New()
	table.AddRow("NAME", "KIND", "STATE", "CONTAINERS")
	for _, s := range summaries {
		table.AddRow(s.Name, string(s.Kind), s.State, fmt.Sprintf("%d/%d", s.Running, s.Total))
	}
	fmt.Fprintln(cmd.OutOrStdout(), table)
	return nil
}
