package cmd

import (
	"fmt"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

// statusCmd shows the live state of one instance
var statusCmd = &cobra.Command{
	Use:   "status <name>",
	Short: "Show the live state of an instance",
	Long: `Show an instance's containers with their states, the networks its
containers are attached to, its volume count and the host ports
recorded in its configuration.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	application, err := newApplication()
	if err != nil {
		return err
	}
	status, err := application.Manager().Status(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s): %s\n\n", status.Name, status.Kind, status.State())

	if len(status.Containers) > 0 {
		table := uitable.New()
		table.AddRow("CONTAINER", "STATE")
		for _, c := range status.Containers {
			table.AddRow(c.Name, c.State)
		}
		fmt.Fprintln(out, table)
		fmt.Fprintln(out)
	}

	if len(status.Networks) > 0 {
		fmt.Fprintf(out, "Networks: %s\n", strings.Join(status.Networks, ", "))
	}
	fmt.Fprintf(out, "Volumes:  %d\n", status.Volumes)
	if len(status.Ports) > 0 {
		fmt.Fprintf(out, "Ports:    %s\n", strings.Join(status.Ports, " "))
	}
	return nil
}
