package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"nodectl/internal/flow"
	"nodectl/internal/manager"
)

// removeCmd tears an instance down completely
var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove an instance and everything it owns",
	Long: `Remove an instance: its containers, volumes, networks nothing else
uses, and its directory under the services root.

Unless --yes is given, the full removal plan is shown first and the
instance name must be typed back to confirm. Removing an ethnode
re-points validators that followed it at the remaining ethnodes.

Removing a name that is not installed succeeds without doing anything,
so a half-failed removal can simply be re-run.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	application, err := newApplication()
	if err != nil {
		return err
	}
	result, err := application.Manager().Operate(cmd.Context(), flow.ActionRemove, args[0], manager.Options{Yes: assumeYes})
	if errors.Is(err, manager.ErrDeclined) {
		fmt.Fprintln(cmd.OutOrStdout(), "Removal cancelled.")
		return nil
	}
	return reportResult(cmd, result, err)
}
