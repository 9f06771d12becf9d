package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of nodectl",
		Long:  `All software has versions. This is nodectl's.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nodectl version %s\n", rootCmd.Version)
		},
	}
}
