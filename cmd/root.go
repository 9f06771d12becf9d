package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nodectl/internal/app"
	"nodectl/internal/flow"
)

var (
	configPath string
	debugMode  bool
	assumeYes  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nodectl",
	Short: "Operate an Ethereum staking stack as compose services on one host",
	Long: `nodectl installs and operates the container groups of a single-host
Ethereum staking stack: execution/consensus node pairs, validators, a
remote signer, a monitoring stack and optional plugins.

The instance name decides what gets installed: names starting with
"ethnode" or "validator" create instances of those kinds, "web3signer"
and "monitoring" are singletons, and any other name is installed as a
plugin. Each instance lives in its own directory under the services
root, described by a .env file that lists its compose fragments,
assigned host ports and upstream wiring.`,
	// SilenceUsage prevents printing the usage message on errors we
	// handle ourselves (bad names, failed steps, declined removals).
	SilenceUsage: true,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). A critical step failure
// surfaces here as a non-zero exit; warnings alone exit zero.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "nodectl version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $NODECTL_CONFIG or ~/.config/nodectl/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "answer confirmation prompts with yes")

	rootCmd.AddCommand(newVersionCmd())
}

// newApplication bootstraps the service graph for one verb invocation.
func newApplication() (*app.Application, error) {
	return app.NewApplication(app.NewConfig(configPath, debugMode, assumeYes))
}

// reportResult prints the outcome of a lifecycle run. Non-critical step
// failures are surfaced as warnings and do not affect the exit code; a
// critical failure is returned and exits non-zero.
func reportResult(cmd *cobra.Command, result *flow.Result, err error) error {
	if result != nil {
		for _, failure := range result.Failures {
			if !failure.Step.Critical() {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", failure.String())
			}
		}
	}
	if err != nil {
		return err
	}
	if result != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s complete (%d steps)\n", result.Instance, result.Action, len(result.StepsRun))
	}
	return nil
}
