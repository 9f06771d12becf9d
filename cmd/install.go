package cmd

import (
	"github.com/spf13/cobra"

	"nodectl/internal/flow"
	"nodectl/internal/manager"
)

var (
	installExecution   string
	installConsensus   string
	installMev         bool
	installBeaconNodes []string
	installEthnodes    []string
	installCompose     string
)

// installCmd creates a new service instance and brings it up
var installCmd = &cobra.Command{
	Use:   "install <name>",
	Short: "Install a service instance and start it",
	Long: `Install a new service instance under the services root and start its
containers.

The name decides the kind. Examples:

  nodectl install ethnode1                    # execution+consensus pair
  nodectl install ethnode2 --execution nethermind --consensus teku
  nodectl install web3signer                  # remote signer
  nodectl install validator1                  # follows every ethnode
  nodectl install monitoring                  # prometheus + grafana
  nodectl install ssv --compose ./ssv.yml     # plugin from a compose file

Host ports are assigned automatically from the configured ranges and
recorded in the instance's .env file. A validator needs an installed
ethnode and web3signer first; by default it follows every installed
ethnode unless --beacon-nodes pins the endpoints.`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)

	installCmd.Flags().StringVar(&installExecution, "execution", "", "execution client for a new ethnode (default from config)")
	installCmd.Flags().StringVar(&installConsensus, "consensus", "", "consensus client for a new ethnode (default from config)")
	installCmd.Flags().BoolVar(&installMev, "mev", false, "add the mev-boost sidecar to a new ethnode")
	installCmd.Flags().StringSliceVar(&installBeaconNodes, "beacon-nodes", nil, "beacon endpoints for a new validator (default: every installed ethnode)")
	installCmd.Flags().StringSliceVar(&installEthnodes, "ethnodes", nil, "ethnode names a new validator follows (default: derived from the beacon endpoints)")
	installCmd.Flags().StringVar(&installCompose, "compose", "", "compose file a new plugin adopts")
}

func runInstall(cmd *cobra.Command, args []string) error {
	application, err := newApplication()
	if err != nil {
		return err
	}
	result, err := application.Manager().Operate(cmd.Context(), flow.ActionInstall, args[0], manager.Options{
		Execution:     installExecution,
		Consensus:     installConsensus,
		Mev:           installMev,
		BeaconNodes:   installBeaconNodes,
		Ethnodes:      installEthnodes,
		PluginCompose: installCompose,
		Yes:           assumeYes,
	})
	return reportResult(cmd, result, err)
}
