package cmd

import (
	"fmt"

	powerunifi "github.com/OpenCHAMI/maas-power-unifi/internal"
	"github.com/OpenCHAMI/maas-power-unifi/internal/util"
	"github.com/OpenCHAMI/maas-power-unifi/pkg/unifi"
	"github.com/spf13/cobra"
)

var powerAction unifi.PowerAction

// The `power` command switches the port a single machine is plugged into.
var powerCmd = &cobra.Command{
	Use: "power <maas-id>",
	Example: `  // turn a machine on
  maas-power-unifi -c config.toml power abc123 -a on
  // power cycle with credentials from the environment
  UNIFI_USERNAME=admin UNIFI_PASSWORD=secret maas-power-unifi -c config.toml power abc123 -a cycle`,
	Short: "Set the power state of a machine",
	Long:  "Resolves the machine to its UniFi device and port, logs in to the controller and switches PoE on the port on, off, or cycles it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		ctl, err := powerunifi.NewController(cfg, controllerOptions()...)
		if err != nil {
			return err
		}

		err = powerunifi.SetMachinePower(cmd.Context(), cfg, ctl, powerunifi.PowerParams{
			MaasID:      args[0],
			Action:      powerAction,
			Credentials: util.BuildCredentials(cfg.URL),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: success\n", args[0])
		return nil
	},
}

func init() {
	powerCmd.Flags().VarP(&powerAction, "action", "a", fmt.Sprintf("Set the power action %v", unifi.Actions))
	checkBindFlagError(powerCmd.MarkFlagRequired("action"))

	rootCmd.AddCommand(powerCmd)
}
