package cmd

import (
	"fmt"

	powerunifi "github.com/OpenCHAMI/maas-power-unifi/internal"
	"github.com/OpenCHAMI/maas-power-unifi/internal/format"
	"github.com/OpenCHAMI/maas-power-unifi/internal/util"
	"github.com/OpenCHAMI/maas-power-unifi/pkg/daemon"
	"github.com/OpenCHAMI/maas-power-unifi/pkg/unifi"
	"github.com/spf13/cobra"
)

var statusFormat = format.FORMAT_LIST

type machineStatus struct {
	MaasID string `json:"maas_id" yaml:"maas_id" toml:"maas_id"`
	Status string `json:"status" yaml:"status" toml:"status"`
}

// The `status` command reports a machine's power the way the webhook does.
var statusCmd = &cobra.Command{
	Use:   "status <maas-id>",
	Short: "Get the power state of a machine",
	Long:  "Prints 'running' when PoE is enabled on the machine's port and 'stopped' when it is off.",
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

		state, err := powerunifi.GetMachinePower(cmd.Context(), cfg, ctl, args[0], util.BuildCredentials(cfg.URL))
		if err != nil {
			return err
		}

		status := daemon.StatusUnknown
		switch state {
		case unifi.PortOn:
			status = daemon.StatusRunning
		case unifi.PortOff:
			status = daemon.StatusStopped
		}

		var out any = machineStatus{MaasID: args[0], Status: status}
		if statusFormat == format.FORMAT_LIST {
			out = status
		}
		b, err := format.Marshal(out, statusFormat, "status")
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	},
}

func init() {
	statusCmd.Flags().VarP(&statusFormat, "format", "F", fmt.Sprintf("Set the output format %v", format.Formats))

	rootCmd.AddCommand(statusCmd)
}
