package cmd

import (
	"fmt"

	"github.com/OpenCHAMI/maas-power-unifi/internal/format"
	"github.com/spf13/cobra"
)

var listFormat = format.FORMAT_LIST

// The `list` command shows every machine binding from the config without
// contacting the controller.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the machine to port bindings in the config",
	Example: `  maas-power-unifi -c config.toml list
  maas-power-unifi -c config.toml list --format yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		b, err := format.Marshal(cfg.Bindings(), listFormat, "bindings")
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	},
}

func init() {
	listCmd.Flags().VarP(&listFormat, "format", "F", fmt.Sprintf("Set the output format %v", format.Formats))
	rootCmd.AddCommand(listCmd)
}
