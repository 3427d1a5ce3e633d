package cmd

import (
	"fmt"

	"github.com/OpenCHAMI/maas-power-unifi/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flag("rev").Value.String() == "true" {
			fmt.Fprintln(cmd.OutOrStdout(), version.Revision())
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), version.Tag())
		}
	},
}

func init() {
	versionCmd.Flags().Bool("rev", false, "show the version commit")
	rootCmd.AddCommand(versionCmd)
}
