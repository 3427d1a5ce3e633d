package cmd

import (
	"fmt"

	"github.com/OpenCHAMI/maas-power-unifi/internal/util"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// The `check` command validates the config file. Loading already rejected
// anything invalid by the time RunE is called.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "controller: %s (%s, site %s)\n", cfg.URL, cfg.Controller, cfg.Site)
		fmt.Fprintf(out, "devices: %d\n", len(cfg.Devices))
		fmt.Fprintf(out, "machines: %d\n", len(cfg.Bindings()))
		for _, id := range cfg.Duplicates() {
			fmt.Fprintf(out, "warning: machine %s is bound more than once, the first binding is used\n", id)
		}

		if viper.GetString("username") == "" || viper.GetString("password") == "" {
			path := viper.GetString("secrets.file")
			if _, exists := util.PathExists(path); !exists {
				log.Warn().Str("path", path).Msg("no --username/--password and no secrets file, logins will fail")
			}
		}
		fmt.Fprintln(out, "config OK")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
