package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	powerunifi "github.com/OpenCHAMI/maas-power-unifi/internal"
	"github.com/OpenCHAMI/maas-power-unifi/internal/util"
	"github.com/OpenCHAMI/maas-power-unifi/pkg/daemon"
	"github.com/cznic/mathutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// The `serve` command runs the MaaS webhook. It is also what the root
// command does when no subcommand is given.
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"daemon"},
	Example: `  // listen on the default 0.0.0.0:3000
  maas-power-unifi -c config.toml serve
  // listen on localhost only behind a proxy
  maas-power-unifi -c config.toml serve -e 127.0.0.1:3000`,
	Short: "Serve the MaaS webhook power driver API",
	Long: "Serves GET /power-status and POST /power-on, /power-off and /power-cycle.\n" +
		"MaaS passes the machine's system_id in a request header.",
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	// fail on a bad URL or CA file before accepting requests
	if _, err := powerunifi.NewController(cfg, controllerOptions()...); err != nil {
		return err
	}

	// login, device lookup, the power request and logout each get the full timeout
	timeout := mathutil.Clamp(viper.GetInt("timeout"), minTimeout, maxTimeout)
	requestTimeout := 4 * time.Duration(timeout) * time.Second

	server := &daemon.Server{
		Config: cfg,
		NewController: func() (powerunifi.Controller, error) {
			ctl, err := powerunifi.NewController(cfg, controllerOptions()...)
			if err != nil {
				return nil, err
			}
			return ctl, nil
		},
		Credentials:    util.BuildCredentials(cfg.URL),
		IDHeader:       viper.GetString("serve.id-header"),
		RequestTimeout: requestTimeout,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.ListenAndServe(ctx, viper.GetString("serve.listen"))
}

func init() {
	addFlag("serve.listen", serveCmd, "listen", "e", daemon.DefaultListen, "Set the address for the webhook server to listen on")
	addFlag("serve.id-header", serveCmd, "id-header", "", daemon.DefaultIDHeader, "Set the request header carrying the MaaS system_id")

	rootCmd.AddCommand(serveCmd)
}
