// The cmd package implements the interface for the maas-power-unifi CLI.
// The files in this package only handle CLI arguments and pass them to the
// routines in the internal package.
//
//	cmd/power.go  --> internal/power.go ( powerunifi.SetMachinePower() )
//	cmd/status.go --> internal/power.go ( powerunifi.GetMachinePower() )
//	cmd/serve.go  --> pkg/daemon ( daemon.Server )
//	cmd/list.go   --> none (reads the config only)
package cmd

import (
	"fmt"
	"os"
	"time"

	powerunifi "github.com/OpenCHAMI/maas-power-unifi/internal"
	"github.com/OpenCHAMI/maas-power-unifi/internal/config"
	logger "github.com/OpenCHAMI/maas-power-unifi/internal/log"
	"github.com/OpenCHAMI/maas-power-unifi/internal/version"
	"github.com/OpenCHAMI/maas-power-unifi/pkg/daemon"
	"github.com/OpenCHAMI/maas-power-unifi/pkg/unifi"
	"github.com/cznic/mathutil"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	minTimeout = 1
	maxTimeout = 300
)

var (
	cfg      *config.Config
	logLevel = logger.INFO

	// viper key -> flag, for every flag defined through addFlag()
	boundFlags = map[string]*pflag.Flag{}
)

// Without a subcommand the root command serves the MaaS webhook, which is
// how the power driver is normally deployed.
var rootCmd = &cobra.Command{
	Use:   "maas-power-unifi",
	Short: "MaaS power driver for machines powered through UniFi switch ports",
	Long: "Switches PoE power on UniFi switch ports for MaaS machines.\n" +
		"Machines are mapped to a device MAC and port in a TOML config file.",
	Example: `  // serve the MaaS webhook on 0.0.0.0:3000
  maas-power-unifi -c /etc/maas-power-unifi/config.toml

  // power cycle a single machine from the shell
  maas-power-unifi -c config.toml -u admin -p secret power abc123 -a cycle`,
	Args:              cobra.NoArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initWithConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
	RunE: runServe,
}

// This Execute() function is called from main to run the CLI.
func Execute() {
	rootCmd.Version = version.VersionInfo()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		logger.Close()
		os.Exit(powerunifi.ExitCode(err))
	}
}

// SetVersionInfo() passes build information from main.
func SetVersionInfo(v, commit, date string) {
	version.SetVersionInfo(v, commit, date)
}

func init() {
	addFlag("config-file", rootCmd, "config-file", "c", "", "Set the TOML config file with the controller and device map")
	addFlag("username", rootCmd, "username", "u", "", "Set the controller username")
	addFlag("password", rootCmd, "password", "p", "", "Set the controller password")
	addFlag("secrets.file", rootCmd, "secrets-file", "", "secrets.json", "Set path to the encrypted controller secrets file")
	addFlag("timeout", rootCmd, "timeout", "t", 10, "Set the timeout for controller requests in seconds")
	addFlag("insecure", rootCmd, "insecure", "i", false, "Skip TLS verification of the controller certificate")
	addFlag("cacert", rootCmd, "cacert", "", "", "Set the path to CA cert file (defaults to system CAs when blank)")
	addFlag("log-level", rootCmd, "log-level", "l", &logLevel, "Set the log level (trace|debug|info|warn|error|disabled)")
	addFlag("log-file", rootCmd, "log-file", "", "", "Also write logs to this file")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")
	initViper()
}

// initViper() sets the environment bindings and defaults that are not tied
// to a flag.
func initViper() {
	checkBindFlagError(viper.BindEnv("username", "UNIFI_USERNAME"))
	checkBindFlagError(viper.BindEnv("password", "UNIFI_PASSWORD"))
	viper.SetDefault("serve.listen", daemon.DefaultListen)
	viper.SetDefault("serve.id-header", daemon.DefaultIDHeader)
}

// addFlag() defines a persistent flag on cmd (a local one if cmd is not the
// root command) and binds it to the viper key.
func addFlag(key string, cmd *cobra.Command, name, short string, value any, usage string) {
	flags := cmd.Flags()
	if cmd == rootCmd {
		flags = cmd.PersistentFlags()
	}
	switch v := value.(type) {
	case string:
		flags.StringP(name, short, v, usage)
	case bool:
		flags.BoolP(name, short, v, usage)
	case int:
		flags.IntP(name, short, v, usage)
	case pflag.Value:
		flags.VarP(v, name, short, usage)
	default:
		panic(fmt.Sprintf("unsupported flag type %T for --%s", value, name))
	}
	boundFlags[key] = flags.Lookup(name)
	checkBindFlagError(viper.BindPFlag(key, boundFlags[key]))
}

func checkBindFlagError(err error) {
	if err != nil {
		log.Error().Err(err).Msg("failed to bind cobra/viper flag")
	}
}

// initWithConfig() sets up logging and, when --config-file is given, loads
// the device map and merges the file's ambient settings into viper.
func initWithConfig(cmd *cobra.Command, args []string) error {
	if err := initLogging(); err != nil {
		return err
	}
	path := viper.GetString("config-file")
	if path == "" {
		return nil
	}
	loaded, err := powerunifi.LoadConfig(path)
	if err != nil {
		return err
	}
	cfg = loaded
	// the config file may have changed the log settings
	return initLogging()
}

// initLogging() only sets up logging. Commands that do not need the device
// map use it as their PersistentPreRunE.
func initLogging() error {
	var level logger.LogLevel
	if err := level.Set(viper.GetString("log-level")); err != nil {
		return err
	}
	return logger.InitWithLogLevel(level, viper.GetString("log-file"))
}

func requireConfig() (*config.Config, error) {
	if cfg == nil {
		return nil, &config.ConfigError{Err: fmt.Errorf("no config file given, set one with --config-file")}
	}
	return cfg, nil
}

// controllerOptions() builds the client options shared by every command
// that talks to the controller.
func controllerOptions() []unifi.Option {
	timeout := mathutil.Clamp(viper.GetInt("timeout"), minTimeout, maxTimeout)
	return []unifi.Option{
		unifi.WithTimeout(time.Duration(timeout) * time.Second),
		unifi.WithInsecure(viper.GetBool("insecure")),
		unifi.WithCACert(viper.GetString("cacert")),
	}
}
