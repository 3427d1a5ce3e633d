package cmd

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/OpenCHAMI/maas-power-unifi/internal/util"
	"github.com/OpenCHAMI/maas-power-unifi/pkg/secrets"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var (
	secretsStoreFormat    string
	secretsStoreInputFile string
)

var secretsCmd = &cobra.Command{
	Use: "secrets",
	Example: `  // generate new key and set environment variable
  export MASTER_KEY=$(maas-power-unifi secrets generatekey)

  // store credentials for a controller
  maas-power-unifi secrets store https://unifi.local:8443 admin:secret

  // store fallback credentials for any controller
  maas-power-unifi secrets store default admin:secret

  // retrieve and list credentials from a specific secrets file
  maas-power-unifi --secrets-file /etc/maas-power-unifi/secrets.json secrets retrieve https://unifi.local:8443
  maas-power-unifi --secrets-file /etc/maas-power-unifi/secrets.json secrets list`,
	Short: "Manage controller credentials",
	Long: "Manage encrypted UniFi controller credentials, keyed by controller URL or 'default'.\n" +
		"This requires generating a key and setting the 'MASTER_KEY' environment variable for the secrets store.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
}

var secretsGenerateKeyCmd = &cobra.Command{
	Use:   "generatekey",
	Args:  cobra.NoArgs,
	Short: "Generates a new 32-byte master key (in hex).",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := secrets.GenerateMasterKey()
		if err != nil {
			return fmt.Errorf("failed to generate master key: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

var secretsStoreCmd = &cobra.Command{
	Use:   "store <controller-url|default> [username:password|json|base64]",
	Args:  cobra.RangeArgs(1, 2),
	Short: "Stores credentials for a controller.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			secretID    = util.SecretID(args[0])
			secretValue string
		)
		if len(args) > 1 {
			if secretsStoreInputFile != "" {
				return fmt.Errorf("cannot use -f/--input-file with a positional value")
			}
			secretValue = args[1]
		} else if secretsStoreInputFile != "" {
			b, err := os.ReadFile(secretsStoreInputFile)
			if err != nil {
				return fmt.Errorf("failed to read input file: %w", err)
			}
			secretValue = strings.TrimSpace(string(b))
		} else {
			return fmt.Errorf("no input value or file")
		}

		creds, err := parseSecretValue(secretValue, secretsStoreFormat)
		if err != nil {
			return err
		}

		store, err := secrets.OpenStore(viper.GetString("secrets.file"))
		if err != nil {
			return err
		}
		if err := store.StoreSecretByID(secretID, creds.JSON()); err != nil {
			return fmt.Errorf("failed to store secret: %w", err)
		}
		log.Info().Str("id", secretID).Msg("stored credentials")
		return nil
	},
}

// parseSecretValue() reads credentials given as username:password (basic),
// a JSON object (json) or a base64 encoded JSON object (base64).
func parseSecretValue(value, inputFormat string) (secrets.Credentials, error) {
	switch inputFormat {
	case "basic":
		username, password, found := strings.Cut(value, ":")
		if !found {
			return secrets.Credentials{}, fmt.Errorf("expected credentials in username:password format")
		}
		creds := secrets.Credentials{Username: username, Password: password}
		return secrets.ParseCredentials(creds.JSON())
	case "base64":
		decoded, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return secrets.Credentials{}, fmt.Errorf("failed to decode base64 value: %w", err)
		}
		return secrets.ParseCredentials(string(decoded))
	case "json":
		return secrets.ParseCredentials(value)
	}
	return secrets.Credentials{}, fmt.Errorf("unknown input format %q (must be basic, json or base64)", inputFormat)
}

var secretsRetrieveCmd = &cobra.Command{
	Use:   "retrieve <controller-url|default>",
	Args:  cobra.ExactArgs(1),
	Short: "Prints the credentials stored for a controller.",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := secrets.OpenStore(viper.GetString("secrets.file"))
		if err != nil {
			return err
		}
		secretID := util.SecretID(args[0])
		secretValue, err := store.GetSecretByID(secretID)
		if err != nil {
			return fmt.Errorf("failed to retrieve secret: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", secretID, secretValue)
		return nil
	},
}

var secretsListCmd = &cobra.Command{
	Use:   "list",
	Args:  cobra.NoArgs,
	Short: "Lists the stored secret IDs and their encrypted values.",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := secrets.OpenStore(viper.GetString("secrets.file"))
		if err != nil {
			return err
		}
		stored, err := store.ListSecrets()
		if err != nil {
			return fmt.Errorf("failed to list secrets: %w", err)
		}

		ids := maps.Keys(stored)
		slices.Sort(ids)
		for _, id := range ids {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", id, stored[id])
		}
		return nil
	},
}

var secretsRemoveCmd = &cobra.Command{
	Use:   "remove <controller-url|default>...",
	Args:  cobra.MinimumNArgs(1),
	Short: "Remove secrets by IDs from secret store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := secrets.OpenStore(viper.GetString("secrets.file"))
		if err != nil {
			return err
		}
		for _, id := range args {
			if err := store.RemoveSecretByID(util.SecretID(id)); err != nil {
				return fmt.Errorf("failed to remove secret: %w", err)
			}
		}
		return nil
	},
}

func init() {
	secretsStoreCmd.Flags().StringVarP(&secretsStoreFormat, "format", "F", "basic", "Set the input format (basic|json|base64)")
	secretsStoreCmd.Flags().StringVarP(&secretsStoreInputFile, "input-file", "f", "", "Read the value from this file")

	secretsCmd.AddCommand(secretsGenerateKeyCmd)
	secretsCmd.AddCommand(secretsStoreCmd)
	secretsCmd.AddCommand(secretsRetrieveCmd)
	secretsCmd.AddCommand(secretsListCmd)
	secretsCmd.AddCommand(secretsRemoveCmd)

	rootCmd.AddCommand(secretsCmd)
}
