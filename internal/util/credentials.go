package util

import (
	"fmt"

	"github.com/OpenCHAMI/maas-power-unifi/internal/url"
	"github.com/OpenCHAMI/maas-power-unifi/pkg/secrets"
	"github.com/OpenCHAMI/maas-power-unifi/pkg/unifi"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// BuildSecretStore() returns the store credentials are read from. When both
// --username and --password are set they are served by a static store,
// otherwise the encrypted store at secrets.file is opened. The store is
// never created here.
func BuildSecretStore() (secrets.SecretStore, error) {
	username, password := viper.GetString("username"), viper.GetString("password")
	if username != "" && password != "" {
		log.Debug().Msg("--username and --password specified, using them for controller credentials")
		return secrets.NewStaticStore(username, password), nil
	}

	secretsFile := viper.GetString("secrets.file")
	log.Debug().Str("path", secretsFile).Msg("one or both of --username and --password not set, using secret store")
	if _, exists := PathExists(secretsFile); !exists || secretsFile == "" {
		return nil, fmt.Errorf("secret store %q does not exist", secretsFile)
	}
	store, err := secrets.OpenStore(secretsFile)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// BuildCredentials() resolves the login for the controller at
// controllerURL. Explicit --username and --password (or UNIFI_USERNAME and
// UNIFI_PASSWORD) win over the secret store, which is searched for the
// controller URL first and then for the default entry.
//
// Missing credentials are not an error here. The controller client rejects
// an empty login with an AuthError before sending anything.
func BuildCredentials(controllerURL string) unifi.Credentials {
	creds := unifi.Credentials{
		Username: viper.GetString("username"),
		Password: viper.GetString("password"),
	}
	if creds.Username != "" && creds.Password != "" {
		return creds
	}

	store, err := BuildSecretStore()
	if err != nil {
		log.Warn().Err(err).Msg("failed to open secret store, credentials will be blank unless set by flags")
		return creds
	}

	id := SecretID(controllerURL)
	stored, err := secrets.GetCredentials(store, id)
	if err != nil {
		log.Warn().Str("id", id).Err(err).Msg("no stored credentials found")
		return creds
	}
	log.Debug().Str("id", id).Msg("using stored credentials")

	// a flag passed on its own still overrides the stored half
	if creds.Username == "" {
		creds.Username = stored.Username
	}
	if creds.Password == "" {
		creds.Password = stored.Password
	}
	return creds
}

// SecretID() normalizes a controller URL into the key used in the secret
// store. Anything that is not a URL is used as is.
func SecretID(controllerURL string) string {
	if id, err := url.Sanitize(controllerURL); err == nil {
		return id
	}
	return controllerURL
}
