// Package secrets stores controller credentials. Secrets are keyed by the
// controller URL they belong to, with DefaultKey used as a fallback for
// any controller without its own entry.
package secrets

import (
	"encoding/json"
	"fmt"
)

// DefaultKey is the secret ID used when no entry exists for a controller.
const DefaultKey = "default"

type SecretStore interface {
	GetSecretByID(secretID string) (string, error)
	StoreSecretByID(secretID, secret string) error
	ListSecrets() (map[string]string, error)
	RemoveSecretByID(secretID string) error
}

// Credentials is the JSON shape of a stored secret.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ParseCredentials() decodes a stored secret and checks that both fields
// are present.
func ParseCredentials(secret string) (Credentials, error) {
	var creds Credentials
	if err := json.Unmarshal([]byte(secret), &creds); err != nil {
		return creds, fmt.Errorf("failed to decode credentials: %w", err)
	}
	if creds.Username == "" || creds.Password == "" {
		return creds, fmt.Errorf("credentials must have both a username and a password")
	}
	return creds, nil
}

// GetCredentials() returns the credentials stored under id, falling back to
// the DefaultKey entry when id has none.
func GetCredentials(store SecretStore, id string) (Credentials, error) {
	secret, err := store.GetSecretByID(id)
	if err != nil && id != DefaultKey {
		secret, err = store.GetSecretByID(DefaultKey)
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("no credentials stored for %s or %s", id, DefaultKey)
	}
	return ParseCredentials(secret)
}

// JSON() encodes the credentials in the form they are stored.
func (c Credentials) JSON() string {
	b, _ := json.Marshal(c)
	return string(b)
}
