package secrets

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// MasterKeyEnv names the environment variable holding the hex encoded
// master key for the local store.
const MasterKeyEnv = "MASTER_KEY"

// LocalSecretStore keeps secrets encrypted in a JSON file. Each secret is
// sealed with AES-GCM under a key derived from the master key and its ID.
type LocalSecretStore struct {
	mu        sync.RWMutex
	masterKey []byte
	filename  string
	Secrets   map[string]string `json:"secrets"`
}

func NewLocalSecretStore(masterKeyHex, filename string, create bool) (*LocalSecretStore, error) {
	masterKey, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("unable to decode master key from hex: %w", err)
	}
	if len(masterKey) == 0 {
		return nil, fmt.Errorf("master key is empty")
	}

	secrets := make(map[string]string)
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		if !create {
			return nil, fmt.Errorf("file %s does not exist", filename)
		}
		if err := SaveSecrets(filename, secrets); err != nil {
			return nil, fmt.Errorf("unable to create file %s: %w", filename, err)
		}
	} else if secrets, err = loadSecrets(filename); err != nil {
		return nil, fmt.Errorf("unable to load secrets from file: %w", err)
	}

	return &LocalSecretStore{
		masterKey: masterKey,
		filename:  filename,
		Secrets:   secrets,
	}, nil
}

// GenerateMasterKey() creates a 32-byte random key and returns it as a hex
// string.
func GenerateMasterKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}

func (l *LocalSecretStore) GetSecretByID(secretID string) (string, error) {
	l.mu.RLock()
	encrypted, exists := l.Secrets[secretID]
	l.mu.RUnlock()
	if !exists {
		return "", fmt.Errorf("no secret found for %s", secretID)
	}

	plaintext, err := decryptAESGCM(deriveAESKey(l.masterKey, secretID), encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret for %s: %w", secretID, err)
	}
	return plaintext, nil
}

// StoreSecretByID() encrypts the secret and writes the whole store back to
// its file.
func (l *LocalSecretStore) StoreSecretByID(secretID, secret string) error {
	encrypted, err := encryptAESGCM(deriveAESKey(l.masterKey, secretID), []byte(secret))
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.Secrets[secretID] = encrypted
	return SaveSecrets(l.filename, l.Secrets)
}

// ListSecrets() returns a copy of the stored IDs mapped to their encrypted
// values.
func (l *LocalSecretStore) ListSecrets() (map[string]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	secretsCopy := make(map[string]string, len(l.Secrets))
	for key, value := range l.Secrets {
		secretsCopy[key] = value
	}
	return secretsCopy, nil
}

// RemoveSecretByID() deletes the secret and saves the store.
func (l *LocalSecretStore) RemoveSecretByID(secretID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.Secrets[secretID]; !ok {
		return fmt.Errorf("no secret found for %s", secretID)
	}
	delete(l.Secrets, secretID)
	return SaveSecrets(l.filename, l.Secrets)
}

// OpenStore() opens the local store at filename, creating it if needed,
// with the master key taken from MASTER_KEY.
func OpenStore(filename string) (*LocalSecretStore, error) {
	if filename == "" {
		return nil, fmt.Errorf("path to secret store required")
	}

	masterKey := os.Getenv(MasterKeyEnv)
	if masterKey == "" {
		return nil, fmt.Errorf("%s environment variable not set", MasterKeyEnv)
	}

	store, err := NewLocalSecretStore(masterKey, filename, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open local secret store: %w", err)
	}
	return store, nil
}

// SaveSecrets() writes the encrypted secrets to jsonFile. The file is only
// readable by its owner.
func SaveSecrets(jsonFile string, store map[string]string) error {
	file, err := os.OpenFile(jsonFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(store)
}

func loadSecrets(jsonFile string) (map[string]string, error) {
	file, err := os.Open(jsonFile)
	if err != nil {
		return nil, fmt.Errorf("unable to open secret file %s: %w", jsonFile, err)
	}
	defer file.Close()

	store := make(map[string]string)
	if err := json.NewDecoder(file).Decode(&store); err != nil {
		return nil, fmt.Errorf("unable to decode secret file %s: %w", jsonFile, err)
	}
	return store, nil
}
