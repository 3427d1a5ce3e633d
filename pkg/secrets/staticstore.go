package secrets

import "errors"

// ErrReadOnly is returned when a store cannot be modified.
var ErrReadOnly = errors.New("static store is read-only")

// StaticStore serves the same credentials for every secret ID. It is used
// when a username and password are given on the command line.
type StaticStore struct {
	Username string
	Password string
}

func NewStaticStore(username, password string) *StaticStore {
	return &StaticStore{
		Username: username,
		Password: password,
	}
}

func (s *StaticStore) GetSecretByID(secretID string) (string, error) {
	return Credentials{Username: s.Username, Password: s.Password}.JSON(), nil
}

func (s *StaticStore) StoreSecretByID(secretID, secret string) error {
	return ErrReadOnly
}

func (s *StaticStore) ListSecrets() (map[string]string, error) {
	return map[string]string{
		"static_creds": Credentials{Username: s.Username, Password: s.Password}.JSON(),
	}, nil
}

func (s *StaticStore) RemoveSecretByID(secretID string) error {
	return ErrReadOnly
}
