package config

import "fmt"

// ConfigError is returned for any problem reading or validating the
// config file.
type ConfigError struct {
	Path  string
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	msg := "invalid config"
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Field != "" {
		msg += ": " + e.Field
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NotFoundError means no device port is bound to the requested MaaS id.
type NotFoundError struct {
	MaasID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no device port is bound to machine %q", e.MaasID)
}
