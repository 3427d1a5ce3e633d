package powerunifi

import (
	"github.com/OpenCHAMI/maas-power-unifi/internal/config"
	"github.com/spf13/viper"
)

// LoadConfig() loads the device map from the TOML file at path and merges
// the same file into viper, so ambient settings such as log-level or
// secrets.file can be kept next to the devices. As with any viper setting,
// flags and environment variables take precedence over the file.
//
// There are intentionally no search paths, the path must be given.
func LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	viper.SetConfigFile(path)
	viper.SetConfigType("toml")
	if err := viper.MergeInConfig(); err != nil {
		return nil, &config.ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}
