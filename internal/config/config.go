// Package config loads the device map that ties MaaS machines to UniFi
// switch ports.
//
// The file is TOML:
//
//	url = "https://unifi.local:8443"
//
//	[[devices]]
//	mac = "aa:bb:cc:dd:ee:ff"
//	machines = [ { maas_id = "abc123", port_id = 2 } ]
//
// Keys that are not part of the device map (credentials, log settings,
// daemon settings) may live in the same file; they are read through viper
// by the cmd package and ignored here.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSite = "default"

	ControllerSelfHosted = "self-hosted"
	ControllerUnifiOS    = "unifi-os"
)

type Config struct {
	URL        string   `toml:"url" json:"url" yaml:"url"`
	Site       string   `toml:"site,omitempty" json:"site,omitempty" yaml:"site,omitempty"`
	Controller string   `toml:"controller,omitempty" json:"controller,omitempty" yaml:"controller,omitempty"`
	Devices    []Device `toml:"devices" json:"devices" yaml:"devices"`
}

type Device struct {
	MAC      string    `toml:"mac" json:"mac" yaml:"mac"`
	Machines []Machine `toml:"machines" json:"machines" yaml:"machines"`
}

type Machine struct {
	MaasID string `toml:"maas_id" json:"maas_id" yaml:"maas_id"`
	PortID int    `toml:"port_id" json:"port_id" yaml:"port_id"`
}

// document mirrors Config with pointers for the keys that must be present
// even when empty, so a missing or misspelled key is not read as an empty
// list or a zero port.
type document struct {
	URL        string            `toml:"url"`
	Site       string            `toml:"site"`
	Controller string            `toml:"controller"`
	Devices    *[]deviceDocument `toml:"devices"`
}

type deviceDocument struct {
	MAC      string             `toml:"mac"`
	Machines *[]machineDocument `toml:"machines"`
}

type machineDocument struct {
	MaasID string `toml:"maas_id"`
	PortID *int   `toml:"port_id"`
}

// config() converts the document and reports the first required key that
// is missing, if any.
func (d *document) config() (*Config, error) {
	var missing error
	missingField := func(field string) {
		if missing == nil {
			missing = &ConfigError{Field: field, Err: errors.New("required field is missing")}
		}
	}

	cfg := &Config{URL: d.URL, Site: d.Site, Controller: d.Controller}
	if d.Devices == nil {
		missingField("devices")
		return cfg, missing
	}
	cfg.Devices = make([]Device, 0, len(*d.Devices))
	for i, dd := range *d.Devices {
		dev := Device{MAC: dd.MAC}
		if dd.Machines == nil {
			missingField(fmt.Sprintf("devices[%d].machines", i))
		} else {
			dev.Machines = make([]Machine, 0, len(*dd.Machines))
			for j, md := range *dd.Machines {
				m := Machine{MaasID: md.MaasID}
				if md.PortID == nil {
					missingField(fmt.Sprintf("devices[%d].machines[%d].port_id", i, j))
				} else {
					m.PortID = *md.PortID
				}
				dev.Machines = append(dev.Machines, m)
			}
		}
		cfg.Devices = append(cfg.Devices, dev)
	}
	return cfg, missing
}

// Load() reads and validates the config file at path.
//
// Every failure (missing file, bad syntax, wrong types, failed validation)
// is returned as a *ConfigError.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, &ConfigError{Err: errors.New("no config file provided")}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("failed to read config file: %w", err)}
	}
	cfg, err := Parse(data)
	if err != nil {
		var cerr *ConfigError
		if errors.As(err, &cerr) {
			cerr.Path = path
			return nil, cerr
		}
		return nil, &ConfigError{Path: path, Err: err}
	}
	for _, id := range cfg.Duplicates() {
		log.Warn().Str("maas_id", id).Str("path", path).Msg("machine is bound more than once; the first binding in file order is used")
	}
	return cfg, nil
}

// Parse() decodes a TOML document into a Config, fills in defaults and
// validates it.
func Parse(data []byte) (*Config, error) {
	var doc document
	dec := toml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, &ConfigError{Err: fmt.Errorf("invalid TOML at line %d, column %d: %w", row, col, err)}
		}
		return nil, &ConfigError{Err: fmt.Errorf("failed to decode config: %w", err)}
	}
	cfg, missing := doc.config()
	cfg.setDefaults()
	if err := cfg.validateController(); err != nil {
		return nil, err
	}
	if missing != nil {
		return nil, missing
	}
	if err := cfg.validateDevices(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal() encodes the config back into TOML. Parsing the output yields
// an equal Config.
func Marshal(cfg *Config) ([]byte, error) {
	if cfg == nil {
		return nil, errors.New("no config to marshal")
	}
	b, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return b, nil
}

func (c *Config) setDefaults() {
	if c.Site == "" {
		c.Site = DefaultSite
	}
	if c.Controller == "" {
		c.Controller = ControllerSelfHosted
	}
}

// Validate() checks the decoded config and normalizes device MACs to the
// lower-case colon form used by the controller. It stops at the first
// violation.
func (c *Config) Validate() error {
	if err := c.validateController(); err != nil {
		return err
	}
	return c.validateDevices()
}

func (c *Config) validateController() error {
	if c.URL == "" {
		return &ConfigError{Field: "url", Err: errors.New("required field is missing")}
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return &ConfigError{Field: "url", Err: fmt.Errorf("failed to parse URL: %w", err)}
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ConfigError{Field: "url", Err: fmt.Errorf("%q is not an absolute http(s) URL", c.URL)}
	}

	switch c.Controller {
	case ControllerSelfHosted, ControllerUnifiOS:
	default:
		return &ConfigError{Field: "controller", Err: fmt.Errorf("unknown controller type %q (expected %s or %s)", c.Controller, ControllerSelfHosted, ControllerUnifiOS)}
	}
	return nil
}

func (c *Config) validateDevices() error {
	macs := make(map[string]int, len(c.Devices))
	for i := range c.Devices {
		dev := &c.Devices[i]
		field := fmt.Sprintf("devices[%d].mac", i)
		if dev.MAC == "" {
			return &ConfigError{Field: field, Err: errors.New("required field is missing")}
		}
		mac, err := NormalizeMAC(dev.MAC)
		if err != nil {
			return &ConfigError{Field: field, Err: err}
		}
		if first, dup := macs[mac]; dup {
			return &ConfigError{Field: field, Err: fmt.Errorf("MAC %s is already used by devices[%d]", mac, first)}
		}
		macs[mac] = i
		dev.MAC = mac

		ports := make(map[int]string, len(dev.Machines))
		for j, m := range dev.Machines {
			if m.MaasID == "" {
				return &ConfigError{Field: fmt.Sprintf("devices[%d].machines[%d].maas_id", i, j), Err: errors.New("required field is missing")}
			}
			field := fmt.Sprintf("devices[%d].machines[%d].port_id", i, j)
			if m.PortID < 1 {
				return &ConfigError{Field: field, Err: fmt.Errorf("port must be a positive integer, got %d", m.PortID)}
			}
			if owner, dup := ports[m.PortID]; dup {
				return &ConfigError{Field: field, Err: fmt.Errorf("port %d on %s is already bound to %q", m.PortID, mac, owner)}
			}
			ports[m.PortID] = m.MaasID
		}
	}
	return nil
}

// NormalizeMAC() parses a 6-byte hardware address in any of the notations
// accepted by net.ParseMAC and returns it as lower-case, colon separated.
func NormalizeMAC(s string) (string, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid MAC address %q: %w", s, err)
	}
	if len(hw) != 6 {
		return "", fmt.Errorf("invalid MAC address %q: expected 6 bytes, got %d", s, len(hw))
	}
	return hw.String(), nil
}
