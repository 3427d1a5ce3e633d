package config

// Binding is a resolved machine: the UniFi device that powers it and the
// port it is plugged into.
type Binding struct {
	MaasID string `json:"maas_id" yaml:"maas_id" toml:"maas_id"`
	MAC    string `json:"mac" yaml:"mac" toml:"mac"`
	Port   int    `json:"port" yaml:"port" toml:"port"`
}

// Resolve() returns the binding for maasID. Devices and machines are
// scanned in file order and the first match wins, so a machine that was
// accidentally bound twice always resolves to the same port.
func (c *Config) Resolve(maasID string) (Binding, error) {
	for _, dev := range c.Devices {
		for _, m := range dev.Machines {
			if m.MaasID == maasID {
				return Binding{MaasID: m.MaasID, MAC: dev.MAC, Port: m.PortID}, nil
			}
		}
	}
	return Binding{}, &NotFoundError{MaasID: maasID}
}

// Bindings() flattens the device map in file order.
func (c *Config) Bindings() []Binding {
	var bindings []Binding
	for _, dev := range c.Devices {
		for _, m := range dev.Machines {
			bindings = append(bindings, Binding{MaasID: m.MaasID, MAC: dev.MAC, Port: m.PortID})
		}
	}
	return bindings
}

// Duplicates() returns the MaaS ids bound more than once, in the order
// their second binding appears.
func (c *Config) Duplicates() []string {
	var (
		seen = map[string]int{}
		dups []string
	)
	for _, b := range c.Bindings() {
		seen[b.MaasID]++
		if seen[b.MaasID] == 2 {
			dups = append(dups, b.MaasID)
		}
	}
	return dups
}
