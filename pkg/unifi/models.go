package unifi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Credentials are the username/password pair posted to the controller's
// login endpoint.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// PowerAction is a port power operation. It implements pflag.Value so it
// can be used directly as a CLI flag.
type PowerAction string

const (
	ActionOn    PowerAction = "on"
	ActionOff   PowerAction = "off"
	ActionCycle PowerAction = "cycle"
)

var Actions = []PowerAction{ActionOn, ActionOff, ActionCycle}

func (a PowerAction) String() string {
	return string(a)
}

func (a *PowerAction) Set(v string) error {
	action, err := ParsePowerAction(v)
	if err != nil {
		return err
	}
	*a = action
	return nil
}

func (a PowerAction) Type() string {
	return "PowerAction"
}

func ParsePowerAction(s string) (PowerAction, error) {
	switch PowerAction(strings.ToLower(strings.TrimSpace(s))) {
	case ActionOn:
		return ActionOn, nil
	case ActionOff:
		return ActionOff, nil
	case ActionCycle:
		return ActionCycle, nil
	}
	return "", fmt.Errorf("unknown power action %q (must be one of %v)", s, Actions)
}

// PoeMode is the value of a port's poe_mode on the controller.
type PoeMode string

const (
	PoeAuto        PoeMode = "auto"
	PoeOff         PoeMode = "off"
	PoePassive24   PoeMode = "pasv24"
	PoePassthrough PoeMode = "passthrough"
)

// PortState is the power state reported for a port.
type PortState string

const (
	PortOn      PortState = "on"
	PortOff     PortState = "off"
	PortUnknown PortState = "unknown"
)

type Meta struct {
	RC  string `json:"rc"`
	Msg string `json:"msg,omitempty"`
}

// response is the envelope wrapping every classic controller API reply.
type response struct {
	Meta Meta            `json:"meta"`
	Data json.RawMessage `json:"data"`
}

// Device is the subset of a stat/device entry needed to find a switch
// and drive its ports. PortOverrides are kept as raw objects so that
// settings this tool does not know about survive a write.
type Device struct {
	ID            string           `json:"_id"`
	MAC           string           `json:"mac"`
	Name          string           `json:"name,omitempty"`
	Model         string           `json:"model,omitempty"`
	Type          string           `json:"type,omitempty"`
	PortTable     []Port           `json:"port_table,omitempty"`
	PortOverrides []map[string]any `json:"port_overrides,omitempty"`
}

type Port struct {
	PortIdx   int     `json:"port_idx"`
	Name      string  `json:"name,omitempty"`
	Up        bool    `json:"up"`
	PortPoe   bool    `json:"port_poe"`
	PoeEnable bool    `json:"poe_enable"`
	PoeMode   PoeMode `json:"poe_mode,omitempty"`
	PoePower  string  `json:"poe_power,omitempty"`
}

// Port() returns the port_table entry for idx.
func (d *Device) Port(idx int) (Port, bool) {
	for _, p := range d.PortTable {
		if p.PortIdx == idx {
			return p, true
		}
	}
	return Port{}, false
}

// State() maps the port's PoE mode to a power state.
func (p Port) State() PortState {
	switch p.PoeMode {
	case "":
		return PortUnknown
	case PoeOff:
		return PortOff
	default:
		return PortOn
	}
}
