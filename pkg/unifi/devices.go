package unifi

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// Devices() lists the devices adopted on the client's site.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	var devices []Device
	if err := c.do(ctx, "list devices", http.MethodGet, c.siteEndpoint("stat", "device"), nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// DeviceByMAC() returns the device whose MAC matches mac, ignoring case
// and separator style.
func (c *Client) DeviceByMAC(ctx context.Context, mac string) (*Device, error) {
	devices, err := c.Devices(ctx)
	if err != nil {
		return nil, err
	}
	want := canonicalMAC(mac)
	for i := range devices {
		if canonicalMAC(devices[i].MAC) == want {
			return &devices[i], nil
		}
	}
	return nil, &DeviceNotFoundError{MAC: mac}
}

func canonicalMAC(mac string) string {
	if hw, err := net.ParseMAC(strings.TrimSpace(mac)); err == nil {
		return hw.String()
	}
	return strings.ToLower(strings.TrimSpace(mac))
}
