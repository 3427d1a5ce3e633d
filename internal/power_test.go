package powerunifi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/OpenCHAMI/maas-power-unifi/internal/config"
	"github.com/OpenCHAMI/maas-power-unifi/pkg/unifi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
url = "https://unifi.local:8443"

[[devices]]
mac = "aa:bb:cc:dd:ee:ff"
machines = [
  { maas_id = "abc123", port_id = 2 },
  { maas_id = "def456", port_id = 7 },
]

[[devices]]
mac = "11:22:33:44:55:66"
machines = [ { maas_id = "abc123", port_id = 9 } ]
`

type call struct {
	Name   string
	MAC    string
	Port   int
	Action unifi.PowerAction
}

type fakeController struct {
	calls   []call
	authErr error
	setErr  error
	state   unifi.PortState
}

func (f *fakeController) Authenticate(_ context.Context, creds unifi.Credentials) error {
	f.calls = append(f.calls, call{Name: "authenticate"})
	return f.authErr
}

func (f *fakeController) SetPortPower(_ context.Context, mac string, port int, action unifi.PowerAction) error {
	f.calls = append(f.calls, call{Name: "set", MAC: mac, Port: port, Action: action})
	return f.setErr
}

func (f *fakeController) PortPower(_ context.Context, mac string, port int) (unifi.PortState, error) {
	f.calls = append(f.calls, call{Name: "get", MAC: mac, Port: port})
	return f.state, f.setErr
}

func (f *fakeController) Logout(context.Context) {
	f.calls = append(f.calls, call{Name: "logout"})
}

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)
	return cfg
}

var testCreds = unifi.Credentials{Username: "admin", Password: "secret"}

func TestSetMachinePower(t *testing.T) {
	cfg := loadTestConfig(t)
	for _, action := range unifi.Actions {
		t.Run(string(action), func(t *testing.T) {
			ctl := &fakeController{}
			err := SetMachinePower(context.Background(), cfg, ctl, PowerParams{
				MaasID:      "def456",
				Action:      action,
				Credentials: testCreds,
			})
			require.NoError(t, err)
			assert.Equal(t, []call{
				{Name: "authenticate"},
				{Name: "set", MAC: "aa:bb:cc:dd:ee:ff", Port: 7, Action: action},
				{Name: "logout"},
			}, ctl.calls)
		})
	}
}

func TestSetMachinePowerDuplicateUsesFirstBinding(t *testing.T) {
	cfg := loadTestConfig(t)
	ctl := &fakeController{}
	require.NoError(t, SetMachinePower(context.Background(), cfg, ctl, PowerParams{
		MaasID:      "abc123",
		Action:      unifi.ActionOff,
		Credentials: testCreds,
	}))
	require.Len(t, ctl.calls, 3)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", ctl.calls[1].MAC)
	assert.Equal(t, 2, ctl.calls[1].Port)
}

func TestSetMachinePowerUnknownMachine(t *testing.T) {
	cfg := loadTestConfig(t)
	ctl := &fakeController{}
	err := SetMachinePower(context.Background(), cfg, ctl, PowerParams{
		MaasID:      "nope",
		Action:      unifi.ActionOn,
		Credentials: testCreds,
	})

	var notFound *config.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nope", notFound.MaasID)
	assert.Empty(t, ctl.calls, "controller must not be contacted")
}

func TestSetMachinePowerUnknownAction(t *testing.T) {
	cfg := loadTestConfig(t)
	ctl := &fakeController{}
	err := SetMachinePower(context.Background(), cfg, ctl, PowerParams{
		MaasID: "abc123",
		Action: unifi.PowerAction("reboot"),
	})
	require.Error(t, err)
	assert.Empty(t, ctl.calls)
	assert.Equal(t, ExitFailure, ExitCode(err))
}

func TestSetMachinePowerAuthFailure(t *testing.T) {
	cfg := loadTestConfig(t)
	ctl := &fakeController{authErr: &unifi.AuthError{StatusCode: 400, Msg: "api.err.Invalid"}}
	err := SetMachinePower(context.Background(), cfg, ctl, PowerParams{
		MaasID:      "abc123",
		Action:      unifi.ActionOn,
		Credentials: testCreds,
	})

	var authErr *unifi.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, []call{{Name: "authenticate"}}, ctl.calls)
}

func TestSetMachinePowerLogsOutAfterFailure(t *testing.T) {
	cfg := loadTestConfig(t)
	ctl := &fakeController{setErr: &unifi.PortNotFoundError{MAC: "aa:bb:cc:dd:ee:ff", Port: 7}}
	err := SetMachinePower(context.Background(), cfg, ctl, PowerParams{
		MaasID:      "def456",
		Action:      unifi.ActionOn,
		Credentials: testCreds,
	})
	require.Error(t, err)
	assert.Equal(t, ExitDeviceNotFound, ExitCode(err))
	assert.Equal(t, "logout", ctl.calls[len(ctl.calls)-1].Name)
}

func TestGetMachinePower(t *testing.T) {
	cfg := loadTestConfig(t)
	ctl := &fakeController{state: unifi.PortOff}
	state, err := GetMachinePower(context.Background(), cfg, ctl, "def456", testCreds)
	require.NoError(t, err)
	assert.Equal(t, unifi.PortOff, state)
	assert.Equal(t, []call{
		{Name: "authenticate"},
		{Name: "get", MAC: "aa:bb:cc:dd:ee:ff", Port: 7},
		{Name: "logout"},
	}, ctl.calls)

	_, err = GetMachinePower(context.Background(), cfg, &fakeController{}, "missing", testCreds)
	assert.Equal(t, ExitNotFound, ExitCode(err))
}

func TestNewController(t *testing.T) {
	cfg := loadTestConfig(t)
	ctl, err := NewController(cfg)
	require.NoError(t, err)
	assert.NotNil(t, ctl)

	cfg.Controller = "cloud"
	_, err = NewController(cfg)
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{errors.New("boom"), ExitFailure},
		{&config.ConfigError{Path: "x.toml", Err: errors.New("bad")}, ExitConfig},
		{&config.NotFoundError{MaasID: "a"}, ExitNotFound},
		{&unifi.AuthError{Msg: "denied"}, ExitAuth},
		{&unifi.NetworkError{Op: "log in", Err: &net.OpError{Op: "dial", Err: errors.New("refused")}}, ExitNetwork},
		{&unifi.ControllerError{Op: "list devices", StatusCode: 500}, ExitController},
		{&unifi.DeviceNotFoundError{MAC: "aa:bb:cc:dd:ee:ff"}, ExitDeviceNotFound},
		{&unifi.PortNotFoundError{MAC: "aa:bb:cc:dd:ee:ff", Port: 3}, ExitDeviceNotFound},
		{fmt.Errorf("wrapped: %w", &unifi.AuthError{Msg: "denied"}), ExitAuth},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err), "%v", tt.err)
	}
}
