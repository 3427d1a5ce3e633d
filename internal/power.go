// Package powerunifi implements the core routines for the tool.
package powerunifi

import (
	"context"
	"errors"
	"fmt"

	"github.com/OpenCHAMI/maas-power-unifi/internal/config"
	"github.com/OpenCHAMI/maas-power-unifi/pkg/unifi"
	"github.com/rs/zerolog/log"
)

// Controller is the part of the UniFi client used by the power routines.
// *unifi.Client implements it.
type Controller interface {
	Authenticate(ctx context.Context, creds unifi.Credentials) error
	SetPortPower(ctx context.Context, mac string, port int, action unifi.PowerAction) error
	PortPower(ctx context.Context, mac string, port int) (unifi.PortState, error)
	Logout(ctx context.Context)
}

type PowerParams struct {
	MaasID      string
	Action      unifi.PowerAction
	Credentials unifi.Credentials
}

// NewController() builds a UniFi client for the controller described by
// cfg. The options are appended after the ones derived from the config.
func NewController(cfg *config.Config, opts ...unifi.Option) (*unifi.Client, error) {
	return unifi.New(cfg.URL, append([]unifi.Option{
		unifi.WithSite(cfg.Site),
		unifi.WithFlavor(unifi.Flavor(cfg.Controller)),
	}, opts...)...)
}

// SetMachinePower() resolves the machine to its switch port and applies the
// requested power action. The machine is resolved before anything is sent,
// so an unknown machine never reaches the controller.
//
// Returns nil if the controller acknowledged the action. Otherwise returns
// one of *config.NotFoundError, *unifi.AuthError, *unifi.NetworkError,
// *unifi.DeviceNotFoundError, *unifi.PortNotFoundError or
// *unifi.ControllerError.
func SetMachinePower(ctx context.Context, cfg *config.Config, ctl Controller, params PowerParams) error {
	binding, err := cfg.Resolve(params.MaasID)
	if err != nil {
		return err
	}
	switch params.Action {
	case unifi.ActionOn, unifi.ActionOff, unifi.ActionCycle:
	default:
		return fmt.Errorf("unknown power action %q", params.Action)
	}
	log.Debug().
		Str("maas_id", binding.MaasID).
		Str("mac", binding.MAC).
		Int("port", binding.Port).
		Str("action", string(params.Action)).
		Msg("resolved machine")

	if err := ctl.Authenticate(ctx, params.Credentials); err != nil {
		return err
	}
	defer ctl.Logout(ctx)

	return ctl.SetPortPower(ctx, binding.MAC, binding.Port, params.Action)
}

// GetMachinePower() resolves the machine and reads its port power state.
func GetMachinePower(ctx context.Context, cfg *config.Config, ctl Controller, maasID string, creds unifi.Credentials) (unifi.PortState, error) {
	binding, err := cfg.Resolve(maasID)
	if err != nil {
		return unifi.PortUnknown, err
	}
	if err := ctl.Authenticate(ctx, creds); err != nil {
		return unifi.PortUnknown, err
	}
	defer ctl.Logout(ctx)

	return ctl.PortPower(ctx, binding.MAC, binding.Port)
}

// Exit codes returned by the CLI.
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitConfig         = 2
	ExitNotFound       = 3
	ExitAuth           = 4
	ExitNetwork        = 5
	ExitController     = 6
	ExitDeviceNotFound = 7
)

// ExitCode() maps an error from any of the routines to the process exit
// code.
func ExitCode(err error) int {
	var (
		configErr  *config.ConfigError
		notFound   *config.NotFoundError
		authErr    *unifi.AuthError
		networkErr *unifi.NetworkError
		ctlErr     *unifi.ControllerError
		deviceErr  *unifi.DeviceNotFoundError
		portErr    *unifi.PortNotFoundError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &configErr):
		return ExitConfig
	case errors.As(err, &notFound):
		return ExitNotFound
	case errors.As(err, &authErr):
		return ExitAuth
	case errors.As(err, &networkErr):
		return ExitNetwork
	case errors.As(err, &ctlErr):
		return ExitController
	case errors.As(err, &deviceErr), errors.As(err, &portErr):
		return ExitDeviceNotFound
	}
	return ExitFailure
}
