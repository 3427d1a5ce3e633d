package unifi

import (
	"errors"
	"fmt"
	"net"
)

// AuthError means the controller rejected the credentials or the session.
type AuthError struct {
	StatusCode int
	Msg        string
}

func (e *AuthError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("authentication failed: %s", e.Msg)
	}
	return fmt.Sprintf("authentication failed (HTTP %d): %s", e.StatusCode, e.Msg)
}

// NetworkError wraps a transport failure reaching the controller.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("failed to %s (%s): %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Timeout() reports whether the failure was a timeout.
func (e *NetworkError) Timeout() bool {
	var nerr net.Error
	return errors.As(e.Err, &nerr) && nerr.Timeout()
}

// ControllerError is a failure response from a reachable controller.
type ControllerError struct {
	Op         string
	StatusCode int
	Msg        string
}

func (e *ControllerError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("failed to %s: controller returned HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("failed to %s: controller returned HTTP %d: %s", e.Op, e.StatusCode, e.Msg)
}

// DeviceNotFoundError means the controller does not manage a device with
// the given MAC.
type DeviceNotFoundError struct {
	MAC string
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("device with mac address %s was not found on the controller", e.MAC)
}

// PortNotFoundError means the device exists but has no such port.
type PortNotFoundError struct {
	MAC  string
	Port int
}

func (e *PortNotFoundError) Error() string {
	return fmt.Sprintf("device %s has no port %d", e.MAC, e.Port)
}
