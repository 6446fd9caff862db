package main

import (
	"errors"

	"github.com/bigben3333/toptoilet-integration/internal/device"
	"github.com/bigben3333/toptoilet-integration/pkg/bidet"
)

// FormatUserError turns internal errors into actionable messages for the
// terminal. Unknown errors pass through unchanged.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is turned off. Enable Bluetooth and try again."
	case errors.Is(err, bidet.ErrDeviceNotFound):
		return "Device not found. Check the address and make sure the unit is powered and in range."
	case errors.Is(err, bidet.ErrConnectionFailed):
		return "Could not connect to the device: " + err.Error()
	case errors.Is(err, bidet.ErrNoWritableCharacteristic):
		return "The device exposes no writable characteristic. Run 'toptoiletctl inspect <address>' to see its GATT layout."
	case errors.Is(err, bidet.ErrCommandExhausted):
		return "The device rejected the command on every candidate characteristic. Try the other variant (--legacy) or a probe frame (see 'toptoiletctl raw --list-probes')."
	default:
		return err.Error()
	}
}
