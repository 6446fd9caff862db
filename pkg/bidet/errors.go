package bidet

import "errors"

// Sentinel errors for the command path. All are matchable with errors.Is;
// wrapped variants carry the transport cause.
var (
	// ErrDeviceNotFound means the address did not resolve to a reachable
	// peripheral.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrConnectionFailed means the link could not be established after all
	// retry attempts.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrDiscoveryFailed means the GATT profile could not be (re)discovered on
	// an otherwise live link.
	ErrDiscoveryFailed = errors.New("service discovery failed")

	// ErrNoWritableCharacteristic means discovery finished but exposed nothing
	// a command frame could be written to.
	ErrNoWritableCharacteristic = errors.New("no writable characteristic")

	// ErrCommandExhausted means every candidate characteristic rejected the
	// frame. The connection itself stays usable.
	ErrCommandExhausted = errors.New("all candidate characteristics rejected the command")
)
