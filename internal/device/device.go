// Package device defines the transport-facing abstractions the coordinator
// is written against: a connectable BLE peripheral, its live connection, and
// the discovered GATT services and characteristics. The go-ble backed
// implementation lives in the goble subpackage; tests substitute in-memory
// fakes.
package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NotFoundError reports a missing BLE resource during lookup.
type NotFoundError struct {
	Resource string   // "service" or "characteristic"
	UUIDs    []string // [serviceUUID] or [serviceUUID, charUUID]
}

func (e *NotFoundError) Error() string {
	switch len(e.UUIDs) {
	case 0:
		return fmt.Sprintf("%s not found", e.Resource)
	case 1:
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	default:
		return fmt.Sprintf("%s %q not found in service %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], e.UUIDs[0])
	}
}

// ConnectionState classifies connection-related failures.
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	BluetoothOff     ConnectionState = "bluetooth_off"
)

// ConnectionError represents any connection-related problem.
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State.
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states.
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrBluetoothOff     = &ConnectionError{State: BluetoothOff}
)

// ErrTimeout is returned when a transport operation exceeds its deadline.
var ErrTimeout = errors.New("timeout")

// Capability is the typed capability set of a characteristic, built once
// during discovery from the GATT property bits.
type Capability uint8

const (
	CapRead Capability = 1 << iota
	CapWrite
	CapWriteNoResponse
	CapNotify
	CapIndicate
)

// Has reports whether all capabilities in mask are present.
func (c Capability) Has(mask Capability) bool {
	return c&mask == mask
}

// Writable reports whether the characteristic accepts writes in any mode.
func (c Capability) Writable() bool {
	return c&(CapWrite|CapWriteNoResponse) != 0
}

func (c Capability) String() string {
	names := []struct {
		cap  Capability
		name string
	}{
		{CapRead, "read"},
		{CapWrite, "write"},
		{CapWriteNoResponse, "write-no-response"},
		{CapNotify, "notify"},
		{CapIndicate, "indicate"},
	}
	var parts []string
	for _, n := range names {
		if c&n.cap != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// Characteristic is a discovered GATT characteristic with live operations.
type Characteristic interface {
	// UUID returns the normalized characteristic UUID (lowercase, no dashes,
	// 16-bit short form for Bluetooth base UUIDs).
	UUID() string
	// KnownName returns a human-readable name, or "" if unknown.
	KnownName() string
	// Capabilities returns the typed capability set.
	Capabilities() Capability
	// Write sends data to the characteristic. withResponse selects an
	// acknowledged write; timeout bounds the whole operation.
	Write(data []byte, withResponse bool, timeout time.Duration) error
	// Read fetches the characteristic's current value.
	Read(timeout time.Duration) ([]byte, error)
	// Subscribe registers a notification handler. fn receives a private copy
	// of each payload and may retain it.
	Subscribe(fn func(data []byte)) error
}

// Service is a discovered GATT service.
type Service interface {
	UUID() string
	KnownName() string
	// Characteristics returns the service's characteristics sorted by UUID.
	Characteristics() []Characteristic
}

// Connection is a live GATT session.
type Connection interface {
	// Services returns all discovered services sorted by UUID. Empty when
	// discovery has not completed.
	Services() []Service
	GetService(uuid string) (Service, error)
	GetCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// RefreshServices forces a service re-discovery on the live link.
	RefreshServices() error
	IsConnected() bool
}

// ConnectOptions configures connection establishment.
type ConnectOptions struct {
	ConnectTimeout time.Duration `default:"30s"`
}

// Device is a connectable BLE peripheral. One Device owns at most one live
// link at a time; all operations on it must be serialized by the caller.
type Device interface {
	// Address returns the stable device identifier (MAC on Linux,
	// CoreBluetooth UUID on macOS).
	Address() string
	// Name returns the advertised or GAP name, falling back to the address.
	Name() string
	Connect(ctx context.Context, opts *ConnectOptions) error
	Disconnect() error
	IsConnected() bool
	// Connection returns the live connection, or nil when disconnected.
	Connection() Connection
	// OnDisconnected registers fn to run when the transport reports that the
	// peer dropped the link. The handler fires at most once per established
	// link, after the device has been marked disconnected.
	OnDisconnected(fn func())
}
