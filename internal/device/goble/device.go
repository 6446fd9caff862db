package goble

import (
	"context"
	"strings"
	"sync"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"

	"github.com/bigben3333/toptoilet-integration/internal/device"
)

const (
	gapServiceUUID     = "1800"
	deviceNameCharUUID = "2a00"
)

// BLEDevice is a connectable peripheral backed by go-ble. It implements
// device.Device.
type BLEDevice struct {
	address string
	logger  *logrus.Logger

	mu       sync.RWMutex
	name     string
	conn     *BLEConnection
	handlers []func()
}

// NewDevice creates a device for the given address. The name is resolved from
// the GAP Device Name characteristic after connecting, when available.
func NewDevice(address string, logger *logrus.Logger) *BLEDevice {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	d := &BLEDevice{
		address: address,
		logger:  logger,
		conn:    newBLEConnection(logger),
	}
	d.conn.onRemoteDisconnect = d.fireDisconnected
	return d
}

// NewDeviceFromAdvertisement creates a device carrying the advertised name.
func NewDeviceFromAdvertisement(adv Advertisement, logger *logrus.Logger) *BLEDevice {
	d := NewDevice(adv.Address, logger)
	d.name = adv.LocalName
	return d
}

func (d *BLEDevice) Address() string {
	return d.address
}

// Name returns the advertised or GAP name, falling back to the address.
func (d *BLEDevice) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.name != "" {
		return d.name
	}
	return d.address
}

// Connect establishes the link and discovers the GATT profile. Passing nil
// opts uses the defaults.
func (d *BLEDevice) Connect(ctx context.Context, opts *device.ConnectOptions) error {
	if opts == nil {
		opts = &device.ConnectOptions{}
	}
	if opts.ConnectTimeout <= 0 {
		defaults.SetDefaults(opts)
	}

	if err := d.conn.Connect(ctx, d.address, opts); err != nil {
		return err
	}

	d.resolveName()
	return nil
}

// resolveName reads the GAP Device Name characteristic. Best effort: many
// peripherals, the toilet included, omit or empty it.
func (d *BLEDevice) resolveName() {
	d.mu.RLock()
	known := d.name != ""
	d.mu.RUnlock()
	if known {
		return
	}

	char, err := d.conn.GetCharacteristic(gapServiceUUID, deviceNameCharUUID)
	if err != nil {
		return
	}
	bleChar, ok := char.(*BLECharacteristic)
	if !ok || !bleChar.caps.Has(device.CapRead) {
		return
	}
	data, err := bleChar.Read(DefaultReadTimeout)
	if err != nil {
		d.logger.WithField("error", err).Debug("Failed to read GAP device name")
		return
	}
	name := strings.TrimRight(string(data), "\x00")
	if name == "" {
		return
	}
	d.mu.Lock()
	d.name = name
	d.mu.Unlock()
	d.logger.WithField("name", name).Debug("Resolved device name from GAP")
}

func (d *BLEDevice) Disconnect() error {
	return d.conn.Disconnect()
}

func (d *BLEDevice) IsConnected() bool {
	return d.conn.IsConnected()
}

// Connection returns the live connection, or nil when disconnected.
func (d *BLEDevice) Connection() device.Connection {
	if !d.conn.IsConnected() {
		return nil
	}
	return d.conn
}

// OnDisconnected registers fn to run after the transport reports that the
// peer dropped the link. Handlers run in registration order.
func (d *BLEDevice) OnDisconnected(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, fn)
}

// fireDisconnected runs the registered handlers. The connection has already
// flipped to disconnected when this is called, and the transport guarantees
// at most one call per established link.
func (d *BLEDevice) fireDisconnected() {
	d.mu.RLock()
	handlers := make([]func(), len(d.handlers))
	copy(handlers, d.handlers)
	d.mu.RUnlock()

	d.logger.WithField("address", d.address).Warn("Device disconnected by peer")
	for _, fn := range handlers {
		fn()
	}
}
