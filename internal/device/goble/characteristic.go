package goble

import (
	"time"

	"github.com/go-ble/ble"

	"github.com/bigben3333/toptoilet-integration/internal/device"
)

// BLECharacteristic is a discovered GATT characteristic bound to its live
// connection. It implements device.Characteristic.
type BLECharacteristic struct {
	uuid      string
	knownName string
	caps      device.Capability
	bleChar   *ble.Characteristic
	conn      *BLEConnection
}

func (c *BLECharacteristic) UUID() string {
	return c.uuid
}

func (c *BLECharacteristic) KnownName() string {
	return c.knownName
}

func (c *BLECharacteristic) Capabilities() device.Capability {
	return c.caps
}

// Write sends data to the characteristic, chunked to the transport's MTU.
func (c *BLECharacteristic) Write(data []byte, withResponse bool, timeout time.Duration) error {
	return c.conn.writeCharacteristic(c.bleChar, data, withResponse, timeout)
}

// Read fetches the characteristic's current value.
func (c *BLECharacteristic) Read(timeout time.Duration) ([]byte, error) {
	return c.conn.readCharacteristic(c.bleChar, timeout)
}

// Subscribe registers fn for notifications from this characteristic.
func (c *BLECharacteristic) Subscribe(fn func(data []byte)) error {
	return c.conn.subscribe(c.bleChar, fn)
}
