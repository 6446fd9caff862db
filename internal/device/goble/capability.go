package goble

import (
	"github.com/go-ble/ble"

	"github.com/bigben3333/toptoilet-integration/internal/device"
)

// capabilitiesFromProperty converts go-ble GATT property bits into the typed
// capability set used everywhere above the transport.
func capabilitiesFromProperty(p ble.Property) device.Capability {
	var caps device.Capability
	if p&ble.CharRead != 0 {
		caps |= device.CapRead
	}
	if p&ble.CharWrite != 0 {
		caps |= device.CapWrite
	}
	if p&ble.CharWriteNR != 0 {
		caps |= device.CapWriteNoResponse
	}
	if p&ble.CharNotify != 0 {
		caps |= device.CapNotify
	}
	if p&ble.CharIndicate != 0 {
		caps |= device.CapIndicate
	}
	return caps
}
