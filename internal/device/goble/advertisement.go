package goble

import (
	"github.com/go-ble/ble"

	"github.com/bigben3333/toptoilet-integration/internal/device"
)

// Advertisement is a normalized snapshot of a BLE advertisement. Unlike
// ble.Advertisement it stays valid after the scan callback returns.
type Advertisement struct {
	Address     string
	LocalName   string
	RSSI        int
	Connectable bool
	// Services holds the advertised service UUIDs in normalized form.
	Services []string
}

// NewAdvertisement copies the relevant fields out of a go-ble advertisement.
func NewAdvertisement(a ble.Advertisement) Advertisement {
	services := make([]string, 0, len(a.Services()))
	for _, uuid := range a.Services() {
		services = append(services, device.NormalizeUUID(uuid.String()))
	}
	return Advertisement{
		Address:     a.Addr().String(),
		LocalName:   a.LocalName(),
		RSSI:        a.RSSI(),
		Connectable: a.Connectable(),
		Services:    services,
	}
}
