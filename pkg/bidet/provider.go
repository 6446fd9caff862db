package bidet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bigben3333/toptoilet-integration/internal/device"
	"github.com/bigben3333/toptoilet-integration/internal/device/goble"
	"github.com/bigben3333/toptoilet-integration/scanner"
)

// DeviceProvider resolves an address into a connectable device. The direct
// provider trusts the address; the scan provider verifies the peripheral is
// actually advertising first.
type DeviceProvider interface {
	Resolve(ctx context.Context, address string) (device.Device, error)
}

type directProvider struct {
	logger *logrus.Logger
}

// NewDirectProvider returns a provider that dials the address without
// scanning. Connection failures surface on Connect instead.
func NewDirectProvider(logger *logrus.Logger) DeviceProvider {
	return &directProvider{logger: logger}
}

func (p *directProvider) Resolve(_ context.Context, address string) (device.Device, error) {
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("%w: empty address", ErrDeviceNotFound)
	}
	return goble.NewDevice(address, p.logger), nil
}

type scanProvider struct {
	logger  *logrus.Logger
	scanner *scanner.Scanner
	timeout time.Duration
}

// NewScanProvider returns a provider that scans for the address before
// connecting, so a powered-off toilet fails fast with ErrDeviceNotFound
// instead of hanging in a dial.
func NewScanProvider(sc *scanner.Scanner, timeout time.Duration, logger *logrus.Logger) DeviceProvider {
	return &scanProvider{
		logger:  logger,
		scanner: sc,
		timeout: timeout,
	}
}

func (p *scanProvider) Resolve(ctx context.Context, address string) (device.Device, error) {
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("%w: empty address", ErrDeviceNotFound)
	}

	adv, err := p.scanner.FindAddress(ctx, address, p.timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %q not seen advertising within %v", ErrDeviceNotFound, address, p.timeout)
	}

	p.logger.WithFields(logrus.Fields{
		"address": adv.Address,
		"name":    adv.LocalName,
		"rssi":    adv.RSSI,
	}).Info("Device found by scan")
	return goble.NewDeviceFromAdvertisement(adv, p.logger), nil
}
