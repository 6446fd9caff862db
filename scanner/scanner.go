// Package scanner discovers advertising BLE peripherals. It backs both the
// scan CLI command and the scan-verifying device provider.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	blelib "github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/bigben3333/toptoilet-integration/internal/device"
	"github.com/bigben3333/toptoilet-integration/internal/device/goble"
	"github.com/bigben3333/toptoilet-integration/internal/ringchan"
)

// ProgressCallback is called when the scan phase changes.
type ProgressCallback func(phase string)

// DeviceEventType marks if the device was newly discovered or updated.
type DeviceEventType int

const (
	EventNew DeviceEventType = iota
	EventUpdated
)

type DeviceEvent struct {
	Type          DeviceEventType
	Advertisement goble.Advertisement
}

// Scanner handles BLE device discovery.
type Scanner struct {
	devices *hashmap.Map[string, goble.Advertisement]
	events  *ringchan.RingChannel[DeviceEvent]
	logger  *logrus.Logger

	scanOptions *ScanOptions
}

// ScanOptions configures scanning behavior.
type ScanOptions struct {
	Duration        time.Duration
	DuplicateFilter bool
	ServiceUUIDs    []string
	AllowList       []string
	BlockList       []string
}

// DefaultScanOptions returns default scanning options.
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Duration:        10 * time.Second,
		DuplicateFilter: true,
	}
}

// NewScanner creates a new BLE scanner.
func NewScanner(logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{
		events: ringchan.New[DeviceEvent](100),
		logger: logger,
	}
}

// Scan performs BLE discovery with the provided options and returns the
// advertisements seen, keyed by address.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions, progressCallback ProgressCallback) (map[string]goble.Advertisement, error) {
	s.devices = newDeviceMap()

	if opts == nil {
		opts = DefaultScanOptions()
	}
	if progressCallback == nil {
		progressCallback = func(string) {}
	}

	s.logger.WithField("duration", opts.Duration).Info("Starting BLE scan...")
	progressCallback("Scanning")

	dev, err := goble.DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", goble.NormalizeError(err))
	}

	scanCtx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	s.scanOptions = opts
	defer func() {
		s.scanOptions = nil
	}()
	err = dev.Scan(scanCtx, !opts.DuplicateFilter, s.handleAdvertisement)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", goble.NormalizeError(err))
	}

	s.logger.WithField("device_count", s.devices.Len()).Info("BLE scan completed")
	progressCallback("Processing results")

	devices := make(map[string]goble.Advertisement, s.devices.Len())
	s.devices.Range(func(key string, value goble.Advertisement) bool {
		devices[key] = value
		return true
	})
	return devices, nil
}

// FindAddress scans until the given address is seen advertising, or the
// timeout elapses. The match is case-insensitive.
func (s *Scanner) FindAddress(ctx context.Context, address string, timeout time.Duration) (goble.Advertisement, error) {
	if timeout <= 0 {
		timeout = DefaultScanOptions().Duration
	}
	target := strings.ToLower(strings.TrimSpace(address))

	dev, err := goble.DeviceFactory()
	if err != nil {
		return goble.Advertisement{}, fmt.Errorf("failed to create BLE device: %w", goble.NormalizeError(err))
	}

	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var mu sync.Mutex
	var found goble.Advertisement
	var matched bool
	err = dev.Scan(scanCtx, false, func(adv blelib.Advertisement) {
		mu.Lock()
		defer mu.Unlock()
		if matched {
			return
		}
		if strings.ToLower(adv.Addr().String()) == target {
			found = goble.NewAdvertisement(adv)
			matched = true
			cancel()
		}
	})
	mu.Lock()
	defer mu.Unlock()
	if matched {
		return found, nil
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return goble.Advertisement{}, fmt.Errorf("scan failed: %w", goble.NormalizeError(err))
	}
	return goble.Advertisement{}, fmt.Errorf("device %q not found within %v", address, timeout)
}

func newDeviceMap() *hashmap.Map[string, goble.Advertisement] {
	return hashmap.New[string, goble.Advertisement]()
}

func (s *Scanner) handleAdvertisement(adv blelib.Advertisement) {
	s.recordAdvertisement(goble.NewAdvertisement(adv))
}

// recordAdvertisement updates an existing entry or adds a new device.
func (s *Scanner) recordAdvertisement(snapshot goble.Advertisement) {
	deviceID := snapshot.Address

	_, existing := s.devices.Get(deviceID)
	if !existing {
		if !s.shouldIncludeDevice(snapshot, s.scanOptions) {
			return
		}
	}
	s.devices.Set(deviceID, snapshot)

	event := DeviceEvent{Advertisement: snapshot}
	if existing {
		event.Type = EventUpdated
	} else {
		s.logger.WithFields(logrus.Fields{
			"device":  snapshot.LocalName,
			"address": snapshot.Address,
			"rssi":    snapshot.RSSI,
		}).Info("Discovered new device")
		event.Type = EventNew
	}

	s.events.Send(event)
}

// shouldIncludeDevice applies the allow/block/service filters.
func (s *Scanner) shouldIncludeDevice(adv goble.Advertisement, opts *ScanOptions) bool {
	for _, blocked := range opts.BlockList {
		if strings.EqualFold(adv.Address, blocked) {
			return false
		}
	}

	if len(opts.AllowList) > 0 {
		allowed := false
		for _, a := range opts.AllowList {
			if strings.EqualFold(adv.Address, a) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if len(opts.ServiceUUIDs) > 0 {
		hasRequired := false
		for _, required := range opts.ServiceUUIDs {
			norm := device.NormalizeUUID(required)
			for _, advUUID := range adv.Services {
				if advUUID == norm {
					hasRequired = true
					break
				}
			}
			if hasRequired {
				break
			}
		}
		if !hasRequired {
			return false
		}
	}

	return true
}

// Events returns a read-only channel of device events.
func (s *Scanner) Events() <-chan DeviceEvent {
	return s.events.C()
}
