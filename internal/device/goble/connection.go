package goble

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/bigben3333/toptoilet-integration/internal/bledb"
	"github.com/bigben3333/toptoilet-integration/internal/device"
)

const (
	// DefaultWriteChunkSize keeps writes within the 20-byte payload of the
	// minimum ATT MTU so the frames reach even BLE 4.0 peripherals intact.
	DefaultWriteChunkSize = 20

	// DefaultWriteDelay spaces consecutive chunks so the peripheral's receive
	// buffer is not overwhelmed.
	DefaultWriteDelay = 10 * time.Millisecond

	// DefaultWriteTimeout bounds a single characteristic write.
	DefaultWriteTimeout = 5 * time.Second

	// DefaultReadTimeout bounds a single characteristic read.
	DefaultReadTimeout = 5 * time.Second
)

// DeviceFactory creates ble.Device instances. It is a variable so tests can
// substitute a mock transport.
var DeviceFactory = func() (ble.Device, error) {
	return newPlatformDevice()
}

// BLEConnection is a live GATT session over go-ble. It implements
// device.Connection.
type BLEConnection struct {
	logger *logrus.Logger

	connMutex   sync.RWMutex
	writeMutex  sync.Mutex
	client      ble.Client
	isConnected bool
	services    map[string]*BLEService

	// onRemoteDisconnect is invoked (outside locks) when the peer drops the
	// link. Set once by the owning BLEDevice before the first Connect.
	onRemoteDisconnect func()
	cancelMonitor      context.CancelFunc
}

func newBLEConnection(logger *logrus.Logger) *BLEConnection {
	return &BLEConnection{
		logger:   logger,
		services: make(map[string]*BLEService),
	}
}

// Connect dials the peripheral and discovers its full GATT profile.
func (c *BLEConnection) Connect(ctx context.Context, address string, opts *device.ConnectOptions) error {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("device address is empty")
	}
	if c.isConnectedInternal() {
		c.logger.WithField("address", address).Warn("Connection attempt while already connected")
		return device.ErrAlreadyConnected
	}

	c.logger.WithFields(logrus.Fields{
		"address": address,
		"timeout": opts.ConnectTimeout,
	}).Info("Connecting to BLE device...")

	dev, err := DeviceFactory()
	if err != nil {
		c.logger.WithField("error", err).Error("Failed to create BLE device")
		return fmt.Errorf("failed to create BLE device: %w", NormalizeError(err))
	}
	ble.SetDefaultDevice(dev)

	connCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	client, err := ble.Dial(connCtx, ble.NewAddr(address))
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Error("Failed to dial BLE device")
		return fmt.Errorf("failed to connect to %q: %w", address, NormalizeError(err))
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			c.logger.WithField("cancel_error", cancelErr).Warn("Failed to cancel connection after discovery failure")
		}
		return fmt.Errorf("failed to discover profile: %w", NormalizeError(err))
	}

	c.services = c.buildServices(profile)
	c.client = client
	c.isConnected = true

	c.startDisconnectMonitor(client)

	totalChars := 0
	for _, svc := range c.services {
		totalChars += len(svc.chars)
	}
	c.logger.WithFields(logrus.Fields{
		"address":         address,
		"services":        len(c.services),
		"characteristics": totalChars,
	}).Info("BLE device connected")
	return nil
}

// buildServices converts a go-ble profile into the service table. Callers
// must hold connMutex.
func (c *BLEConnection) buildServices(profile *ble.Profile) map[string]*BLEService {
	services := make(map[string]*BLEService, len(profile.Services))
	for _, bleSvc := range profile.Services {
		svcRaw := bleSvc.UUID.String()
		svcUUID := device.NormalizeUUID(svcRaw)
		svc := &BLEService{
			uuid:      svcUUID,
			knownName: bledb.LookupService(svcRaw),
			chars:     make(map[string]*BLECharacteristic, len(bleSvc.Characteristics)),
		}
		for _, bleChar := range bleSvc.Characteristics {
			charRaw := bleChar.UUID.String()
			charUUID := device.NormalizeUUID(charRaw)
			c.logger.WithFields(logrus.Fields{
				"service_uuid": svcUUID,
				"char_uuid":    charUUID,
				"capabilities": capabilitiesFromProperty(bleChar.Property).String(),
			}).Debug("Discovered characteristic")
			svc.chars[charUUID] = &BLECharacteristic{
				uuid:      charUUID,
				knownName: bledb.LookupCharacteristic(charRaw),
				caps:      capabilitiesFromProperty(bleChar.Property),
				bleChar:   bleChar,
				conn:      c,
			}
		}
		services[svcUUID] = svc
	}
	return services
}

// startDisconnectMonitor watches the client's Disconnected channel and fires
// the remote-disconnect callback after flipping the connection state. Callers
// must hold connMutex.
func (c *BLEConnection) startDisconnectMonitor(client ble.Client) {
	dc, ok := client.(interface{ Disconnected() <-chan struct{} })
	if !ok {
		c.logger.Debug("Client does not expose a Disconnected() channel")
		return
	}

	monitorCtx, cancel := context.WithCancel(context.Background())
	c.cancelMonitor = cancel

	go func(disconnected <-chan struct{}) {
		select {
		case <-disconnected:
			if c.markRemoteDisconnect() {
				c.logger.Warn("Transport reported peer disconnection")
				if c.onRemoteDisconnect != nil {
					c.onRemoteDisconnect()
				}
			}
		case <-monitorCtx.Done():
		}
	}(dc.Disconnected())
}

// markRemoteDisconnect flips the connection to disconnected and reports
// whether this call performed the transition. The flip happens before any
// observer callback so observers always see consistent state.
func (c *BLEConnection) markRemoteDisconnect() bool {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if !c.isConnected {
		return false
	}
	c.isConnected = false
	c.client = nil
	c.cancelMonitor = nil
	return true
}

// Disconnect releases the link. Safe to call when already disconnected.
func (c *BLEConnection) Disconnect() error {
	c.connMutex.Lock()
	if c.client == nil || !c.isConnected {
		c.connMutex.Unlock()
		c.logger.Debug("Disconnect called but already disconnected")
		return nil
	}

	client := c.client
	cancelMonitor := c.cancelMonitor
	c.client = nil
	c.cancelMonitor = nil
	c.isConnected = false
	c.connMutex.Unlock()

	if cancelMonitor != nil {
		cancelMonitor()
	}

	err := NormalizeError(client.CancelConnection())
	if err != nil {
		c.logger.WithField("error", err).Warn("BLE device disconnected with errors")
		return err
	}
	c.logger.Info("BLE device disconnected")
	return nil
}

func (c *BLEConnection) isConnectedInternal() bool {
	return c.client != nil && c.isConnected
}

// IsConnected reports whether the link is up. Thread-safe.
func (c *BLEConnection) IsConnected() bool {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	return c.isConnectedInternal()
}

// Services returns all discovered services sorted by UUID.
func (c *BLEConnection) Services() []device.Service {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()

	result := make([]device.Service, 0, len(c.services))
	for _, svc := range c.services {
		result = append(result, svc)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UUID() < result[j].UUID()
	})
	return result
}

// GetService retrieves a service by UUID (any accepted format).
func (c *BLEConnection) GetService(uuid string) (device.Service, error) {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()

	svc, ok := c.services[device.NormalizeUUID(uuid)]
	if !ok {
		return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{uuid}}
	}
	return svc, nil
}

// GetCharacteristic retrieves a characteristic by service and UUID.
func (c *BLEConnection) GetCharacteristic(serviceUUID, charUUID string) (device.Characteristic, error) {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()

	svc, ok := c.services[device.NormalizeUUID(serviceUUID)]
	if !ok {
		return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{serviceUUID}}
	}
	char, ok := svc.chars[device.NormalizeUUID(charUUID)]
	if !ok {
		return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{serviceUUID, charUUID}}
	}
	return char, nil
}

// RefreshServices forces a full profile re-discovery on the live link.
func (c *BLEConnection) RefreshServices() error {
	c.connMutex.RLock()
	if !c.isConnectedInternal() {
		c.connMutex.RUnlock()
		return device.ErrNotConnected
	}
	client := c.client
	c.connMutex.RUnlock()

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		return fmt.Errorf("failed to re-discover profile: %w", NormalizeError(err))
	}

	c.connMutex.Lock()
	c.services = c.buildServices(profile)
	c.connMutex.Unlock()
	return nil
}

// writeCharacteristic performs a chunked, serialized write. A timed-out write
// may still complete on the link in the background; the timeout only stops
// the caller from waiting.
func (c *BLEConnection) writeCharacteristic(char *ble.Characteristic, data []byte, withResponse bool, timeout time.Duration) error {
	c.connMutex.RLock()
	if !c.isConnectedInternal() {
		c.connMutex.RUnlock()
		return device.ErrNotConnected
	}
	client := c.client
	c.connMutex.RUnlock()

	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	done := make(chan error, 1)
	go func() {
		noRsp := !withResponse
		remaining := data
		for len(remaining) > 0 {
			n := len(remaining)
			if n > DefaultWriteChunkSize {
				n = DefaultWriteChunkSize
			}
			if err := client.WriteCharacteristic(char, remaining[:n], noRsp); err != nil {
				done <- NormalizeError(err)
				return
			}
			remaining = remaining[n:]
			if len(remaining) > 0 {
				time.Sleep(DefaultWriteDelay)
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("%w: writing characteristic %s after %v", device.ErrTimeout, char.UUID, timeout)
	}
}

// readCharacteristic reads a characteristic value with a timeout.
func (c *BLEConnection) readCharacteristic(char *ble.Characteristic, timeout time.Duration) ([]byte, error) {
	c.connMutex.RLock()
	if !c.isConnectedInternal() {
		c.connMutex.RUnlock()
		return nil, device.ErrNotConnected
	}
	client := c.client
	c.connMutex.RUnlock()

	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	type readResult struct {
		data []byte
		err  error
	}
	resultCh := make(chan readResult, 1)
	go func() {
		data, err := client.ReadCharacteristic(char)
		resultCh <- readResult{data: data, err: NormalizeError(err)}
	}()

	select {
	case result := <-resultCh:
		return result.data, result.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w: reading characteristic %s after %v", device.ErrTimeout, char.UUID, timeout)
	}
}

// subscribe registers a notification handler on a characteristic. The handler
// receives a private copy of each payload.
func (c *BLEConnection) subscribe(char *ble.Characteristic, fn func(data []byte)) error {
	c.connMutex.RLock()
	if !c.isConnectedInternal() {
		c.connMutex.RUnlock()
		return device.ErrNotConnected
	}
	client := c.client
	c.connMutex.RUnlock()

	err := NormalizeError(client.Subscribe(char, false, func(data []byte) {
		payload := make([]byte, len(data))
		copy(payload, data)
		fn(payload)
	}))
	if err != nil {
		return fmt.Errorf("failed to subscribe to characteristic %s: %w", char.UUID, err)
	}
	return nil
}
