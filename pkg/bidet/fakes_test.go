package bidet

import (
	"context"
	"errors"
	"time"

	"github.com/bigben3333/toptoilet-integration/internal/device"
)

// In-memory transport fakes. They mirror the goble implementations closely
// enough to exercise the ranking, fallback and lifecycle logic without a
// radio.

type fakeCharacteristic struct {
	uuid string
	caps device.Capability

	// writeErrs is consumed one entry per write; a nil entry means success.
	// Writes beyond the scripted entries succeed.
	writeErrs     []error
	writes        [][]byte
	withResponses []bool

	subscribeErr error
	notifyFn     func(data []byte)
}

func (c *fakeCharacteristic) UUID() string                     { return c.uuid }
func (c *fakeCharacteristic) KnownName() string                { return "" }
func (c *fakeCharacteristic) Capabilities() device.Capability  { return c.caps }
func (c *fakeCharacteristic) Read(time.Duration) ([]byte, error) {
	return nil, errors.New("read not supported")
}

func (c *fakeCharacteristic) Write(data []byte, withResponse bool, _ time.Duration) error {
	payload := make([]byte, len(data))
	copy(payload, data)
	c.writes = append(c.writes, payload)
	c.withResponses = append(c.withResponses, withResponse)

	if len(c.writeErrs) == 0 {
		return nil
	}
	err := c.writeErrs[0]
	c.writeErrs = c.writeErrs[1:]
	return err
}

func (c *fakeCharacteristic) Subscribe(fn func(data []byte)) error {
	if c.subscribeErr != nil {
		return c.subscribeErr
	}
	c.notifyFn = fn
	return nil
}

// notify simulates an incoming notification from the peripheral.
func (c *fakeCharacteristic) notify(data []byte) {
	if c.notifyFn != nil {
		c.notifyFn(data)
	}
}

type fakeService struct {
	uuid  string
	chars []*fakeCharacteristic
}

func (s *fakeService) UUID() string      { return s.uuid }
func (s *fakeService) KnownName() string { return "" }

func (s *fakeService) Characteristics() []device.Characteristic {
	result := make([]device.Characteristic, 0, len(s.chars))
	for _, char := range s.chars {
		result = append(result, char)
	}
	return result
}

type fakeConnection struct {
	services  []*fakeService
	connected bool

	// refreshServices is swapped into the service table on RefreshServices.
	refreshServices []*fakeService
	refreshErr      error
	refreshCount    int
}

func (c *fakeConnection) Services() []device.Service {
	result := make([]device.Service, 0, len(c.services))
	for _, svc := range c.services {
		result = append(result, svc)
	}
	return result
}

func (c *fakeConnection) GetService(uuid string) (device.Service, error) {
	for _, svc := range c.services {
		if svc.uuid == uuid {
			return svc, nil
		}
	}
	return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{uuid}}
}

func (c *fakeConnection) GetCharacteristic(serviceUUID, charUUID string) (device.Characteristic, error) {
	for _, svc := range c.services {
		if svc.uuid != serviceUUID {
			continue
		}
		for _, char := range svc.chars {
			if char.uuid == charUUID {
				return char, nil
			}
		}
	}
	return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{serviceUUID, charUUID}}
}

func (c *fakeConnection) RefreshServices() error {
	c.refreshCount++
	if c.refreshErr != nil {
		return c.refreshErr
	}
	if c.refreshServices != nil {
		c.services = c.refreshServices
	}
	return nil
}

func (c *fakeConnection) IsConnected() bool { return c.connected }

type fakeDevice struct {
	address string
	conn    *fakeConnection

	// connectErrs is consumed one entry per Connect attempt; a nil entry
	// means success. Attempts beyond the scripted entries succeed.
	connectErrs     []error
	connectCalls    int
	disconnectCalls int
	connected       bool
	handlers        []func()
}

func newFakeDevice(address string, services ...*fakeService) *fakeDevice {
	return &fakeDevice{
		address: address,
		conn:    &fakeConnection{services: services},
	}
}

func (d *fakeDevice) Address() string { return d.address }
func (d *fakeDevice) Name() string    { return d.address }

func (d *fakeDevice) Connect(context.Context, *device.ConnectOptions) error {
	d.connectCalls++
	if d.connected {
		return device.ErrAlreadyConnected
	}

	if len(d.connectErrs) > 0 {
		err := d.connectErrs[0]
		d.connectErrs = d.connectErrs[1:]
		if err != nil {
			return err
		}
	}

	d.connected = true
	d.conn.connected = true
	return nil
}

func (d *fakeDevice) Disconnect() error {
	d.disconnectCalls++
	d.connected = false
	d.conn.connected = false
	return nil
}

func (d *fakeDevice) IsConnected() bool { return d.connected }

func (d *fakeDevice) Connection() device.Connection {
	if !d.connected {
		return nil
	}
	return d.conn
}

func (d *fakeDevice) OnDisconnected(fn func()) {
	d.handlers = append(d.handlers, fn)
}

// fireDisconnect simulates the peer dropping the link: state flips first,
// then the handlers run, like the real transport.
func (d *fakeDevice) fireDisconnect() {
	if !d.connected {
		return
	}
	d.connected = false
	d.conn.connected = false
	for _, fn := range d.handlers {
		fn()
	}
}

type fakeProvider struct {
	dev          device.Device
	err          error
	resolveCalls int
}

func (p *fakeProvider) Resolve(context.Context, string) (device.Device, error) {
	p.resolveCalls++
	if p.err != nil {
		return nil, p.err
	}
	return p.dev, nil
}

// quickOptions keeps retry backoff out of test runtime.
func quickOptions() *Options {
	return &Options{
		ConnectTimeout: time.Second,
		WriteTimeout:   time.Second,
		ConnectRetries: 3,
		RetryBackoff:   time.Millisecond,
	}
}
