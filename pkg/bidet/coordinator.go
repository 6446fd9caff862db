// Package bidet coordinates BLE sessions with Jitian "Top Toilet" bidet
// units: connection lifecycle with retry, ranked characteristic resolution,
// command frame delivery with fallback, and diagnostic notification capture.
package bidet

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"

	"github.com/bigben3333/toptoilet-integration/internal/device"
	"github.com/bigben3333/toptoilet-integration/pkg/protocol"
)

// Options tunes the coordinator's timeouts and retry behavior. Zero values
// are replaced with the struct tag defaults.
type Options struct {
	ConnectTimeout time.Duration `default:"30s"`
	WriteTimeout   time.Duration `default:"5s"`
	ConnectRetries int           `default:"3"`
	RetryBackoff   time.Duration `default:"2s"`
}

func (o *Options) applyDefaults() {
	var def Options
	defaults.SetDefaults(&def)
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = def.ConnectTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = def.WriteTimeout
	}
	if o.ConnectRetries <= 0 {
		o.ConnectRetries = def.ConnectRetries
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = def.RetryBackoff
	}
}

// Coordinator manages the session with one bidet unit. All public methods
// are safe for concurrent use; operations on the single underlying link are
// serialized internally.
type Coordinator struct {
	address  string
	variant  protocol.Variant
	provider DeviceProvider
	logger   *logrus.Logger
	opts     Options

	mu        sync.Mutex
	dev       device.Device
	connected bool

	observers *observerRegistry
	listener  *Listener
}

// New creates a coordinator for the device at address. nil opts uses the
// defaults.
func New(address string, variant protocol.Variant, provider DeviceProvider, logger *logrus.Logger, opts *Options) *Coordinator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts == nil {
		opts = &Options{}
	}
	opts.applyDefaults()

	return &Coordinator{
		address:   address,
		variant:   variant,
		provider:  provider,
		logger:    logger,
		opts:      *opts,
		observers: newObserverRegistry(),
		listener:  NewListener(logger),
	}
}

// Address returns the device address this coordinator manages.
func (c *Coordinator) Address() string {
	return c.address
}

// Variant returns the frame variant commands are encoded with.
func (c *Coordinator) Variant() protocol.Variant {
	return c.variant
}

// Listener returns the notification listener. It is attached automatically
// on connect when the device exposes a notifying serial characteristic.
func (c *Coordinator) Listener() *Listener {
	return c.listener
}

// Connect establishes the session. Calling it while already connected is a
// no-op. Transient dial failures are retried with a fixed backoff.
func (c *Coordinator) Connect(ctx context.Context) error {
	c.mu.Lock()

	if c.connected && c.dev != nil && c.dev.IsConnected() {
		c.mu.Unlock()
		c.logger.WithField("address", c.address).Debug("Already connected, ignoring connect request")
		return nil
	}

	dev := c.dev
	if dev == nil {
		resolved, err := c.provider.Resolve(ctx, c.address)
		if err != nil {
			c.mu.Unlock()
			return err
		}
		resolved.OnDisconnected(c.handleRemoteDisconnect)
		c.dev = resolved
		dev = resolved
	}

	var err error
	for attempt := 1; attempt <= c.opts.ConnectRetries; attempt++ {
		err = dev.Connect(ctx, &device.ConnectOptions{ConnectTimeout: c.opts.ConnectTimeout})
		if err == nil || errors.Is(err, device.ErrAlreadyConnected) {
			err = nil
			break
		}

		c.logger.WithFields(logrus.Fields{
			"address": c.address,
			"attempt": attempt,
			"error":   err,
		}).Warn("Connection attempt failed")

		if attempt == c.opts.ConnectRetries {
			break
		}
		select {
		case <-ctx.Done():
			c.mu.Unlock()
			return fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
		case <-time.After(c.opts.RetryBackoff):
		}
	}
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.connected = true
	c.mu.Unlock()

	if conn := dev.Connection(); conn != nil {
		if err := c.listener.Attach(conn); err != nil {
			c.logger.WithField("error", err).Debug("Notification listener not attached")
		}
	}

	c.notifyObservers(true)
	return nil
}

// Disconnect tears the session down. Calling it while idle is a no-op.
func (c *Coordinator) Disconnect() error {
	c.mu.Lock()
	if !c.connected || c.dev == nil {
		c.mu.Unlock()
		c.logger.WithField("address", c.address).Debug("Not connected, ignoring disconnect request")
		return nil
	}
	dev := c.dev
	c.connected = false
	c.mu.Unlock()

	err := dev.Disconnect()
	c.notifyObservers(false)
	return err
}

// handleRemoteDisconnect runs when the transport reports the peer dropped
// the link. The connected flag flips before any observer is notified.
func (c *Coordinator) handleRemoteDisconnect() {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.mu.Unlock()

	c.logger.WithField("address", c.address).Warn("Session ended by device")
	c.notifyObservers(false)
}

// Connection returns the live GATT connection, or nil when disconnected.
func (c *Coordinator) Connection() device.Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.dev == nil {
		return nil
	}
	return c.dev.Connection()
}

// IsConnected reports whether the session is live.
func (c *Coordinator) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.dev != nil && c.dev.IsConnected()
}

// OnConnectionChanged registers an observer for connection-state transitions.
// Observers run in registration order, after the state change is visible.
func (c *Coordinator) OnConnectionChanged(fn func(connected bool)) ObserverID {
	return c.observers.add(fn)
}

// RemoveObserver unregisters an observer. Returns false for unknown IDs.
func (c *Coordinator) RemoveObserver(id ObserverID) bool {
	return c.observers.remove(id)
}

func (c *Coordinator) notifyObservers(connected bool) {
	for _, fn := range c.observers.snapshot() {
		fn(connected)
	}
}

// Send encodes a command frame for the coordinator's variant and delivers it.
func (c *Coordinator) Send(ctx context.Context, opcode, value byte) error {
	return c.writeFrame(ctx, protocol.Encode(opcode, value, c.variant))
}

// SendRaw delivers an arbitrary payload through the same candidate fallback
// path as encoded commands.
func (c *Coordinator) SendRaw(ctx context.Context, frame []byte) error {
	if len(frame) == 0 {
		return fmt.Errorf("empty frame")
	}
	return c.writeFrame(ctx, frame)
}

// Flush toggles the flush function.
func (c *Coordinator) Flush(ctx context.Context, on bool) error {
	return c.writeFrame(ctx, protocol.Flush(on, c.variant))
}

// writeFrame connects if needed, resolves the ranked candidates and tries
// them in order until one accepts the frame. The link state is re-checked
// before every attempt so a mid-sequence disconnect fails fast instead of
// producing misleading write errors.
func (c *Coordinator) writeFrame(ctx context.Context, frame []byte) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	dev := c.dev
	c.mu.Unlock()

	conn := dev.Connection()
	if conn == nil {
		return fmt.Errorf("%w: link lost before resolution", device.ErrNotConnected)
	}

	candidates, err := ResolveCandidates(conn, c.logger)
	if err != nil {
		return err
	}

	frameHex := hex.EncodeToString(frame)
	for i, cand := range candidates {
		if !c.IsConnected() {
			return fmt.Errorf("%w: link lost before write", device.ErrNotConnected)
		}

		withResponse := cand.Char.Capabilities().Has(device.CapWrite)
		err := cand.Char.Write(frame, withResponse, c.opts.WriteTimeout)
		if err == nil {
			c.logger.WithFields(logrus.Fields{
				"address":   c.address,
				"char_uuid": cand.Char.UUID(),
				"reason":    cand.Reason,
				"frame":     frameHex,
			}).Info("Command delivered")
			return nil
		}

		c.logger.WithFields(logrus.Fields{
			"address":   c.address,
			"rank":      i,
			"char_uuid": cand.Char.UUID(),
			"error":     err,
		}).Warn("Candidate rejected command, trying next")
	}

	return fmt.Errorf("%w: %d candidates tried for frame %s", ErrCommandExhausted, len(candidates), frameHex)
}
