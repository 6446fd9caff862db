package bidet

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bigben3333/toptoilet-integration/internal/device"
	"github.com/bigben3333/toptoilet-integration/internal/ringchan"
)

const listenerEventBuffer = 16

// Notification is one payload received from the device's serial-port
// characteristic. The toilet's replies are undocumented, so notifications are
// diagnostic only and never drive state.
type Notification struct {
	UUID       string
	Payload    []byte
	ReceivedAt time.Time
}

// Listener captures notifications from the legacy serial characteristic. It
// keeps only the most recent payload and mirrors events onto a drop-oldest
// channel for live observation. Missing notify support on the device is not
// an error condition.
type Listener struct {
	logger *logrus.Logger

	mu     sync.Mutex
	last   []byte
	lastAt time.Time
	has    bool

	events *ringchan.RingChannel[Notification]
}

func NewListener(logger *logrus.Logger) *Listener {
	return &Listener{
		logger: logger,
		events: ringchan.New[Notification](listenerEventBuffer),
	}
}

// Attach subscribes to the legacy serial characteristic on the connection.
// Returns a NotFoundError when no notifying ffe1 is present.
func (l *Listener) Attach(conn device.Connection) error {
	var target device.Characteristic
	for _, svc := range conn.Services() {
		for _, char := range svc.Characteristics() {
			if char.UUID() == LegacySerialCharUUID && char.Capabilities().Has(device.CapNotify) {
				target = char
			}
		}
	}
	if target == nil {
		return &device.NotFoundError{Resource: "characteristic", UUIDs: []string{LegacySerialCharUUID}}
	}

	return target.Subscribe(func(data []byte) {
		l.record(target.UUID(), data)
	})
}

func (l *Listener) record(uuid string, payload []byte) {
	now := time.Now()

	l.mu.Lock()
	l.last = payload
	l.lastAt = now
	l.has = true
	l.mu.Unlock()

	l.logger.WithFields(logrus.Fields{
		"char_uuid": uuid,
		"length":    len(payload),
		"payload":   hex.EncodeToString(payload),
	}).Debug("Notification received")

	l.events.Send(Notification{
		UUID:       uuid,
		Payload:    payload,
		ReceivedAt: now,
	})
}

// LastPayload returns a copy of the most recent notification payload.
func (l *Listener) LastPayload() ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.has {
		return nil, false
	}
	payload := make([]byte, len(l.last))
	copy(payload, l.last)
	return payload, true
}

// Events returns the live notification stream. When the consumer lags, the
// oldest events are dropped.
func (l *Listener) Events() <-chan Notification {
	return l.events.C()
}

// Close releases the event stream.
func (l *Listener) Close() {
	l.events.Close()
}
