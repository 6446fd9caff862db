package bidet

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigben3333/toptoilet-integration/internal/device"
	"github.com/bigben3333/toptoilet-integration/pkg/protocol"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestCoordinator(dev *fakeDevice) (*Coordinator, *fakeProvider) {
	provider := &fakeProvider{dev: dev}
	coord := New(dev.address, protocol.Modern, provider, testLogger(), quickOptions())
	return coord, provider
}

// writableService is the minimal GATT layout most tests need: one service
// with one acknowledged-write characteristic.
func writableService() *fakeService {
	return &fakeService{
		uuid: "fff0",
		chars: []*fakeCharacteristic{
			{uuid: "fff1", caps: device.CapWrite},
		},
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	// TEST SCENARIO: a second Connect on a live session must not dial again.
	dev := newFakeDevice("aa:bb:cc:dd:ee:ff", writableService())
	coord, provider := newTestCoordinator(dev)

	require.NoError(t, coord.Connect(context.Background()))
	require.NoError(t, coord.Connect(context.Background()))

	assert.Equal(t, 1, dev.connectCalls)
	assert.Equal(t, 1, provider.resolveCalls)
	assert.True(t, coord.IsConnected())
}

func TestConnectRetriesTransientFailures(t *testing.T) {
	dev := newFakeDevice("aa:bb:cc:dd:ee:ff", writableService())
	dev.connectErrs = []error{errors.New("dial timeout"), nil}
	coord, _ := newTestCoordinator(dev)

	require.NoError(t, coord.Connect(context.Background()))
	assert.Equal(t, 2, dev.connectCalls)
}

func TestConnectFailsAfterAllRetries(t *testing.T) {
	dev := newFakeDevice("aa:bb:cc:dd:ee:ff", writableService())
	cause := errors.New("dial timeout")
	dev.connectErrs = []error{cause, cause, cause}
	coord, _ := newTestCoordinator(dev)

	err := coord.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, dev.connectCalls)
	assert.False(t, coord.IsConnected())
}

func TestConnectPropagatesResolutionFailure(t *testing.T) {
	provider := &fakeProvider{err: ErrDeviceNotFound}
	coord := New("aa:bb:cc:dd:ee:ff", protocol.Modern, provider, testLogger(), quickOptions())

	assert.ErrorIs(t, coord.Connect(context.Background()), ErrDeviceNotFound)
}

func TestDisconnectWhileIdleIsNoOp(t *testing.T) {
	dev := newFakeDevice("aa:bb:cc:dd:ee:ff", writableService())
	coord, _ := newTestCoordinator(dev)

	require.NoError(t, coord.Disconnect())
	assert.Equal(t, 0, dev.disconnectCalls)
}

func TestObserversSeeConsistentStateInOrder(t *testing.T) {
	// TEST SCENARIO: observers run in registration order, and the coordinator
	// must already report the new state when each observer fires.
	dev := newFakeDevice("aa:bb:cc:dd:ee:ff", writableService())
	coord, _ := newTestCoordinator(dev)

	var order []string
	coord.OnConnectionChanged(func(connected bool) {
		order = append(order, "first")
		assert.Equal(t, connected, coord.IsConnected())
	})
	coord.OnConnectionChanged(func(connected bool) {
		order = append(order, "second")
		assert.Equal(t, connected, coord.IsConnected())
	})

	require.NoError(t, coord.Connect(context.Background()))
	assert.Equal(t, []string{"first", "second"}, order)

	order = nil
	dev.fireDisconnect()
	assert.Equal(t, []string{"first", "second"}, order)
	assert.False(t, coord.IsConnected())
}

func TestRemoteDisconnectNotifiesExactlyOnce(t *testing.T) {
	dev := newFakeDevice("aa:bb:cc:dd:ee:ff", writableService())
	coord, _ := newTestCoordinator(dev)

	notifications := 0
	coord.OnConnectionChanged(func(connected bool) {
		if !connected {
			notifications++
		}
	})

	require.NoError(t, coord.Connect(context.Background()))
	dev.fireDisconnect()
	// A duplicate transport callback must not produce a second notification.
	coord.handleRemoteDisconnect()

	assert.Equal(t, 1, notifications)
}

func TestRemoveObserver(t *testing.T) {
	dev := newFakeDevice("aa:bb:cc:dd:ee:ff", writableService())
	coord, _ := newTestCoordinator(dev)

	kept := 0
	removed := 0
	coord.OnConnectionChanged(func(bool) { kept++ })
	id := coord.OnConnectionChanged(func(bool) { removed++ })

	assert.True(t, coord.RemoveObserver(id))
	assert.False(t, coord.RemoveObserver(id))

	require.NoError(t, coord.Connect(context.Background()))
	assert.Equal(t, 1, kept)
	assert.Equal(t, 0, removed)
}

func TestSendDeliversEncodedFrame(t *testing.T) {
	dev := newFakeDevice("aa:bb:cc:dd:ee:ff", writableService())
	coord, _ := newTestCoordinator(dev)

	require.NoError(t, coord.Send(context.Background(), protocol.OpFlush, protocol.ValueOn))

	char := dev.conn.services[0].chars[0]
	require.Len(t, char.writes, 1)
	assert.Equal(t, protocol.Encode(protocol.OpFlush, protocol.ValueOn, protocol.Modern), char.writes[0])
	// CapWrite selects an acknowledged write.
	assert.Equal(t, []bool{true}, char.withResponses)
}

func TestSendConnectsOnDemand(t *testing.T) {
	dev := newFakeDevice("aa:bb:cc:dd:ee:ff", writableService())
	coord, _ := newTestCoordinator(dev)

	require.NoError(t, coord.Flush(context.Background(), true))
	assert.Equal(t, 1, dev.connectCalls)
	assert.True(t, coord.IsConnected())
}

func TestSendFailsWhenConnectFails(t *testing.T) {
	dev := newFakeDevice("aa:bb:cc:dd:ee:ff", writableService())
	cause := errors.New("dial timeout")
	dev.connectErrs = []error{cause, cause, cause}
	coord, _ := newTestCoordinator(dev)

	err := coord.Send(context.Background(), protocol.OpFlush, protocol.ValueOn)
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.Empty(t, dev.conn.services[0].chars[0].writes)
}

func TestSendFallsBackThroughCandidates(t *testing.T) {
	// TEST SCENARIO: the legacy and modern serial ports reject the frame, so
	// delivery falls through to the next writable characteristic. Later
	// candidates are left untouched after the first success.
	legacy := &fakeCharacteristic{
		uuid:      "ffe1",
		caps:      device.CapWriteNoResponse | device.CapNotify,
		writeErrs: []error{errors.New("write rejected")},
	}
	modern := &fakeCharacteristic{
		uuid:      "fff1",
		caps:      device.CapWrite,
		writeErrs: []error{errors.New("write rejected")},
	}
	fallback := &fakeCharacteristic{uuid: "aa01", caps: device.CapWrite}
	untouched := &fakeCharacteristic{uuid: "aa02", caps: device.CapWrite}

	dev := newFakeDevice("aa:bb:cc:dd:ee:ff",
		&fakeService{uuid: "aaaa", chars: []*fakeCharacteristic{fallback, untouched}},
		&fakeService{uuid: "ffe0", chars: []*fakeCharacteristic{legacy}},
		&fakeService{uuid: "fff0", chars: []*fakeCharacteristic{modern}},
	)
	coord, _ := newTestCoordinator(dev)

	require.NoError(t, coord.Flush(context.Background(), false))

	assert.Len(t, legacy.writes, 1)
	assert.Len(t, modern.writes, 1)
	assert.Len(t, fallback.writes, 1)
	assert.Empty(t, untouched.writes)

	// Write mode follows each candidate's own capabilities.
	assert.Equal(t, []bool{false}, legacy.withResponses)
	assert.Equal(t, []bool{true}, modern.withResponses)
}

func TestSendExhaustionLeavesSessionUsable(t *testing.T) {
	char := &fakeCharacteristic{
		uuid:      "fff1",
		caps:      device.CapWrite,
		writeErrs: []error{errors.New("write rejected"), nil},
	}
	dev := newFakeDevice("aa:bb:cc:dd:ee:ff",
		&fakeService{uuid: "fff0", chars: []*fakeCharacteristic{char}},
	)
	coord, _ := newTestCoordinator(dev)

	err := coord.Flush(context.Background(), true)
	assert.ErrorIs(t, err, ErrCommandExhausted)
	assert.True(t, coord.IsConnected())

	// The session survives exhaustion; the next command goes through.
	require.NoError(t, coord.Flush(context.Background(), true))
	assert.Len(t, char.writes, 2)
}

func TestSendWithNoWritableCharacteristic(t *testing.T) {
	readOnly := &fakeCharacteristic{uuid: "2a00", caps: device.CapRead}
	dev := newFakeDevice("aa:bb:cc:dd:ee:ff",
		&fakeService{uuid: "1800", chars: []*fakeCharacteristic{readOnly}},
	)
	coord, _ := newTestCoordinator(dev)

	err := coord.Flush(context.Background(), true)
	assert.ErrorIs(t, err, ErrNoWritableCharacteristic)
	assert.Empty(t, readOnly.writes)
}

func TestSendRawRejectsEmptyFrame(t *testing.T) {
	dev := newFakeDevice("aa:bb:cc:dd:ee:ff", writableService())
	coord, _ := newTestCoordinator(dev)

	assert.Error(t, coord.SendRaw(context.Background(), nil))
	assert.Equal(t, 0, dev.connectCalls)
}

func TestSendRawDeliversArbitraryPayload(t *testing.T) {
	dev := newFakeDevice("aa:bb:cc:dd:ee:ff", writableService())
	coord, _ := newTestCoordinator(dev)

	probe, err := protocol.ProbeByName("at-flush")
	require.NoError(t, err)
	require.NoError(t, coord.SendRaw(context.Background(), probe.Frame))

	char := dev.conn.services[0].chars[0]
	require.Len(t, char.writes, 1)
	assert.Equal(t, probe.Frame, char.writes[0])
}

func TestLegacyVariantEncoding(t *testing.T) {
	dev := newFakeDevice("aa:bb:cc:dd:ee:ff", writableService())
	provider := &fakeProvider{dev: dev}
	coord := New(dev.address, protocol.Legacy, provider, testLogger(), quickOptions())

	require.NoError(t, coord.Flush(context.Background(), true))

	char := dev.conn.services[0].chars[0]
	require.Len(t, char.writes, 1)
	assert.Equal(t, protocol.Encode(protocol.OpFlush, protocol.ValueOn, protocol.Legacy), char.writes[0])
}
