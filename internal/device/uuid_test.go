package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortenUUID(t *testing.T) {
	assert.Equal(t, "fff1", ShortenUUID("fff1"))
	assert.Equal(t, "6e400001", ShortenUUID("6e400001b5a3f393e0a9e50e24dcca9e"))
}

func TestValidateUUID(t *testing.T) {
	got, err := ValidateUUID("FFE0", "0000fff1-0000-1000-8000-00805f9b34fb")
	require.NoError(t, err)
	assert.Equal(t, []string{"ffe0", "fff1"}, got)

	_, err = ValidateUUID()
	assert.Error(t, err, "no UUIDs")

	_, err = ValidateUUID("fff0", "")
	assert.Error(t, err, "empty UUID")
}

func TestCapabilityString(t *testing.T) {
	assert.Equal(t, "none", Capability(0).String())
	assert.Equal(t, "write", CapWrite.String())
	assert.Equal(t, "read,write,notify", (CapRead | CapWrite | CapNotify).String())
}

func TestCapabilityWritable(t *testing.T) {
	assert.False(t, CapRead.Writable())
	assert.False(t, CapNotify.Writable())
	assert.True(t, CapWrite.Writable())
	assert.True(t, CapWriteNoResponse.Writable())
	assert.True(t, (CapRead | CapWriteNoResponse).Writable())
}

func TestConnectionErrorIs(t *testing.T) {
	err := &ConnectionError{State: NotConnected, Msg: "link dropped"}

	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NotErrorIs(t, err, ErrAlreadyConnected)
	assert.Equal(t, "not_connected: link dropped", err.Error())
	assert.Equal(t, "already_connected", ErrAlreadyConnected.Error())
}

func TestNotFoundErrorMessages(t *testing.T) {
	assert.Equal(t, `service "fff0" not found`,
		(&NotFoundError{Resource: "service", UUIDs: []string{"fff0"}}).Error())
	assert.Equal(t, `characteristic "fff1" not found in service "fff0"`,
		(&NotFoundError{Resource: "characteristic", UUIDs: []string{"fff0", "fff1"}}).Error())
}
