package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeByName(t *testing.T) {
	p, err := ProbeByName("at-flush")

	require.NoError(t, err)
	assert.Equal(t, "at-flush", p.Name)
	assert.Equal(t, []byte("AT+FLUSH"), p.Frame)
}

func TestProbeByNameUnknown(t *testing.T) {
	_, err := ProbeByName("warp-drive")
	assert.Error(t, err)
}

func TestProbeByNameReturnsCopy(t *testing.T) {
	p1, err := ProbeByName("header-only")
	require.NoError(t, err)
	p1.Frame[0] = 0x00

	p2, err := ProbeByName("header-only")
	require.NoError(t, err)
	assert.Equal(t, byte(0x55), p2.Frame[0], "mutating a returned probe must not corrupt the catalogue")
}

func TestProbesSortedAndComplete(t *testing.T) {
	all := Probes()

	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Name, all[i].Name, "catalogue must be sorted by name")
	}
	for _, p := range all {
		assert.NotEmpty(t, p.Description, "probe %s needs a description", p.Name)
		assert.NotEmpty(t, p.Frame, "probe %s needs a frame", p.Name)
	}
}

func TestChallengeEcho(t *testing.T) {
	notification := []byte{0xd8, 0xb6, 0x73, 0x09, 0xaa, 0xbb}

	frame, err := ChallengeEcho(notification, OpFlush, ValueOn)

	require.NoError(t, err)
	assert.Equal(t, []byte{0xd8, 0xb6, 0x73, 0x09, 0x7b, 0x01}, frame)
}

func TestChallengeInvert(t *testing.T) {
	notification := []byte{0xd8, 0xb6, 0x73, 0x09}

	frame, err := ChallengeInvert(notification, OpFlush, ValueOn)

	require.NoError(t, err)
	assert.Equal(t, []byte{0x27, 0x49, 0x8c, 0xf6, 0x7b, 0x01}, frame, "prefix bytes are bitwise-inverted, opcode and value are not")
}

func TestChallengeTooShort(t *testing.T) {
	_, err := ChallengeEcho([]byte{0x01}, OpFlush, ValueOn)
	assert.Error(t, err)

	_, err = ChallengeInvert(nil, OpFlush, ValueOn)
	assert.Error(t, err)
}
