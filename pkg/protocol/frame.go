// Package protocol implements the reverse-engineered binary command framing
// used by the Wings/Jitian "Top Toilet" BLE bidet. All functions are pure and
// perform no I/O.
//
// A command frame is 10 bytes:
//
//	55 aa | 00 06 or 00 01 | 05 | <opcode> | 00 01 | <value> | <checksum>
//	head  | protocol ver.  | len|          | trail |         |
//
// The checksum is the sum of all preceding bytes modulo 256. The device never
// NACKs a bad checksum; a wrong byte just means the frame is silently ignored,
// so the computation here has to be bit-exact with the appliance firmware.
package protocol

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Variant selects the protocol-version field of a frame. Older hardware
// revisions speak the legacy framing (version 0001), newer ones the modern
// framing (version 0006).
type Variant int

const (
	// Modern is the framing observed in current app traffic (version 0006).
	Modern Variant = iota
	// Legacy is the framing used by older hardware revisions (version 0001).
	Legacy
)

// Known opcodes and values. Only the flush command was ever confirmed from
// captured app traffic; other opcodes presumably exist but are undocumented.
const (
	OpFlush byte = 0x7b

	ValueOn  byte = 0x01
	ValueOff byte = 0x00
)

// FrameLength is the fixed size of an encoded command frame, checksum included.
const FrameLength = 10

// cmdLength is the fixed length byte for this command family.
const cmdLength byte = 0x05

var (
	frameHeader  = [2]byte{0x55, 0xaa}
	frameTrailer = [2]byte{0x00, 0x01}

	versionModern = [2]byte{0x00, 0x06}
	versionLegacy = [2]byte{0x00, 0x01}
)

func (v Variant) String() string {
	switch v {
	case Modern:
		return "modern"
	case Legacy:
		return "legacy"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// ParseVariant converts a configuration string to a Variant. It accepts the
// canonical names plus the "new"/"old" aliases used by the vendor app.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "modern", "new", "":
		return Modern, nil
	case "legacy", "old":
		return Legacy, nil
	default:
		return Modern, fmt.Errorf("unknown protocol variant %q (must be modern or legacy)", s)
	}
}

func (v Variant) version() [2]byte {
	if v == Legacy {
		return versionLegacy
	}
	return versionModern
}

// Checksum returns the single-byte modular sum the device uses to validate
// frame integrity: the sum of all bytes modulo 256.
func Checksum(b []byte) byte {
	var sum byte
	for _, c := range b {
		sum += c
	}
	return sum
}

// Encode builds a complete command frame for the given opcode and value.
// The result is always FrameLength bytes.
func Encode(opcode, value byte, variant Variant) []byte {
	version := variant.version()

	frame := make([]byte, 0, FrameLength)
	frame = append(frame, frameHeader[0], frameHeader[1])
	frame = append(frame, version[0], version[1])
	frame = append(frame, cmdLength, opcode)
	frame = append(frame, frameTrailer[0], frameTrailer[1])
	frame = append(frame, value)
	return append(frame, Checksum(frame))
}

// Flush returns the encoded flush command, the only operation confirmed from
// captured traffic.
func Flush(on bool, variant Variant) []byte {
	value := ValueOff
	if on {
		value = ValueOn
	}
	return Encode(OpFlush, value, variant)
}

// FormatFrame renders a frame as a lowercase hex string for logs.
func FormatFrame(frame []byte) string {
	return hex.EncodeToString(frame)
}
