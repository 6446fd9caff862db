package protocol

import (
	"fmt"
	"sort"
)

// Probe is a raw byte sequence captured during field debugging of devices
// that ignored the documented framing. None of these are a confirmed
// protocol: they are reverse-engineering artifacts kept strictly for
// diagnostics. Nothing in the dispatch path depends on them.
type Probe struct {
	Name        string
	Description string
	Frame       []byte
}

var probes = map[string]Probe{
	"modern-capture": {
		Name:        "modern-capture",
		Description: "flush frame exactly as captured from the vendor app (modern framing)",
		Frame:       []byte{0x55, 0xaa, 0x00, 0x06, 0x05, 0x7b, 0x00, 0x01, 0x01, 0xdb},
	},
	"legacy-capture": {
		Name:        "legacy-capture",
		Description: "flush frame exactly as captured from the vendor app (legacy framing)",
		Frame:       []byte{0x55, 0xaa, 0x00, 0x01, 0x05, 0x7b, 0x00, 0x01, 0x01, 0xa1},
	},
	"auth-prefix": {
		Name:        "auth-prefix",
		Description: "flush opcode behind a guessed 4-byte authentication prefix",
		Frame:       []byte{0xd8, 0xb6, 0x73, 0x09, 0x7b, 0x01},
	},
	"xor-prefix": {
		Name:        "xor-prefix",
		Description: "flush opcode behind the bitwise inverse of the guessed prefix",
		Frame:       []byte{0x27, 0x49, 0x8c, 0xf6, 0x7b, 0x01},
	},
	"at-flush": {
		Name:        "at-flush",
		Description: "AT-style command string, common on cheap BLE serial modules",
		Frame:       []byte("AT+FLUSH"),
	},
	"short-header": {
		Name:        "short-header",
		Description: "header plus bare opcode and value, no version or checksum",
		Frame:       []byte{0x55, 0xaa, 0x7b, 0x01},
	},
	"header-only": {
		Name:        "header-only",
		Description: "frame header alone, to see whether the device reacts at all",
		Frame:       []byte{0x55, 0xaa},
	},
	"bare-opcode": {
		Name:        "bare-opcode",
		Description: "opcode and value with no framing",
		Frame:       []byte{0x7b, 0x01},
	},
}

// ProbeByName looks up a diagnostic probe frame. The returned frame is a
// copy; callers may modify it freely.
func ProbeByName(name string) (Probe, error) {
	p, ok := probes[name]
	if !ok {
		return Probe{}, fmt.Errorf("unknown probe %q", name)
	}
	frame := make([]byte, len(p.Frame))
	copy(frame, p.Frame)
	p.Frame = frame
	return p, nil
}

// Probes returns the diagnostic probe catalogue sorted by name.
func Probes() []Probe {
	result := make([]Probe, 0, len(probes))
	for _, p := range probes {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// challengePrefixLen is how many leading notification bytes the speculative
// challenge-response constructions consume.
const challengePrefixLen = 4

// ChallengeEcho builds a speculative challenge-response frame by echoing the
// first bytes of a received notification in front of an opcode/value pair.
// No handshake of this shape was ever confirmed to exist; the helper is kept
// only so the diagnostic path can reproduce the field experiments.
func ChallengeEcho(notification []byte, opcode, value byte) ([]byte, error) {
	if len(notification) < challengePrefixLen {
		return nil, fmt.Errorf("notification too short for challenge prefix: %d bytes, need %d", len(notification), challengePrefixLen)
	}
	frame := make([]byte, 0, challengePrefixLen+2)
	frame = append(frame, notification[:challengePrefixLen]...)
	return append(frame, opcode, value), nil
}

// ChallengeInvert is ChallengeEcho with every prefix byte bitwise-inverted.
func ChallengeInvert(notification []byte, opcode, value byte) ([]byte, error) {
	frame, err := ChallengeEcho(notification, opcode, value)
	if err != nil {
		return nil, err
	}
	for i := 0; i < challengePrefixLen; i++ {
		frame[i] = ^frame[i]
	}
	return frame, nil
}
