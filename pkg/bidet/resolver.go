package bidet

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bigben3333/toptoilet-integration/internal/device"
)

// Well-known vendor serial-port characteristics. Jitian firmware revisions
// expose one or the other; older units answer on ffe1, newer ones on fff1.
const (
	LegacySerialCharUUID = "ffe1"
	ModernSerialCharUUID = "fff1"
)

// Candidate is a writable characteristic ranked for command delivery.
type Candidate struct {
	ServiceUUID string
	Char        device.Characteristic
	// Reason explains the ranking for logs and the inspect output.
	Reason string
}

// ResolveCandidates ranks the connection's characteristics for command
// delivery: the legacy serial port first, the modern one second, then every
// other writable characteristic in sorted service/characteristic order. The
// preferred serial ports are included even when they do not advertise write
// capability, since some firmware revisions accept writes regardless.
//
// An empty service table triggers exactly one re-discovery before giving up
// with ErrNoWritableCharacteristic.
func ResolveCandidates(conn device.Connection, logger *logrus.Logger) ([]Candidate, error) {
	services := conn.Services()
	if len(services) == 0 {
		logger.Debug("Service table empty, forcing re-discovery")
		if err := conn.RefreshServices(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDiscoveryFailed, err)
		}
		services = conn.Services()
	}

	var candidates []Candidate
	seen := make(map[string]bool)

	appendPreferred := func(charUUID, reason string) {
		char, svcUUID := findCharacteristic(services, charUUID)
		if char == nil || seen[charUUID] {
			return
		}
		seen[charUUID] = true
		candidates = append(candidates, Candidate{
			ServiceUUID: svcUUID,
			Char:        char,
			Reason:      reason,
		})
	}
	appendPreferred(LegacySerialCharUUID, "legacy serial port")
	appendPreferred(ModernSerialCharUUID, "modern serial port")

	for _, svc := range services {
		for _, char := range svc.Characteristics() {
			if seen[char.UUID()] || !char.Capabilities().Writable() {
				continue
			}
			seen[char.UUID()] = true
			candidates = append(candidates, Candidate{
				ServiceUUID: svc.UUID(),
				Char:        char,
				Reason:      "writable",
			})
		}
	}

	if len(candidates) == 0 {
		return nil, ErrNoWritableCharacteristic
	}

	for i, cand := range candidates {
		logger.WithFields(logrus.Fields{
			"rank":         i,
			"service_uuid": cand.ServiceUUID,
			"char_uuid":    cand.Char.UUID(),
			"capabilities": cand.Char.Capabilities().String(),
			"reason":       cand.Reason,
		}).Debug("Command candidate")
	}
	return candidates, nil
}

// findCharacteristic locates a characteristic by UUID across all services.
// Services and their characteristics arrive sorted, so the first match is
// deterministic when a UUID appears under more than one service.
func findCharacteristic(services []device.Service, charUUID string) (device.Characteristic, string) {
	for _, svc := range services {
		for _, char := range svc.Characteristics() {
			if char.UUID() == charUUID {
				return char, svc.UUID()
			}
		}
	}
	return nil, ""
}
