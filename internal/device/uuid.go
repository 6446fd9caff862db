package device

import (
	"fmt"

	"github.com/bigben3333/toptoilet-integration/internal/bledb"
)

// NormalizeUUID is re-exported from bledb for convenience. It converts a UUID
// string to the internal form: lowercase, no dashes, no 0x prefix, Bluetooth
// base UUIDs collapsed to their 16-bit short form.
func NormalizeUUID(uuid string) string {
	return bledb.NormalizeUUID(uuid)
}

// NormalizeUUIDs normalizes a slice of UUID strings to internal form.
func NormalizeUUIDs(uuids []string) []string {
	return bledb.NormalizeUUIDs(uuids)
}

// ShortenUUID truncates long UUIDs for display. Short UUIDs pass through.
func ShortenUUID(uuid string) string {
	if len(uuid) > 8 {
		return uuid[:8]
	}
	return uuid
}

// ValidateUUID checks that the given UUID strings are non-empty and returns
// their normalized forms.
func ValidateUUID(uuids ...string) ([]string, error) {
	if len(uuids) == 0 {
		return nil, fmt.Errorf("at least one UUID is required")
	}
	result := make([]string, 0, len(uuids))
	for i, uuid := range uuids {
		if uuid == "" {
			return nil, fmt.Errorf("UUID at index %d cannot be empty", i)
		}
		normalized := NormalizeUUID(uuid)
		if normalized == "" {
			return nil, fmt.Errorf("invalid UUID format at index %d: %s", i, uuid)
		}
		result = append(result, normalized)
	}
	return result, nil
}
