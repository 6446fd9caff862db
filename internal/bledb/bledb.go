// Package bledb maps the handful of UUIDs this integration cares about to
// human-readable names for logs and inspect output. Unlike a full Bluetooth
// SIG assigned-numbers database, the table is hand-maintained: standard GATT
// entries seen on the bidet hardware plus the vendor-specific entries.
package bledb

import "strings"

// bluetoothBaseSuffix is the tail of the Bluetooth SIG base UUID
// (0000xxxx-0000-1000-8000-00805f9b34fb) with dashes stripped.
const bluetoothBaseSuffix = "00001000800000805f9b34fb"

var serviceNames = map[string]string{
	"1800": "Generic Access",
	"1801": "Generic Attribute",
	"180a": "Device Information",
	"180f": "Battery Service",
	"ffe0": "Vendor Serial Service (legacy bidet control)",
	"fff0": "Wings/Jitian Bidet Control Service",
}

var characteristicNames = map[string]string{
	"2a00": "Device Name",
	"2a01": "Appearance",
	"2a05": "Service Changed",
	"2a19": "Battery Level",
	"2a24": "Model Number String",
	"2a29": "Manufacturer Name String",
	"ffe1": "Vendor Serial Write/Notify (legacy bidet control point)",
	"fff1": "Bidet Control Point",
	"fff2": "Vendor Auxiliary (purpose unknown)",
}

var descriptorNames = map[string]string{
	"2901": "Characteristic User Description",
	"2902": "Client Characteristic Configuration",
}

// NormalizeUUID converts a UUID string to the canonical internal form:
// lowercase, no dashes, no 0x prefix, with 128-bit UUIDs in the Bluetooth SIG
// base range collapsed to their 16-bit short form.
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(uuid), "-", ""))
	u = strings.TrimPrefix(u, "0x")
	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, bluetoothBaseSuffix) {
		return u[4:8]
	}
	return u
}

// NormalizeUUIDs normalizes a slice of UUID strings.
func NormalizeUUIDs(uuids []string) []string {
	result := make([]string, len(uuids))
	for i, u := range uuids {
		result[i] = NormalizeUUID(u)
	}
	return result
}

// LookupService returns the known name for a service UUID, or "".
func LookupService(uuid string) string {
	return serviceNames[NormalizeUUID(uuid)]
}

// LookupCharacteristic returns the known name for a characteristic UUID, or "".
func LookupCharacteristic(uuid string) string {
	return characteristicNames[NormalizeUUID(uuid)]
}

// LookupDescriptor returns the known name for a descriptor UUID, or "".
func LookupDescriptor(uuid string) string {
	return descriptorNames[NormalizeUUID(uuid)]
}
