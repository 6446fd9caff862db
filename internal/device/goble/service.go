package goble

import (
	"sort"

	"github.com/bigben3333/toptoilet-integration/internal/device"
)

// BLEService is a discovered GATT service. It implements device.Service.
type BLEService struct {
	uuid      string
	knownName string
	chars     map[string]*BLECharacteristic
}

func (s *BLEService) UUID() string {
	return s.uuid
}

func (s *BLEService) KnownName() string {
	return s.knownName
}

// Characteristics returns the service's characteristics sorted by UUID so
// traversal order is deterministic.
func (s *BLEService) Characteristics() []device.Characteristic {
	result := make([]device.Characteristic, 0, len(s.chars))
	for _, char := range s.chars {
		result = append(result, char)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UUID() < result[j].UUID()
	})
	return result
}
