package bidet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObserverRegistrySnapshotIsStableDuringNotification(t *testing.T) {
	// TEST SCENARIO: an observer that removes itself while a notification
	// round is in flight must not affect that round.
	registry := newObserverRegistry()

	var calls []string
	var selfID ObserverID
	selfID = registry.add(func(bool) {
		calls = append(calls, "self")
		registry.remove(selfID)
	})
	registry.add(func(bool) {
		calls = append(calls, "other")
	})

	for _, fn := range registry.snapshot() {
		fn(true)
	}
	assert.Equal(t, []string{"self", "other"}, calls)

	// The self-removed observer is gone from the next round.
	assert.Len(t, registry.snapshot(), 1)
}

func TestObserverRegistryRemoveUnknown(t *testing.T) {
	registry := newObserverRegistry()
	assert.False(t, registry.remove(ObserverID(42)))
}
