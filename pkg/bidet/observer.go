package bidet

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ObserverID identifies a registered connection observer.
type ObserverID uint64

// observerRegistry holds connection-state observers in registration order.
// The ordered map gives O(1) removal while keeping notification order stable.
type observerRegistry struct {
	mu        sync.Mutex
	nextID    ObserverID
	observers *orderedmap.OrderedMap[ObserverID, func(connected bool)]
}

func newObserverRegistry() *observerRegistry {
	return &observerRegistry{
		observers: orderedmap.New[ObserverID, func(connected bool)](),
	}
}

func (r *observerRegistry) add(fn func(connected bool)) ObserverID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.observers.Set(id, fn)
	return id
}

func (r *observerRegistry) remove(id ObserverID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, present := r.observers.Delete(id)
	return present
}

// snapshot returns the observers in registration order. Notification happens
// on the snapshot, so an observer that removes itself (or others) mid-callback
// does not affect the in-flight round.
func (r *observerRegistry) snapshot() []func(connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fns := make([]func(connected bool), 0, r.observers.Len())
	for pair := r.observers.Oldest(); pair != nil; pair = pair.Next() {
		fns = append(fns, pair.Value)
	}
	return fns
}
