package bidet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/bigben3333/toptoilet-integration/pkg/protocol"
)

// Registry tracks one coordinator per device address. Lookups are lock-free;
// Start handles concurrent registration races by keeping the first
// coordinator to land.
type Registry struct {
	logger       *logrus.Logger
	coordinators *hashmap.Map[string, *Coordinator]
}

func NewRegistry(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Registry{
		logger:       logger,
		coordinators: hashmap.New[string, *Coordinator](),
	}
}

func registryKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Start returns a connected coordinator for the address, creating one when
// needed. A device that cannot be connected is not registered.
func (r *Registry) Start(ctx context.Context, address string, variant protocol.Variant, provider DeviceProvider, opts *Options) (*Coordinator, error) {
	key := registryKey(address)
	if key == "" {
		return nil, fmt.Errorf("%w: empty address", ErrDeviceNotFound)
	}

	if existing, ok := r.coordinators.Get(key); ok {
		return existing, existing.Connect(ctx)
	}

	coord := New(address, variant, provider, r.logger, opts)
	if err := coord.Connect(ctx); err != nil {
		return nil, fmt.Errorf("device %q is not ready: %w", address, err)
	}

	if !r.coordinators.Insert(key, coord) {
		// Lost the registration race; keep the winner.
		if err := coord.Disconnect(); err != nil {
			r.logger.WithField("error", err).Warn("Failed to disconnect duplicate coordinator")
		}
		existing, _ := r.coordinators.Get(key)
		return existing, nil
	}

	r.logger.WithField("address", address).Info("Coordinator registered")
	return coord, nil
}

// Get returns the coordinator for the address, if registered.
func (r *Registry) Get(address string) (*Coordinator, bool) {
	return r.coordinators.Get(registryKey(address))
}

// Stop disconnects and removes the coordinator for the address. Unknown
// addresses are a no-op.
func (r *Registry) Stop(address string) error {
	key := registryKey(address)
	coord, ok := r.coordinators.Get(key)
	if !ok {
		return nil
	}
	r.coordinators.Del(key)

	err := coord.Disconnect()
	coord.Listener().Close()
	r.logger.WithField("address", address).Info("Coordinator removed")
	return err
}

// Addresses returns the registered addresses in sorted order.
func (r *Registry) Addresses() []string {
	var addresses []string
	r.coordinators.Range(func(key string, _ *Coordinator) bool {
		addresses = append(addresses, key)
		return true
	})
	sort.Strings(addresses)
	return addresses
}

// StopAll tears down every registered coordinator. Errors are joined; a
// failing disconnect does not stop the sweep.
func (r *Registry) StopAll() error {
	var errs []error
	for _, address := range r.Addresses() {
		if err := r.Stop(address); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", address, err))
		}
	}
	return errors.Join(errs...)
}
