package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/bigben3333/toptoilet-integration/pkg/bidet"
	"github.com/bigben3333/toptoilet-integration/pkg/config"
	"github.com/bigben3333/toptoilet-integration/pkg/protocol"
)

// resolveTarget maps a command argument onto a configured device: the
// argument may be an address or a config-file device name.
func resolveTarget(cfg *config.Config, arg string) (address string, variant protocol.Variant) {
	variant = protocol.Modern
	address = arg
	if dev, ok := cfg.Device(arg); ok {
		address = dev.Address
		if parsed, err := protocol.ParseVariant(dev.Variant); err == nil {
			variant = parsed
		}
	}
	return address, variant
}

// newCoordinator builds a coordinator with the config's timeouts. The
// --legacy flag overrides whatever variant the config resolves.
func newCoordinator(cfg *config.Config, logger *logrus.Logger, arg string, legacy bool) *bidet.Coordinator {
	address, variant := resolveTarget(cfg, arg)
	if legacy {
		variant = protocol.Legacy
	}

	opts := &bidet.Options{
		ConnectTimeout: cfg.ConnectTimeout.Std(),
		WriteTimeout:   cfg.WriteTimeout.Std(),
		ConnectRetries: cfg.ConnectRetries,
		RetryBackoff:   cfg.RetryBackoff.Std(),
	}
	return bidet.New(address, variant, bidet.NewDirectProvider(logger), logger, opts)
}

// commandContext returns a context cancelled by Ctrl+C or SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
