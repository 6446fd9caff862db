package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// listenCmd represents the listen command
var listenCmd = &cobra.Command{
	Use:   "listen <address|name>",
	Short: "Listen for notifications from the unit",
	Long: `Connect to the unit, subscribe to its serial characteristic and print
every notification as a hex dump until the duration elapses or Ctrl+C.

The units' reply format is undocumented; this output is for protocol
exploration only.`,
	Args: cobra.ExactArgs(1),
	RunE: runListen,
}

var listenDuration time.Duration

func init() {
	listenCmd.Flags().DurationVarP(&listenDuration, "duration", "d", 0, "Stop after this duration (0 = until Ctrl+C)")
}

func runListen(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	ctx, cancel := commandContext()
	defer cancel()
	if listenDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, listenDuration)
		defer cancel()
	}

	coord := newCoordinator(cfg, logger, args[0], false)

	progress := NewProgressPrinter("Connecting to "+coord.Address(), "Connecting")
	progress.Start()
	err = coord.Connect(ctx)
	progress.Stop()
	if err != nil {
		return err
	}
	defer coord.Disconnect()

	disconnected := make(chan struct{})
	coord.OnConnectionChanged(func(connected bool) {
		if !connected {
			close(disconnected)
		}
	})

	fmt.Printf("Listening on %s (Ctrl+C to stop)...\n", coord.Address())
	count := 0
	for {
		select {
		case event := <-coord.Listener().Events():
			count++
			fmt.Printf("%s  %s  %s\n",
				event.ReceivedAt.Format("15:04:05.000"),
				event.UUID,
				hex.EncodeToString(event.Payload))
		case <-disconnected:
			fmt.Println("Device disconnected.")
			return nil
		case <-ctx.Done():
			fmt.Printf("\n%d notification(s) received\n", count)
			if payload, ok := coord.Listener().LastPayload(); ok {
				fmt.Printf("Last payload: %s\n", hex.EncodeToString(payload))
			}
			return nil
		}
	}
}
