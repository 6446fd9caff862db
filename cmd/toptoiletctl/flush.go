package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// flushCmd represents the flush command
var flushCmd = &cobra.Command{
	Use:   "flush <address|name> [on|off]",
	Short: "Trigger the flush function",
	Long: `Connect to the unit and send the flush command.

The state argument defaults to "on". Older units use a different frame
encoding; pass --legacy if the unit ignores the default one.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runFlush,
}

var flushLegacy bool

func init() {
	flushCmd.Flags().BoolVar(&flushLegacy, "legacy", false, "Use the legacy frame encoding")
}

func runFlush(cmd *cobra.Command, args []string) error {
	on := true
	if len(args) == 2 {
		switch args[1] {
		case "on":
			on = true
		case "off":
			on = false
		default:
			return fmt.Errorf("invalid state %q: must be on or off", args[1])
		}
	}

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

	coord := newCoordinator(cfg, logger, args[0], flushLegacy)

	progress := NewProgressPrinter("Connecting to "+coord.Address(), "Connecting")
	progress.Start()
	err = coord.Connect(ctx)
	progress.Stop()
	if err != nil {
		return err
	}
	defer coord.Disconnect()

	if err := coord.Flush(ctx, on); err != nil {
		return err
	}

	state := "on"
	if !on {
		state = "off"
	}
	fmt.Printf("Flush %s command sent to %s (%s variant)\n", state, coord.Address(), coord.Variant())
	return nil
}
