package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bigben3333/toptoilet-integration/pkg/protocol"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <address|name> <opcode> <value>",
	Short: "Send a protocol command",
	Long: `Encode a command frame for the given opcode and value and send it.

Opcode and value are single bytes in hex, with or without the 0x prefix.
The flush opcode is 7b; other opcodes are accepted for experimentation.

Example:
  toptoiletctl send aa:bb:cc:dd:ee:ff 7b 01`,
	Args: cobra.ExactArgs(3),
	RunE: runSend,
}

var sendLegacy bool

func init() {
	sendCmd.Flags().BoolVar(&sendLegacy, "legacy", false, "Use the legacy frame encoding")
}

func parseHexByte(name, s string) (byte, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(s), "0x")
	value, err := strconv.ParseUint(trimmed, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a hex byte like 7b", name, s)
	}
	return byte(value), nil
}

func runSend(cmd *cobra.Command, args []string) error {
	opcode, err := parseHexByte("opcode", args[1])
	if err != nil {
		return err
	}
	value, err := parseHexByte("value", args[2])
	if err != nil {
		return err
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

	coord := newCoordinator(cfg, logger, args[0], sendLegacy)

	progress := NewProgressPrinter("Connecting to "+coord.Address(), "Connecting")
	progress.Start()
	err = coord.Connect(ctx)
	progress.Stop()
	if err != nil {
		return err
	}
	defer coord.Disconnect()

	if err := coord.Send(ctx, opcode, value); err != nil {
		return err
	}

	frame := protocol.Encode(opcode, value, coord.Variant())
	fmt.Printf("Sent %s to %s\n", hex.EncodeToString(frame), coord.Address())
	return nil
}
