package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bigben3333/toptoilet-integration/pkg/bidet"
	"github.com/bigben3333/toptoilet-integration/pkg/protocol"
)

// rawCmd represents the raw command
var rawCmd = &cobra.Command{
	Use:   "raw <address|name> [<hex-frame>]",
	Short: "Send a raw frame or a named probe",
	Long: `Send an arbitrary byte sequence to the unit, bypassing the frame
encoder. The frame is given as a hex string, or selected from the catalogue
of known probe frames with --probe.

Examples:
  toptoiletctl raw aa:bb:cc:dd:ee:ff 55aa0006057b00010187
  toptoiletctl raw aa:bb:cc:dd:ee:ff --probe at-flush
  toptoiletctl raw --list-probes`,
	RunE: runRaw,
}

var (
	rawProbe      string
	rawListProbes bool
	rawChallenge  string
)

func init() {
	rawCmd.Flags().StringVar(&rawProbe, "probe", "", "Send a named probe frame instead of a hex argument")
	rawCmd.Flags().BoolVar(&rawListProbes, "list-probes", false, "List the known probe frames and exit")
	rawCmd.Flags().StringVar(&rawChallenge, "challenge", "", "Derive the frame from the unit's last notification (echo or invert)")
}

func runRaw(cmd *cobra.Command, args []string) error {
	if rawListProbes {
		printProbes()
		return nil
	}

	if len(args) < 1 {
		return fmt.Errorf("device address is required")
	}

	var frame []byte
	switch {
	case rawChallenge != "":
		if rawChallenge != "echo" && rawChallenge != "invert" {
			return fmt.Errorf("invalid challenge mode %q: must be echo or invert", rawChallenge)
		}
	case rawProbe != "":
		probe, err := protocol.ProbeByName(rawProbe)
		if err != nil {
			return err
		}
		frame = probe.Frame
	case len(args) >= 2:
		decoded, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(args[1]), "0x"))
		if err != nil {
			return fmt.Errorf("invalid hex frame %q: %w", args[1], err)
		}
		if len(decoded) == 0 {
			return fmt.Errorf("frame is empty")
		}
		frame = decoded
	default:
		return fmt.Errorf("a hex frame argument, --probe or --challenge is required")
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

	coord := newCoordinator(cfg, logger, args[0], false)

	progress := NewProgressPrinter("Connecting to "+coord.Address(), "Connecting")
	progress.Start()
	err = coord.Connect(ctx)
	progress.Stop()
	if err != nil {
		return err
	}
	defer coord.Disconnect()

	if rawChallenge != "" {
		frame, err = buildChallengeFrame(ctx, coord, rawChallenge)
		if err != nil {
			return err
		}
	}

	if err := coord.SendRaw(ctx, frame); err != nil {
		return err
	}

	fmt.Printf("Sent %s to %s\n", hex.EncodeToString(frame), coord.Address())
	return nil
}

const challengeWait = 3 * time.Second

// buildChallengeFrame waits for a notification from the unit and derives a
// flush frame from it, on the theory that the unit expects its notification
// bytes echoed (or bit-inverted) back as a session token.
func buildChallengeFrame(ctx context.Context, coord *bidet.Coordinator, mode string) ([]byte, error) {
	notification, ok := coord.Listener().LastPayload()
	if !ok {
		fmt.Println("Waiting for a notification from the unit...")
		select {
		case event := <-coord.Listener().Events():
			notification = event.Payload
		case <-time.After(challengeWait):
			return nil, fmt.Errorf("no notification received within %v; cannot derive challenge frame", challengeWait)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if mode == "invert" {
		return protocol.ChallengeInvert(notification, protocol.OpFlush, protocol.ValueOn)
	}
	return protocol.ChallengeEcho(notification, protocol.OpFlush, protocol.ValueOn)
}

func printProbes() {
	bold := color.New(color.Bold)
	for _, probe := range protocol.Probes() {
		bold.Printf("%s\n", probe.Name)
		fmt.Printf("  frame: %s\n", hex.EncodeToString(probe.Frame))
		fmt.Printf("  %s\n", probe.Description)
	}
}
