package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bigben3333/toptoilet-integration/pkg/bidet"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <address|name>",
	Short: "Inspect a device's GATT layout and command candidates",
	Long: `Connect to the unit and display its services and characteristics,
followed by the ranked list of characteristics that commands would be
written to, in order.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
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

	return printProfile(coord, logger)
}

func printProfile(coord *bidet.Coordinator, logger *logrus.Logger) error {
	conn := coord.Connection()
	if conn == nil {
		return fmt.Errorf("connection lost during inspection")
	}

	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	bold.Printf("Device %s\n\n", coord.Address())

	for _, svc := range conn.Services() {
		cyan.Printf("service %s", svc.UUID())
		if name := svc.KnownName(); name != "" {
			fmt.Printf("  (%s)", name)
		}
		fmt.Println()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, char := range svc.Characteristics() {
			name := char.KnownName()
			if name == "" {
				name = "-"
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\n", char.UUID(), name, char.Capabilities())
		}
		w.Flush()
		fmt.Println()
	}

	candidates, err := bidet.ResolveCandidates(conn, logger)
	if err != nil {
		fmt.Printf("No command candidates: %s\n", FormatUserError(err))
		return nil
	}

	bold.Println("Command candidates (in write order):")
	for i, cand := range candidates {
		green.Printf("  %d. %s", i+1, cand.Char.UUID())
		fmt.Printf("  in service %s  [%s]  %s\n", cand.ServiceUUID, cand.Char.Capabilities(), cand.Reason)
	}
	return nil
}
