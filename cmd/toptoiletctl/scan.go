package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bigben3333/toptoilet-integration/internal/device"
	"github.com/bigben3333/toptoilet-integration/internal/device/goble"
	"github.com/bigben3333/toptoilet-integration/scanner"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for BLE devices",
	Long: `Scan for and display Bluetooth Low Energy devices in the vicinity.

Discovered devices are listed with their names, addresses, RSSI values and
advertised services. Use the address with the other commands.`,
	RunE: runScan,
}

var (
	scanDuration  time.Duration
	scanFormat    string
	scanServices  []string
	scanAllowList []string
	scanBlockList []string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (default from config, 10s)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().StringSliceVarP(&scanServices, "services", "s", nil, "Filter by service UUIDs")
	scanCmd.Flags().StringSliceVar(&scanAllowList, "allow", nil, "Only show devices with these addresses")
	scanCmd.Flags().StringSliceVar(&scanBlockList, "block", nil, "Hide devices with these addresses")
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format %q: must be table or json", scanFormat)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	duration := cfg.ScanTimeout.Std()
	if scanDuration > 0 {
		duration = scanDuration
	}

	var serviceUUIDs []string
	if len(scanServices) > 0 {
		serviceUUIDs, err = device.ValidateUUID(scanServices...)
		if err != nil {
			return fmt.Errorf("invalid service UUID: %w", err)
		}
	}

	scanOpts := &scanner.ScanOptions{
		Duration:        duration,
		DuplicateFilter: true,
		ServiceUUIDs:    serviceUUIDs,
		AllowList:       scanAllowList,
		BlockList:       scanBlockList,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	progress := NewCountdownProgressPrinter("Scanning for devices", "Scanning", duration)
	progress.Start()

	s := scanner.NewScanner(logger)
	devices, err := s.Scan(ctx, scanOpts, progress.Callback())
	progress.Stop()
	if err != nil {
		return err
	}

	if scanFormat == "json" {
		return printScanJSON(devices)
	}
	printScanTable(devices)
	return nil
}

func sortedAdvertisements(devices map[string]goble.Advertisement) []goble.Advertisement {
	result := make([]goble.Advertisement, 0, len(devices))
	for _, adv := range devices {
		result = append(result, adv)
	}
	// Strongest signal first
	sort.Slice(result, func(i, j int) bool {
		if result[i].RSSI != result[j].RSSI {
			return result[i].RSSI > result[j].RSSI
		}
		return result[i].Address < result[j].Address
	})
	return result
}

func printScanTable(devices map[string]goble.Advertisement) {
	if len(devices) == 0 {
		fmt.Println("No devices found.")
		return
	}

	bold := color.New(color.Bold)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	bold.Fprintln(w, "ADDRESS\tNAME\tRSSI\tSERVICES")
	for _, adv := range sortedAdvertisements(devices) {
		name := adv.LocalName
		if name == "" {
			name = "(unknown)"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", adv.Address, name, adv.RSSI, strings.Join(adv.Services, ","))
	}
	w.Flush()
	fmt.Printf("\n%d device(s) found\n", len(devices))
}

func printScanJSON(devices map[string]goble.Advertisement) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(sortedAdvertisements(devices))
}
