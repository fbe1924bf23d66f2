package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/cmsisdap"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List available debug probes",
	Long: `Scan the host for CMSIS-DAP probes and print a summary of the detected
devices. The simulator is always listed. Use this to verify connectivity or to
find the serial number of a probe before running other commands.`,
	RunE: runInterfaces,
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
}

func runInterfaces(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	probes, err := cmsisdap.DiscoverProbes(ctx)
	if err != nil {
		return fmt.Errorf("discover probes: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Detected debug interfaces:")
	for _, p := range probes {
		fmt.Fprintf(out, "  - %s [cmsisdap] (VID:PID %04X:%04X)\n", p.Label(), p.VendorID, p.ProductID)
	}
	fmt.Fprintln(out, "  - Simulator (no hardware) [simulator]")

	return nil
}
