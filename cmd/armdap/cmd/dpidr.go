package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/adi"
	"github.com/OpenTraceLab/OpenTraceADI/pkg/dap"
)

var dpidrCmd = &cobra.Command{
	Use:   "dpidr",
	Short: "Read the debug port identification register",
	Long: `Switch the wire to SWD, select the debug port given with --dp and read its
DPIDR without powering up the debug domain.

Examples:
  armdap dpidr --adapter simulator
  armdap dpidr --dp 0x01002927`,
	RunE: runDPIDR,
}

func init() {
	rootCmd.AddCommand(dpidrCmd)
}

func runDPIDR(cmd *cobra.Command, args []string) error {
	probe, err := openProbe()
	if err != nil {
		return fmt.Errorf("failed to create adapter: %w", err)
	}
	defer probe.Close()

	if err := adi.NewDefaultSequence().DebugPortSetup(probe); err != nil {
		return fmt.Errorf("debug port setup: %w", err)
	}
	dp := selectedDP()
	if err := probe.SelectDP(dp); err != nil {
		return fmt.Errorf("select %s: %w", dp, err)
	}

	value, err := adi.NewUninitialized(probe, overrunDetect).ReadDPIDR()
	if err != nil {
		return err
	}

	dpidr := dap.DPIDR(value)
	designer, ok := dpidr.Designer().Name()
	if !ok {
		designer = dpidr.Designer().String()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Debug port: %s\n", dp)
	fmt.Fprintf(out, "  DPIDR:    0x%08X\n", value)
	fmt.Fprintf(out, "  Version:  %s\n", dpidr.Version())
	fmt.Fprintf(out, "  Designer: %s\n", designer)
	fmt.Fprintf(out, "  Part:     0x%02X\n", dpidr.PartNo())
	fmt.Fprintf(out, "  Revision: %d\n", dpidr.Revision())
	if dpidr.Minimal() {
		fmt.Fprintln(out, "  Minimal debug port (no pushed operations)")
	}
	return nil
}
