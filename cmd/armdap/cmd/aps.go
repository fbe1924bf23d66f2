package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/adi"
)

var apsCmd = &cobra.Command{
	Use:   "aps",
	Short: "List the access ports of a debug port",
	Long: `Power up the debug port given with --dp, scan its access ports and print how
each one was classified. MEM-APs show their debug base address and the
transfer sizes and security attributes they accept.`,
	RunE: runAPs,
}

func init() {
	rootCmd.AddCommand(apsCmd)
}

func runAPs(cmd *cobra.Command, args []string) error {
	iface, err := openInterface()
	if err != nil {
		return err
	}
	defer closeInterface(iface)

	dp := selectedDP()
	aps, err := iface.AccessPorts(dp)
	if err != nil {
		return fmt.Errorf("access port discovery: %w", err)
	}
	version, err := iface.DebugPortVersion(dp)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Debug port %s (%s): %d access port(s)\n", dp, version, len(aps))
	for _, info := range aps {
		switch ap := info.(type) {
		case adi.MemoryAPInformation:
			color.New(color.FgGreen).Fprintf(out, "  AP%-3d MEM-AP", ap.Address.AP)
			fmt.Fprintf(out, "  base 0x%08X", ap.DebugBaseAddress)
			if ap.Only32BitDataSize {
				fmt.Fprint(out, "  32-bit only")
			}
			if ap.SupportsHNONSEC {
				fmt.Fprint(out, "  HNONSEC")
			}
			fmt.Fprintln(out)
		default:
			color.New(color.FgYellow).Fprintf(out, "  AP%-3d other\n", info.APAddress().AP)
		}
	}
	return nil
}
