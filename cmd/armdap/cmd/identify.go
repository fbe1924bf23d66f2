package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/idcode/deviceinfo"
)

var identifyCmd = &cobra.Command{
	Use:   "identify",
	Short: "Identify the chip from its CoreSight ROM table",
	Long: `Walk the MEM-APs of the debug port given with --dp in order and read the
manufacturer and part number published by the first class 1 ROM table found.
The result is matched against the built-in device database.

Examples:
  armdap identify --adapter simulator
  armdap identify --adapter cmsisdap --serial E6614103`,
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)
}

func runIdentify(cmd *cobra.Command, args []string) error {
	iface, err := openInterface()
	if err != nil {
		return err
	}
	defer closeInterface(iface)

	dp := selectedDP()
	chip, err := iface.IdentifyChip(dp)
	if err != nil {
		return fmt.Errorf("chip identification failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if chip == nil {
		color.New(color.FgYellow).Fprintf(out, "No ROM table identified the chip on %s\n", dp)
		return nil
	}

	color.New(color.FgGreen).Fprintf(out, "Chip: %s\n", chip)

	info := deviceinfo.Lookup(chip.Manufacturer, chip.Part)
	if !info.Known {
		fmt.Fprintf(out, "  %s (%s)\n", info.Name, info.Description)
		return nil
	}
	fmt.Fprintf(out, "  Device:      %s (%s)\n", info.Name, info.Family)
	fmt.Fprintf(out, "  Description: %s\n", info.Description)
	if info.ARMCore != "" {
		fmt.Fprintf(out, "  Core:        %s\n", info.ARMCore)
	}
	if info.FlashKiB > 0 {
		fmt.Fprintf(out, "  Flash:       %d KiB\n", info.FlashKiB)
	}
	if info.DatasheetURL != "" {
		fmt.Fprintf(out, "  Datasheet:   %s\n", info.DatasheetURL)
	}
	return nil
}
