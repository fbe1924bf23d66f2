package deviceinfo

import "github.com/OpenTraceLab/OpenTraceADI/pkg/idcode"

// DeviceInfo contains rich information about a chip identified through its
// debug ROM table
type DeviceInfo struct {
	// Key fields
	Manufacturer idcode.Manufacturer
	Part         uint16

	// Human-friendly
	Name        string // "STM32F40x/41x"
	Family      string // "STM32F4"
	Description string // "ARM Cortex-M4 MCU with FPU"

	// Capabilities / hints
	ARMCore      string // "Cortex-M4", "Cortex-M33", etc.
	FlashKiB     int
	DatasheetURL string

	// Known is false for the generic fallback entry
	Known bool
}
