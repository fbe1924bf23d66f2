package deviceinfo

import "github.com/OpenTraceLab/OpenTraceADI/pkg/idcode"

// STMicroelectronics devices. The ROM table part number equals the DBGMCU
// device ID.
func init() {
	stm := idcode.NewJEP106Code(0, 0x20)

	// STM32F1 series
	register(stm, 0x410, DeviceInfo{
		Name:        "STM32F10x (Medium-density)",
		Family:      "STM32F1",
		Description: "ARM Cortex-M3 MCU",
		ARMCore:     "Cortex-M3",
		FlashKiB:    128,
	})

	register(stm, 0x412, DeviceInfo{
		Name:        "STM32F10x (Low-density)",
		Family:      "STM32F1",
		Description: "ARM Cortex-M3 MCU",
		ARMCore:     "Cortex-M3",
		FlashKiB:    32,
	})

	register(stm, 0x414, DeviceInfo{
		Name:        "STM32F10x (High-density)",
		Family:      "STM32F1",
		Description: "ARM Cortex-M3 MCU",
		ARMCore:     "Cortex-M3",
		FlashKiB:    512,
	})

	// STM32F4 series
	register(stm, 0x413, DeviceInfo{
		Name:         "STM32F40x/41x",
		Family:       "STM32F4",
		Description:  "ARM Cortex-M4 MCU with FPU",
		ARMCore:      "Cortex-M4",
		FlashKiB:     1024,
		DatasheetURL: "https://www.st.com/resource/en/datasheet/stm32f407vg.pdf",
	})

	register(stm, 0x419, DeviceInfo{
		Name:        "STM32F42x/43x",
		Family:      "STM32F4",
		Description: "ARM Cortex-M4 MCU with FPU",
		ARMCore:     "Cortex-M4",
		FlashKiB:    2048,
	})

	// STM32F3 series
	register(stm, 0x422, DeviceInfo{
		Name:        "STM32F30x/31x",
		Family:      "STM32F3",
		Description: "ARM Cortex-M4 MCU with FPU",
		ARMCore:     "Cortex-M4",
		FlashKiB:    256,
	})

	// STM32F7 series
	register(stm, 0x449, DeviceInfo{
		Name:        "STM32F74x/75x",
		Family:      "STM32F7",
		Description: "ARM Cortex-M7 MCU with FPU",
		ARMCore:     "Cortex-M7",
		FlashKiB:    1024,
	})

	// STM32H7 series
	register(stm, 0x450, DeviceInfo{
		Name:        "STM32H74x/75x",
		Family:      "STM32H7",
		Description: "ARM Cortex-M7 MCU with FPU",
		ARMCore:     "Cortex-M7",
		FlashKiB:    2048,
	})
}
