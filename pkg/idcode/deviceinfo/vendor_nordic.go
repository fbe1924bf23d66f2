package deviceinfo

import "github.com/OpenTraceLab/OpenTraceADI/pkg/idcode"

// Nordic Semiconductor devices
func init() {
	nordic := idcode.NewJEP106Code(2, 0x44)

	register(nordic, 0x006, DeviceInfo{
		Name:        "nRF52832",
		Family:      "nRF52",
		Description: "Bluetooth LE SoC",
		ARMCore:     "Cortex-M4",
		FlashKiB:    512,
	})

	register(nordic, 0x008, DeviceInfo{
		Name:        "nRF52840",
		Family:      "nRF52",
		Description: "Multiprotocol Bluetooth LE / 802.15.4 SoC",
		ARMCore:     "Cortex-M4",
		FlashKiB:    1024,
	})
}
