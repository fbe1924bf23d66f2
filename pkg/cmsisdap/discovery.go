package cmsisdap

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

// ProbeInfo describes a detected CMSIS-DAP probe.
type ProbeInfo struct {
	Description string
	VendorID    uint16
	ProductID   uint16
	Serial      string
	Path        string
}

// Label returns a user-friendly description for the probe.
func (i ProbeInfo) Label() string {
	label := i.Description
	if label == "" {
		label = fmt.Sprintf("CMSIS-DAP %04X:%04X", i.VendorID, i.ProductID)
	}
	if i.Serial != "" {
		label += " [" + i.Serial + "]"
	}
	return label
}

// DiscoverProbes enumerates connected USB devices that match known CMSIS-DAP
// VID/PID pairs.
func DiscoverProbes(ctx context.Context) ([]ProbeInfo, error) {
	var results []ProbeInfo
	usb := gousb.NewContext()
	defer usb.Close()

	devs, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		_, ok := classifyUSBDevice(desc)
		return ok
	})
	for _, dev := range devs {
		info, _ := classifyUSBDevice(dev.Desc)
		info.Serial, _ = dev.SerialNumber()
		info.Path = fmt.Sprintf("bus %d port %v", dev.Desc.Bus, dev.Desc.Path)
		results = append(results, info)
		dev.Close()
	}
	if err != nil && err != gousb.ErrorAccess {
		return results, err
	}
	if ctx.Err() != nil {
		return results, ctx.Err()
	}

	return results, nil
}

func classifyUSBDevice(desc *gousb.DeviceDesc) (ProbeInfo, bool) {
	for _, known := range knownCMSISDAPVIDPIDs {
		if uint16(desc.Vendor) == known.VendorID && uint16(desc.Product) == known.ProductID {
			return ProbeInfo{
				Description: known.Description,
				VendorID:    known.VendorID,
				ProductID:   known.ProductID,
			}, true
		}
	}
	return ProbeInfo{}, false
}

type knownUSBDevice struct {
	VendorID    uint16
	ProductID   uint16
	Description string
}

var knownCMSISDAPVIDPIDs = []knownUSBDevice{
	{VendorID: VendorIDRaspberryPi, ProductID: ProductIDCMSISDAP, Description: "Raspberry Pi Debug Probe"},
	{VendorID: 0x0d28, ProductID: 0x0204, Description: "DAPLink CMSIS-DAP"},
	{VendorID: 0x1366, ProductID: 0x0101, Description: "SEGGER J-Link CMSIS-DAP"},
	{VendorID: 0xc251, ProductID: 0xf001, Description: "Keil ULINKplus"},
}

// IsKnownProbe reports whether vid:pid belongs to a known CMSIS-DAP probe.
func IsKnownProbe(vid, pid uint16) bool {
	_, ok := classifyUSBDevice(&gousb.DeviceDesc{Vendor: gousb.ID(vid), Product: gousb.ID(pid)})
	return ok
}
