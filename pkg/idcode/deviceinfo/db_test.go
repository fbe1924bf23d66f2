package deviceinfo

import (
	"testing"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/idcode"
)

func TestLookupKnownDevice(t *testing.T) {
	info := Lookup(idcode.NewJEP106Code(0, 0x20), 0x413)

	if !info.Known {
		t.Fatal("STM32F40x not in the database")
	}
	if info.Name != "STM32F40x/41x" || info.ARMCore != "Cortex-M4" {
		t.Errorf("Lookup() = %+v", info)
	}
	if info.Manufacturer.Name != "STMicroelectronics" || info.Part != 0x413 {
		t.Errorf("Lookup() key fields = %+v, 0x%x", info.Manufacturer, info.Part)
	}
}

func TestLookupUnknownDevice(t *testing.T) {
	tests := []struct {
		name string
		code idcode.JEP106Code
		part uint16
		want string
	}{
		{"unknown part", idcode.NewJEP106Code(0, 0x20), 0xFFF, "STMicroelectronics"},
		{"unknown manufacturer", idcode.NewJEP106Code(3, 0x7E), 0x413, "Unknown (cc=0x03 id=0x7e)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := Lookup(tt.code, tt.part)
			if info.Known {
				t.Errorf("Lookup() = %+v, want the fallback", info)
			}
			if info.Manufacturer.Name != tt.want || info.Part != tt.part {
				t.Errorf("Lookup() = %+v", info)
			}
		})
	}
}

func TestLookupSameIDDifferentBank(t *testing.T) {
	// Same 7-bit ID in another continuation bank is another manufacturer.
	if info := Lookup(idcode.NewJEP106Code(1, 0x20), 0x413); info.Known {
		t.Errorf("Lookup() matched across JEP106 banks: %+v", info)
	}
}
