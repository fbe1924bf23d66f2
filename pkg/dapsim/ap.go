package dapsim

import (
	"github.com/OpenTraceLab/OpenTraceADI/pkg/dap"
)

// IDR values used for APs created by NewMemAP and NewOtherAP.
const (
	AHBAPIDR  uint32 = 0x24770011
	JTAGAPIDR uint32 = 0x24760010
)

// DefaultCSW is the reset CSW of a simulated MEM-AP.
const DefaultCSW = uint32(dap.CSW(0x03000000) | dap.CSWDeviceEn | dap.CSW(dap.AddrIncSingle)<<4 | dap.CSW(dap.DataSize32))

// AP models one access port. Memory is only reachable when the IDR class is
// MEM-AP.
type AP struct {
	IDR   uint32
	Base  uint32
	Base2 uint32
	CSW   uint32

	// Only32Bit makes CSW SIZE read back as 32-bit whatever was written.
	Only32Bit bool
	// NoHNONSEC makes CSW HNONSEC read back as zero.
	NoHNONSEC bool

	tar     uint32
	tarHigh uint32
	memory  map[uint64]uint32
}

// NewMemAP returns a MEM-AP whose BASE register points at base using the
// ADIv5 format.
func NewMemAP(base uint64) *AP {
	ap := &AP{
		IDR:    AHBAPIDR,
		CSW:    DefaultCSW,
		memory: make(map[uint64]uint32),
	}
	ap.SetBase(base)
	return ap
}

// NewOtherAP returns an AP that is not a MEM-AP.
func NewOtherAP(idr uint32) *AP {
	return &AP{IDR: idr, memory: make(map[uint64]uint32)}
}

// SetBase sets BASE and BASE2 for base in ADIv5 format with the present bit.
func (a *AP) SetBase(base uint64) {
	a.Base = uint32(base)&0xFFFFF000 | 0x3
	a.Base2 = uint32(base >> 32)
}

// SetWord stores a word at an aligned address.
func (a *AP) SetWord(addr uint64, value uint32) {
	a.memory[addr&^3] = value
}

// Word returns the word at an aligned address; unwritten memory reads zero.
func (a *AP) Word(addr uint64) uint32 {
	return a.memory[addr&^3]
}

func (a *AP) isMemAP() bool {
	return dap.IDR(a.IDR).Class() == dap.APClassMemAP
}

func (a *AP) address() uint64 {
	return uint64(a.tarHigh)<<32 | uint64(a.tar)
}

func (a *AP) read(addr uint8) uint32 {
	switch addr {
	case dap.RegIDR:
		return a.IDR
	}
	if !a.isMemAP() {
		return 0
	}
	switch addr {
	case dap.RegBASE:
		return a.Base
	case dap.RegBASE2:
		return a.Base2
	case dap.RegCSW:
		return a.CSW
	case dap.RegTAR:
		return a.tar
	case dap.RegTARH:
		return a.tarHigh
	case dap.RegDRW:
		value := a.Word(a.address())
		a.increment()
		return value
	case dap.RegBD0, dap.RegBD1, dap.RegBD2, dap.RegBD3:
		return a.Word(a.address()&^0xF + uint64(addr-dap.RegBD0))
	}
	return 0
}

func (a *AP) write(addr uint8, value uint32) {
	if !a.isMemAP() {
		return
	}
	switch addr {
	case dap.RegCSW:
		a.writeCSW(dap.CSW(value))
	case dap.RegTAR:
		a.tar = value
	case dap.RegTARH:
		a.tarHigh = value
	case dap.RegDRW:
		a.store(a.address(), value)
		a.increment()
	case dap.RegBD0, dap.RegBD1, dap.RegBD2, dap.RegBD3:
		a.SetWord(a.address()&^0xF+uint64(addr-dap.RegBD0), value)
	}
}

func (a *AP) writeCSW(csw dap.CSW) {
	old := dap.CSW(a.CSW)
	csw = csw&^(dap.CSWDeviceEn|dap.CSWTrInProg) | old&dap.CSWDeviceEn
	if a.Only32Bit || csw.Size() > dap.DataSize32 {
		csw = csw.WithSize(dap.DataSize32)
	}
	if a.NoHNONSEC {
		csw &^= dap.CSWHNONSEC
	}
	a.CSW = uint32(csw)
}

func (a *AP) store(addr uint64, value uint32) {
	size := dap.CSW(a.CSW).Size()
	if size == dap.DataSize32 {
		a.SetWord(addr, value)
		return
	}
	shift := 8 * (addr & 3)
	mask := uint32(0xFF)
	if size == dap.DataSize16 {
		mask = 0xFFFF
	}
	word := a.Word(addr)
	word = word&^(mask<<shift) | value&(mask<<shift)
	a.SetWord(addr, word)
}

// increment advances TAR, wrapping inside the current 1 KiB block.
func (a *AP) increment() {
	if dap.CSW(a.CSW).AddrInc() != dap.AddrIncSingle {
		return
	}
	step := uint32(1) << dap.CSW(a.CSW).Size()
	a.tar = a.tar&^0x3FF | (a.tar+step)&0x3FF
}
