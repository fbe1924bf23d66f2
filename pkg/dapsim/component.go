package dapsim

import (
	"github.com/OpenTraceLab/OpenTraceADI/pkg/idcode"
)

// Component classes as found in CIDR1.
const (
	ClassROMTable  uint8 = 0x1
	ClassCoreSight uint8 = 0x9
	ClassGenericIP uint8 = 0xE
)

// Component describes the identification block of a debug component, and
// for ROM tables the table entries, to be laid out in AP memory.
type Component struct {
	Base     uint64
	Class    uint8
	Designer idcode.JEP106Code
	// NoJEDEC clears the JEDEC flag, marking a legacy designer code.
	NoJEDEC  bool
	Part     uint16
	Revision uint8

	// Entries are raw ROM table entries; a zero terminator follows them.
	Entries []uint32
}

// ROMTable describes a class 1 ROM table.
func ROMTable(base uint64, designer idcode.JEP106Code, part uint16, entries ...uint32) Component {
	return Component{
		Base:     base,
		Class:    ClassROMTable,
		Designer: designer,
		Part:     part,
		Entries:  entries,
	}
}

// ROMTableEntry encodes a present, 32-bit format entry pointing offset bytes
// away from the table base.
func ROMTableEntry(offset int64) uint32 {
	return uint32(offset)&0xFFFFF000 | 0x3
}

// AddComponent writes the CIDR/PIDR words of c, and its ROM table entries,
// into the AP memory.
func (a *AP) AddComponent(c Component) {
	jedec := uint32(1) << 3
	if c.NoJEDEC {
		jedec = 0
	}
	id := uint32(c.Designer.ID)
	pidr := [8]uint32{
		uint32(c.Part) & 0xFF,
		uint32(c.Part>>8)&0xF | (id&0xF)<<4,
		(id>>4)&0x7 | jedec | uint32(c.Revision&0xF)<<4,
		0,
		uint32(c.Designer.CC) & 0xF,
	}
	for n := 0; n < 4; n++ {
		a.SetWord(c.Base+0xFE0+uint64(n)*4, pidr[n])
		a.SetWord(c.Base+0xFD0+uint64(n)*4, pidr[4+n])
	}

	cidr := [4]uint32{0x0D, uint32(c.Class&0xF) << 4, 0x05, 0xB1}
	for n, v := range cidr {
		a.SetWord(c.Base+0xFF0+uint64(n)*4, v)
	}

	for n, entry := range c.Entries {
		a.SetWord(c.Base+uint64(n)*4, entry)
	}
	a.SetWord(c.Base+uint64(len(c.Entries))*4, 0)
}
