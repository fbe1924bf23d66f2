package adi

import (
	"fmt"

	"github.com/juju/errors"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/idcode"
)

// Component identification register offsets from a component base.
const (
	offsetPIDR4 = 0xFD0
	offsetPIDR0 = 0xFE0
	offsetCIDR0 = 0xFF0

	// ROM table entries occupy the first 0xF00 bytes of a class 1 table.
	maxROMTableEntries = 0xF00 / 4
	maxROMTableDepth   = 8
)

// ComponentClass is the CIDR1 class of a CoreSight component.
type ComponentClass uint8

const (
	ComponentClassGenericVerification ComponentClass = 0x0
	ComponentClassROMTable            ComponentClass = 0x1
	ComponentClassCoreSight           ComponentClass = 0x9
	ComponentClassPeripheralTestBlock ComponentClass = 0xB
	ComponentClassGenericIP           ComponentClass = 0xE
	ComponentClassPrimeCell           ComponentClass = 0xF
)

func (c ComponentClass) String() string {
	switch c {
	case ComponentClassGenericVerification:
		return "generic verification"
	case ComponentClassROMTable:
		return "ROM table"
	case ComponentClassCoreSight:
		return "CoreSight"
	case ComponentClassPeripheralTestBlock:
		return "peripheral test block"
	case ComponentClassGenericIP:
		return "generic IP"
	case ComponentClassPrimeCell:
		return "PrimeCell"
	}
	return fmt.Sprintf("class(0x%x)", uint8(c))
}

// PeripheralID holds PIDR0..PIDR7, one byte each, PIDR0 in the low byte.
type PeripheralID uint64

// NewPeripheralID assembles the low byte of each PIDR register.
func NewPeripheralID(pidr [8]uint32) PeripheralID {
	var id PeripheralID
	for n, v := range pidr {
		id |= PeripheralID(v&0xFF) << (8 * n)
	}
	return id
}

func (p PeripheralID) pidr(n int) uint8 { return uint8(p >> (8 * n)) }

// Part is the 12-bit part number.
func (p PeripheralID) Part() uint16 {
	return uint16(p.pidr(0)) | uint16(p.pidr(1)&0xF)<<8
}

func (p PeripheralID) Revision() uint8 { return p.pidr(2) >> 4 }

// Size is log2 of the number of 4 KiB blocks occupied by the component.
func (p PeripheralID) Size() uint8 { return p.pidr(4) >> 4 }

// JEP106 returns the designer code when the JEDEC flag is set.
func (p PeripheralID) JEP106() (idcode.JEP106Code, bool) {
	if p.pidr(2)&0x8 == 0 {
		return idcode.JEP106Code{}, false
	}
	id := p.pidr(1)>>4 | (p.pidr(2)&0x7)<<4
	cc := p.pidr(4) & 0xF
	return idcode.NewJEP106Code(cc, id), true
}

func (p PeripheralID) String() string {
	designer := "legacy"
	if code, ok := p.JEP106(); ok {
		designer = code.String()
	}
	return fmt.Sprintf("PID(designer=%s part=0x%03x rev=%d)", designer, p.Part(), p.Revision())
}

// ComponentID is the identification block common to all components.
type ComponentID struct {
	Base       uint64
	Class      ComponentClass
	Peripheral PeripheralID
}

// Component is a node of the debug component tree.
type Component interface {
	ID() ComponentID
}

// ROMTableEntry is one present entry of a class 1 ROM table.
type ROMTableEntry struct {
	// Offset is relative to the table base.
	Offset    int64
	Component Component
}

// Class1ROMTable is an ADIv5 ROM table and the components it lists.
type Class1ROMTable struct {
	ComponentID
	Entries []ROMTableEntry
}

func (t *Class1ROMTable) ID() ComponentID { return t.ComponentID }

// GenericComponent is any other component.
type GenericComponent struct {
	ComponentID
}

func (g *GenericComponent) ID() ComponentID { return g.ComponentID }

// ComponentParser parses the component at base.
type ComponentParser interface {
	ParseComponent(mem MemoryReader, base uint64) (Component, error)
}

// ComponentParserFunc adapts a function to ComponentParser.
type ComponentParserFunc func(mem MemoryReader, base uint64) (Component, error)

func (f ComponentParserFunc) ParseComponent(mem MemoryReader, base uint64) (Component, error) {
	return f(mem, base)
}

// DefaultComponentParser walks CoreSight component identification blocks and
// class 1 ROM tables.
var DefaultComponentParser ComponentParser = ComponentParserFunc(func(mem MemoryReader, base uint64) (Component, error) {
	return parseComponent(mem, base, 0)
})

func readComponentID(mem MemoryReader, base uint64) (ComponentID, error) {
	var cidr [4]uint32
	if err := mem.Read32Block(base+offsetCIDR0, cidr[:]); err != nil {
		return ComponentID{}, errors.Annotatef(err, "read CIDR at 0x%x", base)
	}
	preamble := cidr[0]&0xFF == 0x0D && cidr[1]&0x0F == 0x0 && cidr[2]&0xFF == 0x05 && cidr[3]&0xFF == 0xB1
	if !preamble {
		return ComponentID{}, errors.NotValidf("component preamble at 0x%x (CIDR %08x %08x %08x %08x)",
			base, cidr[0], cidr[1], cidr[2], cidr[3])
	}

	var pidr [8]uint32
	if err := mem.Read32Block(base+offsetPIDR4, pidr[4:]); err != nil {
		return ComponentID{}, errors.Annotatef(err, "read PIDR4-7 at 0x%x", base)
	}
	if err := mem.Read32Block(base+offsetPIDR0, pidr[:4]); err != nil {
		return ComponentID{}, errors.Annotatef(err, "read PIDR0-3 at 0x%x", base)
	}

	return ComponentID{
		Base:       base,
		Class:      ComponentClass(cidr[1]>>4) & 0xF,
		Peripheral: NewPeripheralID(pidr),
	}, nil
}

func parseComponent(mem MemoryReader, base uint64, depth int) (Component, error) {
	id, err := readComponentID(mem, base)
	if err != nil {
		return nil, err
	}
	logger.Debugf("Component at 0x%x: %s %s", base, id.Class, id.Peripheral)

	if id.Class != ComponentClassROMTable {
		return &GenericComponent{ComponentID: id}, nil
	}

	table := &Class1ROMTable{ComponentID: id}
	if depth >= maxROMTableDepth {
		logger.Warnf("ROM table at 0x%x nested too deep, entries skipped", base)
		return table, nil
	}

	for n := 0; n < maxROMTableEntries; n++ {
		entry, err := mem.Read32(base + uint64(n)*4)
		if err != nil {
			return nil, errors.Annotatef(err, "read ROM table entry %d at 0x%x", n, base)
		}
		if entry == 0 {
			break
		}
		if entry&1 == 0 {
			continue
		}
		offset := int64(int32(entry & 0xFFFFF000))
		child := &ROMTableEntry{Offset: offset}
		component, err := parseComponent(mem, uint64(int64(base)+offset), depth+1)
		if err != nil {
			logger.Debugf("ROM table 0x%x entry %d: %v", base, n, err)
		} else {
			child.Component = component
		}
		table.Entries = append(table.Entries, *child)
	}
	return table, nil
}
