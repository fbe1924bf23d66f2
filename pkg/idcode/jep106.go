package idcode

import "fmt"

// JEP106Code is a JEDEC JEP106 manufacturer identity: the number of 0x7F
// continuation codes (CC) followed by the 7-bit ID, parity stripped.
type JEP106Code struct {
	CC uint8
	ID uint8
}

// NewJEP106Code builds a code from its continuation count and ID.
func NewJEP106Code(cc, id uint8) JEP106Code {
	return JEP106Code{CC: cc & 0xF, ID: id & 0x7F}
}

// JEP106FromPacked splits the 11-bit form used by IDCODE, DPIDR and AP IDR
// (CC in [10:7], ID in [6:0]).
func JEP106FromPacked(code uint16) JEP106Code {
	return JEP106Code{CC: uint8(code>>7) & 0xF, ID: uint8(code) & 0x7F}
}

// Packed returns the 11-bit form of the code.
func (c JEP106Code) Packed() uint16 {
	return uint16(c.CC&0xF)<<7 | uint16(c.ID&0x7F)
}

// Name returns the manufacturer name when the code is known.
func (c JEP106Code) Name() (string, bool) {
	m, ok := manufacturers[c.Packed()]
	if !ok {
		return "", false
	}
	return m.Name, true
}

func (c JEP106Code) String() string {
	if name, ok := c.Name(); ok {
		return name
	}
	return fmt.Sprintf("cc=0x%02x id=0x%02x", c.CC, c.ID)
}

// manufacturers is the JEP106 manufacturer database, keyed by packed code
var manufacturers = map[uint16]Manufacturer{}

func init() {
	for _, m := range []Manufacturer{
		{Code: NewJEP106Code(0, 0x01), Name: "AMD", Abbreviation: "AMD"},
		{Code: NewJEP106Code(0, 0x04), Name: "Fujitsu", Abbreviation: "Fujitsu"},
		{Code: NewJEP106Code(0, 0x07), Name: "Hitachi", Abbreviation: "Hitachi"},
		{Code: NewJEP106Code(0, 0x09), Name: "Intel", Abbreviation: "Intel"},
		{Code: NewJEP106Code(0, 0x0E), Name: "Freescale (Motorola)", Abbreviation: "Freescale"},
		{Code: NewJEP106Code(0, 0x15), Name: "NXP (Philips)", Abbreviation: "NXP"},
		{Code: NewJEP106Code(0, 0x17), Name: "Texas Instruments", Abbreviation: "TI"},
		{Code: NewJEP106Code(0, 0x18), Name: "Toshiba", Abbreviation: "Toshiba"},
		{Code: NewJEP106Code(0, 0x1C), Name: "Mitsubishi", Abbreviation: "Mitsubishi"},
		{Code: NewJEP106Code(0, 0x1F), Name: "Atmel", Abbreviation: "Atmel"},
		{Code: NewJEP106Code(0, 0x20), Name: "STMicroelectronics", Abbreviation: "STM"},
		{Code: NewJEP106Code(0, 0x21), Name: "Lattice Semiconductor", Abbreviation: "Lattice"},
		{Code: NewJEP106Code(0, 0x29), Name: "Microchip Technology", Abbreviation: "Microchip"},
		{Code: NewJEP106Code(0, 0x34), Name: "Cypress", Abbreviation: "Cypress"},
		{Code: NewJEP106Code(0, 0x41), Name: "Infineon", Abbreviation: "Infineon"},
		{Code: NewJEP106Code(0, 0x49), Name: "Xilinx", Abbreviation: "Xilinx"},
		{Code: NewJEP106Code(0, 0x65), Name: "Analog Devices", Abbreviation: "ADI"},
		{Code: NewJEP106Code(0, 0x6E), Name: "Altera", Abbreviation: "Altera"},
		{Code: NewJEP106Code(2, 0x21), Name: "Silicon Laboratories", Abbreviation: "SiLabs"},
		{Code: NewJEP106Code(2, 0x44), Name: "Nordic VLSI ASA", Abbreviation: "Nordic"},
		{Code: NewJEP106Code(4, 0x3B), Name: "ARM Ltd", Abbreviation: "ARM"},
		{Code: NewJEP106Code(7, 0x51), Name: "GigaDevice Semiconductor", Abbreviation: "GigaDevice"},
		{Code: NewJEP106Code(9, 0x13), Name: "Raspberry Pi Trading", Abbreviation: "RPi"},
	} {
		manufacturers[m.Code.Packed()] = m
	}
}

// LookupManufacturer returns manufacturer info for a JEP106 code
func LookupManufacturer(code JEP106Code) (Manufacturer, bool) {
	m, ok := manufacturers[code.Packed()]
	if !ok {
		// Return unknown manufacturer
		return Manufacturer{
			Code:         code,
			Name:         fmt.Sprintf("Unknown (%s)", code),
			Abbreviation: "Unknown",
		}, false
	}
	return m, true
}
