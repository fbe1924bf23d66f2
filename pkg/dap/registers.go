package dap

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/idcode"
)

// Debug port register addresses. Bits [7:4] hold the DPBANKSEL value for the
// banked register at 0x4; the other addresses ignore the bank.
const (
	RegDPIDR     uint8 = 0x00 // read
	RegABORT     uint8 = 0x00 // write
	RegCTRLSTAT  uint8 = 0x04
	RegDLCR      uint8 = 0x14
	RegTARGETID  uint8 = 0x24
	RegDLPIDR    uint8 = 0x34
	RegEVENTSTAT uint8 = 0x44
	RegSELECT    uint8 = 0x08
	RegRDBUFF    uint8 = 0x0C // read
	RegTARGETSEL uint8 = 0x0C // write
)

// MEM-AP and generic AP register addresses. Bits [7:4] are APBANKSEL.
const (
	RegCSW   uint8 = 0x00
	RegTAR   uint8 = 0x04
	RegTARH  uint8 = 0x08
	RegDRW   uint8 = 0x0C
	RegBD0   uint8 = 0x10
	RegBD1   uint8 = 0x14
	RegBD2   uint8 = 0x18
	RegBD3   uint8 = 0x1C
	RegMBT   uint8 = 0x20
	RegBASE2 uint8 = 0xF0
	RegCFG   uint8 = 0xF4
	RegBASE  uint8 = 0xF8
	RegIDR   uint8 = 0xFC
)

// BankedDPRegister is the only DP register address whose meaning depends on
// DPBANKSEL.
const BankedDPRegister uint8 = 0x4

// SplitAddress splits an 8-bit register address into bank and in-bank address.
func SplitAddress(addr uint8) (bank, reg uint8) {
	return addr >> 4, addr & 0xF
}

// DebugPortVersion is the DP architecture version reported by DPIDR.
type DebugPortVersion uint8

const (
	DPv0 DebugPortVersion = iota
	DPv1
	DPv2
	DPv3

	DPVersionUnknown DebugPortVersion = 0xFF
)

func (v DebugPortVersion) String() string {
	switch v {
	case DPv0, DPv1, DPv2, DPv3:
		return fmt.Sprintf("DPv%d", uint8(v))
	case DPVersionUnknown:
		return "unknown"
	}
	return fmt.Sprintf("unsupported(%d)", uint8(v))
}

// DPIDR is the debug port identification register.
type DPIDR uint32

func (r DPIDR) Revision() uint8 { return uint8(r>>28) & 0xF }
func (r DPIDR) PartNo() uint8   { return uint8(r >> 20) }
func (r DPIDR) Minimal() bool   { return r&(1<<16) != 0 }

func (r DPIDR) Version() DebugPortVersion {
	v := DebugPortVersion(r>>12) & 0xF
	if v > DPv3 {
		return DPVersionUnknown
	}
	return v
}

// Designer returns the JEP106 code of the DP designer.
func (r DPIDR) Designer() idcode.JEP106Code {
	return idcode.JEP106FromPacked(uint16(r>>1) & 0x7FF)
}

func (r DPIDR) String() string {
	return fmt.Sprintf("DPIDR(0x%08x %s designer=%s part=0x%02x rev=%d)",
		uint32(r), r.Version(), r.Designer(), r.PartNo(), r.Revision())
}

// Ctrl is the DP CTRL/STAT register.
type Ctrl uint32

const (
	CtrlORUNDETECT   Ctrl = 1 << 0
	CtrlSTICKYORUN   Ctrl = 1 << 1
	CtrlSTICKYCMP    Ctrl = 1 << 4
	CtrlSTICKYERR    Ctrl = 1 << 5
	CtrlREADOK       Ctrl = 1 << 6
	CtrlWDATAERR     Ctrl = 1 << 7
	CtrlMASKLANE     Ctrl = 0xF << 8
	CtrlCDBGRSTREQ   Ctrl = 1 << 26
	CtrlCDBGRSTACK   Ctrl = 1 << 27
	CtrlCDBGPWRUPREQ Ctrl = 1 << 28
	CtrlCDBGPWRUPACK Ctrl = 1 << 29
	CtrlCSYSPWRUPREQ Ctrl = 1 << 30
	CtrlCSYSPWRUPACK Ctrl = 1 << 31
)

func (c Ctrl) OrunDetect() bool { return c&CtrlORUNDETECT != 0 }
func (c Ctrl) StickyErr() bool  { return c&CtrlSTICKYERR != 0 }
func (c Ctrl) StickyOrun() bool { return c&CtrlSTICKYORUN != 0 }
func (c Ctrl) StickyCmp() bool  { return c&CtrlSTICKYCMP != 0 }

// PoweredUp reports whether both debug and system power-up are acknowledged.
func (c Ctrl) PoweredUp() bool {
	return c&CtrlCDBGPWRUPACK != 0 && c&CtrlCSYSPWRUPACK != 0
}

// WithOrunDetect returns c with ORUNDETECT forced to enabled.
func (c Ctrl) WithOrunDetect(enabled bool) Ctrl {
	if enabled {
		return c | CtrlORUNDETECT
	}
	return c &^ CtrlORUNDETECT
}

// Select is the DP SELECT register. One write sets all three selectors.
type Select uint32

// NewSelect encodes APSEL [31:24], APBANKSEL [7:4] and DPBANKSEL [3:0].
func NewSelect(apSel, apBankSel, dpBankSel uint8) Select {
	return Select(uint32(apSel)<<24 | uint32(apBankSel&0xF)<<4 | uint32(dpBankSel&0xF))
}

func (s Select) APSel() uint8     { return uint8(s >> 24) }
func (s Select) APBankSel() uint8 { return uint8(s>>4) & 0xF }
func (s Select) DPBankSel() uint8 { return uint8(s) & 0xF }

func (s Select) String() string {
	return fmt.Sprintf("SELECT(ap=%d apbank=%d dpbank=%d)", s.APSel(), s.APBankSel(), s.DPBankSel())
}

// Abort is the write-only DP ABORT register.
type Abort uint32

const (
	AbortDAPABORT   Abort = 1 << 0
	AbortSTKCMPCLR  Abort = 1 << 1
	AbortSTKERRCLR  Abort = 1 << 2
	AbortWDERRCLR   Abort = 1 << 3
	AbortORUNERRCLR Abort = 1 << 4

	// AbortClearAll clears every sticky flag without aborting the transfer.
	AbortClearAll = AbortSTKCMPCLR | AbortSTKERRCLR | AbortWDERRCLR | AbortORUNERRCLR
)

// APClass is the CLASS field of an AP IDR.
type APClass uint8

const (
	APClassUndefined APClass = 0x0
	APClassCOMAP     APClass = 0x1
	APClassMemAP     APClass = 0x8
)

func (c APClass) String() string {
	switch c {
	case APClassUndefined:
		return "undefined"
	case APClassCOMAP:
		return "COM-AP"
	case APClassMemAP:
		return "MEM-AP"
	}
	return fmt.Sprintf("class(0x%x)", uint8(c))
}

// IDR is the AP identification register.
type IDR uint32

func (r IDR) Revision() uint8 { return uint8(r>>28) & 0xF }
func (r IDR) Class() APClass  { return APClass(r>>13) & 0xF }
func (r IDR) Variant() uint8  { return uint8(r>>4) & 0xF }
func (r IDR) Type() uint8     { return uint8(r) & 0xF }

// Designer returns the JEP106 code held in IDR[27:17].
func (r IDR) Designer() idcode.JEP106Code {
	return idcode.JEP106FromPacked(uint16(r>>17) & 0x7FF)
}

func (r IDR) String() string {
	return fmt.Sprintf("IDR(0x%08x %s type=%d variant=%d designer=%s rev=%d)",
		uint32(r), r.Class(), r.Type(), r.Variant(), r.Designer(), r.Revision())
}

// BaseFormat tells whether the BASE register uses the ADIv5 layout.
type BaseFormat uint8

const (
	BaseFormatLegacy BaseFormat = 0
	BaseFormatADIv5  BaseFormat = 1
)

// Base is the MEM-AP BASE register.
type Base uint32

// BaseAddr returns the BASEADDR field, bits [31:12] of the debug base.
func (b Base) BaseAddr() uint32   { return uint32(b) >> 12 }
func (b Base) Format() BaseFormat { return BaseFormat(b>>1) & 1 }
func (b Base) EntryPresent() bool { return b&1 != 0 }
func (b Base) Address() uint32    { return b.BaseAddr() << 12 }
func (b Base) IsADIv5() bool      { return b.Format() == BaseFormatADIv5 }

// DataSize is the CSW SIZE field.
type DataSize uint8

const (
	DataSize8 DataSize = iota
	DataSize16
	DataSize32
	DataSize64
	DataSize128
	DataSize256
)

func (s DataSize) String() string {
	if s > DataSize256 {
		return fmt.Sprintf("DataSize(%d)", uint8(s))
	}
	return fmt.Sprintf("%d-bit", 8<<s)
}

// AddrInc is the CSW AddrInc field.
type AddrInc uint8

const (
	AddrIncOff AddrInc = iota
	AddrIncSingle
	AddrIncPacked
)

// CSW is the MEM-AP control/status word.
type CSW uint32

const (
	CSWDbgSwEnable CSW = 1 << 31
	CSWHNONSEC     CSW = 1 << 30
	CSWSPIDEN      CSW = 1 << 23
	CSWTrInProg    CSW = 1 << 7
	CSWDeviceEn    CSW = 1 << 6

	cswProtShift  = 28
	cswCacheShift = 24
	cswIncShift   = 4
	cswSizeMask   = 0x7
)

// NewCSW builds the CSW value used for debugger accesses of the given size:
// software access enabled, non-secure requested, privileged data, cacheable,
// single auto-increment.
func NewCSW(size DataSize) CSW {
	return CSWDbgSwEnable | CSWHNONSEC |
		CSW(0b10)<<cswProtShift |
		CSW(0b11)<<cswCacheShift |
		CSW(AddrIncSingle)<<cswIncShift |
		CSW(size)&cswSizeMask
}

func (c CSW) Size() DataSize    { return DataSize(c & cswSizeMask) }
func (c CSW) AddrInc() AddrInc  { return AddrInc(c>>cswIncShift) & 0x3 }
func (c CSW) HNONSEC() bool     { return c&CSWHNONSEC != 0 }
func (c CSW) DeviceEn() bool    { return c&CSWDeviceEn != 0 }
func (c CSW) Prot() uint8       { return uint8(c>>cswProtShift) & 0x3 }
func (c CSW) Cache() uint8      { return uint8(c>>cswCacheShift) & 0xF }
func (c CSW) Mode() uint8       { return uint8(c>>8) & 0xF }
func (c CSW) TrInProg() bool    { return c&CSWTrInProg != 0 }
func (c CSW) DbgSwEnable() bool { return c&CSWDbgSwEnable != 0 }

// WithSize returns c with the SIZE field replaced.
func (c CSW) WithSize(size DataSize) CSW {
	return c&^cswSizeMask | CSW(size)&cswSizeMask
}

// WithAddrInc returns c with the AddrInc field replaced.
func (c CSW) WithAddrInc(inc AddrInc) CSW {
	return c&^(0x3<<cswIncShift) | CSW(inc&0x3)<<cswIncShift
}

func (c CSW) String() string {
	return fmt.Sprintf("CSW(0x%08x size=%s inc=%d hnonsec=%t deviceen=%t)",
		uint32(c), c.Size(), c.AddrInc(), c.HNONSEC(), c.DeviceEn())
}
