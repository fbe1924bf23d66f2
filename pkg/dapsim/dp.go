package dapsim

import (
	"github.com/boljen/go-bitmap"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/dap"
)

const stickyBits = dap.CtrlSTICKYORUN | dap.CtrlSTICKYCMP | dap.CtrlSTICKYERR | dap.CtrlWDATAERR

// DebugPort models the DP registers and the APs behind one debug port.
type DebugPort struct {
	DPIDR    uint32
	TargetID uint32

	// PowerUpFails keeps the power-up acknowledge bits clear.
	PowerUpFails bool

	addr     dap.DPAddress
	ctrl     dap.Ctrl
	sel      dap.Select
	rdbuff   uint32
	aps      []*AP
	faulting bitmap.Bitmap
}

func newDebugPort(addr dap.DPAddress, dpidr uint32) *DebugPort {
	return &DebugPort{
		DPIDR:    dpidr,
		addr:     addr,
		faulting: bitmap.New(256),
	}
}

// AddAP appends ap and returns its AP number.
func (d *DebugPort) AddAP(ap *AP) uint8 {
	d.aps = append(d.aps, ap)
	return uint8(len(d.aps) - 1)
}

// AP returns AP n, or nil when there is none.
func (d *DebugPort) AP(n uint8) *AP {
	if int(n) >= len(d.aps) {
		return nil
	}
	return d.aps[n]
}

// SetFaulting makes every access to AP n answer FAULT and set STICKYERR.
func (d *DebugPort) SetFaulting(n uint8, faulting bool) {
	d.faulting.Set(int(n), faulting)
}

// SetSticky sets sticky flags in CTRL/STAT, as a failed transfer would.
func (d *DebugPort) SetSticky(flags dap.Ctrl) {
	d.ctrl |= flags & stickyBits
}

// Ctrl returns CTRL/STAT as the debugger would read it.
func (d *DebugPort) Ctrl() dap.Ctrl {
	ctrl := d.ctrl
	if !d.PowerUpFails {
		if ctrl&dap.CtrlCDBGPWRUPREQ != 0 {
			ctrl |= dap.CtrlCDBGPWRUPACK
		}
		if ctrl&dap.CtrlCSYSPWRUPREQ != 0 {
			ctrl |= dap.CtrlCSYSPWRUPACK
		}
	}
	return ctrl
}

// Select returns the current SELECT value.
func (d *DebugPort) Select() dap.Select {
	return d.sel
}

// Only A[3:2] of addr is decoded, the bank comes from SELECT like on the
// wire.
func (d *DebugPort) readDP(addr uint8) uint32 {
	switch addr & 0xC {
	case dap.RegDPIDR:
		return d.DPIDR
	case dap.BankedDPRegister:
		switch d.sel.DPBankSel() {
		case 0:
			return uint32(d.Ctrl())
		case 2:
			return d.TargetID
		}
		return 0
	case dap.RegSELECT, dap.RegRDBUFF:
		return d.rdbuff
	}
	return 0
}

func (d *DebugPort) writeDP(addr uint8, value uint32) {
	switch addr & 0xC {
	case dap.RegABORT:
		abort := dap.Abort(value)
		if abort&dap.AbortSTKCMPCLR != 0 {
			d.ctrl &^= dap.CtrlSTICKYCMP
		}
		if abort&dap.AbortSTKERRCLR != 0 {
			d.ctrl &^= dap.CtrlSTICKYERR
		}
		if abort&dap.AbortWDERRCLR != 0 {
			d.ctrl &^= dap.CtrlWDATAERR
		}
		if abort&dap.AbortORUNERRCLR != 0 {
			d.ctrl &^= dap.CtrlSTICKYORUN
		}
	case dap.BankedDPRegister:
		if d.sel.DPBankSel() == 0 {
			acks := dap.CtrlCDBGPWRUPACK | dap.CtrlCSYSPWRUPACK
			d.ctrl = d.ctrl&stickyBits | dap.Ctrl(value)&^stickyBits&^acks
		}
	case dap.RegSELECT:
		d.sel = dap.Select(value)
	}
}

func (d *DebugPort) selectedAP() (*AP, error) {
	n := d.sel.APSel()
	if d.ctrl&dap.CtrlSTICKYERR != 0 || d.faulting.Get(int(n)) {
		d.ctrl |= dap.CtrlSTICKYERR
		return nil, dap.ErrFaultResponse
	}
	return d.AP(n), nil
}

func (d *DebugPort) readAP(addr uint8) (uint32, error) {
	ap, err := d.selectedAP()
	if err != nil {
		return 0, err
	}
	var value uint32
	if ap != nil {
		value = ap.read(d.sel.APBankSel()<<4 | addr&0xC)
	}
	d.rdbuff = value
	return value, nil
}

func (d *DebugPort) writeAP(addr uint8, value uint32) error {
	ap, err := d.selectedAP()
	if err != nil {
		return err
	}
	if ap != nil {
		ap.write(d.sel.APBankSel()<<4|addr&0xC, value)
	}
	return nil
}
