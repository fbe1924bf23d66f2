package adi

import "github.com/OpenTraceLab/OpenTraceADI/pkg/dap"

// dpState is what the interface remembers about one debug port.
type dpState struct {
	version dap.DebugPortVersion

	// Cached SELECT fields. selectValid is false once a SELECT write has
	// failed, forcing the next banked access to rewrite the register.
	apSel       uint8
	apBank      uint8
	dpBank      uint8
	selectValid bool

	// accessPorts is indexed by AP number and only ever replaced by a full
	// scan.
	accessPorts []APInformation

	// tarHigh holds the last TARH value written per AP. An AP missing from
	// the map has TARH at its reset value of zero.
	tarHigh map[uint8]cachedTARH
}

type cachedTARH struct {
	value uint32
	valid bool
}

// newDPState assumes SELECT reads as zero, which is what the debug port
// start sequence leaves behind.
func newDPState() *dpState {
	return &dpState{
		version:     dap.DPVersionUnknown,
		selectValid: true,
		tarHigh:     make(map[uint8]cachedTARH),
	}
}

func (s *dpState) selectValue() dap.Select {
	return dap.NewSelect(s.apSel, s.apBank, s.dpBank)
}

func (s *dpState) updateSelect(sel dap.Select) {
	s.apSel = sel.APSel()
	s.apBank = sel.APBankSel()
	s.dpBank = sel.DPBankSel()
	s.selectValid = true
}

// knownTARH returns the TARH value of ap, or false when it is unknown.
func (s *dpState) knownTARH(ap uint8) (uint32, bool) {
	if s == nil {
		return 0, false
	}
	cached, ok := s.tarHigh[ap]
	if !ok {
		return 0, true
	}
	return cached.value, cached.valid
}

func (s *dpState) updateTARH(ap uint8, value uint32, valid bool) {
	s.tarHigh[ap] = cachedTARH{value: value, valid: valid}
}
