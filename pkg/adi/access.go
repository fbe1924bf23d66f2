package adi

import (
	"github.com/juju/errors"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/dap"
)

func (i *Interface) readDP(dp dap.DPAddress, addr uint8) (uint32, error) {
	if err := i.selectDPAndDPBank(dp, addr); err != nil {
		return 0, err
	}
	value, err := i.probe.RawReadRegister(dap.DebugPort, addr)
	if err != nil {
		return 0, errors.Annotatef(err, "read DP %s register 0x%02x", dp, addr)
	}
	logger.Tracef("DP %s read 0x%02x == 0x%08x", dp, addr, value)
	return value, nil
}

func (i *Interface) writeDP(dp dap.DPAddress, addr uint8, value uint32) error {
	if err := i.selectDPAndDPBank(dp, addr); err != nil {
		return err
	}
	logger.Tracef("DP %s write 0x%02x = 0x%08x", dp, addr, value)
	if err := i.probe.RawWriteRegister(dap.DebugPort, addr, value); err != nil {
		if addr&0xF == dap.RegSELECT {
			i.dps[dp].selectValid = false
			i.hasCurrentDP = false
		}
		return errors.Annotatef(err, "write DP %s register 0x%02x", dp, addr)
	}
	if addr&0xF == dap.RegSELECT {
		i.dps[dp].updateSelect(dap.Select(value))
	}
	return nil
}

func (i *Interface) readAP(ap dap.APAddress, addr uint8) (uint32, error) {
	if err := i.selectAPAndAPBank(ap, addr); err != nil {
		return 0, err
	}
	value, err := i.probe.RawReadRegister(dap.AccessPort, addr)
	if err != nil {
		return 0, errors.Annotatef(err, "read AP %s register 0x%02x", ap, addr)
	}
	logger.Tracef("AP %s read 0x%02x == 0x%08x", ap, addr, value)
	return value, nil
}

func (i *Interface) writeAP(ap dap.APAddress, addr uint8, value uint32) error {
	if err := i.selectAPAndAPBank(ap, addr); err != nil {
		return err
	}
	logger.Tracef("AP %s write 0x%02x = 0x%08x", ap, addr, value)
	if err := i.probe.RawWriteRegister(dap.AccessPort, addr, value); err != nil {
		i.noteTARHWrite(ap, addr, value, false)
		return errors.Annotatef(err, "write AP %s register 0x%02x", ap, addr)
	}
	i.noteTARHWrite(ap, addr, value, true)
	return nil
}

func (i *Interface) readAPRepeated(ap dap.APAddress, addr uint8, values []uint32) error {
	if err := i.selectAPAndAPBank(ap, addr); err != nil {
		return err
	}
	if err := i.probe.RawReadBlock(dap.AccessPort, addr, values); err != nil {
		return errors.Annotatef(err, "read %d words from AP %s register 0x%02x", len(values), ap, addr)
	}
	logger.Tracef("AP %s read %d words from 0x%02x", ap, len(values), addr)
	return nil
}

func (i *Interface) writeAPRepeated(ap dap.APAddress, addr uint8, values []uint32) error {
	if err := i.selectAPAndAPBank(ap, addr); err != nil {
		return err
	}
	logger.Tracef("AP %s write %d words to 0x%02x", ap, len(values), addr)
	if err := i.probe.RawWriteBlock(dap.AccessPort, addr, values); err != nil {
		i.noteTARHWrite(ap, addr, 0, false)
		return errors.Annotatef(err, "write %d words to AP %s register 0x%02x", len(values), ap, addr)
	}
	if len(values) > 0 {
		i.noteTARHWrite(ap, addr, values[len(values)-1], true)
	}
	return nil
}

// noteTARHWrite keeps the TARH cache of ap in step with writes that reach
// the register, whichever path they take.
func (i *Interface) noteTARHWrite(ap dap.APAddress, addr uint8, value uint32, ok bool) {
	if addr != dap.RegTARH {
		return
	}
	if state, found := i.dps[ap.DP]; found {
		state.updateTARH(ap.AP, value, ok)
	}
}
