package adi

import (
	"github.com/juju/errors"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/dap"
)

// selectDP makes dp the active debug port. The first time a debug port is
// selected it is started and its access ports are scanned.
func (i *Interface) selectDP(dp dap.DPAddress) error {
	if i.hasCurrentDP && i.currentDP == dp {
		return nil
	}

	logger.Debugf("Selecting DP %s", dp)
	if err := i.probe.SelectDP(dp); err != nil {
		i.hasCurrentDP = false
		return errors.Annotatef(err, "select DP %s", dp)
	}
	i.currentDP, i.hasCurrentDP = dp, true

	if _, ok := i.dps[dp]; ok {
		return nil
	}

	i.dps[dp] = newDPState()
	if err := i.startDP(dp); err != nil {
		// A half started port is forgotten so the next selection starts
		// it again from scratch. This is the one case where AP discovery
		// runs a second time; a port that started keeps its scan forever.
		delete(i.dps, dp)
		i.hasCurrentDP = false
		return err
	}
	return nil
}

func (i *Interface) startDP(dp dap.DPAddress) error {
	state := i.dps[dp]

	if err := i.sequence.DebugPortStart(i, dp); err != nil {
		return errors.Annotatef(err, "start DP %s", dp)
	}

	dpidr, err := i.readDP(dp, dap.RegDPIDR)
	if err != nil {
		return errors.Trace(err)
	}
	state.version = dap.DPIDR(dpidr).Version()
	logger.Debugf("DP %s: %s", dp, dap.DPIDR(dpidr))

	ctrl, err := i.readDP(dp, dap.RegCTRLSTAT)
	if err != nil {
		return errors.Trace(err)
	}
	ctrl = uint32(dap.Ctrl(ctrl).WithOrunDetect(i.useOverrunDetect))
	logger.Debugf("Setting ORUNDETECT to %t on DP %s", i.useOverrunDetect, dp)
	if err := i.writeDP(dp, dap.RegCTRLSTAT, ctrl); err != nil {
		return errors.Trace(err)
	}

	logger.Tracef("Searching valid APs on DP %s", dp)
	var accessPorts []APInformation
	err = i.forEachValidAP(dp, func(ap dap.APAddress, idr dap.IDR) (bool, error) {
		info, err := i.classifyIDR(ap, idr)
		if err != nil {
			return false, errors.Trace(err)
		}
		accessPorts = append(accessPorts, info)
		return true, nil
	})
	if err != nil {
		return errors.Annotatef(err, "scan APs of DP %s", dp)
	}
	state.accessPorts = accessPorts
	logger.Debugf("DP %s: %d access ports", dp, len(accessPorts))
	return nil
}

// selectDPAndDPBank selects dp and, when addr is the banked register, the DP
// bank encoded in addr[7:4].
func (i *Interface) selectDPAndDPBank(dp dap.DPAddress, addr uint8) error {
	if err := i.selectDP(dp); err != nil {
		return err
	}

	bank, reg := dap.SplitAddress(addr)
	if reg != dap.BankedDPRegister {
		return nil
	}

	state := i.dps[dp]
	if state.selectValid && state.dpBank == bank {
		return nil
	}

	logger.Debugf("Changing DP_BANK_SEL to %d on DP %s", bank, dp)
	return i.writeSelect(dp, dap.NewSelect(state.apSel, state.apBank, bank))
}

// selectAPAndAPBank selects the AP and the AP bank encoded in addr[7:4] with
// a single SELECT write.
func (i *Interface) selectAPAndAPBank(ap dap.APAddress, addr uint8) error {
	if err := i.selectDP(ap.DP); err != nil {
		return err
	}

	bank, _ := dap.SplitAddress(addr)
	state := i.dps[ap.DP]
	if state.selectValid && state.apSel == ap.AP && state.apBank == bank {
		return nil
	}

	logger.Debugf("Changing AP to %d, AP_BANK_SEL to %d on DP %s", ap.AP, bank, ap.DP)
	return i.writeSelect(ap.DP, dap.NewSelect(ap.AP, bank, state.dpBank))
}

// writeSelect writes SELECT on the already selected dp. On failure the cache
// no longer describes the hardware, so it is invalidated together with the
// current DP.
func (i *Interface) writeSelect(dp dap.DPAddress, sel dap.Select) error {
	state := i.dps[dp]
	logger.Tracef("DP %s write %s", dp, sel)
	if err := i.probe.RawWriteRegister(dap.DebugPort, dap.RegSELECT, uint32(sel)); err != nil {
		state.selectValid = false
		i.hasCurrentDP = false
		return errors.Annotatef(err, "write %s", sel)
	}
	state.updateSelect(sel)
	return nil
}
