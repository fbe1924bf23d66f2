package adi

import (
	"time"

	"github.com/juju/errors"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/dap"
)

// DebugSequence holds the target specific steps of bringing up a debug port.
// One sequence is shared by every debug port of an Interface.
type DebugSequence interface {
	// DebugPortSetup runs once, before the Interface exists, and puts the
	// wire into a state where DP registers can be accessed.
	DebugPortSetup(probe dap.Probe) error

	// DebugPortStart runs the first time dp is selected. It may use the
	// raw register accessors of iface.
	DebugPortStart(iface *Interface, dp dap.DPAddress) error
}

// DefaultSequence is the generic ADIv5 bring-up: JTAG to SWD switch, sticky
// error clearing and debug/system power-up.
type DefaultSequence struct {
	// PowerUpTimeout bounds the wait for the power-up acknowledge bits.
	PowerUpTimeout time.Duration
}

// NewDefaultSequence returns a DefaultSequence with a one second power-up
// timeout.
func NewDefaultSequence() *DefaultSequence {
	return &DefaultSequence{PowerUpTimeout: time.Second}
}

// DebugPortSetup switches the probe from JTAG to SWD and leaves the line in
// the idle state, then reads DPIDR which SWD requires after a line reset.
func (s *DefaultSequence) DebugPortSetup(probe dap.Probe) error {
	steps := []struct {
		bits   uint8
		value  uint64
		reason string
	}{
		{51, 0x0007_FFFF_FFFF_FFFF, "line reset"},
		{16, 0xE79E, "JTAG to SWD"},
		{51, 0x0007_FFFF_FFFF_FFFF, "line reset"},
		{3, 0x0, "idle"},
	}
	for _, step := range steps {
		if err := probe.SWJSequence(step.bits, step.value); err != nil {
			return errors.Annotatef(err, "SWJ %s", step.reason)
		}
	}

	dpidr, err := probe.RawReadRegister(dap.DebugPort, dap.RegDPIDR)
	if errors.Is(err, dap.ErrNoAcknowledge) {
		// Multi-drop debug ports stay deselected until TARGETSEL is
		// written, which SelectDP does.
		logger.Debugf("No debug port answered after line reset")
		return nil
	}
	if err != nil {
		return errors.Annotate(err, "read DPIDR")
	}
	logger.Debugf("Debug port setup done, %s", dap.DPIDR(dpidr))
	return nil
}

// DebugPortStart clears the sticky errors, resets SELECT and powers up the
// debug and system domains when they are not already up.
func (s *DefaultSequence) DebugPortStart(iface *Interface, dp dap.DPAddress) error {
	if err := iface.WriteRawDPRegister(dp, dap.RegABORT, uint32(dap.AbortClearAll)); err != nil {
		return errors.Annotate(err, "clear sticky errors")
	}
	if err := iface.WriteRawDPRegister(dp, dap.RegSELECT, 0); err != nil {
		return errors.Annotate(err, "reset SELECT")
	}

	value, err := iface.ReadRawDPRegister(dp, dap.RegCTRLSTAT)
	if err != nil {
		return errors.Trace(err)
	}
	if dap.Ctrl(value).PoweredUp() {
		return nil
	}

	logger.Debugf("Powering up debug and system domains of DP %s", dp)
	request := dap.CtrlCDBGPWRUPREQ | dap.CtrlCSYSPWRUPREQ
	if err := iface.WriteRawDPRegister(dp, dap.RegCTRLSTAT, uint32(request)); err != nil {
		return errors.Trace(err)
	}

	deadline := time.Now().Add(s.PowerUpTimeout)
	for {
		value, err := iface.ReadRawDPRegister(dp, dap.RegCTRLSTAT)
		if err != nil {
			return errors.Trace(err)
		}
		if dap.Ctrl(value).PoweredUp() {
			break
		}
		if time.Now().After(deadline) {
			return errors.Annotatef(dap.ErrTargetPowerUpFailed, "DP %s", dp)
		}
		time.Sleep(time.Millisecond)
	}

	// Normal transfer mode with every byte lane enabled.
	if err := iface.WriteRawDPRegister(dp, dap.RegCTRLSTAT, uint32(request|dap.CtrlMASKLANE)); err != nil {
		return errors.Trace(err)
	}
	return errors.Annotate(iface.WriteRawDPRegister(dp, dap.RegABORT, uint32(dap.AbortClearAll)), "clear sticky errors")
}
