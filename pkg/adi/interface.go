package adi

import (
	"time"

	"github.com/juju/errors"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/dap"
)

// Interface is an initialized ARM debug interface. It owns the probe and
// keeps per debug port selection state so that SELECT is only written when
// the hardware selection has to change.
//
// An Interface is not safe for concurrent use.
type Interface struct {
	probe    dap.Probe
	sequence DebugSequence
	parser   ComponentParser

	useOverrunDetect bool

	currentDP    dap.DPAddress
	hasCurrentDP bool
	dps          map[dap.DPAddress]*dpState

	borrowed bool
	closed   bool
}

func newInterface(probe dap.Probe, seq DebugSequence, useOverrunDetect bool) *Interface {
	return &Interface{
		probe:            probe,
		sequence:         seq,
		parser:           DefaultComponentParser,
		useOverrunDetect: useOverrunDetect,
		dps:              make(map[dap.DPAddress]*dpState),
	}
}

// SetComponentParser replaces the parser used by IdentifyChip.
func (i *Interface) SetComponentParser(parser ComponentParser) {
	i.parser = parser
}

func (i *Interface) usable() error {
	if i.closed {
		return ErrClosed
	}
	if i.borrowed {
		return ErrInterfaceBorrowed
	}
	return nil
}

// ReadRawDPRegister reads a DP register. Bits [7:4] of addr select the DP
// bank of the banked register at 0x4.
func (i *Interface) ReadRawDPRegister(dp dap.DPAddress, addr uint8) (uint32, error) {
	if err := i.usable(); err != nil {
		return 0, err
	}
	return i.readDP(dp, addr)
}

// WriteRawDPRegister writes a DP register. Writing SELECT directly updates
// the selection cache.
func (i *Interface) WriteRawDPRegister(dp dap.DPAddress, addr uint8, value uint32) error {
	if err := i.usable(); err != nil {
		return err
	}
	return i.writeDP(dp, addr, value)
}

// ReadRawAPRegister reads an AP register. Bits [7:4] of addr are the AP bank.
func (i *Interface) ReadRawAPRegister(ap dap.APAddress, addr uint8) (uint32, error) {
	if err := i.usable(); err != nil {
		return 0, err
	}
	return i.readAP(ap, addr)
}

// WriteRawAPRegister writes an AP register. Bits [7:4] of addr are the AP bank.
func (i *Interface) WriteRawAPRegister(ap dap.APAddress, addr uint8, value uint32) error {
	if err := i.usable(); err != nil {
		return err
	}
	return i.writeAP(ap, addr, value)
}

// ReadRawAPRegisterRepeated fills values by reading the same AP register
// repeatedly.
func (i *Interface) ReadRawAPRegisterRepeated(ap dap.APAddress, addr uint8, values []uint32) error {
	if err := i.usable(); err != nil {
		return err
	}
	return i.readAPRepeated(ap, addr, values)
}

// WriteRawAPRegisterRepeated writes every value to the same AP register.
func (i *Interface) WriteRawAPRegisterRepeated(ap dap.APAddress, addr uint8, values []uint32) error {
	if err := i.usable(); err != nil {
		return err
	}
	return i.writeAPRepeated(ap, addr, values)
}

// DebugPortVersion returns the version read from DPIDR when dp was started.
func (i *Interface) DebugPortVersion(dp dap.DPAddress) (dap.DebugPortVersion, error) {
	if err := i.usable(); err != nil {
		return dap.DPVersionUnknown, err
	}
	if err := i.selectDP(dp); err != nil {
		return dap.DPVersionUnknown, err
	}
	return i.dps[dp].version, nil
}

// Flush completes transfers queued in the probe.
func (i *Interface) Flush() error {
	if err := i.usable(); err != nil {
		return err
	}
	return errors.Trace(i.probe.RawFlush())
}

// SWJSequence clocks bitLen bits of bits out on SWDIO/TMS, LSB first.
func (i *Interface) SWJSequence(bitLen uint8, bits uint64) error {
	if err := i.usable(); err != nil {
		return err
	}
	return errors.Trace(i.probe.SWJSequence(bitLen, bits))
}

// SWJPins drives the selected pins and returns the pin input state.
func (i *Interface) SWJPins(pinOut, pinSelect, pinWait uint32) (uint32, error) {
	if err := i.usable(); err != nil {
		return 0, err
	}
	pins, err := i.probe.SWJPins(pinOut, pinSelect, pinWait)
	return pins, errors.Trace(err)
}

func (i *Interface) swo() (dap.SWOAccess, error) {
	if err := i.usable(); err != nil {
		return nil, err
	}
	swo, ok := i.probe.(dap.SWOAccess)
	if !ok {
		return nil, errors.NotSupportedf("SWO capture on this probe")
	}
	return swo, nil
}

// EnableSWO starts serial wire output capture on the probe.
func (i *Interface) EnableSWO(cfg dap.SWOConfig) error {
	swo, err := i.swo()
	if err != nil {
		return err
	}
	return errors.Trace(swo.EnableSWO(cfg))
}

// DisableSWO stops serial wire output capture.
func (i *Interface) DisableSWO() error {
	swo, err := i.swo()
	if err != nil {
		return err
	}
	return errors.Trace(swo.DisableSWO())
}

// ReadSWO returns the trace bytes captured so far, waiting at most timeout
// for the first one.
func (i *Interface) ReadSWO(timeout time.Duration) ([]byte, error) {
	swo, err := i.swo()
	if err != nil {
		return nil, err
	}
	data, err := swo.ReadSWO(timeout)
	return data, errors.Trace(err)
}

// Close forgets all cached state and hands the probe back to the caller,
// which becomes responsible for closing it. Close ends an outstanding Memory
// borrow. Every later call on i or on that Memory fails with ErrClosed.
func (i *Interface) Close() dap.Probe {
	if i.borrowed {
		logger.Debug("Closing the interface while a memory handle is outstanding")
		i.borrowed = false
	}
	probe := i.probe
	i.probe = nil
	i.dps = nil
	i.hasCurrentDP = false
	i.closed = true
	return probe
}
