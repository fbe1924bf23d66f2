package adi

import (
	"github.com/juju/errors"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/dap"
)

// Uninitialized is a probe connection on which the debug port handshake has
// not run yet. Only DPIDR and line level operations are available.
type Uninitialized struct {
	probe            dap.Probe
	useOverrunDetect bool
}

// NewUninitialized wraps probe. useOverrunDetect is applied to CTRL/STAT of
// every debug port once it is started.
func NewUninitialized(probe dap.Probe, useOverrunDetect bool) *Uninitialized {
	return &Uninitialized{
		probe:            probe,
		useOverrunDetect: useOverrunDetect,
	}
}

// ReadDPIDR reads DPIDR of the currently connected debug port.
func (u *Uninitialized) ReadDPIDR() (uint32, error) {
	if u.probe == nil {
		return 0, ErrConsumed
	}
	value, err := u.probe.RawReadRegister(dap.DebugPort, dap.RegDPIDR)
	return value, errors.Annotate(err, "read DPIDR")
}

func (u *Uninitialized) SWJSequence(bitLen uint8, bits uint64) error {
	if u.probe == nil {
		return ErrConsumed
	}
	return errors.Trace(u.probe.SWJSequence(bitLen, bits))
}

func (u *Uninitialized) SWJPins(pinOut, pinSelect, pinWait uint32) (uint32, error) {
	if u.probe == nil {
		return 0, ErrConsumed
	}
	pins, err := u.probe.SWJPins(pinOut, pinSelect, pinWait)
	return pins, errors.Trace(err)
}

// Initialize runs seq.DebugPortSetup and returns the initialized interface.
// u is consumed either way: on failure the probe is closed.
func (u *Uninitialized) Initialize(seq DebugSequence) (*Interface, error) {
	if u.probe == nil {
		return nil, ErrConsumed
	}
	probe := u.probe
	u.probe = nil

	if err := seq.DebugPortSetup(probe); err != nil {
		if cerr := probe.Close(); cerr != nil {
			logger.Debugf("Closing probe after failed setup: %v", cerr)
		}
		return nil, errors.Annotate(err, "debug port setup")
	}
	return newInterface(probe, seq, u.useOverrunDetect), nil
}

// InitializeUnspecified initializes with the default sequence.
func (u *Uninitialized) InitializeUnspecified() (*Interface, error) {
	return u.Initialize(NewDefaultSequence())
}
