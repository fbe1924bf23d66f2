package dap

import "time"

// Probe is the raw register capability of a debug probe.
//
// Register addresses given to the raw accessors are full 8-bit ADI register
// addresses; only A[3:2] reach the wire, bank selection is the caller's job.
// Implementations never retry a failed transfer and report acknowledge
// problems with the errors declared in this package.
type Probe interface {
	// SelectDP switches the wire to the given debug port. Probes without
	// multi-drop support only accept DefaultDP.
	SelectDP(dp DPAddress) error

	RawReadRegister(port PortType, addr uint8) (uint32, error)
	RawWriteRegister(port PortType, addr uint8, value uint32) error

	// RawReadBlock reads len(values) times from the same register.
	RawReadBlock(port PortType, addr uint8, values []uint32) error
	// RawWriteBlock writes every value to the same register, in order.
	RawWriteBlock(port PortType, addr uint8, values []uint32) error

	// RawFlush completes any transfers the probe has queued.
	RawFlush() error

	// SWJSequence clocks bitLen bits of bits (LSB first) out on SWDIO/TMS.
	SWJSequence(bitLen uint8, bits uint64) error
	// SWJPins drives the selected pins and returns the pin input state.
	SWJPins(pinOut, pinSelect, pinWait uint32) (uint32, error)

	Close() error
}

// SWOMode is the encoding of the trace output pin.
type SWOMode uint8

const (
	SWOModeUART SWOMode = iota + 1
	SWOModeManchester
)

// SWOConfig describes how the probe should capture serial wire output.
type SWOConfig struct {
	Mode SWOMode
	Baud uint32
}

// SWOAccess is implemented by probes able to capture serial wire output.
type SWOAccess interface {
	EnableSWO(cfg SWOConfig) error
	DisableSWO() error
	ReadSWO(timeout time.Duration) ([]byte, error)
}

// SWJ pin bits used with Probe.SWJPins.
const (
	PinSWCLK  uint32 = 1 << 0
	PinSWDIO  uint32 = 1 << 1
	PinTDI    uint32 = 1 << 2
	PinTDO    uint32 = 1 << 3
	PinNTRST  uint32 = 1 << 5
	PinNRESET uint32 = 1 << 7
)
