package dap

import "github.com/juju/errors"

// Wire level failures reported by probes. They are terminal for the
// operation that hit them; nothing in this module retries them.
const (
	ErrSWDProtocol         = errors.ConstError("error in the SWD communication between probe and device")
	ErrNoAcknowledge       = errors.ConstError("target device did not respond to request")
	ErrFaultResponse       = errors.ConstError("target device responded with FAULT")
	ErrWaitResponse        = errors.ConstError("target device responded with WAIT")
	ErrTargetPowerUpFailed = errors.ConstError("target power-up failed")
	ErrIncorrectParity     = errors.ConstError("incorrect parity on READ request")
)

var transportErrors = []error{
	ErrSWDProtocol,
	ErrNoAcknowledge,
	ErrFaultResponse,
	ErrWaitResponse,
	ErrTargetPowerUpFailed,
	ErrIncorrectParity,
}

// IsTransportError reports whether err carries one of the wire level errors.
func IsTransportError(err error) bool {
	for _, target := range transportErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// AckError maps an SWD acknowledge value (OK=1, WAIT=2, FAULT=4) to an error.
func AckError(ack uint8) error {
	switch ack {
	case 1:
		return nil
	case 2:
		return ErrWaitResponse
	case 4:
		return ErrFaultResponse
	case 7, 0:
		return ErrNoAcknowledge
	}
	return errors.Annotatef(ErrSWDProtocol, "unexpected ack 0x%x", ack)
}
