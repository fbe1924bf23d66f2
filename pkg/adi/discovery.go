package adi

import (
	"github.com/juju/errors"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/dap"
)

// maxAccessPorts is the number of APs addressable through APSEL.
const maxAccessPorts = 256

// forEachValidAP reads the IDR of AP 0, 1, ... of dp and calls fn for every
// AP with a non-zero IDR. The walk ends at the first AP whose IDR is zero or
// cannot be read, or as soon as fn returns false or an error. APs are only
// read once the previous one has been handled.
func (i *Interface) forEachValidAP(dp dap.DPAddress, fn func(ap dap.APAddress, idr dap.IDR) (bool, error)) error {
	for n := 0; n < maxAccessPorts; n++ {
		ap := dap.APAddress{DP: dp, AP: uint8(n)}
		value, err := i.readAP(ap, dap.RegIDR)
		if err != nil {
			logger.Debugf("Error reading IDR of AP %s, ending scan: %v", ap, err)
			return nil
		}
		if value == 0 {
			return nil
		}
		more, err := fn(ap, dap.IDR(value))
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

// APInformation returns what discovery found out about ap. Discovery runs
// the first time the AP's debug port is selected and is never repeated.
func (i *Interface) APInformation(ap dap.APAddress) (APInformation, error) {
	if err := i.usable(); err != nil {
		return nil, err
	}
	return i.apInformation(ap)
}

func (i *Interface) apInformation(ap dap.APAddress) (APInformation, error) {
	if err := i.selectDP(ap.DP); err != nil {
		return nil, err
	}
	aps := i.dps[ap.DP].accessPorts
	if int(ap.AP) >= len(aps) {
		return nil, errors.NotFoundf("AP %s", ap)
	}
	return aps[ap.AP], nil
}

// NumAccessPorts returns the number of valid APs found on dp.
func (i *Interface) NumAccessPorts(dp dap.DPAddress) (int, error) {
	if err := i.usable(); err != nil {
		return 0, err
	}
	if err := i.selectDP(dp); err != nil {
		return 0, err
	}
	return len(i.dps[dp].accessPorts), nil
}

// AccessPorts returns the APs found on dp in index order.
func (i *Interface) AccessPorts(dp dap.DPAddress) ([]APInformation, error) {
	if err := i.usable(); err != nil {
		return nil, err
	}
	if err := i.selectDP(dp); err != nil {
		return nil, err
	}
	aps := i.dps[dp].accessPorts
	out := make([]APInformation, len(aps))
	copy(out, aps)
	return out, nil
}
