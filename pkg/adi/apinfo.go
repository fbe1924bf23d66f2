package adi

import (
	"fmt"

	"github.com/juju/errors"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/dap"
)

// APInformation describes an access port found during discovery. It is
// either a MemoryAPInformation or an OtherAPInformation.
type APInformation interface {
	APAddress() dap.APAddress
	String() string
}

// MemoryAPInformation describes a MEM-AP.
type MemoryAPInformation struct {
	Address dap.APAddress

	// Only32BitDataSize is set when the AP refused an 8-bit CSW SIZE.
	Only32BitDataSize bool

	// DebugBaseAddress is the address of the top level debug component,
	// normally a ROM table.
	DebugBaseAddress uint64

	SupportsHNONSEC bool
}

func (m MemoryAPInformation) APAddress() dap.APAddress { return m.Address }

func (m MemoryAPInformation) String() string {
	return fmt.Sprintf("%s MEM-AP base=0x%08x only32=%t hnonsec=%t",
		m.Address, m.DebugBaseAddress, m.Only32BitDataSize, m.SupportsHNONSEC)
}

// OtherAPInformation describes any access port that is not a MEM-AP.
type OtherAPInformation struct {
	Address dap.APAddress
}

func (o OtherAPInformation) APAddress() dap.APAddress { return o.Address }
func (o OtherAPInformation) String() string           { return fmt.Sprintf("%s other", o.Address) }

// classifyIDR classifies ap given the IDR value already read from it.
func (i *Interface) classifyIDR(ap dap.APAddress, idr dap.IDR) (APInformation, error) {
	if idr.Class() != dap.APClassMemAP {
		logger.Debugf("AP %s: %s", ap, idr)
		return OtherAPInformation{Address: ap}, nil
	}

	base, err := i.debugBaseAddress(ap)
	if err != nil {
		return nil, err
	}

	probed, err := i.probeCSW(ap)
	if err != nil {
		return nil, err
	}

	info := MemoryAPInformation{
		Address:           ap,
		Only32BitDataSize: probed.Size() != dap.DataSize8,
		DebugBaseAddress:  base,
		SupportsHNONSEC:   probed.HNONSEC(),
	}
	logger.Debugf("AP %s: %s, %s", ap, idr, info)
	return info, nil
}

// debugBaseAddress combines BASE2 and BASE. BASE2 is only read when BASE
// uses the ADIv5 format.
func (i *Interface) debugBaseAddress(ap dap.APAddress) (uint64, error) {
	value, err := i.readAP(ap, dap.RegBASE)
	if err != nil {
		return 0, errors.Trace(err)
	}
	base := dap.Base(value)

	var addr uint64
	if base.IsADIv5() {
		high, err := i.readAP(ap, dap.RegBASE2)
		if err != nil {
			return 0, errors.Trace(err)
		}
		addr = uint64(high) << 32
	}
	return addr | uint64(base.Address()), nil
}

// probeCSW writes a CSW asking for 8-bit, non-secure accesses and returns
// what the AP accepted. The original CSW is written back unchanged; failing
// to do so is an error.
func (i *Interface) probeCSW(ap dap.APAddress) (dap.CSW, error) {
	saved, err := i.readAP(ap, dap.RegCSW)
	if err != nil {
		return 0, errors.Trace(err)
	}

	if err := i.writeAP(ap, dap.RegCSW, uint32(dap.NewCSW(dap.DataSize8))); err != nil {
		return 0, errors.Trace(err)
	}

	probed, readErr := i.readAP(ap, dap.RegCSW)
	if err := i.writeAP(ap, dap.RegCSW, saved); err != nil {
		if readErr != nil {
			logger.Debugf("AP %s: CSW read back failed: %v", ap, readErr)
		}
		return 0, errors.Annotatef(err, "restore CSW of AP %s", ap)
	}
	if readErr != nil {
		return 0, errors.Trace(readErr)
	}
	return dap.CSW(probed), nil
}
