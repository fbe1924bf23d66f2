package adi

import (
	"fmt"

	"github.com/juju/errors"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/dap"
	"github.com/OpenTraceLab/OpenTraceADI/pkg/idcode"
)

// ChipIdentity is the manufacturer and part number of a chip, as published
// by its top level ROM table.
type ChipIdentity struct {
	Manufacturer idcode.JEP106Code
	Part         uint16
}

func (c ChipIdentity) String() string {
	name, ok := c.Manufacturer.Name()
	if !ok {
		name = fmt.Sprintf("<unknown manufacturer (cc=%2x, id=%2x)>", c.Manufacturer.CC, c.Manufacturer.ID)
	}
	return fmt.Sprintf("%s 0x%04x", name, c.Part)
}

// IdentifyChip looks for a class 1 ROM table with a JEP106 designer code
// behind the MEM-APs of dp, in AP order, and returns the identity of the
// first one. A nil identity with a nil error means no AP carried one, which
// is normal for locked devices.
func (i *Interface) IdentifyChip(dp dap.DPAddress) (*ChipIdentity, error) {
	if err := i.usable(); err != nil {
		return nil, err
	}

	ctrl, err := i.readDP(dp, dap.RegCTRLSTAT)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if dap.Ctrl(ctrl).StickyErr() {
		logger.Debugf("DP %s has the sticky error bit set, clearing it", dp)
		if err := i.writeDP(dp, dap.RegABORT, uint32(dap.AbortSTKERRCLR)); err != nil {
			return nil, errors.Trace(err)
		}
	}

	var found *ChipIdentity
	err = i.forEachValidAP(dp, func(ap dap.APAddress, idr dap.IDR) (bool, error) {
		if idr.Class() != dap.APClassMemAP {
			return true, nil
		}
		identity, err := i.identifyFromAP(ap)
		if err != nil {
			return false, err
		}
		if identity == nil {
			return true, nil
		}
		found = identity
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		logger.Debugf("No ROM table identified the chip on DP %s", dp)
	}
	return found, nil
}

func (i *Interface) identifyFromAP(ap dap.APAddress) (*ChipIdentity, error) {
	base, err := i.debugBaseAddress(ap)
	if err != nil {
		return nil, err
	}

	mem, err := i.memoryInterface(ap)
	if err != nil {
		return nil, err
	}
	component, err := i.parser.ParseComponent(mem, base)
	mem.Release()
	if errors.Is(err, errors.NotValid) {
		logger.Debugf("AP %s: no component at 0x%x: %v", ap, base, err)
		return nil, nil
	}
	if err != nil {
		return nil, errors.Annotatef(err, "parse component of AP %s", ap)
	}

	table, ok := component.(*Class1ROMTable)
	if !ok {
		return nil, nil
	}
	code, ok := table.Peripheral.JEP106()
	if !ok {
		return nil, nil
	}
	identity := &ChipIdentity{Manufacturer: code, Part: table.Peripheral.Part()}
	logger.Debugf("AP %s identifies the chip as %s", ap, identity)
	return identity, nil
}
