package cmd

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceADI/internal/config"
	"github.com/OpenTraceLab/OpenTraceADI/pkg/adi"
	"github.com/OpenTraceLab/OpenTraceADI/pkg/cmsisdap"
	"github.com/OpenTraceLab/OpenTraceADI/pkg/dap"
	"github.com/OpenTraceLab/OpenTraceADI/pkg/dapsim"
)

// openProbe creates the probe selected by --adapter.
func openProbe() (dap.Probe, error) {
	switch adapterType {
	case config.AdapterSimulator, "sim":
		var (
			target *dapsim.Target
			err    error
		)
		if targetPath == "" {
			target, err = dapsim.ParseDescriptionString("built-in", dapsim.DefaultDescription)
		} else {
			target, err = dapsim.LoadDescription(targetPath)
		}
		if err != nil {
			return nil, err
		}
		return target, nil
	case config.AdapterCMSISDAP:
		logger.Debugf("Opening CMSIS-DAP probe %04x:%04x", adapterVID, adapterPID)
		probe, err := cmsisdap.Open(adapterVID, adapterPID, adapterSerial, adapterSpeed)
		if err != nil {
			return nil, err
		}
		return probe, nil
	}
	return nil, fmt.Errorf("unknown adapter %q (use cmsisdap or simulator)", adapterType)
}

// selectedDP returns the debug port chosen with --dp.
func selectedDP() dap.DPAddress {
	if targetSel == 0 {
		return dap.DefaultDP
	}
	return dap.MultidropDP(targetSel)
}

// openInterface opens the probe and runs the default debug port setup.
func openInterface() (*adi.Interface, error) {
	probe, err := openProbe()
	if err != nil {
		return nil, fmt.Errorf("failed to create adapter: %w", err)
	}
	iface, err := adi.NewUninitialized(probe, overrunDetect).InitializeUnspecified()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize debug interface: %w", err)
	}
	return iface, nil
}

func closeInterface(iface *adi.Interface) {
	if probe := iface.Close(); probe != nil {
		if err := probe.Close(); err != nil {
			logger.Warnf("Closing probe: %v", err)
		}
	}
}
