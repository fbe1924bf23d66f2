package adi

import (
	"testing"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/dap"
	"github.com/OpenTraceLab/OpenTraceADI/pkg/dapsim"
)

const testDPIDR = 0x2ba01477

func newTarget(aps ...*dapsim.AP) (*dapsim.Target, *dapsim.DebugPort) {
	target := dapsim.New()
	dp := target.AddDP(dap.DefaultDP, testDPIDR)
	for _, ap := range aps {
		dp.AddAP(ap)
	}
	return target, dp
}

func initialize(t *testing.T, target *dapsim.Target, useOverrunDetect bool) *Interface {
	t.Helper()
	iface, err := NewUninitialized(target, useOverrunDetect).InitializeUnspecified()
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return iface
}

// bringUp selects the default DP so that discovery has run.
func bringUp(t *testing.T, iface *Interface) int {
	t.Helper()
	n, err := iface.NumAccessPorts(dap.DefaultDP)
	if err != nil {
		t.Fatalf("NumAccessPorts() error = %v", err)
	}
	return n
}

func apAddr(n uint8) dap.APAddress {
	return dap.APAddress{DP: dap.DefaultDP, AP: n}
}

func isOp(op dapsim.Op) func(dapsim.Transaction) bool {
	return func(tx dapsim.Transaction) bool { return tx.Op == op }
}

func isAPRead(ap, addr uint8) func(dapsim.Transaction) bool {
	return func(tx dapsim.Transaction) bool {
		return tx.Op == dapsim.OpRead && tx.Port == dap.AccessPort && tx.Addr == addr && tx.Select.APSel() == ap
	}
}
