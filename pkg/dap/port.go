package dap

import "fmt"

// PortType selects one of the two register spaces reachable through a debug
// port.
type PortType uint8

const (
	DebugPort PortType = iota
	AccessPort
)

func (p PortType) String() string {
	switch p {
	case DebugPort:
		return "DP"
	case AccessPort:
		return "AP"
	}
	return fmt.Sprintf("PortType(%d)", uint8(p))
}

// DPAddress identifies a physical debug port. The zero value is the single
// debug port of a point-to-point SWD or JTAG connection; multi-drop SWD ports
// are addressed by the value written to TARGETSEL.
type DPAddress struct {
	Multidrop bool
	TargetSel uint32
}

// DefaultDP is the debug port of a non multi-drop target.
var DefaultDP = DPAddress{}

// MultidropDP returns the address of a multi-drop debug port.
func MultidropDP(targetSel uint32) DPAddress {
	return DPAddress{Multidrop: true, TargetSel: targetSel}
}

func (d DPAddress) String() string {
	if d.Multidrop {
		return fmt.Sprintf("multidrop(0x%08x)", d.TargetSel)
	}
	return "default"
}

// APAddress identifies an access port behind a debug port.
type APAddress struct {
	DP DPAddress
	AP uint8
}

func (a APAddress) String() string {
	return fmt.Sprintf("%s/AP%d", a.DP, a.AP)
}
