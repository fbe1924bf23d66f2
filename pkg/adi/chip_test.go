package adi

import (
	"errors"
	"testing"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/dap"
	"github.com/OpenTraceLab/OpenTraceADI/pkg/dapsim"
	"github.com/OpenTraceLab/OpenTraceADI/pkg/idcode"
)

var (
	jepST     = idcode.NewJEP106Code(0, 0x20)
	jepNordic = idcode.NewJEP106Code(2, 0x44)
)

func romTableAP(base uint64, designer idcode.JEP106Code, part uint16) *dapsim.AP {
	ap := dapsim.NewMemAP(base)
	ap.AddComponent(dapsim.ROMTable(base, designer, part))
	return ap
}

func TestIdentifyChipStopsAtFirstMatch(t *testing.T) {
	target, _ := newTarget(
		dapsim.NewOtherAP(dapsim.JTAGAPIDR),
		dapsim.NewMemAP(0x10000000),
		romTableAP(0xe00ff000, jepST, 0x413),
		romTableAP(0xf0000000, jepNordic, 0x008),
	)
	iface := initialize(t, target, false)
	if n := bringUp(t, iface); n != 4 {
		t.Fatalf("NumAccessPorts() = %d, want 4", n)
	}
	target.ClearLog()

	chip, err := iface.IdentifyChip(dap.DefaultDP)
	if err != nil {
		t.Fatal(err)
	}
	if chip == nil {
		t.Fatal("IdentifyChip() found nothing")
	}
	if chip.Manufacturer != jepST || chip.Part != 0x413 {
		t.Errorf("IdentifyChip() = %s, want ST part 0x413", chip)
	}

	for _, tx := range target.Transactions() {
		if tx.IsAPAccess() && tx.Select.APSel() == 3 {
			t.Fatalf("AP 3 accessed after the chip was identified: %+v", tx)
		}
	}
	if got := target.Count(isAPRead(1, dap.RegIDR)); got != 1 {
		t.Errorf("AP 1 IDR read %d times, want 1", got)
	}
}

func TestIdentifyChipWithoutROMTable(t *testing.T) {
	legacy := dapsim.NewMemAP(0x20000000)
	legacy.AddComponent(dapsim.Component{
		Base:  0x20000000,
		Class: dapsim.ClassROMTable,
		Part:  0x123,
		// Legacy designer code, not a JEP106 one.
		NoJEDEC: true,
	})
	coresight := dapsim.NewMemAP(0x30000000)
	coresight.AddComponent(dapsim.Component{
		Base:     0x30000000,
		Class:    dapsim.ClassCoreSight,
		Designer: idcode.NewJEP106Code(4, 0x3b),
		Part:     0x9a1,
	})

	tests := []struct {
		name string
		aps  []*dapsim.AP
	}{
		{"no APs", nil},
		{"only a JTAG-AP", []*dapsim.AP{dapsim.NewOtherAP(dapsim.JTAGAPIDR)}},
		{"empty memory", []*dapsim.AP{dapsim.NewMemAP(0xe00ff000)}},
		{"legacy and CoreSight components", []*dapsim.AP{legacy, coresight}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, _ := newTarget(tt.aps...)
			iface := initialize(t, target, false)
			chip, err := iface.IdentifyChip(dap.DefaultDP)
			if err != nil {
				t.Fatalf("IdentifyChip() error = %v", err)
			}
			if chip != nil {
				t.Errorf("IdentifyChip() = %s, want nothing", chip)
			}
		})
	}
}

func TestIdentifyChipClearsStickyErrorFirst(t *testing.T) {
	target, dp := newTarget(romTableAP(0xe00ff000, jepST, 0x449))
	iface := initialize(t, target, false)
	bringUp(t, iface)

	dp.SetSticky(dap.CtrlSTICKYERR)
	target.ClearLog()

	chip, err := iface.IdentifyChip(dap.DefaultDP)
	if err != nil {
		t.Fatal(err)
	}
	if chip == nil || chip.Part != 0x449 {
		t.Fatalf("IdentifyChip() = %v, want part 0x449", chip)
	}

	abortAt, firstAPAt := -1, -1
	for n, tx := range target.Transactions() {
		isAbort := tx.Op == dapsim.OpWrite && tx.Port == dap.DebugPort && tx.Addr == dap.RegABORT &&
			dap.Abort(tx.Value)&dap.AbortSTKERRCLR != 0
		if isAbort && abortAt < 0 {
			abortAt = n
		}
		if tx.IsAPAccess() && firstAPAt < 0 {
			firstAPAt = n
		}
	}
	if abortAt < 0 {
		t.Fatal("no ABORT with STKERRCLR written")
	}
	if firstAPAt < abortAt {
		t.Errorf("AP accessed at transaction %d before ABORT at %d", firstAPAt, abortAt)
	}
}

func TestIdentifyChipNoStickyErrorNoAbort(t *testing.T) {
	target, _ := newTarget(romTableAP(0xe00ff000, jepST, 0x449))
	iface := initialize(t, target, false)
	bringUp(t, iface)
	target.ClearLog()

	if _, err := iface.IdentifyChip(dap.DefaultDP); err != nil {
		t.Fatal(err)
	}
	aborts := target.Count(func(tx dapsim.Transaction) bool {
		return tx.Op == dapsim.OpWrite && tx.Port == dap.DebugPort && tx.Addr == dap.RegABORT
	})
	if aborts != 0 {
		t.Errorf("%d ABORT writes without a sticky error", aborts)
	}
}

func TestIdentifyChipPropagatesTransportErrors(t *testing.T) {
	target, _ := newTarget(romTableAP(0xe00ff000, jepST, 0x413))
	iface := initialize(t, target, false)
	iface.SetComponentParser(ComponentParserFunc(func(mem MemoryReader, base uint64) (Component, error) {
		return nil, dap.ErrFaultResponse
	}))

	chip, err := iface.IdentifyChip(dap.DefaultDP)
	if chip != nil || !errors.Is(err, dap.ErrFaultResponse) {
		t.Errorf("IdentifyChip() = %v, %v; want ErrFaultResponse", chip, err)
	}
	if _, err := iface.ReadRawDPRegister(dap.DefaultDP, dap.RegDPIDR); err != nil {
		t.Errorf("memory handle not released after a parse error: %v", err)
	}
}

func TestIdentifyChipUsesInjectedParser(t *testing.T) {
	target, _ := newTarget(dapsim.NewMemAP(0x1000))
	iface := initialize(t, target, false)

	var bases []uint64
	iface.SetComponentParser(ComponentParserFunc(func(mem MemoryReader, base uint64) (Component, error) {
		bases = append(bases, base)
		pidr := [8]uint32{0x34, 0x02 | 0x4<<4, 0x2 | 0x8, 0, 0x9}
		return &Class1ROMTable{ComponentID: ComponentID{
			Base:       base,
			Class:      ComponentClassROMTable,
			Peripheral: NewPeripheralID(pidr),
		}}, nil
	}))

	chip, err := iface.IdentifyChip(dap.DefaultDP)
	if err != nil {
		t.Fatal(err)
	}
	want := ChipIdentity{Manufacturer: idcode.NewJEP106Code(9, 0x24), Part: 0x234}
	if chip == nil || *chip != want {
		t.Errorf("IdentifyChip() = %v, want %v", chip, want)
	}
	if len(bases) != 1 || bases[0] != 0x1000 {
		t.Errorf("parser called with bases %x", bases)
	}
}

func TestChipIdentityString(t *testing.T) {
	tests := []struct {
		chip ChipIdentity
		want string
	}{
		{ChipIdentity{Manufacturer: jepST, Part: 0x413}, "STMicroelectronics 0x0413"},
		{ChipIdentity{Manufacturer: jepNordic, Part: 0x8}, "Nordic VLSI ASA 0x0008"},
		{ChipIdentity{Manufacturer: idcode.NewJEP106Code(0xf, 0x7e), Part: 0x1234}, "<unknown manufacturer (cc= f, id=7e)> 0x1234"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.chip.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
