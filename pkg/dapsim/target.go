package dapsim

import (
	"time"

	"github.com/juju/errors"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/dap"
)

// Op is the kind of a recorded transaction.
type Op uint8

const (
	OpSelectDP Op = iota
	OpRead
	OpWrite
	OpReadBlock
	OpWriteBlock
	OpFlush
	OpSWJSequence
	OpSWJPins
)

func (o Op) String() string {
	switch o {
	case OpSelectDP:
		return "select-dp"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpReadBlock:
		return "read-block"
	case OpWriteBlock:
		return "write-block"
	case OpFlush:
		return "flush"
	case OpSWJSequence:
		return "swj-sequence"
	case OpSWJPins:
		return "swj-pins"
	}
	return "unknown"
}

// Transaction is one call made on the target through dap.Probe.
type Transaction struct {
	Op   Op
	DP   dap.DPAddress
	Port dap.PortType
	Addr uint8

	// Value is the written value, or the value read for successful reads.
	Value uint32
	Count int

	// Select is the SELECT value of the current debug port when the
	// transaction ran.
	Select dap.Select

	Err error
}

// IsSelectWrite reports whether tx wrote the DP SELECT register.
func (tx Transaction) IsSelectWrite() bool {
	return tx.Op == OpWrite && tx.Port == dap.DebugPort && tx.Addr&0xF == dap.RegSELECT
}

// IsAPAccess reports whether tx touched an AP register.
func (tx Transaction) IsAPAccess() bool {
	return tx.Port == dap.AccessPort && tx.Op >= OpRead && tx.Op <= OpWriteBlock
}

// Target is a register level model of one or more ADIv5 debug ports. It
// implements dap.Probe and dap.SWOAccess and records every transaction.
type Target struct {
	// FailSelectDP makes that many upcoming SelectDP calls fail with
	// dap.ErrNoAcknowledge.
	FailSelectDP int

	// OnTransaction, when set, runs before a transaction is applied. A
	// non-nil error fails the transaction without touching the model.
	OnTransaction func(tx Transaction) error

	// SWOData is handed out by ReadSWO while SWO is enabled.
	SWOData []byte

	dps     map[dap.DPAddress]*DebugPort
	current *DebugPort

	swoEnabled bool
	swoConfig  dap.SWOConfig

	log    []Transaction
	closed bool
}

// New returns a target without debug ports.
func New() *Target {
	return &Target{dps: make(map[dap.DPAddress]*DebugPort)}
}

// AddDP adds a debug port. The default port is selected right away, as it
// is on a point to point wire.
func (t *Target) AddDP(addr dap.DPAddress, dpidr uint32) *DebugPort {
	dp := newDebugPort(addr, dpidr)
	t.dps[addr] = dp
	if addr == dap.DefaultDP {
		t.current = dp
	}
	return dp
}

// DP returns the debug port at addr, or nil.
func (t *Target) DP(addr dap.DPAddress) *DebugPort {
	return t.dps[addr]
}

// Transactions returns a copy of the transaction log.
func (t *Target) Transactions() []Transaction {
	return append([]Transaction(nil), t.log...)
}

// ClearLog empties the transaction log.
func (t *Target) ClearLog() {
	t.log = nil
}

// Count returns the number of logged transactions matching fn.
func (t *Target) Count(fn func(Transaction) bool) int {
	n := 0
	for _, tx := range t.log {
		if fn(tx) {
			n++
		}
	}
	return n
}

// SelectWrites returns the values written to SELECT, in order.
func (t *Target) SelectWrites() []dap.Select {
	var out []dap.Select
	for _, tx := range t.log {
		if tx.IsSelectWrite() && tx.Err == nil {
			out = append(out, dap.Select(tx.Value))
		}
	}
	return out
}

func (t *Target) begin(tx Transaction) (Transaction, error) {
	if t.current != nil {
		tx.Select = t.current.sel
		if tx.Op != OpSelectDP {
			tx.DP = t.current.addr
		}
	}
	if t.closed {
		return tx, errors.New("simulated target closed")
	}
	if t.OnTransaction != nil {
		if err := t.OnTransaction(tx); err != nil {
			return tx, err
		}
	}
	return tx, nil
}

func (t *Target) record(tx Transaction, err error) {
	tx.Err = err
	t.log = append(t.log, tx)
}

func (t *Target) SelectDP(addr dap.DPAddress) error {
	tx, err := t.begin(Transaction{Op: OpSelectDP, DP: addr})
	if err == nil && t.FailSelectDP > 0 {
		t.FailSelectDP--
		err = dap.ErrNoAcknowledge
	}
	if err == nil {
		dp, ok := t.dps[addr]
		if !ok {
			err = dap.ErrNoAcknowledge
		} else {
			t.current = dp
		}
	}
	t.record(tx, err)
	return err
}

func (t *Target) RawReadRegister(port dap.PortType, addr uint8) (uint32, error) {
	tx, err := t.begin(Transaction{Op: OpRead, Port: port, Addr: addr})
	var value uint32
	if err == nil {
		value, err = t.read(port, addr)
	}
	if err == nil {
		tx.Value = value
	}
	t.record(tx, err)
	return value, err
}

func (t *Target) RawWriteRegister(port dap.PortType, addr uint8, value uint32) error {
	tx, err := t.begin(Transaction{Op: OpWrite, Port: port, Addr: addr, Value: value})
	if err == nil {
		err = t.write(port, addr, value)
	}
	t.record(tx, err)
	return err
}

func (t *Target) RawReadBlock(port dap.PortType, addr uint8, values []uint32) error {
	tx, err := t.begin(Transaction{Op: OpReadBlock, Port: port, Addr: addr, Count: len(values)})
	for n := 0; err == nil && n < len(values); n++ {
		values[n], err = t.read(port, addr)
	}
	t.record(tx, err)
	return err
}

func (t *Target) RawWriteBlock(port dap.PortType, addr uint8, values []uint32) error {
	tx, err := t.begin(Transaction{Op: OpWriteBlock, Port: port, Addr: addr, Count: len(values)})
	for n := 0; err == nil && n < len(values); n++ {
		err = t.write(port, addr, values[n])
	}
	t.record(tx, err)
	return err
}

func (t *Target) RawFlush() error {
	tx, err := t.begin(Transaction{Op: OpFlush})
	t.record(tx, err)
	return err
}

func (t *Target) SWJSequence(bitLen uint8, bits uint64) error {
	tx, err := t.begin(Transaction{Op: OpSWJSequence, Count: int(bitLen), Value: uint32(bits)})
	t.record(tx, err)
	return err
}

// SWJPins reports the driven pins as the input state.
func (t *Target) SWJPins(pinOut, pinSelect, pinWait uint32) (uint32, error) {
	tx, err := t.begin(Transaction{Op: OpSWJPins, Value: pinOut})
	t.record(tx, err)
	if err != nil {
		return 0, err
	}
	return pinOut & pinSelect, nil
}

func (t *Target) Close() error {
	t.closed = true
	return nil
}

// Closed reports whether Close was called.
func (t *Target) Closed() bool {
	return t.closed
}

func (t *Target) EnableSWO(cfg dap.SWOConfig) error {
	if cfg.Baud == 0 {
		return errors.NotValidf("SWO baud rate 0")
	}
	t.swoEnabled, t.swoConfig = true, cfg
	return nil
}

func (t *Target) DisableSWO() error {
	t.swoEnabled = false
	return nil
}

// ReadSWO returns and consumes SWOData.
func (t *Target) ReadSWO(timeout time.Duration) ([]byte, error) {
	if !t.swoEnabled {
		return nil, errors.New("SWO not enabled")
	}
	data := t.SWOData
	t.SWOData = nil
	return data, nil
}

// SWOConfig returns the configuration passed to EnableSWO.
func (t *Target) SWOConfig() (dap.SWOConfig, bool) {
	return t.swoConfig, t.swoEnabled
}

func (t *Target) read(port dap.PortType, addr uint8) (uint32, error) {
	if t.current == nil {
		return 0, dap.ErrNoAcknowledge
	}
	if port == dap.DebugPort {
		return t.current.readDP(addr), nil
	}
	return t.current.readAP(addr)
}

func (t *Target) write(port dap.PortType, addr uint8, value uint32) error {
	if t.current == nil {
		return dap.ErrNoAcknowledge
	}
	if port == dap.DebugPort {
		t.current.writeDP(addr, value)
		return nil
	}
	return t.current.writeAP(addr, value)
}
