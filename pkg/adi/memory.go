package adi

import (
	"github.com/juju/errors"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/dap"
)

// tarAutoIncrementBlock is the smallest address block within which TAR
// auto-increment is guaranteed to work.
const tarAutoIncrementBlock = 1 << 10

// MemoryReader is the read side of a memory handle, as used by component
// parsers.
type MemoryReader interface {
	Read32(addr uint64) (uint32, error)
	Read32Block(addr uint64, data []uint32) error
}

// Memory accesses target memory through one MEM-AP. While a Memory is
// outstanding the Interface it came from rejects every other operation;
// call Release when done.
type Memory struct {
	iface *Interface
	info  MemoryAPInformation

	csw      dap.CSW
	cswValid bool

	released bool
}

// MemoryInterface borrows the interface for memory accesses through ap.
func (i *Interface) MemoryInterface(ap dap.APAddress) (*Memory, error) {
	if err := i.usable(); err != nil {
		return nil, err
	}
	return i.memoryInterface(ap)
}

func (i *Interface) memoryInterface(ap dap.APAddress) (*Memory, error) {
	info, err := i.apInformation(ap)
	if err != nil {
		return nil, err
	}
	mem, ok := info.(MemoryAPInformation)
	if !ok {
		return nil, errors.Annotatef(ErrNotMemoryAP, "AP %s", ap)
	}
	i.borrowed = true
	return &Memory{iface: i, info: mem}, nil
}

// Info returns the discovery data of the AP behind m.
func (m *Memory) Info() MemoryAPInformation {
	return m.info
}

// Release gives the interface back. Further calls on m fail.
func (m *Memory) Release() {
	if m.released {
		return
	}
	m.released = true
	m.iface.borrowed = false
}

func (m *Memory) check() error {
	if m.released {
		return errors.New("memory handle released")
	}
	if m.iface.closed {
		return ErrClosed
	}
	return nil
}

func (m *Memory) setCSW(size dap.DataSize) error {
	csw := dap.NewCSW(size)
	if !m.info.SupportsHNONSEC {
		csw &^= dap.CSWHNONSEC
	}
	if m.cswValid && m.csw == csw {
		return nil
	}
	if err := m.iface.writeAP(m.info.Address, dap.RegCSW, uint32(csw)); err != nil {
		m.cswValid = false
		return errors.Trace(err)
	}
	m.csw, m.cswValid = csw, true
	return nil
}

// setTAR points TAR at addr. TARH is cached on the interface so its value
// outlives the handle that wrote it.
func (m *Memory) setTAR(addr uint64) error {
	ap := m.info.Address
	high := uint32(addr >> 32)
	if known, ok := m.iface.dps[ap.DP].knownTARH(ap.AP); !ok || known != high {
		if err := m.iface.writeAP(ap, dap.RegTARH, high); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(m.iface.writeAP(ap, dap.RegTAR, uint32(addr)))
}

// Read32 reads one aligned word.
func (m *Memory) Read32(addr uint64) (uint32, error) {
	if err := m.check(); err != nil {
		return 0, err
	}
	if addr%4 != 0 {
		return 0, errors.NotValidf("unaligned 32-bit address 0x%x", addr)
	}
	if err := m.setCSW(dap.DataSize32); err != nil {
		return 0, err
	}
	if err := m.setTAR(addr); err != nil {
		return 0, err
	}
	value, err := m.iface.readAP(m.info.Address, dap.RegDRW)
	return value, errors.Trace(err)
}

// Read32Block fills data with consecutive words starting at addr, rewriting
// TAR at every auto-increment boundary.
func (m *Memory) Read32Block(addr uint64, data []uint32) error {
	if err := m.check(); err != nil {
		return err
	}
	if addr%4 != 0 {
		return errors.NotValidf("unaligned 32-bit address 0x%x", addr)
	}
	if err := m.setCSW(dap.DataSize32); err != nil {
		return err
	}
	for len(data) > 0 {
		n := wordsToBoundary(addr, len(data))
		if err := m.setTAR(addr); err != nil {
			return err
		}
		if err := m.iface.readAPRepeated(m.info.Address, dap.RegDRW, data[:n]); err != nil {
			return errors.Annotatef(err, "read %d words at 0x%x", n, addr)
		}
		data = data[n:]
		addr += uint64(n) * 4
	}
	return nil
}

// Write32 writes one aligned word.
func (m *Memory) Write32(addr uint64, value uint32) error {
	if err := m.check(); err != nil {
		return err
	}
	if addr%4 != 0 {
		return errors.NotValidf("unaligned 32-bit address 0x%x", addr)
	}
	if err := m.setCSW(dap.DataSize32); err != nil {
		return err
	}
	if err := m.setTAR(addr); err != nil {
		return err
	}
	return errors.Trace(m.iface.writeAP(m.info.Address, dap.RegDRW, value))
}

// Write32Block writes consecutive words starting at addr.
func (m *Memory) Write32Block(addr uint64, data []uint32) error {
	if err := m.check(); err != nil {
		return err
	}
	if addr%4 != 0 {
		return errors.NotValidf("unaligned 32-bit address 0x%x", addr)
	}
	if err := m.setCSW(dap.DataSize32); err != nil {
		return err
	}
	for len(data) > 0 {
		n := wordsToBoundary(addr, len(data))
		if err := m.setTAR(addr); err != nil {
			return err
		}
		if err := m.iface.writeAPRepeated(m.info.Address, dap.RegDRW, data[:n]); err != nil {
			return errors.Annotatef(err, "write %d words at 0x%x", n, addr)
		}
		data = data[n:]
		addr += uint64(n) * 4
	}
	return nil
}

// Read8 reads len(data) bytes starting at addr. APs limited to 32-bit
// accesses are read a word at a time and the bytes extracted.
func (m *Memory) Read8(addr uint64, data []byte) error {
	if err := m.check(); err != nil {
		return err
	}
	if m.info.Only32BitDataSize {
		return m.read8Words(addr, data)
	}
	if err := m.setCSW(dap.DataSize8); err != nil {
		return err
	}
	for n := range data {
		a := addr + uint64(n)
		if n == 0 || a%tarAutoIncrementBlock == 0 {
			if err := m.setTAR(a); err != nil {
				return err
			}
		}
		value, err := m.iface.readAP(m.info.Address, dap.RegDRW)
		if err != nil {
			return errors.Annotatef(err, "read byte at 0x%x", a)
		}
		data[n] = byte(value >> (8 * (a % 4)))
	}
	return nil
}

func (m *Memory) read8Words(addr uint64, data []byte) error {
	start := addr &^ 3
	end := (addr + uint64(len(data)) + 3) &^ 3
	words := make([]uint32, (end-start)/4)
	if err := m.Read32Block(start, words); err != nil {
		return err
	}
	for n := range data {
		off := addr + uint64(n) - start
		data[n] = byte(words[off/4] >> (8 * (off % 4)))
	}
	return nil
}

func wordsToBoundary(addr uint64, remaining int) int {
	n := int((tarAutoIncrementBlock - addr%tarAutoIncrementBlock) / 4)
	if n > remaining {
		n = remaining
	}
	return n
}
