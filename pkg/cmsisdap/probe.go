package cmsisdap

import (
	"math/bits"
	"sync"
	"time"

	"github.com/juju/errors"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/dap"
)

const (
	DefaultSpeedHz = 1_000_000
	MinSpeedHz     = 1_000
	MaxSpeedHz     = 10_000_000

	// SWD line reset: at least 50 cycles with SWDIO high
	lineResetBits = 51
	lineReset     = 0x0007_FFFF_FFFF_FFFF

	// TARGETSEL write packet header; the target never drives an ack
	targetSelRequest = 0x99

	swoPollInterval = 2 * time.Millisecond
)

// Info describes the probe as reported by DAP_Info.
type Info struct {
	Vendor       string
	Product      string
	SerialNumber string
	Firmware     string
	Capabilities byte
	PacketSize   int
}

// SupportsSWO reports whether the probe can capture trace in the given mode.
func (i Info) SupportsSWO(mode dap.SWOMode) bool {
	switch mode {
	case dap.SWOModeUART:
		return i.Capabilities&CapSWOUART != 0
	case dap.SWOModeManchester:
		return i.Capabilities&CapSWOManchester != 0
	}
	return false
}

// Probe is a CMSIS-DAP probe driven in SWD mode. It implements dap.Probe and
// dap.SWOAccess.
type Probe struct {
	transport packetTransport
	protocol  *Protocol

	info      Info
	speedHz   uint32
	connected bool

	current    dap.DPAddress
	hasCurrent bool
	swoEnabled bool

	mu sync.Mutex
}

// Open connects to the CMSIS-DAP probe matching vid:pid (and serial, if not
// empty) and switches it to SWD at speedHz.
func Open(vid, pid uint16, serial string, speedHz uint32) (*Probe, error) {
	transport, err := NewUSBTransport(vid, pid, serial)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open USB device")
	}
	return newProbe(transport, speedHz)
}

func newProbe(transport packetTransport, speedHz uint32) (*Probe, error) {
	p := &Probe{
		transport: transport,
		protocol:  NewProtocol(transport.GetPacketSize()),
	}

	if err := p.queryInfo(); err != nil {
		transport.Close()
		return nil, errors.Annotate(err, "failed to query device info")
	}
	if p.info.Capabilities&CapSWD == 0 {
		transport.Close()
		return nil, errors.NotSupportedf("SWD on probe %q", p.info.Product)
	}

	if err := p.connect(); err != nil {
		transport.Close()
		return nil, errors.Annotate(err, "failed to connect to SWD")
	}

	if speedHz == 0 {
		speedHz = DefaultSpeedHz
	}
	if err := p.SetSpeed(speedHz); err != nil {
		p.Close()
		return nil, errors.Annotate(err, "failed to set speed")
	}

	if err := p.command(p.protocol.EncodeTransferConfigure(0, 64, 0), p.protocol.DecodeTransferConfigure); err != nil {
		p.Close()
		return nil, errors.Annotate(err, "failed to configure transfers")
	}

	logger.Debugf("opened %s %s (fw %s, %d byte packets)", p.info.Vendor, p.info.Product, p.info.Firmware, p.info.PacketSize)
	return p, nil
}

func (p *Probe) infoString(id byte) string {
	resp, err := p.transport.WriteRead(p.protocol.EncodeInfo(id))
	if err != nil {
		return ""
	}
	s, _ := p.protocol.DecodeInfo(resp)
	return s
}

// queryInfo retrieves device information from the probe
func (p *Probe) queryInfo() error {
	resp, err := p.transport.WriteRead(p.protocol.EncodeInfo(InfoCapabilities))
	if err != nil {
		return err
	}
	caps, err := p.protocol.DecodeInfoByte(resp)
	if err != nil {
		return err
	}

	p.info = Info{
		Vendor:       p.infoString(InfoVendorID),
		Product:      p.infoString(InfoProductID),
		SerialNumber: p.infoString(InfoSerialNum),
		Firmware:     p.infoString(InfoFirmwareVer),
		Capabilities: caps,
		PacketSize:   p.transport.GetPacketSize(),
	}

	// Probes may announce a smaller packet than the endpoint size
	resp, err = p.transport.WriteRead(p.protocol.EncodeInfo(InfoPacketSize))
	if err == nil {
		if size, err := p.protocol.DecodeInfoShort(resp); err == nil && size > 0 && int(size) < p.info.PacketSize {
			p.info.PacketSize = int(size)
			p.protocol.PacketSize = int(size)
		}
	}
	return nil
}

// connect establishes the SWD connection
func (p *Probe) connect() error {
	resp, err := p.transport.WriteRead(p.protocol.EncodeConnect(PortSWD))
	if err != nil {
		return err
	}
	port, err := p.protocol.DecodeConnect(resp)
	if err != nil {
		return err
	}
	if port != PortSWD {
		return errors.Errorf("failed to connect to SWD (got port %d)", port)
	}
	p.connected = true
	return nil
}

// command runs one command whose response only carries a status.
func (p *Probe) command(cmd []byte, decode func([]byte) error) error {
	if p.transport == nil {
		return errors.New("probe is closed")
	}
	resp, err := p.transport.WriteRead(cmd)
	if err != nil {
		return errors.Trace(err)
	}
	return decode(resp)
}

// Info returns the probe description read at open time.
func (p *Probe) Info() Info {
	return p.info
}

// SetSpeed sets the SWCLK frequency
func (p *Probe) SetSpeed(hz uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if hz < MinSpeedHz || hz > MaxSpeedHz {
		return errors.NotValidf("frequency %d Hz out of range [%d, %d]", hz, MinSpeedHz, MaxSpeedHz)
	}
	if err := p.command(p.protocol.EncodeSetClock(hz), p.protocol.DecodeSetClock); err != nil {
		return errors.Annotate(err, "set speed failed")
	}
	p.speedHz = hz
	return nil
}

// ResetTarget pulses the hardware reset line using the probe's own sequence
func (p *Probe) ResetTarget() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return errors.Annotate(p.command(p.protocol.EncodeResetTarget(), p.protocol.DecodeResetTarget), "hard reset failed")
}

func transferError(response byte) error {
	if response&TransferProtocolError != 0 {
		return dap.ErrSWDProtocol
	}
	return dap.AckError(response & TransferAckMask)
}

func (p *Probe) transfer(transfers []Transfer) ([]uint32, error) {
	if p.transport == nil {
		return nil, errors.New("probe is closed")
	}
	resp, err := p.transport.WriteRead(p.protocol.EncodeTransfer(transfers))
	if err != nil {
		return nil, errors.Annotate(err, "DAP_Transfer")
	}
	result, err := p.protocol.DecodeTransfer(resp, transfers)
	if err != nil {
		return nil, errors.Annotate(dap.ErrSWDProtocol, err.Error())
	}
	if err := transferError(result.Response); err != nil {
		return nil, err
	}
	if result.Count != len(transfers) {
		return nil, errors.Annotatef(dap.ErrSWDProtocol, "probe executed %d of %d transfers", result.Count, len(transfers))
	}
	return result.Data, nil
}

// RawReadRegister reads one DP or AP register
func (p *Probe) RawReadRegister(port dap.PortType, addr uint8) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.transfer([]Transfer{{Request: TransferRequest(port == dap.AccessPort, true, addr)}})
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// RawWriteRegister writes one DP or AP register
func (p *Probe) RawWriteRegister(port dap.PortType, addr uint8, value uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := p.transfer([]Transfer{{Request: TransferRequest(port == dap.AccessPort, false, addr), Data: value}})
	return err
}

func (p *Probe) transferBlock(port dap.PortType, addr uint8, values []uint32, read bool) error {
	if p.transport == nil {
		return errors.New("probe is closed")
	}
	request := TransferRequest(port == dap.AccessPort, read, addr)
	chunk := p.protocol.MaxBlockWords(read)

	for len(values) > 0 {
		n := len(values)
		if n > chunk {
			n = chunk
		}
		resp, err := p.transport.WriteRead(p.protocol.EncodeTransferBlock(request, n, values[:n]))
		if err != nil {
			return errors.Annotate(err, "DAP_TransferBlock")
		}
		result, err := p.protocol.DecodeTransferBlock(resp, read, values[:n])
		if err != nil {
			return errors.Annotate(dap.ErrSWDProtocol, err.Error())
		}
		if err := transferError(result.Response); err != nil {
			return err
		}
		if result.Count != n {
			return errors.Annotatef(dap.ErrSWDProtocol, "probe executed %d of %d transfers", result.Count, n)
		}
		values = values[n:]
	}
	return nil
}

// RawReadBlock reads len(values) times from the same register
func (p *Probe) RawReadBlock(port dap.PortType, addr uint8, values []uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.transferBlock(port, addr, values, true)
}

// RawWriteBlock writes every value to the same register
func (p *Probe) RawWriteBlock(port dap.PortType, addr uint8, values []uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.transferBlock(port, addr, values, false)
}

// RawFlush is a no-op: every transfer completes before its call returns.
func (p *Probe) RawFlush() error {
	return nil
}

func (p *Probe) swjSequence(bitLen uint8, bits uint64) error {
	return errors.Annotate(
		p.command(p.protocol.EncodeSWJSequence(bitLen, bits), p.protocol.DecodeSWJSequence),
		"SWJ sequence failed")
}

// SWJSequence clocks bitLen bits out on SWDIO/TMS, LSB first
func (p *Probe) SWJSequence(bitLen uint8, bits uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if bitLen == 0 || bitLen > 64 {
		return errors.NotValidf("sequence length %d", bitLen)
	}
	return p.swjSequence(bitLen, bits)
}

// SWJPins drives the selected pins and returns the pin input state
func (p *Probe) SWJPins(pinOut, pinSelect, pinWait uint32) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.transport == nil {
		return 0, errors.New("probe is closed")
	}
	resp, err := p.transport.WriteRead(p.protocol.EncodeSWJPins(byte(pinOut), byte(pinSelect), pinWait))
	if err != nil {
		return 0, errors.Annotate(err, "SWJ pins failed")
	}
	in, err := p.protocol.DecodeSWJPins(resp)
	return uint32(in), errors.Trace(err)
}

// SelectDP switches the wire to dp. Multi-drop ports are selected with a
// line reset followed by a TARGETSEL write and the mandatory DPIDR read.
func (p *Probe) SelectDP(dp dap.DPAddress) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.hasCurrent && p.current == dp {
		return nil
	}
	if !dp.Multidrop && (!p.hasCurrent || !p.current.Multidrop) {
		p.current, p.hasCurrent = dp, true
		return nil
	}

	p.hasCurrent = false
	logger.Debugf("cmsisdap: selecting %s", dp)

	if err := p.swjSequence(lineResetBits, lineReset); err != nil {
		return err
	}
	if err := p.swjSequence(8, 0); err != nil {
		return err
	}
	if dp.Multidrop {
		if err := p.targetSel(dp.TargetSel); err != nil {
			return err
		}
	}
	if _, err := p.transfer([]Transfer{{Request: TransferRequest(false, true, dap.RegDPIDR)}}); err != nil {
		return errors.Annotatef(err, "reading DPIDR after selecting %s", dp)
	}

	p.current, p.hasCurrent = dp, true
	return nil
}

// targetSel writes TARGETSEL. The request has no acknowledge phase, so it is
// built by hand from SWD sequences.
func (p *Probe) targetSel(value uint32) error {
	data := uint64(value) | uint64(bits.OnesCount32(value)&1)<<32
	payload := make([]byte, 5)
	for i := range payload {
		payload[i] = byte(data >> (8 * i))
	}
	sequences := []SWDSequence{
		NewSWDSequence(8, false, []byte{targetSelRequest}),
		NewSWDSequence(5, true, nil), // turnaround, ignored ack, turnaround
		NewSWDSequence(33, false, payload),
		NewSWDSequence(2, false, []byte{0}),
	}
	resp, err := p.transport.WriteRead(p.protocol.EncodeSWDSequence(sequences))
	if err != nil {
		return errors.Annotate(err, "TARGETSEL write failed")
	}
	if _, err := p.protocol.DecodeSWDSequence(resp, sequences); err != nil {
		return errors.Annotate(err, "TARGETSEL write failed")
	}
	return nil
}

func swoModeByte(mode dap.SWOMode) byte {
	if mode == dap.SWOModeManchester {
		return SWOModeManchester
	}
	return SWOModeUART
}

// EnableSWO configures and starts trace capture
func (p *Probe) EnableSWO(cfg dap.SWOConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.info.SupportsSWO(cfg.Mode) {
		return errors.NotSupportedf("SWO mode %d on probe %q", cfg.Mode, p.info.Product)
	}
	if cfg.Baud == 0 {
		return errors.NotValidf("SWO baud rate 0")
	}

	steps := []struct {
		cmd []byte
		id  byte
	}{
		{p.protocol.EncodeSWOControl(SWOControlStop), CmdSWOControl},
		{p.protocol.EncodeSWOTransport(SWOTransportDAPData), CmdSWOTransport},
		{p.protocol.EncodeSWOMode(swoModeByte(cfg.Mode)), CmdSWOMode},
	}
	for _, step := range steps {
		id := step.id
		if err := p.command(step.cmd, func(resp []byte) error { return p.protocol.DecodeSWOStatusByte(resp, id) }); err != nil {
			return errors.Annotate(err, "SWO setup failed")
		}
	}

	resp, err := p.transport.WriteRead(p.protocol.EncodeSWOBaudrate(cfg.Baud))
	if err != nil {
		return errors.Annotate(err, "SWO setup failed")
	}
	actual, err := p.protocol.DecodeSWOBaudrate(resp)
	if err != nil {
		return errors.Annotate(err, "SWO setup failed")
	}
	if actual != cfg.Baud {
		logger.Warnf("cmsisdap: SWO baud rate %d requested, probe uses %d", cfg.Baud, actual)
	}

	if err := p.command(p.protocol.EncodeSWOControl(SWOControlStart), func(resp []byte) error {
		return p.protocol.DecodeSWOStatusByte(resp, CmdSWOControl)
	}); err != nil {
		return errors.Annotate(err, "SWO start failed")
	}
	p.swoEnabled = true
	return nil
}

func (p *Probe) disableSWO() error {
	if err := p.command(p.protocol.EncodeSWOControl(SWOControlStop), func(resp []byte) error {
		return p.protocol.DecodeSWOStatusByte(resp, CmdSWOControl)
	}); err != nil {
		return errors.Annotate(err, "SWO stop failed")
	}
	if err := p.command(p.protocol.EncodeSWOMode(SWOModeOff), func(resp []byte) error {
		return p.protocol.DecodeSWOStatusByte(resp, CmdSWOMode)
	}); err != nil {
		return errors.Annotate(err, "SWO stop failed")
	}
	p.swoEnabled = false
	return nil
}

// DisableSWO stops trace capture
func (p *Probe) DisableSWO() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.swoEnabled {
		return nil
	}
	return p.disableSWO()
}

// ReadSWO polls captured trace data until some arrives or timeout elapses.
func (p *Probe) ReadSWO(timeout time.Duration) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.swoEnabled {
		return nil, errors.NotValidf("SWO capture not enabled")
	}

	deadline := time.Now().Add(timeout)
	maxCount := uint16(p.protocol.PacketSize - 4)
	for {
		resp, err := p.transport.WriteRead(p.protocol.EncodeSWOData(maxCount))
		if err != nil {
			return nil, errors.Annotate(err, "SWO read failed")
		}
		_, data, err := p.protocol.DecodeSWOData(resp)
		if err != nil {
			return nil, errors.Annotate(err, "SWO read failed")
		}
		if len(data) > 0 || !time.Now().Before(deadline) {
			return data, nil
		}
		time.Sleep(swoPollInterval)
	}
}

// Close disconnects and releases resources
func (p *Probe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.transport == nil {
		return nil
	}
	if p.swoEnabled {
		if err := p.disableSWO(); err != nil {
			logger.Warnf("cmsisdap: %v", err)
		}
	}
	if p.connected {
		if err := p.command(p.protocol.EncodeDisconnect(), p.protocol.DecodeDisconnect); err != nil {
			logger.Warnf("cmsisdap: disconnect: %v", err)
		}
		p.connected = false
	}
	err := p.transport.Close()
	p.transport = nil
	return err
}

var (
	_ dap.Probe     = (*Probe)(nil)
	_ dap.SWOAccess = (*Probe)(nil)
)
