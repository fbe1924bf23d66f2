package cmsisdap

import (
	"encoding/binary"
	"fmt"
)

// CMSIS-DAP Command IDs
const (
	CmdInfo              = 0x00
	CmdHostStatus        = 0x01
	CmdConnect           = 0x02
	CmdDisconnect        = 0x03
	CmdTransferConfigure = 0x04
	CmdTransfer          = 0x05
	CmdTransferBlock     = 0x06
	CmdTransferAbort     = 0x07
	CmdResetTarget       = 0x0A
	CmdSWJPins           = 0x10
	CmdSWJClock          = 0x11
	CmdSWJSequence       = 0x12
	CmdSWDConfigure      = 0x13
	CmdSWOTransport      = 0x17
	CmdSWOMode           = 0x18
	CmdSWOBaudrate       = 0x19
	CmdSWOControl        = 0x1A
	CmdSWOStatus         = 0x1B
	CmdSWOData           = 0x1C
	CmdSWDSequence       = 0x1D
)

// DAP_Info Info IDs
const (
	InfoVendorID     = 0x01
	InfoProductID    = 0x02
	InfoSerialNum    = 0x03
	InfoFirmwareVer  = 0x04
	InfoCapabilities = 0xF0
	InfoSWOBuffer    = 0xFD
	InfoPacketCount  = 0xFE
	InfoPacketSize   = 0xFF
)

// Capability bits reported by InfoCapabilities
const (
	CapSWD           = 1 << 0
	CapJTAG          = 1 << 1
	CapSWOUART       = 1 << 2
	CapSWOManchester = 1 << 3
	CapAtomic        = 1 << 4
)

// Connection ports
const (
	PortDefault = 0
	PortSWD     = 1
	PortJTAG    = 2
)

// Status codes
const (
	StatusOK    = 0x00
	StatusError = 0xFF
)

// Transfer request bits
const (
	TransferAPnDP = 1 << 0
	TransferRnW   = 1 << 1
	TransferA2    = 1 << 2
	TransferA3    = 1 << 3
)

// Transfer response bits
const (
	TransferAckMask       = 0x07
	TransferProtocolError = 1 << 3
	TransferValueMismatch = 1 << 4
)

// SWD sequence info flags
const (
	SWDSeqCountMask = 0x3F // Bits [5:0] = cycle count (0 means 64)
	SWDSeqInput     = 0x80 // Bit [7] = capture SWDIO
)

// SWO transport, mode and control values
const (
	SWOTransportNone    = 0
	SWOTransportDAPData = 1

	SWOModeOff        = 0
	SWOModeUART       = 1
	SWOModeManchester = 2

	SWOControlStop  = 0
	SWOControlStart = 1
)

// Protocol handles encoding/decoding of CMSIS-DAP commands
type Protocol struct {
	PacketSize int
}

// NewProtocol creates a new protocol handler
func NewProtocol(packetSize int) *Protocol {
	return &Protocol{
		PacketSize: packetSize,
	}
}

func checkHeader(resp []byte, cmd byte, minLen int) error {
	if len(resp) < minLen {
		return fmt.Errorf("response too short")
	}
	if resp[0] != cmd {
		return fmt.Errorf("invalid command ID: 0x%02X", resp[0])
	}
	return nil
}

func decodeStatus(resp []byte, cmd byte, what string) error {
	if err := checkHeader(resp, cmd, 2); err != nil {
		return err
	}
	if resp[1] != StatusOK {
		return fmt.Errorf("%s failed", what)
	}
	return nil
}

// EncodeInfo builds a DAP_Info command
func (p *Protocol) EncodeInfo(infoID byte) []byte {
	return []byte{CmdInfo, infoID}
}

// DecodeInfo parses a DAP_Info response
func (p *Protocol) DecodeInfo(resp []byte) (string, error) {
	if err := checkHeader(resp, CmdInfo, 2); err != nil {
		return "", err
	}

	length := int(resp[1])
	if len(resp) < 2+length {
		return "", fmt.Errorf("incomplete info string")
	}

	data := resp[2 : 2+length]
	// Strings are NUL terminated by most firmwares
	for i, b := range data {
		if b == 0 {
			data = data[:i]
			break
		}
	}
	return string(data), nil
}

// DecodeInfoByte parses a one byte DAP_Info response such as capabilities
func (p *Protocol) DecodeInfoByte(resp []byte) (byte, error) {
	if err := checkHeader(resp, CmdInfo, 3); err != nil {
		return 0, err
	}
	if resp[1] < 1 {
		return 0, fmt.Errorf("info not available")
	}
	return resp[2], nil
}

// DecodeInfoShort parses a two byte DAP_Info response such as the packet size
func (p *Protocol) DecodeInfoShort(resp []byte) (uint16, error) {
	if err := checkHeader(resp, CmdInfo, 4); err != nil {
		return 0, err
	}
	if resp[1] != 2 {
		return 0, fmt.Errorf("unexpected info length %d", resp[1])
	}
	return binary.LittleEndian.Uint16(resp[2:4]), nil
}

// EncodeConnect builds a DAP_Connect command
func (p *Protocol) EncodeConnect(port byte) []byte {
	return []byte{CmdConnect, port}
}

// DecodeConnect parses a DAP_Connect response
func (p *Protocol) DecodeConnect(resp []byte) (byte, error) {
	if err := checkHeader(resp, CmdConnect, 2); err != nil {
		return 0, err
	}
	if resp[1] == 0 {
		return 0, fmt.Errorf("connection failed")
	}
	return resp[1], nil
}

// EncodeDisconnect builds a DAP_Disconnect command
func (p *Protocol) EncodeDisconnect() []byte {
	return []byte{CmdDisconnect}
}

// DecodeDisconnect parses a DAP_Disconnect response
func (p *Protocol) DecodeDisconnect(resp []byte) error {
	return decodeStatus(resp, CmdDisconnect, "disconnect")
}

// EncodeTransferConfigure builds a DAP_TransferConfigure command
func (p *Protocol) EncodeTransferConfigure(idleCycles byte, waitRetry, matchRetry uint16) []byte {
	cmd := make([]byte, 6)
	cmd[0] = CmdTransferConfigure
	cmd[1] = idleCycles
	binary.LittleEndian.PutUint16(cmd[2:], waitRetry)
	binary.LittleEndian.PutUint16(cmd[4:], matchRetry)
	return cmd
}

// DecodeTransferConfigure parses response
func (p *Protocol) DecodeTransferConfigure(resp []byte) error {
	return decodeStatus(resp, CmdTransferConfigure, "transfer configure")
}

// Transfer is one register access inside a DAP_Transfer command
type Transfer struct {
	Request byte
	Data    uint32 // write value
}

// TransferRequest builds the request byte for a register access. Only
// A[3:2] of addr are used.
func TransferRequest(ap, read bool, addr uint8) byte {
	req := addr & (TransferA2 | TransferA3)
	if ap {
		req |= TransferAPnDP
	}
	if read {
		req |= TransferRnW
	}
	return req
}

// IsRead reports whether the transfer reads a register
func (t Transfer) IsRead() bool {
	return t.Request&TransferRnW != 0
}

// EncodeTransfer builds a DAP_Transfer command
func (p *Protocol) EncodeTransfer(transfers []Transfer) []byte {
	size := 3
	for _, t := range transfers {
		size++
		if !t.IsRead() {
			size += 4
		}
	}

	cmd := make([]byte, size)
	cmd[0] = CmdTransfer
	cmd[1] = 0 // DAP index, ignored for SWD
	cmd[2] = byte(len(transfers))

	offset := 3
	for _, t := range transfers {
		cmd[offset] = t.Request
		offset++
		if !t.IsRead() {
			binary.LittleEndian.PutUint32(cmd[offset:], t.Data)
			offset += 4
		}
	}
	return cmd
}

// TransferResult is the decoded DAP_Transfer response
type TransferResult struct {
	Count    int      // transfers executed
	Response byte     // response of the last transfer
	Data     []uint32 // values of the executed reads
}

// Ack returns the SWD acknowledge of the last transfer
func (r TransferResult) Ack() uint8 {
	return r.Response & TransferAckMask
}

// DecodeTransfer parses a DAP_Transfer response
func (p *Protocol) DecodeTransfer(resp []byte, transfers []Transfer) (TransferResult, error) {
	if err := checkHeader(resp, CmdTransfer, 3); err != nil {
		return TransferResult{}, err
	}

	result := TransferResult{
		Count:    int(resp[1]),
		Response: resp[2],
	}
	if result.Count > len(transfers) {
		return result, fmt.Errorf("probe executed %d of %d transfers", result.Count, len(transfers))
	}

	offset := 3
	for _, t := range transfers[:result.Count] {
		if !t.IsRead() {
			continue
		}
		if offset+4 > len(resp) {
			return result, fmt.Errorf("incomplete transfer data")
		}
		result.Data = append(result.Data, binary.LittleEndian.Uint32(resp[offset:]))
		offset += 4
	}
	return result, nil
}

// EncodeTransferBlock builds a DAP_TransferBlock command. data is only used
// for writes.
func (p *Protocol) EncodeTransferBlock(request byte, count int, data []uint32) []byte {
	size := 5
	if request&TransferRnW == 0 {
		size += 4 * len(data)
	}
	cmd := make([]byte, size)
	cmd[0] = CmdTransferBlock
	cmd[1] = 0
	binary.LittleEndian.PutUint16(cmd[2:], uint16(count))
	cmd[4] = request
	if request&TransferRnW == 0 {
		for i, v := range data {
			binary.LittleEndian.PutUint32(cmd[5+4*i:], v)
		}
	}
	return cmd
}

// DecodeTransferBlock parses a DAP_TransferBlock response, copying read
// values into data.
func (p *Protocol) DecodeTransferBlock(resp []byte, read bool, data []uint32) (TransferResult, error) {
	if err := checkHeader(resp, CmdTransferBlock, 4); err != nil {
		return TransferResult{}, err
	}
	result := TransferResult{
		Count:    int(binary.LittleEndian.Uint16(resp[1:3])),
		Response: resp[3],
	}
	if result.Count > len(data) {
		return result, fmt.Errorf("probe executed %d of %d transfers", result.Count, len(data))
	}
	if !read {
		return result, nil
	}
	if len(resp) < 4+4*result.Count {
		return result, fmt.Errorf("incomplete transfer data")
	}
	for i := 0; i < result.Count; i++ {
		data[i] = binary.LittleEndian.Uint32(resp[4+4*i:])
	}
	result.Data = data[:result.Count]
	return result, nil
}

// MaxBlockWords returns how many words fit into one DAP_TransferBlock
func (p *Protocol) MaxBlockWords(read bool) int {
	if read {
		return (p.PacketSize - 4) / 4
	}
	return (p.PacketSize - 5) / 4
}

// EncodeSetClock builds a DAP_SWJ_Clock command
func (p *Protocol) EncodeSetClock(hz uint32) []byte {
	cmd := make([]byte, 5)
	cmd[0] = CmdSWJClock
	binary.LittleEndian.PutUint32(cmd[1:], hz)
	return cmd
}

// DecodeSetClock parses response
func (p *Protocol) DecodeSetClock(resp []byte) error {
	return decodeStatus(resp, CmdSWJClock, "set clock")
}

// EncodeSWJSequence builds a DAP_SWJ_Sequence command. Bits are sent LSB
// first.
func (p *Protocol) EncodeSWJSequence(bitLen uint8, bits uint64) []byte {
	n := (int(bitLen) + 7) / 8
	cmd := make([]byte, 2+n)
	cmd[0] = CmdSWJSequence
	cmd[1] = bitLen
	for i := 0; i < n; i++ {
		cmd[2+i] = byte(bits >> (8 * i))
	}
	return cmd
}

// DecodeSWJSequence parses response
func (p *Protocol) DecodeSWJSequence(resp []byte) error {
	return decodeStatus(resp, CmdSWJSequence, "SWJ sequence")
}

// EncodeSWJPins builds a DAP_SWJ_Pins command
func (p *Protocol) EncodeSWJPins(pinOut, pinSelect byte, waitUS uint32) []byte {
	cmd := make([]byte, 7)
	cmd[0] = CmdSWJPins
	cmd[1] = pinOut
	cmd[2] = pinSelect
	binary.LittleEndian.PutUint32(cmd[3:], waitUS)
	return cmd
}

// DecodeSWJPins parses response and returns the pin input state
func (p *Protocol) DecodeSWJPins(resp []byte) (byte, error) {
	if err := checkHeader(resp, CmdSWJPins, 2); err != nil {
		return 0, err
	}
	return resp[1], nil
}

// SWDSequence is one entry of a DAP_SWD_Sequence command
type SWDSequence struct {
	Info byte
	Data []byte // output data, empty for input sequences
}

// NewSWDSequence creates a sequence descriptor of count cycles (1..64)
func NewSWDSequence(count int, input bool, data []byte) SWDSequence {
	info := byte(count & SWDSeqCountMask)
	if input {
		info |= SWDSeqInput
		data = nil
	}
	return SWDSequence{Info: info, Data: data}
}

// Cycles returns the number of clock cycles in this sequence
func (seq SWDSequence) Cycles() int {
	count := int(seq.Info & SWDSeqCountMask)
	if count == 0 {
		return 64
	}
	return count
}

// Input returns whether SWDIO is captured
func (seq SWDSequence) Input() bool {
	return seq.Info&SWDSeqInput != 0
}

// EncodeSWDSequence builds a DAP_SWD_Sequence command
func (p *Protocol) EncodeSWDSequence(sequences []SWDSequence) []byte {
	cmd := []byte{CmdSWDSequence, byte(len(sequences))}
	for _, seq := range sequences {
		cmd = append(cmd, seq.Info)
		if !seq.Input() {
			out := make([]byte, (seq.Cycles()+7)/8)
			copy(out, seq.Data)
			cmd = append(cmd, out...)
		}
	}
	return cmd
}

// DecodeSWDSequence parses response and returns captured data per input
// sequence
func (p *Protocol) DecodeSWDSequence(resp []byte, sequences []SWDSequence) ([][]byte, error) {
	if err := decodeStatus(resp, CmdSWDSequence, "SWD sequence"); err != nil {
		return nil, err
	}
	var result [][]byte
	offset := 2
	for _, seq := range sequences {
		if !seq.Input() {
			continue
		}
		n := (seq.Cycles() + 7) / 8
		if offset+n > len(resp) {
			return nil, fmt.Errorf("incomplete SWDIO data")
		}
		result = append(result, append([]byte(nil), resp[offset:offset+n]...))
		offset += n
	}
	return result, nil
}

// EncodeSWOTransport builds a DAP_SWO_Transport command
func (p *Protocol) EncodeSWOTransport(transport byte) []byte {
	return []byte{CmdSWOTransport, transport}
}

// EncodeSWOMode builds a DAP_SWO_Mode command
func (p *Protocol) EncodeSWOMode(mode byte) []byte {
	return []byte{CmdSWOMode, mode}
}

// EncodeSWOControl builds a DAP_SWO_Control command
func (p *Protocol) EncodeSWOControl(control byte) []byte {
	return []byte{CmdSWOControl, control}
}

// DecodeSWOStatusByte parses the status response of SWO_Transport, SWO_Mode
// and SWO_Control
func (p *Protocol) DecodeSWOStatusByte(resp []byte, cmd byte) error {
	return decodeStatus(resp, cmd, fmt.Sprintf("SWO command 0x%02X", cmd))
}

// EncodeSWOBaudrate builds a DAP_SWO_Baudrate command
func (p *Protocol) EncodeSWOBaudrate(baud uint32) []byte {
	cmd := make([]byte, 5)
	cmd[0] = CmdSWOBaudrate
	binary.LittleEndian.PutUint32(cmd[1:], baud)
	return cmd
}

// DecodeSWOBaudrate returns the baud rate the probe actually configured
func (p *Protocol) DecodeSWOBaudrate(resp []byte) (uint32, error) {
	if err := checkHeader(resp, CmdSWOBaudrate, 5); err != nil {
		return 0, err
	}
	baud := binary.LittleEndian.Uint32(resp[1:5])
	if baud == 0 {
		return 0, fmt.Errorf("baud rate not supported")
	}
	return baud, nil
}

// EncodeSWOData builds a DAP_SWO_Data command
func (p *Protocol) EncodeSWOData(maxCount uint16) []byte {
	cmd := make([]byte, 3)
	cmd[0] = CmdSWOData
	binary.LittleEndian.PutUint16(cmd[1:], maxCount)
	return cmd
}

// DecodeSWOData parses response and returns the trace status and data
func (p *Protocol) DecodeSWOData(resp []byte) (byte, []byte, error) {
	if err := checkHeader(resp, CmdSWOData, 4); err != nil {
		return 0, nil, err
	}
	count := int(binary.LittleEndian.Uint16(resp[2:4]))
	if len(resp) < 4+count {
		return 0, nil, fmt.Errorf("incomplete SWO data")
	}
	return resp[1], append([]byte(nil), resp[4:4+count]...), nil
}

// EncodeResetTarget builds a DAP_ResetTarget command
func (p *Protocol) EncodeResetTarget() []byte {
	return []byte{CmdResetTarget}
}

// DecodeResetTarget parses response
func (p *Protocol) DecodeResetTarget(resp []byte) error {
	return decodeStatus(resp, CmdResetTarget, "reset target")
}
