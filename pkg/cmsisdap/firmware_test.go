package cmsisdap

import (
	"encoding/binary"
	"errors"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/dap"
	"github.com/OpenTraceLab/OpenTraceADI/pkg/dapsim"
)

// firmware answers CMSIS-DAP packets the way probe firmware would, with a
// simulated target behind the SWD wire.
type firmware struct {
	target     *dapsim.Target
	packetSize int
	caps       byte

	commands  [][]byte
	targetSel []uint32

	// set by a line reset until the next TARGETSEL or transfer
	lineReset bool
	// the wire is deselected after a TARGETSEL nobody answered
	deselected bool

	closed bool
}

func newFirmware(target *dapsim.Target) *firmware {
	return &firmware{
		target:     target,
		packetSize: DefaultPacketSize,
		caps:       CapSWD | CapSWOUART,
	}
}

func (f *firmware) GetPacketSize() int { return f.packetSize }

func (f *firmware) Close() error {
	f.closed = true
	return nil
}

// sent returns the commands with the given ID in order.
func (f *firmware) sent(cmd byte) [][]byte {
	var out [][]byte
	for _, c := range f.commands {
		if c[0] == cmd {
			out = append(out, c)
		}
	}
	return out
}

func infoString(s string) []byte {
	return append([]byte{CmdInfo, byte(len(s))}, s...)
}

func ackFor(err error) byte {
	switch {
	case err == nil:
		return 1
	case errors.Is(err, dap.ErrWaitResponse):
		return 2
	case errors.Is(err, dap.ErrFaultResponse):
		return 4
	}
	return 7
}

func (f *firmware) WriteRead(cmd []byte) ([]byte, error) {
	if len(cmd) > f.packetSize {
		return nil, errors.New("packet too large")
	}
	f.commands = append(f.commands, append([]byte(nil), cmd...))

	switch cmd[0] {
	case CmdInfo:
		switch cmd[1] {
		case InfoVendorID:
			return infoString("OpenTraceLab"), nil
		case InfoProductID:
			return infoString("Sim CMSIS-DAP"), nil
		case InfoSerialNum:
			return infoString("E6614103"), nil
		case InfoFirmwareVer:
			return infoString("2.1.0"), nil
		case InfoCapabilities:
			return []byte{CmdInfo, 1, f.caps}, nil
		case InfoPacketSize:
			return []byte{CmdInfo, 2, byte(f.packetSize), byte(f.packetSize >> 8)}, nil
		}
		return []byte{CmdInfo, 0}, nil
	case CmdConnect:
		return []byte{CmdConnect, cmd[1]}, nil
	case CmdSWJSequence:
		bitLen := cmd[1]
		var bits uint64
		for i, b := range cmd[2:] {
			bits |= uint64(b) << (8 * i)
		}
		if bitLen >= 50 && bits == 1<<bitLen-1 {
			f.lineReset = true
		}
		return f.status(cmd[0], f.target.SWJSequence(bitLen, bits)), nil
	case CmdSWJPins:
		in, err := f.target.SWJPins(uint32(cmd[1]), uint32(cmd[2]), binary.LittleEndian.Uint32(cmd[3:]))
		if err != nil {
			return nil, err
		}
		return []byte{CmdSWJPins, byte(in)}, nil
	case CmdSWDSequence:
		return f.swdSequence(cmd), nil
	case CmdTransfer:
		return f.transfer(cmd), nil
	case CmdTransferBlock:
		return f.transferBlock(cmd), nil
	case CmdSWOBaudrate:
		return append([]byte{CmdSWOBaudrate}, cmd[1:5]...), nil
	case CmdSWOData:
		data, _ := f.target.ReadSWO(0)
		resp := []byte{CmdSWOData, 0x01, byte(len(data)), byte(len(data) >> 8)}
		return append(resp, data...), nil
	case CmdSWOMode:
		if cmd[1] == SWOModeOff {
			f.target.DisableSWO()
		} else {
			f.target.EnableSWO(dap.SWOConfig{Mode: dap.SWOMode(cmd[1]), Baud: 1})
		}
		return []byte{cmd[0], StatusOK}, nil
	}
	return []byte{cmd[0], StatusOK}, nil
}

func (f *firmware) status(cmd byte, err error) []byte {
	if err != nil {
		return []byte{cmd, StatusError}
	}
	return []byte{cmd, StatusOK}
}

// swdSequence only understands the TARGETSEL write the probe emits.
func (f *firmware) swdSequence(cmd []byte) []byte {
	resp := []byte{CmdSWDSequence, StatusOK}
	offset := 2
	var out []byte
	for i := 0; i < int(cmd[1]); i++ {
		seq := SWDSequence{Info: cmd[offset]}
		offset++
		if seq.Input() {
			resp = append(resp, make([]byte, (seq.Cycles()+7)/8)...)
			continue
		}
		n := (seq.Cycles() + 7) / 8
		out = append(out, cmd[offset:offset+n]...)
		offset += n
	}
	if len(out) >= 6 && out[0] == targetSelRequest {
		value := binary.LittleEndian.Uint32(out[1:5])
		f.targetSel = append(f.targetSel, value)
		f.lineReset = false
		f.deselected = f.target.SelectDP(dap.MultidropDP(value)) != nil
	}
	return resp
}

func (f *firmware) wireReady() error {
	if f.lineReset {
		f.lineReset = false
		f.deselected = f.target.SelectDP(dap.DefaultDP) != nil
	}
	if f.deselected {
		return dap.ErrNoAcknowledge
	}
	return nil
}

func port(request byte) dap.PortType {
	if request&TransferAPnDP != 0 {
		return dap.AccessPort
	}
	return dap.DebugPort
}

func (f *firmware) transfer(cmd []byte) []byte {
	count := int(cmd[2])
	offset := 3
	var data []byte
	executed := 0
	response := byte(1)

	for i := 0; i < count; i++ {
		request := cmd[offset]
		offset++
		addr := request & (TransferA2 | TransferA3)

		err := f.wireReady()
		if request&TransferRnW != 0 {
			var value uint32
			if err == nil {
				value, err = f.target.RawReadRegister(port(request), addr)
			}
			if err == nil {
				data = binary.LittleEndian.AppendUint32(data, value)
			}
		} else {
			value := binary.LittleEndian.Uint32(cmd[offset:])
			offset += 4
			if err == nil {
				err = f.target.RawWriteRegister(port(request), addr, value)
			}
		}
		response = ackFor(err)
		if err != nil {
			break
		}
		executed++
	}
	return append([]byte{CmdTransfer, byte(executed), response}, data...)
}

func (f *firmware) transferBlock(cmd []byte) []byte {
	count := int(binary.LittleEndian.Uint16(cmd[2:4]))
	request := cmd[4]
	addr := request & (TransferA2 | TransferA3)
	values := make([]uint32, count)

	err := f.wireReady()
	if request&TransferRnW != 0 {
		if err == nil {
			err = f.target.RawReadBlock(port(request), addr, values)
		}
		if err != nil {
			return []byte{CmdTransferBlock, 0, 0, ackFor(err)}
		}
		resp := []byte{CmdTransferBlock, byte(count), byte(count >> 8), 1}
		for _, v := range values {
			resp = binary.LittleEndian.AppendUint32(resp, v)
		}
		return resp
	}

	for i := range values {
		values[i] = binary.LittleEndian.Uint32(cmd[5+4*i:])
	}
	if err == nil {
		err = f.target.RawWriteBlock(port(request), addr, values)
	}
	if err != nil {
		return []byte{CmdTransferBlock, 0, 0, ackFor(err)}
	}
	return []byte{CmdTransferBlock, byte(count), byte(count >> 8), 1}
}

var _ packetTransport = (*firmware)(nil)
