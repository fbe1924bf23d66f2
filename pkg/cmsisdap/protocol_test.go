package cmsisdap

import (
	"bytes"
	"reflect"
	"testing"
)

func TestProtocolEncodeInfo(t *testing.T) {
	proto := NewProtocol(64)

	tests := []struct {
		name   string
		infoID byte
		want   []byte
	}{
		{"Vendor ID", InfoVendorID, []byte{0x00, 0x01}},
		{"Product ID", InfoProductID, []byte{0x00, 0x02}},
		{"Serial Number", InfoSerialNum, []byte{0x00, 0x03}},
		{"Firmware Version", InfoFirmwareVer, []byte{0x00, 0x04}},
		{"Capabilities", InfoCapabilities, []byte{0x00, 0xF0}},
		{"Packet Size", InfoPacketSize, []byte{0x00, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := proto.EncodeInfo(tt.infoID)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeInfo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProtocolDecodeInfo(t *testing.T) {
	proto := NewProtocol(64)

	tests := []struct {
		name    string
		resp    []byte
		want    string
		wantErr bool
	}{
		{
			name: "valid vendor",
			resp: []byte{0x00, 0x04, 'T', 'e', 's', 't'},
			want: "Test",
		},
		{
			name: "nul terminated",
			resp: []byte{0x00, 0x05, 'T', 'e', 's', 't', 0x00},
			want: "Test",
		},
		{
			name: "empty",
			resp: []byte{0x00, 0x00},
			want: "",
		},
		{
			name:    "too short",
			resp:    []byte{0x00},
			wantErr: true,
		},
		{
			name:    "wrong command",
			resp:    []byte{0x01, 0x04, 'T', 'e', 's', 't'},
			wantErr: true,
		},
		{
			name:    "incomplete string",
			resp:    []byte{0x00, 0x10, 'T', 'e', 's', 't'},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := proto.DecodeInfo(tt.resp)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeInfo() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DecodeInfo() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProtocolDecodeInfoNumbers(t *testing.T) {
	proto := NewProtocol(64)

	caps, err := proto.DecodeInfoByte([]byte{0x00, 0x01, CapSWD | CapSWOUART})
	if err != nil || caps != CapSWD|CapSWOUART {
		t.Errorf("DecodeInfoByte() = 0x%02x, %v", caps, err)
	}
	if _, err := proto.DecodeInfoByte([]byte{0x00, 0x00, 0x00}); err == nil {
		t.Error("DecodeInfoByte() accepted an empty answer")
	}

	size, err := proto.DecodeInfoShort([]byte{0x00, 0x02, 0x00, 0x02})
	if err != nil || size != 512 {
		t.Errorf("DecodeInfoShort() = %d, %v", size, err)
	}
	if _, err := proto.DecodeInfoShort([]byte{0x00, 0x01, 0x40, 0x00}); err == nil {
		t.Error("DecodeInfoShort() accepted a one byte answer")
	}
}

func TestProtocolConnect(t *testing.T) {
	proto := NewProtocol(64)

	if got := proto.EncodeConnect(PortSWD); !bytes.Equal(got, []byte{0x02, 0x01}) {
		t.Errorf("EncodeConnect() = %v", got)
	}

	tests := []struct {
		name    string
		resp    []byte
		want    byte
		wantErr bool
	}{
		{"swd", []byte{0x02, PortSWD}, PortSWD, false},
		{"failed", []byte{0x02, 0x00}, 0, true},
		{"wrong command", []byte{0x03, PortSWD}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := proto.DecodeConnect(tt.resp)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeConnect() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DecodeConnect() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProtocolStatusResponses(t *testing.T) {
	proto := NewProtocol(64)

	tests := []struct {
		name   string
		decode func([]byte) error
		cmd    byte
	}{
		{"disconnect", proto.DecodeDisconnect, CmdDisconnect},
		{"transfer configure", proto.DecodeTransferConfigure, CmdTransferConfigure},
		{"set clock", proto.DecodeSetClock, CmdSWJClock},
		{"swj sequence", proto.DecodeSWJSequence, CmdSWJSequence},
		{"reset target", proto.DecodeResetTarget, CmdResetTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.decode([]byte{tt.cmd, StatusOK}); err != nil {
				t.Errorf("status OK: %v", err)
			}
			if err := tt.decode([]byte{tt.cmd, StatusError}); err == nil {
				t.Error("status error accepted")
			}
			if err := tt.decode([]byte{tt.cmd ^ 0x40, StatusOK}); err == nil {
				t.Error("wrong command accepted")
			}
		})
	}
}

func TestTransferRequest(t *testing.T) {
	tests := []struct {
		name string
		ap   bool
		read bool
		addr uint8
		want byte
	}{
		{"DP read DPIDR", false, true, 0x00, 0x02},
		{"DP write ABORT", false, false, 0x00, 0x00},
		{"DP write SELECT", false, false, 0x08, 0x08},
		{"DP read banked CTRL", false, true, 0x14, 0x06},
		{"AP read IDR", true, true, 0xFC, 0x0F},
		{"AP write TAR", true, false, 0x04, 0x05},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TransferRequest(tt.ap, tt.read, tt.addr); got != tt.want {
				t.Errorf("TransferRequest() = 0x%02x, want 0x%02x", got, tt.want)
			}
		})
	}
}

func TestProtocolTransfer(t *testing.T) {
	proto := NewProtocol(64)
	transfers := []Transfer{
		{Request: TransferRequest(true, true, 0xFC)},
		{Request: TransferRequest(false, false, 0x08), Data: 0x01000000},
	}

	want := []byte{0x05, 0x00, 0x02, 0x0F, 0x08, 0x00, 0x00, 0x00, 0x01}
	if got := proto.EncodeTransfer(transfers); !bytes.Equal(got, want) {
		t.Errorf("EncodeTransfer() = % x, want % x", got, want)
	}

	tests := []struct {
		name    string
		resp    []byte
		want    TransferResult
		wantErr bool
	}{
		{
			name: "all executed",
			resp: []byte{0x05, 0x02, 0x01, 0x78, 0x56, 0x34, 0x12},
			want: TransferResult{Count: 2, Response: 0x01, Data: []uint32{0x12345678}},
		},
		{
			name: "fault on first",
			resp: []byte{0x05, 0x00, 0x04},
			want: TransferResult{Count: 0, Response: 0x04},
		},
		{
			name:    "missing data",
			resp:    []byte{0x05, 0x01, 0x01, 0x78},
			wantErr: true,
		},
		{
			name:    "too many executed",
			resp:    []byte{0x05, 0x03, 0x01},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := proto.DecodeTransfer(tt.resp, transfers)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeTransfer() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeTransfer() = %+v, want %+v", got, tt.want)
			}
			if got.Ack() != tt.want.Response&TransferAckMask {
				t.Errorf("Ack() = %d", got.Ack())
			}
		})
	}
}

func TestProtocolTransferBlock(t *testing.T) {
	proto := NewProtocol(64)

	read := TransferRequest(true, true, 0x0C)
	if got, want := proto.EncodeTransferBlock(read, 3, make([]uint32, 3)), []byte{0x06, 0x00, 0x03, 0x00, 0x0F}; !bytes.Equal(got, want) {
		t.Errorf("EncodeTransferBlock(read) = % x, want % x", got, want)
	}

	write := TransferRequest(true, false, 0x0C)
	want := []byte{0x06, 0x00, 0x02, 0x00, 0x0D, 0x01, 0x00, 0x00, 0x00, 0x44, 0x33, 0x22, 0x11}
	if got := proto.EncodeTransferBlock(write, 2, []uint32{1, 0x11223344}); !bytes.Equal(got, want) {
		t.Errorf("EncodeTransferBlock(write) = % x, want % x", got, want)
	}

	data := make([]uint32, 2)
	result, err := proto.DecodeTransferBlock([]byte{0x06, 0x02, 0x00, 0x01, 0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00}, true, data)
	if err != nil {
		t.Fatalf("DecodeTransferBlock() error = %v", err)
	}
	if result.Count != 2 || !reflect.DeepEqual(data, []uint32{1, 2}) {
		t.Errorf("DecodeTransferBlock() = %+v, data %v", result, data)
	}
	if _, err := proto.DecodeTransferBlock([]byte{0x06, 0x02, 0x00, 0x01, 0x01}, true, data); err == nil {
		t.Error("DecodeTransferBlock() accepted truncated data")
	}

	if got := proto.MaxBlockWords(true); got != 15 {
		t.Errorf("MaxBlockWords(read) = %d, want 15", got)
	}
	if got := proto.MaxBlockWords(false); got != 14 {
		t.Errorf("MaxBlockWords(write) = %d, want 14", got)
	}
}

func TestProtocolSWJSequence(t *testing.T) {
	proto := NewProtocol(64)

	tests := []struct {
		name   string
		bitLen uint8
		bits   uint64
		want   []byte
	}{
		{"line reset", 51, 0x0007_FFFF_FFFF_FFFF, []byte{0x12, 0x33, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x07}},
		{"jtag to swd", 16, 0xE79E, []byte{0x12, 0x10, 0x9E, 0xE7}},
		{"idle", 3, 0, []byte{0x12, 0x03, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := proto.EncodeSWJSequence(tt.bitLen, tt.bits); !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeSWJSequence() = % x, want % x", got, tt.want)
			}
		})
	}
}

func TestProtocolSWJPins(t *testing.T) {
	proto := NewProtocol(64)

	want := []byte{0x10, 0x80, 0x80, 0xE8, 0x03, 0x00, 0x00}
	if got := proto.EncodeSWJPins(0x80, 0x80, 1000); !bytes.Equal(got, want) {
		t.Errorf("EncodeSWJPins() = % x, want % x", got, want)
	}
	in, err := proto.DecodeSWJPins([]byte{0x10, 0x83})
	if err != nil || in != 0x83 {
		t.Errorf("DecodeSWJPins() = 0x%02x, %v", in, err)
	}
}

func TestProtocolSWDSequence(t *testing.T) {
	proto := NewProtocol(64)

	sequences := []SWDSequence{
		NewSWDSequence(8, false, []byte{0x99}),
		NewSWDSequence(5, true, []byte{0xFF}),
		NewSWDSequence(64, false, nil),
	}
	if got := sequences[2].Cycles(); got != 64 {
		t.Errorf("Cycles() = %d, want 64", got)
	}
	if sequences[1].Data != nil {
		t.Error("input sequence kept output data")
	}

	want := []byte{0x1D, 0x03, 0x08, 0x99, 0x85, 0x00, 0, 0, 0, 0, 0, 0, 0, 0}
	if got := proto.EncodeSWDSequence(sequences); !bytes.Equal(got, want) {
		t.Errorf("EncodeSWDSequence() = % x, want % x", got, want)
	}

	captured, err := proto.DecodeSWDSequence([]byte{0x1D, StatusOK, 0x15}, sequences)
	if err != nil {
		t.Fatalf("DecodeSWDSequence() error = %v", err)
	}
	if !reflect.DeepEqual(captured, [][]byte{{0x15}}) {
		t.Errorf("DecodeSWDSequence() = %v", captured)
	}
	if _, err := proto.DecodeSWDSequence([]byte{0x1D, StatusOK}, sequences); err == nil {
		t.Error("DecodeSWDSequence() accepted missing input data")
	}
}

func TestProtocolSWO(t *testing.T) {
	proto := NewProtocol(64)

	if got, want := proto.EncodeSWOBaudrate(115200), []byte{0x19, 0x00, 0xC2, 0x01, 0x00}; !bytes.Equal(got, want) {
		t.Errorf("EncodeSWOBaudrate() = % x, want % x", got, want)
	}
	baud, err := proto.DecodeSWOBaudrate([]byte{0x19, 0x00, 0xC2, 0x01, 0x00})
	if err != nil || baud != 115200 {
		t.Errorf("DecodeSWOBaudrate() = %d, %v", baud, err)
	}
	if _, err := proto.DecodeSWOBaudrate([]byte{0x19, 0, 0, 0, 0}); err == nil {
		t.Error("DecodeSWOBaudrate() accepted an unsupported rate")
	}

	if got, want := proto.EncodeSWOData(60), []byte{0x1C, 60, 0x00}; !bytes.Equal(got, want) {
		t.Errorf("EncodeSWOData() = % x, want % x", got, want)
	}
	status, data, err := proto.DecodeSWOData([]byte{0x1C, 0x01, 0x03, 0x00, 'a', 'b', 'c'})
	if err != nil || status != 0x01 || string(data) != "abc" {
		t.Errorf("DecodeSWOData() = %d, %q, %v", status, data, err)
	}
	if _, _, err := proto.DecodeSWOData([]byte{0x1C, 0x01, 0x05, 0x00, 'a'}); err == nil {
		t.Error("DecodeSWOData() accepted truncated data")
	}

	if err := proto.DecodeSWOStatusByte([]byte{CmdSWOMode, StatusOK}, CmdSWOMode); err != nil {
		t.Errorf("DecodeSWOStatusByte() error = %v", err)
	}
}
