package dap

import (
	"errors"
	"testing"

	jujuerrors "github.com/juju/errors"
)

func TestAckError(t *testing.T) {
	tests := []struct {
		ack  uint8
		want error
	}{
		{1, nil},
		{2, ErrWaitResponse},
		{4, ErrFaultResponse},
		{7, ErrNoAcknowledge},
		{0, ErrNoAcknowledge},
		{3, ErrSWDProtocol},
	}

	for _, tt := range tests {
		got := AckError(tt.ack)
		if tt.want == nil {
			if got != nil {
				t.Errorf("AckError(%d) = %v, want nil", tt.ack, got)
			}
			continue
		}
		if !errors.Is(got, tt.want) {
			t.Errorf("AckError(%d) = %v, want %v", tt.ack, got, tt.want)
		}
	}
}

func TestIsTransportError(t *testing.T) {
	wrapped := jujuerrors.Annotate(ErrFaultResponse, "read AP register")
	if !IsTransportError(wrapped) {
		t.Error("annotated FAULT not recognised")
	}
	if IsTransportError(errors.New("usb: pipe stalled")) {
		t.Error("unrelated error reported as a transport error")
	}
	if IsTransportError(nil) {
		t.Error("nil reported as a transport error")
	}
}
