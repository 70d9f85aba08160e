package modbus

import (
	"errors"
	"testing"

	mbserver "github.com/simonvetter/modbus"

	"github.com/nerrad567/virtuaplant-core/internal/register"
)

func TestWordsRoundTrip(t *testing.T) {
	words := []uint16{0, 1, 0x00FF, 0xFF00, 0xFFFF}
	got := bytesToWords(wordsToBytes(words))
	if len(got) != len(words) {
		t.Fatalf("len = %d, want %d", len(got), len(words))
	}
	for i := range words {
		if got[i] != words[i] {
			t.Errorf("word %d = %#x, want %#x", i, got[i], words[i])
		}
	}
	if b := wordsToBytes([]uint16{0x1234}); b[0] != 0x12 || b[1] != 0x34 {
		t.Errorf("wordsToBytes() = % x, want big-endian 12 34", b)
	}
}

func TestBankHandler_Registers(t *testing.T) {
	bank := register.NewBank("plc", register.DefaultSize)
	_ = bank.Write(2, 0x1234)
	h := newBankHandler(bank)

	tests := []struct {
		name    string
		call    func() ([]uint16, error)
		want    []uint16
		wantErr error
	}{
		{
			name: "read holding",
			call: func() ([]uint16, error) {
				return h.HandleHoldingRegisters(&mbserver.HoldingRegistersRequest{Addr: 2, Quantity: 1})
			},
			want: []uint16{0x1234},
		},
		{
			name: "read input shares the words",
			call: func() ([]uint16, error) {
				return h.HandleInputRegisters(&mbserver.InputRegistersRequest{Addr: 1, Quantity: 2})
			},
			want: []uint16{0, 0x1234},
		},
		{
			name: "read past end",
			call: func() ([]uint16, error) {
				return h.HandleHoldingRegisters(&mbserver.HoldingRegistersRequest{Addr: register.DefaultSize - 1, Quantity: 2})
			},
			wantErr: mbserver.ErrIllegalDataAddress,
		},
		{
			name: "write single",
			call: func() ([]uint16, error) {
				return h.HandleHoldingRegisters(&mbserver.HoldingRegistersRequest{Addr: 5, Quantity: 1, IsWrite: true, Args: []uint16{9}})
			},
		},
		{
			name: "write single out of range",
			call: func() ([]uint16, error) {
				return h.HandleHoldingRegisters(&mbserver.HoldingRegistersRequest{Addr: register.DefaultSize, Quantity: 1, IsWrite: true, Args: []uint16{9}})
			},
			wantErr: mbserver.ErrIllegalDataAddress,
		},
		{
			name: "write multiple",
			call: func() ([]uint16, error) {
				return h.HandleHoldingRegisters(&mbserver.HoldingRegistersRequest{Addr: 6, Quantity: 2, IsWrite: true, Args: []uint16{0x0A, 0x0B}})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.call()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("word %d = %#x, want %#x", i, got[i], tt.want[i])
				}
			}
		})
	}

	words, _ := bank.ReadRange(5, 3)
	if words[0] != 9 || words[1] != 0x0A || words[2] != 0x0B {
		t.Errorf("bank words 5..7 = %v, want [9 10 11]", words)
	}
}

func TestBankHandler_NoBitAccess(t *testing.T) {
	h := newBankHandler(register.NewBank("plc", register.DefaultSize))

	if _, err := h.HandleCoils(&mbserver.CoilsRequest{Quantity: 1}); !errors.Is(err, mbserver.ErrIllegalFunction) {
		t.Errorf("HandleCoils() error = %v, want illegal function", err)
	}
	if _, err := h.HandleDiscreteInputs(&mbserver.DiscreteInputsRequest{Quantity: 1}); !errors.Is(err, mbserver.ErrIllegalFunction) {
		t.Errorf("HandleDiscreteInputs() error = %v, want illegal function", err)
	}
	if s := h.exceptions.Load(); s != 2 {
		t.Errorf("exceptions = %d, want 2", s)
	}
}

// unavailableBank fails every call as a broken device would.
type unavailableBank struct{ register.Accessor }

func (unavailableBank) ReadRange(uint16, uint16) ([]uint16, error) {
	return nil, register.ErrBankUnavailable
}

func TestBankHandler_DeviceFailure(t *testing.T) {
	h := newBankHandler(unavailableBank{})

	_, err := h.HandleInputRegisters(&mbserver.InputRegistersRequest{Addr: 0, Quantity: 1})
	if !errors.Is(err, mbserver.ErrServerDeviceFailure) {
		t.Errorf("error = %v, want server device failure", err)
	}
}
