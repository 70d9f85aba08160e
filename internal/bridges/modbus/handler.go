package modbus

import (
	"errors"
	"sync/atomic"

	mbserver "github.com/simonvetter/modbus"

	"github.com/nerrad567/virtuaplant-core/internal/register"
)

// Ensure bankHandler implements mbserver.RequestHandler.
var _ mbserver.RequestHandler = (*bankHandler)(nil)

// bankHandler answers Modbus requests from one register bank.
//
// Holding and input registers are the same words. Coils and discrete inputs
// do not exist on a bank.
type bankHandler struct {
	bank register.Accessor

	requests   atomic.Uint64
	exceptions atomic.Uint64
}

func newBankHandler(bank register.Accessor) *bankHandler {
	return &bankHandler{bank: bank}
}

func (h *bankHandler) HandleCoils(*mbserver.CoilsRequest) ([]bool, error) {
	h.requests.Add(1)
	return nil, h.fail(mbserver.ErrIllegalFunction)
}

func (h *bankHandler) HandleDiscreteInputs(*mbserver.DiscreteInputsRequest) ([]bool, error) {
	h.requests.Add(1)
	return nil, h.fail(mbserver.ErrIllegalFunction)
}

// HandleHoldingRegisters serves 0x03, 0x06 and 0x10.
func (h *bankHandler) HandleHoldingRegisters(req *mbserver.HoldingRegistersRequest) ([]uint16, error) {
	h.requests.Add(1)
	if !req.IsWrite {
		return h.read(req.Addr, req.Quantity)
	}

	var err error
	if len(req.Args) == 1 {
		err = h.bank.Write(req.Addr, req.Args[0])
	} else {
		err = h.bank.WriteRange(req.Addr, req.Args)
	}
	if err != nil {
		return nil, h.fail(err)
	}
	return nil, nil
}

// HandleInputRegisters serves 0x04 from the holding words.
func (h *bankHandler) HandleInputRegisters(req *mbserver.InputRegistersRequest) ([]uint16, error) {
	h.requests.Add(1)
	return h.read(req.Addr, req.Quantity)
}

func (h *bankHandler) read(addr, quantity uint16) ([]uint16, error) {
	words, err := h.bank.ReadRange(addr, quantity)
	if err != nil {
		return nil, h.fail(err)
	}
	return words, nil
}

// fail counts an exception reply and maps bank errors to exception codes.
func (h *bankHandler) fail(err error) error {
	h.exceptions.Add(1)

	var mbErr mbserver.Error
	switch {
	case errors.As(err, &mbErr):
		return mbErr
	case errors.Is(err, register.ErrOutOfRange):
		return mbserver.ErrIllegalDataAddress
	default:
		return mbserver.ErrServerDeviceFailure
	}
}
