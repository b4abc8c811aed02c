package modbus

import (
	"context"
	"encoding/binary"
)

// Handler is firstly and foremost used by the modbus.Server.
// The Handle method describes how incoming messages are managed.
type Handler interface {
	Handle(ctx context.Context, code byte, req []byte) (res []byte, ex Exception)
}

var _ Handler = (*Mux)(nil)

// Mux implements the modbus.Handler interface and is intended to be used as a server side request
// multiplexer. When called by the server it will redirect the inbound message to the given function.
// If the callback is not set the Mux will return the modbus.ExIllegalFunction exception to the server.
// In case of an unknown function code the Fallback function, if set, will be executed.
// All given functions must be safe for use by multiple go routines.
//
// Only the function codes a SunSpec device actually drives are dispatched here: read-holding-registers
// (0x03) and write-multiple-registers (0x10).
type Mux struct {
	Fallback               func(ctx context.Context, code byte, req []byte) (res []byte, ex Exception)
	ReadHoldingRegisters   func(ctx context.Context, address, quantity uint16) (res []byte, ex Exception)
	WriteMultipleRegisters func(ctx context.Context, address uint16, values []byte) (ex Exception)
}

// Handle dispatches incoming requests depending on their function code to the correlating callbacks
// as defined inside the Mux.
func (h *Mux) Handle(ctx context.Context, code byte, req []byte) (res []byte, ex Exception) {
	switch code {
	case 0x03:
		return h.readHoldingRegisters(ctx, req)
	case 0x10:
		return h.writeMultipleRegisters(ctx, req)
	}
	return h.fallback(ctx, code, req)
}

func (h *Mux) fallback(ctx context.Context, code byte, req []byte) (res []byte, ex Exception) {
	if h.Fallback == nil {
		return nil, ExIllegalFunction
	}
	return h.Fallback(ctx, code, req)
}

func (h *Mux) readHoldingRegisters(ctx context.Context, req []byte) (res []byte, ex Exception) {
	switch {
	case h.ReadHoldingRegisters == nil:
		return nil, ExIllegalFunction
	case len(req) != 4:
		return nil, ExIllegalDataAddress
	}
	address := binary.BigEndian.Uint16(req[0:])
	quantity := binary.BigEndian.Uint16(req[2:])
	switch {
	case quantity < 1 || quantity > 125:
		return nil, ExIllegalDataValue
	case int(address)+int(quantity) > 0xFFFF:
		return nil, ExIllegalDataAddress
	}
	values, ex := h.ReadHoldingRegisters(ctx, address, quantity)
	switch {
	case ex != nil:
		return nil, ex
	case len(values) != 2*int(quantity):
		return nil, ExSlaveDeviceFailure
	}
	return put(1+int(quantity)*2, byte(quantity*2), values), nil
}

func (h *Mux) writeMultipleRegisters(ctx context.Context, req []byte) (res []byte, ex Exception) {
	switch {
	case h.WriteMultipleRegisters == nil:
		return nil, ExIllegalFunction
	case len(req) < 6:
		return nil, ExIllegalDataAddress
	}
	address := binary.BigEndian.Uint16(req[0:])
	quantity := binary.BigEndian.Uint16(req[2:])
	switch {
	case quantity < 1 || quantity > 123 || 2*quantity != uint16(req[4]) || int(req[4]) != len(req[5:]):
		return nil, ExIllegalDataValue
	case int(address)+int(quantity) > 0xFFFF:
		return nil, ExIllegalDataAddress
	}
	if ex = h.WriteMultipleRegisters(ctx, address, req[5:]); ex != nil {
		return nil, ex
	}
	return req[:4], nil
}
