package device

import (
	"errors"
	"fmt"
)

// BaseAddressNotFoundError is returned by a scan when none of the
// candidate addresses carries the SunSpec sentinel.
type BaseAddressNotFoundError struct {
	Candidates []uint16
}

func (e *BaseAddressNotFoundError) Error() string {
	return fmt.Sprintf("device: no SunSpec base address found among %v", e.Candidates)
}

// InvalidBaseAddressError reports that the two registers read at a given
// base address do not carry the "SunS" sentinel. A scan that finds no
// sentinel at any candidate returns BaseAddressNotFoundError instead.
type InvalidBaseAddressError struct {
	Address uint16
	Got     []byte
}

func (e *InvalidBaseAddressError) Error() string {
	return fmt.Sprintf("device: address %d does not carry the SunSpec sentinel (got % x)", e.Address, e.Got)
}

// ModbusException maps a transport-level Modbus exception response onto the
// request that provoked it: the function code as sent (original_code), the
// same code with the error flag set (function_code = original_code | 0x80)
// as it appeared on the wire, and the Modbus exception code carried in the
// response payload.
type ModbusException struct {
	OriginalCode  byte
	FunctionCode  byte
	ExceptionCode byte
}

func (e *ModbusException) Error() string {
	return fmt.Sprintf("device: modbus exception: function %#x (flagged %#x) returned exception code %#x",
		e.OriginalCode, e.FunctionCode, e.ExceptionCode)
}

// CatalogError is returned when a catalog registration or lookup cannot be
// satisfied: an unknown point name, a dangling scale-factor reference, or a
// duplicate model id.
type CatalogError struct {
	ModelID   uint16
	PointName string
	Reason    string
}

func (e *CatalogError) Error() string {
	if e.PointName != "" {
		return fmt.Sprintf("device: model %d point %q: %s", e.ModelID, e.PointName, e.Reason)
	}
	return fmt.Sprintf("device: model %d: %s", e.ModelID, e.Reason)
}

// ErrOutOfRange is returned by Image.Read/Write when the requested register
// range falls outside the image, and by ModelInstance.ReadPoint/WritePoint
// when a point extends past its model's register range.
var ErrOutOfRange = errors.New("device: register range out of bounds")

// ErrReuse is returned when an operation that requires single-use state
// (such as building an Image a second time over the same buffer) is
// attempted twice.
var ErrReuse = errors.New("device: state already built, a fresh instance is required")

// ErrInternal signals an invariant breach that indicates a bug in this
// package rather than a caller error.
var ErrInternal = errors.New("device: internal invariant breach")
