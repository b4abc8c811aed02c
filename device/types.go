// Package device implements the SunSpec model catalog, codec, and the
// address-mapped device image shared by the client and server.
package device

// PointType names the wire encoding of a point's raw value.
type PointType int

const (
	Uint16 PointType = iota
	Int16
	Uint32
	Int32
	Uint64
	Int64
	// SunSSF is the scale-factor type: a signed 16-bit base-10 exponent.
	SunSSF
	Bitfield16
	Bitfield32
	String
)

// RegisterLen returns the number of 16-bit registers a value of this type
// occupies for its conventional (non-string) length; callers with a
// variable-length field (string) must supply Len explicitly in PointDef.
func (t PointType) RegisterLen() uint16 {
	switch t {
	case Uint16, Int16, SunSSF, Bitfield16:
		return 1
	case Uint32, Int32, Bitfield32:
		return 2
	case Uint64, Int64:
		return 4
	default:
		return 0
	}
}

// Signed reports whether the type decodes to a sign-extended integer.
func (t PointType) Signed() bool {
	switch t {
	case Int16, Int32, Int64, SunSSF:
		return true
	}
	return false
}

// PointDef describes a single named field within a model, keyed by
// (model_id, point_name) in the catalog.
type PointDef struct {
	// Offset is the register offset from the start of the model header;
	// the id register is offset 0, length is offset 1, payload starts at 2.
	Offset uint16
	// Len is the register count occupied by this point.
	Len uint16
	// Type is the wire encoding of the point.
	Type PointType
	// ScaleFactor is the name of another point in the same model whose
	// current value supplies the base-10 exponent used to scale this
	// point's raw value. Empty if this point has no associated scale
	// factor.
	ScaleFactor string
}

// ModelDef is the catalog's definition of one model id: every named point
// it exposes.
type ModelDef struct {
	ID     uint16
	Points map[string]PointDef
}

// ModelSummary is the minimal identity of a model instance: its id and the
// register length of its payload, excluding the two header registers.
type ModelSummary struct {
	ID     uint16
	Length uint16
}

// BaseAddressSentinel is the four-byte literal "SunS" marking a SunSpec
// base address.
var BaseAddressSentinel = [4]byte{0x53, 0x75, 0x6E, 0x53}

// SunsEndModelID is the reserved model id terminating the model list.
const SunsEndModelID uint16 = 0xFFFF

// DefaultBaseAddrCandidates is the conventional ordered list of base
// addresses a client probes during discovery when none is already known.
var DefaultBaseAddrCandidates = []uint16{40000, 50000, 0}
