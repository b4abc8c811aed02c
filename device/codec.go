package device

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode marshals a raw integer value into length registers (2*length
// bytes) of big-endian wire format for the given point type.
func Encode(t PointType, raw int64, length uint16) ([]byte, error) {
	if t == String {
		return nil, fmt.Errorf("device: Encode: use EncodeString for string points")
	}
	n := int(length) * 2
	buf := make([]byte, n)
	switch t {
	case Uint16, Int16, SunSSF, Bitfield16:
		if n < 2 {
			return nil, fmt.Errorf("device: Encode: length too short for %d-bit type", 16)
		}
		binary.BigEndian.PutUint16(buf, uint16(raw))
	case Uint32, Int32, Bitfield32:
		if n < 4 {
			return nil, fmt.Errorf("device: Encode: length too short for %d-bit type", 32)
		}
		binary.BigEndian.PutUint32(buf, uint32(raw))
	case Uint64, Int64:
		if n < 8 {
			return nil, fmt.Errorf("device: Encode: length too short for %d-bit type", 64)
		}
		binary.BigEndian.PutUint64(buf, uint64(raw))
	default:
		return nil, fmt.Errorf("device: Encode: unsupported point type %v", t)
	}
	return buf, nil
}

// EncodeString marshals s into length registers, left-justified and
// zero-padded, truncated if it does not fit.
func EncodeString(s string, length uint16) []byte {
	n := int(length) * 2
	buf := make([]byte, n)
	copy(buf, s)
	return buf
}

// Decode unmarshals length-sized b into a raw integer for the given point
// type, sign-extending when the type is signed.
func Decode(t PointType, b []byte) (int64, error) {
	switch t {
	case Uint16, Bitfield16:
		if len(b) < 2 {
			return 0, fmt.Errorf("device: Decode: short buffer for 16-bit type")
		}
		return int64(binary.BigEndian.Uint16(b)), nil
	case Int16, SunSSF:
		if len(b) < 2 {
			return 0, fmt.Errorf("device: Decode: short buffer for 16-bit type")
		}
		return int64(int16(binary.BigEndian.Uint16(b))), nil
	case Uint32, Bitfield32:
		if len(b) < 4 {
			return 0, fmt.Errorf("device: Decode: short buffer for 32-bit type")
		}
		return int64(binary.BigEndian.Uint32(b)), nil
	case Int32:
		if len(b) < 4 {
			return 0, fmt.Errorf("device: Decode: short buffer for 32-bit type")
		}
		return int64(int32(binary.BigEndian.Uint32(b))), nil
	case Uint64:
		if len(b) < 8 {
			return 0, fmt.Errorf("device: Decode: short buffer for 64-bit type")
		}
		return int64(binary.BigEndian.Uint64(b)), nil
	case Int64:
		if len(b) < 8 {
			return 0, fmt.Errorf("device: Decode: short buffer for 64-bit type")
		}
		return int64(binary.BigEndian.Uint64(b)), nil
	default:
		return 0, fmt.Errorf("device: Decode: unsupported point type %v", t)
	}
}

// DecodeString unmarshals b into a string, ending it at the first NUL byte.
func DecodeString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Scale applies a base-10 scale factor to a raw value: value = raw *
// 10^sfRaw. sfRaw is the decoded raw value of the point's associated
// SunSSF point.
func Scale(raw int64, sfRaw int16) float64 {
	return float64(raw) * math.Pow10(int(sfRaw))
}
