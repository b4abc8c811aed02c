package device

import (
	"encoding/binary"
	"sync"
)

// ModelInstance is one entry in a device image's model list: its catalog
// identity plus the register range it occupies.
type ModelInstance struct {
	ID     uint16
	Length uint16
	// Addr is the Modbus register address of this model's id register,
	// i.e. the register right after the previous model's last payload
	// register (or right after the two sentinel registers at the base
	// address for the first model).
	Addr uint16
	// Def is the catalog definition for ID, or nil if ID is not
	// registered and the model is carried as an opaque buffer.
	Def *ModelDef

	img        *Image
	byteOffset int
}

// Buffer returns the model's full register range, including its two header
// registers (id, length), aliasing the image's backing array: writes
// through this slice are visible to subsequent reads of the image.
func (m *ModelInstance) Buffer() []byte {
	n := 4 + int(m.Length)*2
	return m.img.buf[m.byteOffset : m.byteOffset+n]
}

// Payload returns the model's register range excluding the header.
func (m *ModelInstance) Payload() []byte {
	return m.Buffer()[4:]
}

// Point returns the catalog definition of the named point, if this model
// is registered and the point exists.
func (m *ModelInstance) Point(name string) (PointDef, bool) {
	if m.Def == nil {
		return PointDef{}, false
	}
	pd, ok := m.Def.Points[name]
	return pd, ok
}

// ReadPoint decodes the named point's current raw value. Offset is
// register-relative to the model header (offset 0 is the id register,
// offset 1 the length register, offset 2 the first payload register), so
// the point is located directly within Buffer(), not Payload().
func (m *ModelInstance) ReadPoint(name string) (int64, error) {
	pd, ok := m.Point(name)
	if !ok {
		return 0, &CatalogError{ModelID: m.ID, PointName: name, Reason: "unknown point"}
	}
	buf := m.Buffer()
	lo := int(pd.Offset) * 2
	hi := lo + int(pd.Len)*2
	if hi > len(buf) {
		return 0, ErrOutOfRange
	}
	return Decode(pd.Type, buf[lo:hi])
}

// WritePoint encodes raw into the named point's header-relative slot
// within Buffer().
func (m *ModelInstance) WritePoint(name string, raw int64) error {
	pd, ok := m.Point(name)
	if !ok {
		return &CatalogError{ModelID: m.ID, PointName: name, Reason: "unknown point"}
	}
	b, err := Encode(pd.Type, raw, pd.Len)
	if err != nil {
		return err
	}
	buf := m.Buffer()
	lo := int(pd.Offset) * 2
	hi := lo + int(pd.Len)*2
	if hi > len(buf) {
		return ErrOutOfRange
	}
	copy(buf[lo:hi], b)
	return nil
}

// Image is the canonical, contiguous register map of a SunSpec device: a
// base address sentinel, a sequence of models, and a terminating end
// marker, all backed by a single buffer guarded by a read-write mutex so
// concurrent Modbus requests can be served safely.
type Image struct {
	BaseAddr uint16
	Models   []*ModelInstance

	mu  sync.RWMutex
	buf []byte
}

// Build assembles a new Image at baseAddr containing one ModelInstance per
// summary, in order. Each summary is resolved against catalog (which may
// be nil, in which case every model is opaque). Build never fails on an
// unknown model id; it only decodes what the catalog can explain.
func Build(baseAddr uint16, summaries []ModelSummary, catalog *Catalog) (*Image, error) {
	total := 4
	for _, s := range summaries {
		total += 4 + int(s.Length)*2
	}
	total += 4 // end-of-model marker

	buf := make([]byte, total)
	copy(buf[0:4], BaseAddressSentinel[:])

	models := make([]*ModelInstance, 0, len(summaries))
	offset := 4
	addr := baseAddr + 2
	for _, s := range summaries {
		binary.BigEndian.PutUint16(buf[offset:], s.ID)
		binary.BigEndian.PutUint16(buf[offset+2:], s.Length)

		var defPtr *ModelDef
		if def, ok := catalog.Lookup(s.ID); ok {
			d := def
			defPtr = &d
		}
		models = append(models, &ModelInstance{
			ID:         s.ID,
			Length:     s.Length,
			Addr:       addr,
			Def:        defPtr,
			byteOffset: offset,
		})

		offset += 4 + int(s.Length)*2
		addr += 2 + s.Length
	}
	binary.BigEndian.PutUint16(buf[offset:], SunsEndModelID)
	binary.BigEndian.PutUint16(buf[offset+2:], 0)

	img := &Image{BaseAddr: baseAddr, Models: models, buf: buf}
	for _, m := range img.Models {
		m.img = img
	}
	return img, nil
}

// TotalRegisters returns the full register count of the image, including
// the base address sentinel and the end-of-model marker.
func (img *Image) TotalRegisters() uint16 {
	return uint16(len(img.buf) / 2)
}

// EndAddr returns the address one past the image's last valid register
// (exclusive).
func (img *Image) EndAddr() uint16 {
	return img.BaseAddr + img.TotalRegisters()
}

// Validate reports whether a read or write of count registers starting at
// addr falls entirely within the image.
func (img *Image) Validate(addr, count uint16) bool {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.validateLocked(addr, count)
}

func (img *Image) validateLocked(addr, count uint16) bool {
	if count == 0 {
		return false
	}
	if addr < img.BaseAddr {
		return false
	}
	return int(addr)+int(count) <= int(img.EndAddr())
}

// Read returns a copy of count registers starting at addr.
func (img *Image) Read(addr, count uint16) ([]byte, error) {
	img.mu.RLock()
	defer img.mu.RUnlock()
	if !img.validateLocked(addr, count) {
		return nil, ErrOutOfRange
	}
	off := 2 * int(addr-img.BaseAddr)
	out := make([]byte, 2*int(count))
	copy(out, img.buf[off:off+2*int(count)])
	return out, nil
}

// Write copies values (a multiple of 2 bytes) into the image starting at
// addr.
func (img *Image) Write(addr uint16, values []byte) error {
	count := uint16(len(values) / 2)
	img.mu.Lock()
	defer img.mu.Unlock()
	if !img.validateLocked(addr, count) {
		return ErrOutOfRange
	}
	off := 2 * int(addr-img.BaseAddr)
	copy(img.buf[off:off+len(values)], values)
	return nil
}

// Model returns the first model instance registered under id.
func (img *Image) Model(id uint16) (*ModelInstance, bool) {
	for _, m := range img.Models {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}
