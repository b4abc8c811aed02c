package device

// StandardCatalog returns a catalog seeded with a minimal illustrative
// subset of the public SunSpec model definitions: enough of models 1
// (common), 17, and 103 (inverter) to exercise scale-factor resolution and
// bitfield points end to end. Model 1's string points are defined for
// layout only: point reads and writes (Encode/Decode) reject the String
// type, so their bytes go through EncodeString/DecodeString. Model 126 is
// intentionally left unregistered so that an unknown model id continues
// to exercise the opaque-buffer path through scan and the device image.
func StandardCatalog() *Catalog {
	c := NewCatalog()

	// Model 1: SunSpec common model. Offsets are register-relative to the
	// model header (id=0, length=1, payload starts at 2), per
	// point_address(point) = model_addr + point.offset.
	_ = c.Register(ModelDef{
		ID: 1,
		Points: map[string]PointDef{
			"Mn": {Offset: 2, Len: 16, Type: String},
			"Md": {Offset: 18, Len: 16, Type: String},
			"Vr": {Offset: 42, Len: 8, Type: String},
			"SN": {Offset: 50, Len: 16, Type: String},
			// DA: Modbus device address.
			"DA": {Offset: 66, Len: 1, Type: Uint16},
		},
	})

	// Model 17: illustrative model carrying a 32-bit bitfield point.
	_ = c.Register(ModelDef{
		ID: 17,
		Points: map[string]PointDef{
			"Bits": {Offset: 8, Len: 2, Type: Bitfield32},
		},
	})

	// Model 103: SunSpec three-phase inverter (float excluded; integer +
	// scale-factor representation).
	_ = c.Register(ModelDef{
		ID: 103,
		Points: map[string]PointDef{
			"A":     {Offset: 2, Len: 1, Type: Uint16, ScaleFactor: "A_SF"},
			"A_SF":  {Offset: 6, Len: 1, Type: SunSSF},
			"W":     {Offset: 14, Len: 1, Type: Int16, ScaleFactor: "W_SF"},
			"W_SF":  {Offset: 15, Len: 1, Type: SunSSF},
			"Hz":    {Offset: 16, Len: 1, Type: Uint16, ScaleFactor: "Hz_SF"},
			"Hz_SF": {Offset: 17, Len: 1, Type: SunSSF},
			"St":    {Offset: 23, Len: 1, Type: Uint16},
		},
	})

	return c
}
