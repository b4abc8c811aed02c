package device

// Catalog holds the model definitions a client or server knows how to
// interpret. A model id absent from the catalog is still transported, but
// is carried only as an opaque register payload: the image stores and
// forwards its bytes without decoding them.
type Catalog struct {
	models map[uint16]ModelDef
}

// NewCatalog returns an empty catalog ready for registration.
func NewCatalog() *Catalog {
	return &Catalog{models: make(map[uint16]ModelDef)}
}

// Register adds def to the catalog. It fails if the model id is already
// registered, or if a point's ScaleFactor names a point that does not
// exist in the same model.
func (c *Catalog) Register(def ModelDef) error {
	if _, exists := c.models[def.ID]; exists {
		return &CatalogError{ModelID: def.ID, Reason: "model already registered"}
	}
	for name, pd := range def.Points {
		if pd.ScaleFactor == "" {
			continue
		}
		if _, ok := def.Points[pd.ScaleFactor]; !ok {
			return &CatalogError{ModelID: def.ID, PointName: name, Reason: "scale factor refers to an unknown point"}
		}
	}
	c.models[def.ID] = def
	return nil
}

// Lookup returns the ModelDef registered under id, if any.
func (c *Catalog) Lookup(id uint16) (ModelDef, bool) {
	if c == nil {
		return ModelDef{}, false
	}
	def, ok := c.models[id]
	return def, ok
}
