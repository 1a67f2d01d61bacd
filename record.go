package apitoolkit

// MapRecord is the canonical map-backed Record. Relation loadedness maps to
// key presence: a loader that populates a relation sets its key, so a missing
// key means "not loaded" while a present nil value means "loaded, empty".
type MapRecord map[string]interface{}

// Attribute reads a plain attribute by name.
func (m MapRecord) Attribute(name string) (interface{}, bool) {
	v, ok := m[name]
	return v, ok
}

// Relation reads a preloaded relation by name.
func (m MapRecord) Relation(name string) (interface{}, bool) {
	v, ok := m[name]
	return v, ok
}

// SetRelation marks a relation as loaded with the given value.
func (m MapRecord) SetRelation(name string, value interface{}) {
	m[name] = value
}
