package param

// Store holds the resolved value of every declared parameter. It is the only
// state the renderer observes; producers never write it directly, they go
// through the engine.
type Store struct {
	schema Schema
	values map[string]Value
}

// Snapshot is an immutable copy of resolved state, safe to read while the
// engine keeps mutating.
type Snapshot map[string]Value

// NewStore seeds resolved state with schema defaults.
func NewStore(schema Schema) *Store {
	values := make(map[string]Value, len(schema))
	for name, spec := range schema {
		values[name] = spec.Default
	}
	return &Store{schema: schema, values: values}
}

// Schema returns the schema the store was built from.
func (st *Store) Schema() Schema {
	return st.schema
}

// Get returns the resolved value for name.
func (st *Store) Get(name string) (Value, bool) {
	v, ok := st.values[name]
	return v, ok
}

// Set writes a resolved value. Unknown names are ignored.
func (st *Store) Set(name string, v Value) {
	if _, ok := st.schema[name]; !ok {
		return
	}
	st.values[name] = v
}

// Snapshot copies resolved state.
func (st *Store) Snapshot() Snapshot {
	cp := make(Snapshot, len(st.values))
	for name, v := range st.values {
		cp[name] = v
	}
	return cp
}

// Num reads a scalar from a snapshot, falling back to fallback when the
// parameter is missing or non-numeric.
func (s Snapshot) Num(name string, fallback float64) float64 {
	if v, ok := s[name]; ok && v.Kind == KindNumber {
		return v.Num
	}
	return fallback
}

// Str reads a text value from a snapshot.
func (s Snapshot) Str(name, fallback string) string {
	if v, ok := s[name]; ok && v.Kind == KindText {
		return v.Text
	}
	return fallback
}

// Stops reads a color-stop list from a snapshot.
func (s Snapshot) Stops(name string) []ColorStop {
	if v, ok := s[name]; ok && v.Kind == KindColorList {
		return v.Colors
	}
	return nil
}
