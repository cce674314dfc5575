package recordstore

// Null is stored in place of a field that has no value.
const Null = "null"

// Record is one row of named string fields. Tables hand out copies, so
// mutating a Record never changes the table until it is written back.
type Record map[string]string

// Get returns the raw value stored for field.
func (r Record) Get(field string) (string, bool) {
	v, ok := r[field]
	return v, ok
}

// Value returns the raw value for field, or "" when the field is absent.
func (r Record) Value(field string) string {
	return r[field]
}

// Ref returns the value of a nullable reference field, or "" when it holds
// the null marker.
func (r Record) Ref(field string) string {
	v := r[field]
	if v == Null {
		return ""
	}
	return v
}

// IsNull reports whether field is absent or holds the null marker.
func (r Record) IsNull(field string) bool {
	v, ok := r[field]
	return !ok || v == Null
}

// Set stores value under field and returns the record for chaining.
func (r Record) Set(field, value string) Record {
	r[field] = value
	return r
}

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// NullableRef maps an empty reference to the null marker.
func NullableRef(name string) string {
	if name == "" {
		return Null
	}
	return name
}
