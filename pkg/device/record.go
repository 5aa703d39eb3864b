package device

// Record holds one decoded payload. Scalars are int64, fixed arrays and
// scalar lists are []int64, strings are string and nested lists are []Record.
//
// A Record published in a Snapshot is never modified again.
type Record map[string]any

// Int returns a scalar field, or 0 when missing.
func (r Record) Int(name string) int64 {
	switch v := r[name].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// Ints returns an array or list field.
func (r Record) Ints(name string) []int64 {
	v, _ := r[name].([]int64)
	return v
}

// Str returns a string field.
func (r Record) Str(name string) string {
	v, _ := r[name].(string)
	return v
}

// List returns a nested record list.
func (r Record) List(name string) []Record {
	v, _ := r[name].([]Record)
	return v
}
