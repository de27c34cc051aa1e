package injector

// Args holds resolved parameter values keyed by name. Getters return the
// zero value when the key is absent or holds a different type.
type Args map[string]any

// Get returns the raw value for name.
func (a Args) Get(name string) (any, bool) {
	v, ok := a[name]
	return v, ok
}

// String returns the string value for name.
func (a Args) String(name string) string {
	v, _ := a[name].(string)
	return v
}

// Int returns the integer value for name.
func (a Args) Int(name string) int64 {
	switch v := a[name].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Float returns the float value for name.
func (a Args) Float(name string) float64 {
	switch v := a[name].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// Bool returns the boolean value for name.
func (a Args) Bool(name string) bool {
	v, _ := a[name].(bool)
	return v
}
