package document

import "strings"

// MarkerPrefix marks a disabled key, e.g. "#WARNING - 1"
const MarkerPrefix = "#"

// IsMarker reports whether key is disabled
func IsMarker(key string) bool {
	return strings.HasPrefix(key, MarkerPrefix)
}

// Dict is a mapping that keeps keys in document order.
// Values are string, int64, uint64, float64, bool, []byte, time.Time,
// *Dict or []any.
type Dict struct {
	keys   []string
	values map[string]any
}

// NewDict creates an empty dictionary
func NewDict() *Dict {
	return &Dict{values: make(map[string]any)}
}

// Len returns the number of keys
func (d *Dict) Len() int {
	return len(d.keys)
}

// Keys returns the keys in order
func (d *Dict) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// At returns the key and value at index i
func (d *Dict) At(i int) (string, any) {
	key := d.keys[i]
	return key, d.values[key]
}

// Get returns the value stored under key
func (d *Dict) Get(key string) (any, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Index returns the position of key, or -1
func (d *Dict) Index(key string) int {
	if _, ok := d.values[key]; !ok {
		return -1
	}
	for i, k := range d.keys {
		if k == key {
			return i
		}
	}
	return -1
}

// Set stores value under key. New keys are appended; existing keys keep
// their position.
func (d *Dict) Set(key string, value any) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Delete removes key
func (d *Dict) Delete(key string) {
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			return
		}
	}
}

// Rename replaces oldKey by newKey in place, e.g. to toggle a marker
func (d *Dict) Rename(oldKey, newKey string) bool {
	v, ok := d.values[oldKey]
	if !ok {
		return false
	}
	if _, taken := d.values[newKey]; taken {
		return false
	}
	i := d.Index(oldKey)
	d.keys[i] = newKey
	delete(d.values, oldKey)
	d.values[newKey] = v
	return true
}
