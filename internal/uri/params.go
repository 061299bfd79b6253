package uri

// Params is an ordered multi-map of query parameters. Keys keep the order
// of their first occurrence and each key's values keep arrival order.
// The zero value is an empty, usable Params.
type Params struct {
	keys   []string
	values map[string][]string
}

// NewParams creates an empty Params.
func NewParams() Params {
	return Params{values: make(map[string][]string)}
}

// Add appends value to key.
func (p *Params) Add(key, value string) {
	if p.values == nil {
		p.values = make(map[string][]string)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = append(p.values[key], value)
}

// Get returns the first value of key, or "" when absent.
func (p Params) Get(key string) string {
	if v := p.values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Lookup returns the first value of key and whether it was present.
func (p Params) Lookup(key string) (string, bool) {
	v, ok := p.values[key]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

// Values returns a copy of all values of key in arrival order.
func (p Params) Values(key string) []string {
	v := p.values[key]
	if len(v) == 0 {
		return nil
	}
	out := make([]string, len(v))
	copy(out, v)
	return out
}

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// Keys returns the keys in first-occurrence order.
func (p Params) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Len returns the number of distinct keys.
func (p Params) Len() int {
	return len(p.keys)
}
