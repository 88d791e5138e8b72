package definition

// Environ is an insertion-ordered string-to-string mapping, used for both
// environ and command tables so that overlay order (definition, then
// variant) is preserved and deterministic when folded into a context.
type Environ struct {
	keys   []string
	values map[string]string
}

// NewEnviron builds an Environ from a plain map, inserting keys in the
// order keysInOrder lists them; keys of m missing from keysInOrder are not
// included.
func NewEnviron(m map[string]string, keysInOrder []string) Environ {
	e := Environ{values: make(map[string]string, len(m))}
	for _, k := range keysInOrder {
		e.Set(k, m[k])
	}
	return e
}

// Set assigns key to value, appending key to the order if it is new and
// overwriting the value (keeping its original position) if not.
func (e *Environ) Set(key, value string) {
	if e.values == nil {
		e.values = make(map[string]string)
	}
	if _, ok := e.values[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.values[key] = value
}

// Get returns the value for key and whether it was present.
func (e Environ) Get(key string) (string, bool) {
	v, ok := e.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (e Environ) Keys() []string {
	return append([]string(nil), e.keys...)
}

// Len returns the number of entries.
func (e Environ) Len() int { return len(e.keys) }

// Overlay returns a new Environ equal to e with over's entries applied on
// top: existing keys keep their position but get over's value, new keys
// are appended in over's order. Last writer wins per key.
func (e Environ) Overlay(over Environ) Environ {
	merged := Environ{
		keys:   append([]string(nil), e.keys...),
		values: make(map[string]string, len(e.values)+len(over.values)),
	}
	for k, v := range e.values {
		merged.values[k] = v
	}
	for _, k := range over.keys {
		merged.Set(k, over.values[k])
	}
	return merged
}

// Map returns a plain copy of the mapping, discarding order.
func (e Environ) Map() map[string]string {
	m := make(map[string]string, len(e.values))
	for k, v := range e.values {
		m[k] = v
	}
	return m
}
