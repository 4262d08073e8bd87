package strategy

// Params is the effective parameter bundle for one strategy invocation:
// per-symbol overrides already overlaid on the global defaults by the
// configuration manager. Values come from JSON, so numbers arrive as
// float64; the typed getters hide that.
type Params map[string]interface{}

// Float returns the parameter as float64, or def when absent or mistyped.
func (p Params) Float(key string, def float64) float64 {
	if p == nil {
		return def
	}
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// Int returns the parameter as int, or def when absent or mistyped.
func (p Params) Int(key string, def int) int {
	if p == nil {
		return def
	}
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// Bool returns the parameter as bool, or def when absent or mistyped.
func (p Params) Bool(key string, def bool) bool {
	if p == nil {
		return def
	}
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

// Merge overlays other on top of p and returns the result. Neither input is
// mutated; strategies always receive a fresh copy.
func (p Params) Merge(other Params) Params {
	out := make(Params, len(p)+len(other))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
