package screen

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// Params is the parameter bag a screen receives for one dispatch.
// The zero value is empty. Params is immutable: With and Merge return copies.
type Params struct {
	m map[string]string
}

// P builds Params from key/value pairs. A trailing key without a value is ignored.
func P(kv ...string) Params {
	if len(kv) < 2 {
		return Params{}
	}
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	return Params{m: m}
}

// ParamsOf copies m into a Params value.
func ParamsOf(m map[string]string) Params {
	if len(m) == 0 {
		return Params{}
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Params{m: cp}
}

// Get returns the raw value stored under key.
func (p Params) Get(key string) (string, bool) {
	v, ok := p.m[key]
	return v, ok
}

// String returns the value for key or def when absent.
func (p Params) String(key, def string) string {
	if v, ok := p.m[key]; ok {
		return v
	}
	return def
}

// Int64 parses the value for key, returning def when absent or malformed.
func (p Params) Int64(key string, def int64) int64 {
	v, ok := p.m[key]
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return def
	}
	return n
}

// Bool parses the value for key, returning def when absent or malformed.
func (p Params) Bool(key string, def bool) bool {
	v, ok := p.m[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// With returns a copy of p with key set to value.
func (p Params) With(key, value string) Params {
	m := make(map[string]string, len(p.m)+1)
	for k, v := range p.m {
		m[k] = v
	}
	m[key] = value
	return Params{m: m}
}

// Merge returns p overlaid with other. Keys in other win.
func (p Params) Merge(other Params) Params {
	if len(other.m) == 0 {
		return p
	}
	if len(p.m) == 0 {
		return other
	}
	m := make(map[string]string, len(p.m)+len(other.m))
	for k, v := range p.m {
		m[k] = v
	}
	for k, v := range other.m {
		m[k] = v
	}
	return Params{m: m}
}

// Len reports the number of keys.
func (p Params) Len() int { return len(p.m) }

// Map returns a copy of the underlying map, nil when empty.
func (p Params) Map() map[string]string {
	if len(p.m) == 0 {
		return nil
	}
	cp := make(map[string]string, len(p.m))
	for k, v := range p.m {
		cp[k] = v
	}
	return cp
}

// Equal reports whether both bags hold the same keys and values.
func (p Params) Equal(other Params) bool {
	if len(p.m) != len(other.m) {
		return false
	}
	for k, v := range p.m {
		if ov, ok := other.m[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// LogValue renders the bag as k=v pairs in key order.
func (p Params) LogValue() slog.Value {
	if len(p.m) == 0 {
		return slog.StringValue("")
	}
	keys := make([]string, 0, len(p.m))
	for k := range p.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+p.m[k])
	}
	return slog.StringValue(strings.Join(parts, ","))
}
