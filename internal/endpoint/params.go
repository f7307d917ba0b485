package endpoint

import (
	"net/url"
	"sort"
	"strings"
)

// Param is a single key/value pair of a form or query string
type Param struct {
	Key   string
	Value string
}

// Params is an ordered list of parameters. Unlike url.Values, Encode keeps
// insertion order, which several providers and tests depend on.
type Params []Param

// Add appends a parameter
func (p *Params) Add(key, value string) {
	*p = append(*p, Param{Key: key, Value: value})
}

// AddIfSet appends a parameter only when value is non-empty
func (p *Params) AddIfSet(key, value string) {
	if value != "" {
		p.Add(key, value)
	}
}

// Set replaces the first parameter with the given key, removing any later
// duplicates, or appends it when absent.
func (p *Params) Set(key, value string) {
	out := (*p)[:0]
	found := false
	for _, kv := range *p {
		if kv.Key != key {
			out = append(out, kv)
			continue
		}
		if !found {
			out = append(out, Param{Key: key, Value: value})
			found = true
		}
	}
	*p = out
	if !found {
		p.Add(key, value)
	}
}

// Get returns the first value for key
func (p Params) Get(key string) string {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value
		}
	}
	return ""
}

// Has reports whether key is present
func (p Params) Has(key string) bool {
	for _, kv := range p {
		if kv.Key == key {
			return true
		}
	}
	return false
}

// Del removes every parameter with the given key
func (p *Params) Del(key string) {
	out := (*p)[:0]
	for _, kv := range *p {
		if kv.Key != key {
			out = append(out, kv)
		}
	}
	*p = out
}

// Encode renders the parameters in "URL encoded" form preserving order
func (p Params) Encode() string {
	var b strings.Builder
	for i, kv := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv.Value))
	}
	return b.String()
}

// Values converts the parameters to url.Values
func (p Params) Values() url.Values {
	v := make(url.Values, len(p))
	for _, kv := range p {
		v.Add(kv.Key, kv.Value)
	}
	return v
}

// Merge sets every entry of m, in key order so output stays deterministic
func (p *Params) Merge(m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.Set(k, m[k])
	}
}
