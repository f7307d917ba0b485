// Package scope implements the OAuth2 scope parameter per RFC 6749 section 3.3
package scope

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Delimiter is the scope separator defined by RFC 6749 section 3.3
const Delimiter = " "

// Scope is the constraint satisfied by provider scope vocabularies.
// Providers declare their own string type (for example `type Scope string`
// with a set of constants) so the engine stays agnostic of the vocabulary.
type Scope interface {
	~string
}

// String is the type-erased scope used where providers with different
// vocabularies share one collection.
type String string

// Parameter is a scope list as carried by requests and token responses
type Parameter[S Scope] []S

// New builds a Parameter from individual scopes
func New[S Scope](scopes ...S) Parameter[S] {
	return Parameter[S](scopes)
}

// Parse splits a raw scope value. Spaces are the standard separator but
// commas are accepted too since several providers deviate from the RFC.
func Parse[S Scope](raw string) Parameter[S] {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n'
	})
	if len(fields) == 0 {
		return nil
	}

	p := make(Parameter[S], 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		p = append(p, S(f))
	}
	return p
}

// Join renders the scopes using sep
func (p Parameter[S]) Join(sep string) string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = string(s)
	}
	return strings.Join(parts, sep)
}

// String renders the scopes space separated
func (p Parameter[S]) String() string {
	return p.Join(Delimiter)
}

// Strings returns the scopes as plain strings
func (p Parameter[S]) Strings() []string {
	out := make([]string, len(p))
	for i, s := range p {
		out[i] = string(s)
	}
	return out
}

// Contains reports whether s is part of the parameter
func (p Parameter[S]) Contains(s S) bool {
	for _, v := range p {
		if v == s {
			return true
		}
	}
	return false
}

// Equal reports whether both parameters hold the same set of scopes,
// ignoring order and duplicates.
func (p Parameter[S]) Equal(other Parameter[S]) bool {
	a := make(map[S]struct{}, len(p))
	for _, s := range p {
		a[s] = struct{}{}
	}
	b := make(map[S]struct{}, len(other))
	for _, s := range other {
		b[s] = struct{}{}
	}
	if len(a) != len(b) {
		return false
	}
	for s := range a {
		if _, ok := b[s]; !ok {
			return false
		}
	}
	return true
}

// Erase converts the parameter to the type-erased String vocabulary
func Erase[S Scope](p Parameter[S]) Parameter[String] {
	if p == nil {
		return nil
	}
	out := make(Parameter[String], len(p))
	for i, s := range p {
		out[i] = String(s)
	}
	return out
}

// Restore converts a type-erased parameter back to a provider vocabulary
func Restore[S Scope](p Parameter[String]) Parameter[S] {
	if p == nil {
		return nil
	}
	out := make(Parameter[S], len(p))
	for i, s := range p {
		out[i] = S(s)
	}
	return out
}

// MarshalJSON encodes the scopes as a single space separated string
func (p Parameter[S]) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts a delimited string or an array of strings
func (p *Parameter[S]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = nil
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*p = Parse[S](raw)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("scope must be a string or an array of strings: %w", err)
	}
	*p = Parse[S](strings.Join(list, Delimiter))
	return nil
}
