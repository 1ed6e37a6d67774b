package store

import "sort"

// TypeRegistry holds the document type codes the registry accepts in searches.
// A nil *TypeRegistry accepts every code.
type TypeRegistry struct {
	codes map[string]struct{}
}

// NewTypeRegistry creates a registry of the given "<system>|<code>" type codes.
func NewTypeRegistry(codes ...string) *TypeRegistry {
	r := &TypeRegistry{codes: make(map[string]struct{}, len(codes))}
	for _, c := range codes {
		r.Register(c)
	}
	return r
}

// Register adds a type code to the registry.
// This should be called during setup, before the registry is shared.
func (r *TypeRegistry) Register(code string) {
	r.codes[code] = struct{}{}
}

// Known reports whether code is registered.
func (r *TypeRegistry) Known(code string) bool {
	if r == nil {
		return true
	}
	_, ok := r.codes[code]
	return ok
}

// Codes returns all registered codes in sorted order.
func (r *TypeRegistry) Codes() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.codes))
	for c := range r.codes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// unknown returns the first code in t that is not registered.
func (r *TypeRegistry) unknown(t TypeFilter) (string, bool) {
	for _, c := range t.codes {
		if !r.Known(c) {
			return c, true
		}
	}
	return "", false
}
