package types

import (
	"strings"

	"github.com/mesh-intelligence/tabula/internal/pipeline"
)

// Record is a schema-less row: a mapping from field name to a scalar or
// nested value, as decoded from JSON.
type Record map[string]any

// Field returns the value stored under name. A dotted name walks nested
// objects ("owner.email"). Missing fields return nil.
func (r Record) Field(name string) any {
	if v, ok := r[name]; ok {
		return v
	}
	if !strings.Contains(name, ".") {
		return nil
	}
	var cur any = map[string]any(r)
	for _, part := range strings.Split(name, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

// ID returns the string form of the record's idField value.
func (r Record) ID(idField string) string {
	return pipeline.Stringify(r.Field(idField))
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Record:
		return m, true
	}
	return nil, false
}
