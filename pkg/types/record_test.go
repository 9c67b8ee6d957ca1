package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordField(t *testing.T) {
	r := Record{
		"id":    "u-1",
		"name":  "Ada",
		"score": 12.5,
		"owner": map[string]any{
			"email": "ada@example.com",
			"team":  map[string]any{"name": "core"},
		},
		"flat.key": "literal",
	}

	tests := []struct {
		field string
		want  any
	}{
		{field: "name", want: "Ada"},
		{field: "score", want: 12.5},
		{field: "owner.email", want: "ada@example.com"},
		{field: "owner.team.name", want: "core"},
		{field: "flat.key", want: "literal"},
		{field: "missing", want: nil},
		{field: "owner.missing", want: nil},
		{field: "name.first", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Field(tt.field))
		})
	}
}

func TestRecordID(t *testing.T) {
	assert.Equal(t, "u-1", Record{"id": "u-1"}.ID("id"))
	assert.Equal(t, "42", Record{"key": 42.0}.ID("key"))
	assert.Equal(t, "", Record{}.ID("id"))
}

func TestRecordClone(t *testing.T) {
	r := Record{"a": 1}
	c := r.Clone()
	c["a"] = 2
	assert.Equal(t, 1, r["a"])
}
