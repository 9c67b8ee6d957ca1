package pipeline

import (
	"cmp"
	"encoding/json"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection maps "desc" (any case) to Desc and everything else to Asc.
func ParseDirection(s string) Direction {
	if strings.EqualFold(s, string(Desc)) {
		return Desc
	}
	return Asc
}

// Flip returns the opposite direction.
func (d Direction) Flip() Direction {
	if d == Desc {
		return Asc
	}
	return Desc
}

// Sort is a single-column sort. An empty Field leaves the order unchanged.
type Sort struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// Compare orders two field values. Numbers compare numerically, strings
// bytewise, times chronologically and booleans false before true. nil sorts
// before any other value. Values of different kinds fall back to comparing
// their Stringify forms.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if x, ok := toNumber(a); ok {
		if y, ok := toNumber(b); ok {
			return compareNumbers(x, y)
		}
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(Stringify(a), Stringify(b))
}

// SortStable returns a sorted copy of records. Records with equal keys keep
// their relative order in both directions: Desc negates the comparator
// rather than reversing the output.
func SortStable[R any](records []R, field FieldFunc[R], s Sort) []R {
	out := slices.Clone(records)
	if s.Field == "" || len(out) < 2 {
		return out
	}
	sign := 1
	if s.Direction == Desc {
		sign = -1
	}
	slices.SortStableFunc(out, func(a, b R) int {
		return sign * Compare(field(a, s.Field), field(b, s.Field))
	})
	return out
}

// number holds a numeric field value. Integers keep their exact value so
// ids above 2^53 still order correctly.
type number struct {
	kind numberKind
	i    int64
	u    uint64
	f    float64
}

type numberKind int

const (
	numSigned numberKind = iota
	numUnsigned
	numFloat
)

func (n number) asFloat() float64 {
	switch n.kind {
	case numSigned:
		return float64(n.i)
	case numUnsigned:
		return float64(n.u)
	}
	return n.f
}

func compareNumbers(a, b number) int {
	switch {
	case a.kind == numFloat || b.kind == numFloat:
		return cmp.Compare(a.asFloat(), b.asFloat())
	case a.kind == numSigned && b.kind == numSigned:
		return cmp.Compare(a.i, b.i)
	case a.kind == numUnsigned && b.kind == numUnsigned:
		return cmp.Compare(a.u, b.u)
	case a.kind == numSigned:
		if a.i < 0 {
			return -1
		}
		return cmp.Compare(uint64(a.i), b.u)
	default:
		if b.i < 0 {
			return 1
		}
		return cmp.Compare(a.u, uint64(b.i))
	}
}

func toNumber(v any) (number, bool) {
	switch n := v.(type) {
	case int:
		return number{kind: numSigned, i: int64(n)}, true
	case int8:
		return number{kind: numSigned, i: int64(n)}, true
	case int16:
		return number{kind: numSigned, i: int64(n)}, true
	case int32:
		return number{kind: numSigned, i: int64(n)}, true
	case int64:
		return number{kind: numSigned, i: n}, true
	case uint:
		return number{kind: numUnsigned, u: uint64(n)}, true
	case uint8:
		return number{kind: numUnsigned, u: uint64(n)}, true
	case uint16:
		return number{kind: numUnsigned, u: uint64(n)}, true
	case uint32:
		return number{kind: numUnsigned, u: uint64(n)}, true
	case uint64:
		return number{kind: numUnsigned, u: n}, true
	case float32:
		return number{kind: numFloat, f: float64(n)}, true
	case float64:
		return number{kind: numFloat, f: n}, true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return number{kind: numSigned, i: i}, true
		}
		if u, err := strconv.ParseUint(string(n), 10, 64); err == nil {
			return number{kind: numUnsigned, u: u}, true
		}
		f, err := n.Float64()
		return number{kind: numFloat, f: f}, err == nil
	}
	return number{}, false
}
