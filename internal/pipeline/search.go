package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SearchConfig lists the fields matched by free-text search and the
// filterable fields with their allowed values.
type SearchConfig struct {
	SearchFields  []string       `json:"search_fields" yaml:"search_fields" mapstructure:"search_fields"`
	FilterOptions []FilterOption `json:"filter_options" yaml:"filter_options" mapstructure:"filter_options"`
}

// FilterOption names a filterable field and the values a user may pick.
type FilterOption struct {
	Field         string   `json:"field" yaml:"field" mapstructure:"field"`
	AllowedValues []string `json:"allowed_values" yaml:"allowed_values" mapstructure:"allowed_values"`
}

// Option returns the filter option for field.
func (c SearchConfig) Option(field string) (FilterOption, bool) {
	for _, o := range c.FilterOptions {
		if o.Field == field {
			return o, true
		}
	}
	return FilterOption{}, false
}

// Filters maps a field name to the accepted values for that field. A field
// that is absent or maps to an empty list imposes no constraint.
type Filters map[string][]string

// Active reports whether any field carries a constraint.
func (f Filters) Active() bool {
	for _, v := range f {
		if len(v) > 0 {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of f.
func (f Filters) Clone() Filters {
	if f == nil {
		return nil
	}
	out := make(Filters, len(f))
	for k, v := range f {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Stringify returns the comparison string for a field value. Missing values
// become the empty string.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case json.Number:
		return x.String()
	case time.Time:
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Search keeps records where at least one search field contains query,
// ignoring case. An empty query keeps everything.
func Search[R any](records []R, field FieldFunc[R], fields []string, query string) []R {
	if query == "" {
		return records
	}
	q := strings.ToLower(query)
	out := make([]R, 0, len(records))
	for _, r := range records {
		for _, f := range fields {
			if strings.Contains(strings.ToLower(Stringify(field(r, f))), q) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// ApplyFilters keeps records whose value for every constrained field equals
// one of the accepted values, ignoring case.
func ApplyFilters[R any](records []R, field FieldFunc[R], filters Filters) []R {
	if !filters.Active() {
		return records
	}
	out := make([]R, 0, len(records))
	for _, r := range records {
		if matchesFilters(r, field, filters) {
			out = append(out, r)
		}
	}
	return out
}

func matchesFilters[R any](r R, field FieldFunc[R], filters Filters) bool {
	for name, accepted := range filters {
		if len(accepted) == 0 {
			continue
		}
		v := strings.ToLower(Stringify(field(r, name)))
		ok := false
		for _, a := range accepted {
			if v == strings.ToLower(a) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Narrow applies the search step and then the filter step.
func Narrow[R any](records []R, field FieldFunc[R], fields []string, query string, filters Filters) []R {
	return ApplyFilters(Search(records, field, fields, query), field, filters)
}
