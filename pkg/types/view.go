package types

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mesh-intelligence/tabula/internal/pipeline"
)

// View defaults applied by Normalize.
const (
	DefaultIDField  = "id"
	DefaultPageSize = 10
)

// DefaultPageSizes are the page-size options offered when a view sets none.
var DefaultPageSizes = []int{5, 10, 25}

// TabConfig defines a tab as a field predicate: a record belongs to the tab
// when the string form of Field equals one of Values, ignoring case. A tab
// without Field matches every record.
type TabConfig struct {
	ID     string   `json:"id" yaml:"id" mapstructure:"id"`
	Label  string   `json:"label,omitempty" yaml:"label,omitempty" mapstructure:"label"`
	Field  string   `json:"field,omitempty" yaml:"field,omitempty" mapstructure:"field"`
	Values []string `json:"values,omitempty" yaml:"values,omitempty" mapstructure:"values"`
}

// SortConfig is the initial sort of a view.
type SortConfig struct {
	Field     string `json:"field" yaml:"field" mapstructure:"field"`
	Direction string `json:"direction,omitempty" yaml:"direction,omitempty" mapstructure:"direction"`
}

// ViewConfig is the static definition of one table view.
type ViewConfig struct {
	Name          string                  `json:"name" yaml:"-" mapstructure:"-"`
	Collection    string                  `json:"collection,omitempty" yaml:"collection,omitempty" mapstructure:"collection"`
	IDField       string                  `json:"id_field,omitempty" yaml:"id_field,omitempty" mapstructure:"id_field"`
	Columns       []string                `json:"columns,omitempty" yaml:"columns,omitempty" mapstructure:"columns"`
	Tabs          []TabConfig             `json:"tabs,omitempty" yaml:"tabs,omitempty" mapstructure:"tabs"`
	SearchFields  []string                `json:"search_fields,omitempty" yaml:"search_fields,omitempty" mapstructure:"search_fields"`
	FilterOptions []pipeline.FilterOption `json:"filter_options,omitempty" yaml:"filter_options,omitempty" mapstructure:"filter_options"`
	Sort          SortConfig              `json:"sort,omitempty" yaml:"sort,omitempty" mapstructure:"sort"`
	PageSize      int                     `json:"page_size,omitempty" yaml:"page_size,omitempty" mapstructure:"page_size"`
	PageSizes     []int                   `json:"page_sizes,omitempty" yaml:"page_sizes,omitempty" mapstructure:"page_sizes"`
	MaxPages      int                     `json:"max_pages,omitempty" yaml:"max_pages,omitempty" mapstructure:"max_pages"`
	Placeholders  int                     `json:"placeholders,omitempty" yaml:"placeholders,omitempty" mapstructure:"placeholders"`
}

// Normalize fills unset fields with defaults and returns the result.
func (v ViewConfig) Normalize() ViewConfig {
	if v.Collection == "" {
		v.Collection = v.Name
	}
	if v.IDField == "" {
		v.IDField = DefaultIDField
	}
	if len(v.PageSizes) == 0 {
		v.PageSizes = slices.Clone(DefaultPageSizes)
	}
	if v.PageSize == 0 {
		v.PageSize = DefaultPageSize
		if !slices.Contains(v.PageSizes, v.PageSize) {
			v.PageSize = v.PageSizes[0]
		}
	}
	for i := range v.Tabs {
		if v.Tabs[i].Label == "" {
			v.Tabs[i].Label = v.Tabs[i].ID
		}
	}
	return v
}

// Validate checks a normalized view. Errors wrap ErrInvalidView.
func (v ViewConfig) Validate() error {
	if v.IDField == "" {
		return fmt.Errorf("%w: id_field must not be empty", ErrInvalidView)
	}
	if strings.ContainsAny(v.Collection, `/\`) || strings.HasPrefix(v.Collection, ".") {
		return fmt.Errorf("%w: collection %q is not a plain name", ErrInvalidView, v.Collection)
	}
	seen := make(map[string]bool, len(v.Tabs))
	for _, t := range v.Tabs {
		if t.ID == "" {
			return fmt.Errorf("%w: tab id must not be empty", ErrInvalidView)
		}
		if seen[t.ID] {
			return fmt.Errorf("%w: duplicate tab %q", ErrInvalidView, t.ID)
		}
		seen[t.ID] = true
	}
	for _, n := range v.PageSizes {
		if n <= 0 {
			return fmt.Errorf("%w: page size %d must be positive", ErrInvalidView, n)
		}
	}
	if !slices.Contains(v.PageSizes, v.PageSize) {
		return fmt.Errorf("%w: page_size %d not in page_sizes %v", ErrInvalidView, v.PageSize, v.PageSizes)
	}
	if v.MaxPages < 0 {
		return fmt.Errorf("%w: max_pages must not be negative", ErrInvalidView)
	}
	for _, o := range v.FilterOptions {
		if o.Field == "" {
			return fmt.Errorf("%w: filter option without field", ErrInvalidView)
		}
	}
	return nil
}

// InitialSort returns the configured starting sort.
func (v ViewConfig) InitialSort() pipeline.Sort {
	return pipeline.Sort{Field: v.Sort.Field, Direction: pipeline.ParseDirection(v.Sort.Direction)}
}

// Pipeline builds the pipeline configuration for records of this view.
func (v ViewConfig) Pipeline() pipeline.Config[Record] {
	idField := v.IDField
	tabs := make([]pipeline.Tab[Record], 0, len(v.Tabs))
	for _, t := range v.Tabs {
		tabs = append(tabs, pipeline.Tab[Record]{
			ID:        t.ID,
			Label:     t.Label,
			Predicate: t.predicate(),
		})
	}
	return pipeline.Config[Record]{
		ID:    func(r Record) string { return r.ID(idField) },
		Field: Record.Field,
		Tabs:  tabs,
		Search: pipeline.SearchConfig{
			SearchFields:  slices.Clone(v.SearchFields),
			FilterOptions: slices.Clone(v.FilterOptions),
		},
		PageSizes: slices.Clone(v.PageSizes),
		MaxPages:  v.MaxPages,
	}
}

func (t TabConfig) predicate() func([]Record) []Record {
	if t.Field == "" {
		return pipeline.All[Record]
	}
	field := t.Field
	values := make([]string, len(t.Values))
	for i, v := range t.Values {
		values[i] = strings.ToLower(v)
	}
	return pipeline.Where(func(r Record) bool {
		return slices.Contains(values, strings.ToLower(pipeline.Stringify(r.Field(field))))
	})
}

// ColumnsFor returns the configured columns, or when none are configured
// the top-level keys of rows with the id field first and the rest sorted.
func (v ViewConfig) ColumnsFor(rows []Record) []string {
	if len(v.Columns) > 0 {
		return slices.Clone(v.Columns)
	}
	if len(rows) == 0 {
		return nil
	}
	seen := map[string]bool{}
	var cols []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] && k != v.IDField {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	slices.Sort(cols)
	return append([]string{v.IDField}, cols...)
}
