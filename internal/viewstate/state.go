package viewstate

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/mesh-intelligence/tabula/internal/pipeline"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// SetTab activates a tab and returns to the first page. Unknown ids
// resolve to the first configured tab.
func (t *Table[R]) SetTab(id string) {
	_ = t.mutate("tab", func() (bool, error) {
		id = pipeline.ResolveTab(t.cfg.Tabs, id)
		if id == t.state.Tab && t.state.Page.Index == 0 {
			return false, nil
		}
		t.state.Tab = id
		t.state.Page.Index = 0
		return true, nil
	})
}

// SetQuery changes the search text and returns to the first page.
func (t *Table[R]) SetQuery(q string) {
	_ = t.mutate("query", func() (bool, error) {
		if q == t.state.Query && t.state.Page.Index == 0 {
			return false, nil
		}
		t.state.Query = q
		t.state.Page.Index = 0
		t.countsStale = true
		return true, nil
	})
}

// SetFilter replaces the accepted values of one field and returns to the
// first page. An empty values list removes the constraint. When filter
// options are configured the field must be one of them, and values must be
// among its allowed values if it lists any.
func (t *Table[R]) SetFilter(field string, values []string) error {
	return t.mutate("filter", func() (bool, error) {
		if err := t.checkFilter(field, values); err != nil {
			return false, err
		}
		if len(values) == 0 {
			delete(t.state.Filters, field)
		} else {
			t.state.Filters[field] = slices.Clone(values)
		}
		t.state.Page.Index = 0
		t.countsStale = true
		return true, nil
	})
}

// ClearFilters removes every field constraint and returns to the first
// page.
func (t *Table[R]) ClearFilters() {
	_ = t.mutate("filters cleared", func() (bool, error) {
		t.state.Filters = pipeline.Filters{}
		t.state.Page.Index = 0
		t.countsStale = true
		return true, nil
	})
}

func (t *Table[R]) checkFilter(field string, values []string) error {
	opts := t.cfg.Search.FilterOptions
	if len(opts) == 0 {
		return nil
	}
	opt, ok := t.cfg.Search.Option(field)
	if !ok {
		return fmt.Errorf("%w: %q", types.ErrUnknownFilterField, field)
	}
	if len(opt.AllowedValues) == 0 {
		return nil
	}
	for _, v := range values {
		allowed := slices.ContainsFunc(opt.AllowedValues, func(a string) bool {
			return strings.EqualFold(a, v)
		})
		if !allowed {
			return fmt.Errorf("%w: %s=%q", types.ErrInvalidFilter, field, v)
		}
	}
	return nil
}

// SetSort changes the sort column and direction. The page index is kept.
func (t *Table[R]) SetSort(field string, dir pipeline.Direction) {
	_ = t.mutate("sort", func() (bool, error) {
		next := pipeline.Sort{Field: field, Direction: dir}
		if next == t.state.Sort {
			return false, nil
		}
		t.state.Sort = next
		return true, nil
	})
}

// ToggleSort sorts by field ascending, or flips the direction when field
// is already the sort column.
func (t *Table[R]) ToggleSort(field string) {
	_ = t.mutate("sort", func() (bool, error) {
		dir := pipeline.Asc
		if t.state.Sort.Field == field {
			dir = t.state.Sort.Direction.Flip()
		}
		t.state.Sort = pipeline.Sort{Field: field, Direction: dir}
		return true, nil
	})
}

// SetPage moves to page index. Indexes outside the navigable range are
// ignored.
func (t *Table[R]) SetPage(index int) {
	_ = t.mutate("page", func() (bool, error) {
		if index == t.state.Page.Index || !t.navigableLocked(index) {
			return false, nil
		}
		t.state.Page.Index = index
		return true, nil
	})
}

// NextPage moves forward one page unless the current page is the last.
func (t *Table[R]) NextPage() {
	_ = t.mutate("page", func() (bool, error) {
		next := t.state.Page.Index + 1
		if !t.navigableLocked(next) {
			return false, nil
		}
		t.state.Page.Index = next
		return true, nil
	})
}

// PrevPage moves back one page unless the current page is the first.
func (t *Table[R]) PrevPage() {
	_ = t.mutate("page", func() (bool, error) {
		if t.state.Page.Index == 0 {
			return false, nil
		}
		t.state.Page.Index--
		return true, nil
	})
}

func (t *Table[R]) navigableLocked(index int) bool {
	if index < 0 {
		return false
	}
	return index == 0 || index < t.result.PageCount
}

// SetPageSize changes the page size and returns to the first page. n must
// be one of the configured page-size options.
func (t *Table[R]) SetPageSize(n int) error {
	return t.mutate("page size", func() (bool, error) {
		if err := t.checkPageSize(n); err != nil {
			return false, err
		}
		t.state.Page.Size = n
		t.state.Page.Index = 0
		return true, nil
	})
}

func (t *Table[R]) checkPageSize(n int) error {
	if n <= 0 || (len(t.cfg.PageSizes) > 0 && !slices.Contains(t.cfg.PageSizes, n)) {
		return fmt.Errorf("%w: %d", types.ErrInvalidPageSize, n)
	}
	return nil
}

// Toggle selects or deselects one record id.
func (t *Table[R]) Toggle(id string) {
	_ = t.mutate("toggle", func() (bool, error) {
		t.selection.Toggle(id)
		return true, nil
	})
}

// SelectAll with checked adds every row of the visible page to the
// selection; unchecked clears it.
func (t *Table[R]) SelectAll(checked bool) {
	_ = t.mutate("select all", func() (bool, error) {
		t.selection.SelectAll(checked, pipeline.IDs(t.result.Rows, t.cfg.ID))
		return true, nil
	})
}

// ClearSelection empties the selection.
func (t *Table[R]) ClearSelection() {
	_ = t.mutate("clear selection", func() (bool, error) {
		if t.selection.Len() == 0 {
			return false, nil
		}
		t.selection.Clear()
		return true, nil
	})
}

// SetRecords replaces the record set and clears the loading and error
// flags.
func (t *Table[R]) SetRecords(records []R) {
	t.SetData(records, false, nil)
}

// SetData replaces the record set together with the source's loading flag
// and error. Selection and view parameters are kept, except that a page
// index past the new last page moves back to it.
func (t *Table[R]) SetData(records []R, loading bool, err error) {
	_ = t.mutate("data", func() (bool, error) {
		t.records = records
		t.loading = loading
		t.err = err
		t.countsStale = true
		return true, nil
	})
}

// Change is a set of view parameter changes made together by Apply. Nil
// fields are left unchanged.
type Change struct {
	Tab          *string
	Query        *string
	ClearFilters bool
	Filters      pipeline.Filters
	PageSize     *int
	SortField    *string
	Direction    *pipeline.Direction
	Page         *int
}

// Apply makes every change in c as a single mutation, in the order tab,
// query, clear filters, filters (by field name), page size, sort, page.
// If any change is rejected the table is left untouched. A page outside
// the navigable range is ignored, as with SetPage.
func (t *Table[R]) Apply(c Change) error {
	return t.mutate("batch", func() (bool, error) {
		next := t.state
		next.Filters = t.state.Filters.Clone()
		if next.Filters == nil {
			next.Filters = pipeline.Filters{}
		}
		reset := false
		narrowed := false

		if c.Tab != nil {
			next.Tab = pipeline.ResolveTab(t.cfg.Tabs, *c.Tab)
			reset = true
		}
		if c.Query != nil {
			next.Query = *c.Query
			reset, narrowed = true, true
		}
		if c.ClearFilters {
			next.Filters = pipeline.Filters{}
			reset, narrowed = true, true
		}
		for _, field := range slices.Sorted(maps.Keys(c.Filters)) {
			values := c.Filters[field]
			if err := t.checkFilter(field, values); err != nil {
				return false, err
			}
			if len(values) == 0 {
				delete(next.Filters, field)
			} else {
				next.Filters[field] = slices.Clone(values)
			}
			reset, narrowed = true, true
		}
		if c.PageSize != nil {
			if err := t.checkPageSize(*c.PageSize); err != nil {
				return false, err
			}
			next.Page.Size = *c.PageSize
			reset = true
		}
		if c.SortField != nil {
			next.Sort.Field = *c.SortField
		}
		if c.Direction != nil {
			next.Sort.Direction = *c.Direction
		}
		if reset {
			next.Page.Index = 0
		}
		if c.Page != nil && t.pageInRange(next, *c.Page) {
			next.Page.Index = *c.Page
		}

		t.state = next
		if narrowed {
			t.countsStale = true
		}
		return true, nil
	})
}

// pageInRange reports whether index is navigable under st.
func (t *Table[R]) pageInRange(st pipeline.State, index int) bool {
	if index < 0 {
		return false
	}
	if index == 0 {
		return true
	}
	if t.loading {
		return false
	}
	return index < pipeline.RunPage(t.cfg, st, t.records).PageCount
}
