// Package pipeline turns a record set and the view parameters picked by a
// user (active tab, search text, column filters, sort, page) into the rows
// to render, plus per-tab counts and selection bookkeeping.
//
// Stages always run in the same order: tab predicate, search substring
// match, per-field exact filters, sort, paginate. Every stage is a pure
// function of its inputs and treats a nil slice as an empty set, so a
// caller may memoize any of them without affecting results.
package pipeline

// IDFunc returns the stable identifier of a record.
type IDFunc[R any] func(R) string

// FieldFunc returns the value stored under field, or nil when the record
// has no such field.
type FieldFunc[R any] func(r R, field string) any

// Config is the static configuration of one table instance.
type Config[R any] struct {
	ID        IDFunc[R]
	Field     FieldFunc[R]
	Tabs      []Tab[R]
	Search    SearchConfig
	PageSizes []int
	MaxPages  int
}

// State holds the view parameters selected by the user.
type State struct {
	Tab     string
	Query   string
	Filters Filters
	Sort    Sort
	Page    Page
}

// Result is the output of one pipeline run.
type Result[R any] struct {
	Rows []R

	// Tab is the resolved active tab id.
	Tab string

	// Page is the page actually rendered, with Index capped by MaxPages.
	Page Page

	// Total is the number of records that matched before pagination.
	Total int

	// ReportedTotal is Total capped at MaxPages*Size when a cap is set.
	ReportedTotal int
	PageCount     int
	Counts        map[string]int
}

// Run executes the whole chain for the given state, including per-tab
// counts.
func Run[R any](cfg Config[R], st State, records []R) Result[R] {
	res := RunPage(cfg, st, records)
	res.Counts = CountTabs(records, cfg, st.Query, st.Filters)
	return res
}

// RunPage executes tab, search, filter, sort and paginate, leaving Counts
// nil. Callers that memoize counts use it together with CountTabs.
func RunPage[R any](cfg Config[R], st State, records []R) Result[R] {
	tab := ResolveTab(cfg.Tabs, st.Tab)

	matched := ApplyTab(records, cfg.Tabs, tab)
	matched = Narrow(matched, cfg.Field, cfg.Search.SearchFields, st.Query, st.Filters)
	sorted := SortStable(matched, cfg.Field, st.Sort)

	page := st.Page
	if page.MaxPages == 0 {
		page.MaxPages = cfg.MaxPages
	}
	page.Index = capIndex(page.Index, page.MaxPages)

	return Result[R]{
		Rows:          Paginate(sorted, page),
		Tab:           tab,
		Page:          page,
		Total:         len(sorted),
		ReportedTotal: ReportedTotal(len(sorted), page.Size, page.MaxPages),
		PageCount:     PageCount(len(sorted), page.Size, page.MaxPages),
	}
}

// IDs maps records to their identifiers in order.
func IDs[R any](records []R, id IDFunc[R]) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, id(r))
	}
	return out
}
