package pipeline

// Tab is a named, mutually exclusive view over the full record set.
// Predicate must not modify its input.
type Tab[R any] struct {
	ID        string
	Label     string
	Predicate func([]R) []R
}

// Where builds a tab predicate that keeps records for which keep is true.
func Where[R any](keep func(R) bool) func([]R) []R {
	return func(records []R) []R {
		out := make([]R, 0, len(records))
		for _, r := range records {
			if keep(r) {
				out = append(out, r)
			}
		}
		return out
	}
}

// All is a tab predicate that keeps every record.
func All[R any](records []R) []R {
	return records
}

// ResolveTab returns id when it names a configured tab, otherwise the first
// tab's id. It returns "" when no tabs are configured.
func ResolveTab[R any](tabs []Tab[R], id string) string {
	if len(tabs) == 0 {
		return ""
	}
	for _, t := range tabs {
		if t.ID == id {
			return id
		}
	}
	return tabs[0].ID
}

// ApplyTab returns the records selected by the tab with the given id.
// With no tabs configured, or a tab without a predicate, the input is
// returned unchanged.
func ApplyTab[R any](records []R, tabs []Tab[R], id string) []R {
	if len(tabs) == 0 {
		return records
	}
	id = ResolveTab(tabs, id)
	for _, t := range tabs {
		if t.ID != id {
			continue
		}
		if t.Predicate == nil || len(records) == 0 {
			return records
		}
		return t.Predicate(records)
	}
	return records
}
