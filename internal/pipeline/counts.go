package pipeline

// CountTabs returns, for every configured tab, how many records would match
// if that tab were active under the current query and filters. Counts run
// over the full record set and ignore sort, page and MaxPages.
func CountTabs[R any](records []R, cfg Config[R], query string, filters Filters) map[string]int {
	counts := make(map[string]int, len(cfg.Tabs))
	for _, t := range cfg.Tabs {
		matched := ApplyTab(records, cfg.Tabs, t.ID)
		counts[t.ID] = len(Narrow(matched, cfg.Field, cfg.Search.SearchFields, query, filters))
	}
	return counts
}
