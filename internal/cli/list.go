package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tabula/internal/pipeline"
	"github.com/mesh-intelligence/tabula/internal/viewstate"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

const maxCellWidth = 40

type listFlags struct {
	tab     string
	query   string
	filters []string
	sort    string
	desc    bool
	page    int
	size    int
}

// listOutput is the JSON form of a list result.
type listOutput struct {
	View string `json:"view"`
	viewstate.Snapshot[types.Record]
}

func newListCmd(a *app) *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:   "list <view>",
		Short: "Print one page of a view",
		Long: `List runs a view once and prints the visible page with per-tab counts.

Example:
  tabula list tickets
  tabula list tickets --tab open --query login --sort created --desc
  tabula list tickets --filter priority=high --filter priority=urgent --page 2
  tabula list tickets --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runList(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.tab, "tab", "", "active tab id")
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "search text")
	cmd.Flags().StringArrayVar(&f.filters, "filter", nil, "field=value constraint (repeatable)")
	cmd.Flags().StringVar(&f.sort, "sort", "", "sort field (default: the view's sort)")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&f.page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&f.size, "size", 0, "page size (one of the view's page sizes)")
	return cmd
}

func (a *app) runList(cmd *cobra.Command, name string, f listFlags) error {
	e, err := a.loadEnv()
	if err != nil {
		return err
	}
	view, err := e.view(name)
	if err != nil {
		return err
	}
	fetchers, closeSources, err := a.openSources(e, []types.ViewConfig{view})
	if err != nil {
		return err
	}
	defer closeSources()

	records, err := fetchers[view.Name].Fetch(cmd.Context())
	if err != nil {
		return sysError(fmt.Errorf("fetch %s: %w", view.Collection, err))
	}

	tbl, err := viewstate.ForView(view, a.log, viewstate.WithQuery(f.query))
	if err != nil {
		return userError(err)
	}
	tbl.SetRecords(records)
	if err := applyListFlags(tbl, view, f); err != nil {
		return userError(err)
	}

	snap := tbl.Snapshot()
	out := cmd.OutOrStdout()
	if a.flags.jsonMode {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(listOutput{View: view.Name, Snapshot: snap})
	}
	printView(out, view, snap)
	return nil
}

// applyListFlags changes tbl in the order tab, filters, page size, sort,
// page. The query is set when the table is built.
func applyListFlags(tbl *viewstate.Table[types.Record], view types.ViewConfig, f listFlags) error {
	if f.tab != "" {
		known := slices.ContainsFunc(view.Tabs, func(t types.TabConfig) bool { return t.ID == f.tab })
		if !known {
			return fmt.Errorf("unknown tab %q", f.tab)
		}
		tbl.SetTab(f.tab)
	}

	filters, err := parseFilters(f.filters)
	if err != nil {
		return err
	}
	for _, field := range filters.fields {
		if err := tbl.SetFilter(field, filters.values[field]); err != nil {
			return err
		}
	}

	if f.size != 0 {
		if err := tbl.SetPageSize(f.size); err != nil {
			return err
		}
	}

	if f.sort != "" || f.desc {
		field := f.sort
		if field == "" {
			field = tbl.Snapshot().Sort.Field
		}
		dir := pipeline.Asc
		if f.desc {
			dir = pipeline.Desc
		}
		tbl.SetSort(field, dir)
	}

	if f.page < 1 {
		return fmt.Errorf("page must be at least 1, got %d", f.page)
	}
	if f.page > 1 {
		tbl.SetPage(f.page - 1)
		if snap := tbl.Snapshot(); snap.Page.Index != f.page-1 {
			return fmt.Errorf("page %d out of range (1-%d)", f.page, max(snap.PageCount, 1))
		}
	}
	return nil
}

type parsedFilters struct {
	fields []string
	values map[string][]string
}

// parseFilters groups repeated field=value flags by field, keeping the
// order fields first appear in.
func parseFilters(raw []string) (parsedFilters, error) {
	p := parsedFilters{values: map[string][]string{}}
	for _, r := range raw {
		field, value, ok := strings.Cut(r, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return p, fmt.Errorf("%w: %q is not field=value", types.ErrInvalidFilter, r)
		}
		if _, seen := p.values[field]; !seen {
			p.fields = append(p.fields, field)
		}
		p.values[field] = append(p.values[field], value)
	}
	return p, nil
}

// printView writes the page as an aligned table followed by the tab counts
// and the range label.
func printView(w io.Writer, view types.ViewConfig, snap viewstate.Snapshot[types.Record]) {
	if snap.Err != nil {
		fmt.Fprintf(w, "error: %s\n", snap.Err)
	}
	if len(snap.Rows) == 0 {
		fmt.Fprintln(w, "No records found.")
	} else {
		cols := view.ColumnsFor(snap.Rows)
		var sb strings.Builder
		tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)

		header := make([]string, len(cols))
		rule := make([]string, len(cols))
		for i, c := range cols {
			header[i] = strings.ToUpper(c)
			rule[i] = strings.Repeat("-", len(c))
		}
		fmt.Fprintln(tw, strings.Join(header, "\t"))
		fmt.Fprintln(tw, strings.Join(rule, "\t"))
		for _, r := range snap.Rows {
			cells := make([]string, len(cols))
			for i, c := range cols {
				cells[i] = cell(pipeline.Stringify(r.Field(c)))
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		tw.Flush()

		for _, line := range strings.Split(strings.TrimRight(sb.String(), "\n"), "\n") {
			fmt.Fprintln(w, strings.TrimRight(line, " "))
		}
	}

	if len(snap.Tabs) > 0 {
		tabs := make([]string, len(snap.Tabs))
		for i, t := range snap.Tabs {
			tabs[i] = fmt.Sprintf("%s (%d)", t.Label, t.Count)
			if t.ID == snap.Tab {
				tabs[i] = "[" + tabs[i] + "]"
			}
		}
		fmt.Fprintf(w, "Tabs: %s\n", strings.Join(tabs, "  "))
	}
	fmt.Fprintf(w, "Showing %s", snap.Label)
	if snap.PageCount > 1 {
		fmt.Fprintf(w, " (page %d/%d)", snap.Page.Index+1, snap.PageCount)
	}
	fmt.Fprintln(w)
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	if r := []rune(s); len(r) > maxCellWidth {
		return string(r[:maxCellWidth-3]) + "..."
	}
	return s
}
