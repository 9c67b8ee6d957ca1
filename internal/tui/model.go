// Package tui renders a table view in the terminal with bubbletea.
package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mesh-intelligence/tabula/internal/pipeline"
	"github.com/mesh-intelligence/tabula/internal/viewstate"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

const (
	markerWidth    = 3
	minColumnWidth = 4
	maxColumnWidth = 28
	chromeHeight   = 8
	placeholder    = "···"
)

// Refresher reloads the records behind the table.
type Refresher func(ctx context.Context) error

type refreshedMsg struct{ err error }

type tickMsg time.Time

// Model is the bubbletea model for one view.
type Model struct {
	ctx      context.Context
	view     types.ViewConfig
	tbl      *viewstate.Table[types.Record]
	refresh  Refresher
	interval time.Duration

	table     table.Model
	search    textinput.Model
	searching bool
	columns   []string
	snap      viewstate.Snapshot[types.Record]

	keys   keyMap
	styles styles
	width  int
}

// Option configures a Model.
type Option func(*Model)

// WithRefresh reloads records with fn on start, on "r" and every interval
// when interval is positive.
func WithRefresh(fn Refresher, interval time.Duration) Option {
	return func(m *Model) {
		m.refresh = fn
		m.interval = interval
	}
}

// WithContext sets the context passed to the Refresher.
func WithContext(ctx context.Context) Option {
	return func(m *Model) { m.ctx = ctx }
}

// New returns a Model over tbl.
func New(view types.ViewConfig, tbl *viewstate.Table[types.Record], opts ...Option) Model {
	search := textinput.New()
	search.Placeholder = "search " + strings.Join(view.SearchFields, ", ")
	search.Prompt = "/ "
	search.CharLimit = 120
	search.Width = 40

	m := Model{
		ctx:    context.Background(),
		view:   view,
		tbl:    tbl,
		search: search,
		table: table.New(
			table.WithFocused(true),
			table.WithHeight(view.PageSize+1),
		),
		keys:   defaultKeys(),
		styles: defaultStyles(),
	}
	for _, o := range opts {
		o(&m)
	}
	m.sync()
	return m
}

// Init starts the first refresh and the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), m.tickCmd())
}

// Update handles key presses, window resizes and refresh results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.table.SetHeight(max(msg.Height-chromeHeight, 3))
		return m, nil
	case refreshedMsg:
		m.sync()
		return m, nil
	case tickMsg:
		return m, tea.Batch(m.refreshCmd(), m.tickCmd())
	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		return m, nil
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.tbl.SetQuery("")
		m.sync()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.tbl.SetQuery(m.search.Value())
	m.sync()
	return m, cmd
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Search):
		m.searching = true
		return m, m.search.Focus()
	case key.Matches(msg, m.keys.NextTab):
		m.tbl.SetTab(m.cycleTab(1))
	case key.Matches(msg, m.keys.PrevTab):
		m.tbl.SetTab(m.cycleTab(-1))
	case key.Matches(msg, m.keys.Sort):
		m.tbl.SetSort(m.nextSortField(), m.snap.Sort.Direction)
	case key.Matches(msg, m.keys.Direction):
		if m.snap.Sort.Field != "" {
			m.tbl.ToggleSort(m.snap.Sort.Field)
		}
	case key.Matches(msg, m.keys.NextPage):
		m.tbl.NextPage()
	case key.Matches(msg, m.keys.PrevPage):
		m.tbl.PrevPage()
	case key.Matches(msg, m.keys.PageSize):
		_ = m.tbl.SetPageSize(m.nextPageSize())
	case key.Matches(msg, m.keys.Toggle):
		if id, ok := m.cursorID(); ok {
			m.tbl.Toggle(id)
		}
	case key.Matches(msg, m.keys.SelectAll):
		m.tbl.SelectAll(!m.snap.PageSelected)
	case key.Matches(msg, m.keys.Clear):
		m.tbl.ClearSelection()
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshCmd()
	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	m.sync()
	return m, nil
}

func (m Model) refreshCmd() tea.Cmd {
	if m.refresh == nil {
		return nil
	}
	ctx, fn := m.ctx, m.refresh
	return func() tea.Msg {
		return refreshedMsg{err: fn(ctx)}
	}
}

func (m Model) tickCmd() tea.Cmd {
	if m.refresh == nil || m.interval <= 0 {
		return nil
	}
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) cycleTab(step int) string {
	tabs := m.snap.Tabs
	if len(tabs) == 0 {
		return ""
	}
	i := slices.IndexFunc(tabs, func(t viewstate.TabCount) bool { return t.ID == m.snap.Tab })
	i = ((i+step)%len(tabs) + len(tabs)) % len(tabs)
	return tabs[i].ID
}

// nextSortField moves the sort to the next column, and past the last
// column back to unsorted.
func (m Model) nextSortField() string {
	if len(m.columns) == 0 {
		return ""
	}
	i := slices.Index(m.columns, m.snap.Sort.Field)
	if i+1 >= len(m.columns) {
		return ""
	}
	return m.columns[i+1]
}

func (m Model) nextPageSize() int {
	sizes := m.snap.PageSizes
	if len(sizes) == 0 {
		return m.snap.Page.Size
	}
	i := slices.Index(sizes, m.snap.Page.Size)
	return sizes[(i+1)%len(sizes)]
}

func (m Model) cursorID() (string, bool) {
	i := m.table.Cursor()
	if m.snap.Loading || i < 0 || i >= len(m.snap.Rows) {
		return "", false
	}
	return m.snap.Rows[i].ID(m.view.IDField), true
}

// sync copies the current snapshot into the bubbles table.
func (m *Model) sync() {
	m.snap = m.tbl.Snapshot()
	if len(m.columns) == 0 {
		m.columns = m.view.ColumnsFor(m.snap.Rows)
	}

	cols := m.tableColumns()
	rows := m.tableRows(cols)
	m.table.SetRows(nil)
	m.table.SetColumns(cols)
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
}

func (m Model) tableColumns() []table.Column {
	cols := make([]table.Column, 0, len(m.columns)+1)
	cols = append(cols, table.Column{Title: "", Width: markerWidth})
	for _, name := range m.columns {
		title := name
		if m.snap.Sort.Field == name {
			if m.snap.Sort.Direction == pipeline.Desc {
				title += " ▼"
			} else {
				title += " ▲"
			}
		}
		w := len(title)
		for _, r := range m.snap.Rows {
			w = max(w, len(pipeline.Stringify(r.Field(name))))
		}
		cols = append(cols, table.Column{Title: title, Width: min(max(w, minColumnWidth), maxColumnWidth)})
	}
	return cols
}

func (m Model) tableRows(cols []table.Column) []table.Row {
	if m.snap.Loading {
		rows := make([]table.Row, m.snap.Placeholders)
		for i := range rows {
			row := make(table.Row, len(cols))
			for j := range row {
				row[j] = placeholder
			}
			rows[i] = row
		}
		return rows
	}

	selected := make(map[string]bool, len(m.snap.Selected))
	for _, id := range m.snap.Selected {
		selected[id] = true
	}
	rows := make([]table.Row, 0, len(m.snap.Rows))
	for _, r := range m.snap.Rows {
		row := make(table.Row, 0, len(cols))
		if selected[r.ID(m.view.IDField)] {
			row = append(row, "[x]")
		} else {
			row = append(row, "[ ]")
		}
		for i, name := range m.columns {
			row = append(row, truncate(pipeline.Stringify(r.Field(name)), cols[i+1].Width))
		}
		rows = append(rows, row)
	}
	return rows
}

// View renders the tab bar, search line, status line, table and footer.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render(m.view.Name))
	b.WriteString("\n")
	b.WriteString(m.tabBar())
	b.WriteString("\n")

	if m.searching || m.snap.Query != "" {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}
	if m.snap.Err != nil {
		b.WriteString(m.styles.Error.Render("error: " + m.snap.Err.Error()))
		b.WriteString("\n")
	} else if m.snap.Loading {
		b.WriteString(m.styles.Status.Render("loading…"))
		b.WriteString("\n")
	}

	b.WriteString(m.table.View())
	b.WriteString("\n")
	b.WriteString(m.styles.Footer.Render(m.footer()))
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render(m.helpLine()))
	return b.String()
}

func (m Model) tabBar() string {
	parts := make([]string, 0, len(m.snap.Tabs))
	for _, t := range m.snap.Tabs {
		label := fmt.Sprintf("%s (%d)", t.Label, t.Count)
		if t.ID == m.snap.Tab {
			parts = append(parts, m.styles.ActiveTab.Render(label))
		} else {
			parts = append(parts, m.styles.Tab.Render(label))
		}
	}
	return strings.Join(parts, " ")
}

func (m Model) footer() string {
	parts := []string{m.snap.Label}
	if m.snap.PageCount > 0 {
		parts = append(parts, fmt.Sprintf("page %d/%d", m.snap.Page.Index+1, m.snap.PageCount))
	}
	parts = append(parts, fmt.Sprintf("%d per page", m.snap.Page.Size))
	if n := len(m.snap.Selected); n > 0 {
		parts = append(parts, fmt.Sprintf("%d selected", n))
	}
	return strings.Join(parts, " · ")
}

func (m Model) helpLine() string {
	bindings := m.keys.help()
	parts := make([]string, 0, len(bindings))
	for _, k := range bindings {
		h := k.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}

// Run starts an interactive program for m and blocks until the user quits
// or ctx is cancelled.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
