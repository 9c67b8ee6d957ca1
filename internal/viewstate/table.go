// Package viewstate holds the mutable view state of one table (active tab,
// query, filters, sort, page, selection, loaded records) and recomputes the
// pipeline after every mutation. Hosting layers read Snapshots and register
// for change notifications with Subscribe.
package viewstate

import (
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/tabula/internal/pipeline"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

const fallbackPageSize = 10

// TabCount is a tab with the number of records it would show under the
// current query and filters.
type TabCount struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Snapshot is an immutable copy of the view at one point in time.
type Snapshot[R any] struct {
	Rows         []R  `json:"rows"`
	Placeholders int  `json:"placeholders,omitempty"`
	Loading      bool `json:"loading"`

	// Err is the record source error, passed through untouched.
	Err error `json:"-"`

	Tab       string           `json:"tab"`
	Tabs      []TabCount       `json:"tabs"`
	Query     string           `json:"query"`
	Filters   pipeline.Filters `json:"filters"`
	Sort      pipeline.Sort    `json:"sort"`
	Page      pipeline.Page    `json:"page"`
	PageSizes []int            `json:"page_sizes"`

	Total         int    `json:"total"`
	ReportedTotal int    `json:"reported_total"`
	PageCount     int    `json:"page_count"`
	Label         string `json:"label"`
	CanPrev       bool   `json:"can_prev"`
	CanNext       bool   `json:"can_next"`

	Selected      []string `json:"selected"`
	AllSelected   bool     `json:"all_selected"`
	PageSelected  bool     `json:"page_selected"`
	Indeterminate bool     `json:"indeterminate"`

	// Version increases with every change to the table.
	Version uint64 `json:"version"`
}

// Table is the state container for one table view. It is safe for
// concurrent use.
type Table[R any] struct {
	mu  sync.RWMutex
	cfg pipeline.Config[R]
	log *zap.Logger

	state        pipeline.State
	records      []R
	loading      bool
	err          error
	selection    pipeline.Selection
	placeholders int

	result      pipeline.Result[R]
	counts      map[string]int
	countsStale bool

	version uint64
	subs    map[int]*subscriber[R]
	nextSub int
}

// subscriber delivers snapshots to one callback in version order.
type subscriber[R any] struct {
	mu   sync.Mutex
	fn   func(Snapshot[R])
	last uint64
}

func (s *subscriber[R]) deliver(snap Snapshot[R]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Version <= s.last {
		return
	}
	s.last = snap.Version
	s.fn(snap)
}

// New creates a Table. The initial page size must be one of
// cfg.PageSizes when options are configured.
func New[R any](cfg pipeline.Config[R], opts ...Option) (*Table[R], error) {
	s := settings{log: zap.NewNop()}
	for _, o := range opts {
		o(&s)
	}

	size := s.pageSize
	if size == 0 {
		size = fallbackPageSize
		if len(cfg.PageSizes) > 0 {
			size = cfg.PageSizes[0]
		}
	}
	if size <= 0 || (len(cfg.PageSizes) > 0 && !slices.Contains(cfg.PageSizes, size)) {
		return nil, fmt.Errorf("%w: %d", types.ErrInvalidPageSize, size)
	}

	t := &Table[R]{
		cfg: cfg,
		log: s.log,
		state: pipeline.State{
			Tab:     pipeline.ResolveTab(cfg.Tabs, s.tab),
			Query:   s.query,
			Filters: pipeline.Filters{},
			Sort:    s.sort,
			Page:    pipeline.Page{Size: size, MaxPages: cfg.MaxPages},
		},
		placeholders: s.placeholders,
		countsStale:  true,
		subs:         make(map[int]*subscriber[R]),
	}
	t.recomputeLocked()
	return t, nil
}

// ForView creates a Table of records for a normalized view definition.
// Extra options are applied after the view's own settings.
func ForView(v types.ViewConfig, log *zap.Logger, extra ...Option) (*Table[types.Record], error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	opts := []Option{
		WithPageSize(v.PageSize),
		WithSort(v.InitialSort()),
		WithPlaceholders(v.Placeholders),
	}
	if log != nil {
		opts = append(opts, WithLogger(log.With(zap.String("view", v.Name))))
	}
	return New(v.Pipeline(), append(opts, extra...)...)
}

// Snapshot returns the current view.
func (t *Table[R]) Snapshot() Snapshot[R] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

// Subscribe registers fn to receive a Snapshot after every change. Calls
// to fn never overlap and arrive in change order; a snapshot older than one
// already delivered is dropped. fn must not mutate the table. The returned
// function unregisters fn and may be called more than once.
func (t *Table[R]) Subscribe(fn func(Snapshot[R])) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = &subscriber[R]{fn: fn, last: t.version}
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

// mutate applies fn under the write lock, recomputes, and notifies
// subscribers after the lock is released. fn reports whether anything
// changed; unchanged state is not broadcast.
func (t *Table[R]) mutate(change string, fn func() (bool, error)) error {
	t.mu.Lock()
	changed, err := fn()
	if err != nil || !changed {
		t.mu.Unlock()
		if err != nil {
			t.log.Debug("view change rejected", zap.String("change", change), zap.Error(err))
		}
		return err
	}
	t.version++
	t.recomputeLocked()
	snap := t.snapshotLocked()
	subs := make([]*subscriber[R], 0, len(t.subs))
	for _, sub := range t.subs {
		subs = append(subs, sub)
	}
	t.mu.Unlock()

	t.log.Debug("view changed",
		zap.String("change", change),
		zap.String("tab", snap.Tab),
		zap.Int("page", snap.Page.Index),
		zap.Int("total", snap.Total))

	for _, sub := range subs {
		sub.deliver(snap)
	}
	return nil
}

func (t *Table[R]) recomputeLocked() {
	if t.countsStale {
		t.counts = pipeline.CountTabs(t.records, t.cfg, t.state.Query, t.state.Filters)
		t.countsStale = false
	}
	if t.loading {
		t.result = pipeline.Result[R]{
			Rows: []R{},
			Tab:  pipeline.ResolveTab(t.cfg.Tabs, t.state.Tab),
			Page: t.state.Page,
		}
		return
	}
	t.result = pipeline.RunPage(t.cfg, t.state, t.records)

	// A smaller record set can leave the index past the last page.
	page := t.state.Page
	if idx := pipeline.ClampIndex(page.Index, t.result.Total, page.Size, t.result.Page.MaxPages); idx != page.Index {
		t.state.Page.Index = idx
		t.result = pipeline.RunPage(t.cfg, t.state, t.records)
	}
}

func (t *Table[R]) snapshotLocked() Snapshot[R] {
	res := t.result
	visible := pipeline.IDs(res.Rows, t.cfg.ID)

	tabs := make([]TabCount, 0, len(t.cfg.Tabs))
	for _, tab := range t.cfg.Tabs {
		tabs = append(tabs, TabCount{ID: tab.ID, Label: tab.Label, Count: t.counts[tab.ID]})
	}

	snap := Snapshot[R]{
		Rows:          slices.Clone(res.Rows),
		Loading:       t.loading,
		Err:           t.err,
		Tab:           res.Tab,
		Tabs:          tabs,
		Query:         t.state.Query,
		Filters:       t.state.Filters.Clone(),
		Sort:          t.state.Sort,
		Page:          res.Page,
		PageSizes:     slices.Clone(t.cfg.PageSizes),
		Total:         res.Total,
		ReportedTotal: res.ReportedTotal,
		PageCount:     res.PageCount,
		Label:         pipeline.RangeLabel(res.Page.Index, res.Page.Size, res.ReportedTotal),
		CanPrev:       res.Page.Index > 0,
		CanNext:       res.Page.Index+1 < res.PageCount,
		Selected:      t.selection.IDs(),
		AllSelected:   t.selection.AllSelected(visible),
		PageSelected:  t.selection.Covers(visible),
		Indeterminate: t.selection.Indeterminate(visible),
		Version:       t.version,
	}
	if t.loading {
		snap.Placeholders = t.placeholders
		if snap.Placeholders == 0 {
			snap.Placeholders = t.state.Page.Size
		}
	}
	return snap
}
