package viewstate

import (
	"go.uber.org/zap"

	"github.com/mesh-intelligence/tabula/internal/pipeline"
)

type settings struct {
	log          *zap.Logger
	pageSize     int
	tab          string
	query        string
	sort         pipeline.Sort
	placeholders int
}

// Option configures a Table at construction.
type Option func(*settings)

// WithLogger sets the logger used for state-change debug output.
func WithLogger(log *zap.Logger) Option {
	return func(s *settings) {
		if log != nil {
			s.log = log
		}
	}
}

// WithPageSize sets the initial page size.
func WithPageSize(n int) Option {
	return func(s *settings) { s.pageSize = n }
}

// WithInitialTab sets the initially active tab. Unknown ids resolve to the
// first tab.
func WithInitialTab(id string) Option {
	return func(s *settings) { s.tab = id }
}

// WithQuery sets the initial search text.
func WithQuery(q string) Option {
	return func(s *settings) { s.query = q }
}

// WithSort sets the initial sort.
func WithSort(srt pipeline.Sort) Option {
	return func(s *settings) { s.sort = srt }
}

// WithPlaceholders sets how many placeholder rows a loading snapshot
// reports. Zero means one per row of the current page size.
func WithPlaceholders(n int) Option {
	return func(s *settings) { s.placeholders = n }
}
