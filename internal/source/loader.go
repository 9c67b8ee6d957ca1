package source

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the tri-state record supply seen by a view.
type State[R any] struct {
	Records []R
	Loading bool
	Err     error
}

// Loader wraps a Fetcher. A failed fetch keeps the last good record set
// and reports the error alongside it. Loader does not retry.
type Loader[R any] struct {
	fetcher Fetcher[R]
	log     *zap.Logger

	mu    sync.Mutex
	state State[R]
	sinks []Sink[R]
}

// NewLoader returns a Loader over f. A nil log discards output.
func NewLoader[R any](f Fetcher[R], log *zap.Logger) *Loader[R] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader[R]{fetcher: f, log: log}
}

// Bind registers sink and immediately pushes the current state to it.
func (l *Loader[R]) Bind(sink Sink[R]) {
	l.mu.Lock()
	l.sinks = append(l.sinks, sink)
	st := l.state
	l.mu.Unlock()
	sink.SetData(st.Records, st.Loading, st.Err)
}

// State returns the current records, loading flag and error.
func (l *Loader[R]) State() State[R] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Refresh fetches once. Sinks see loading=true before the fetch and the
// outcome after it. The fetch error is returned as well as recorded.
func (l *Loader[R]) Refresh(ctx context.Context) error {
	l.publish(func(st *State[R]) { st.Loading = true })

	start := time.Now()
	records, err := l.fetcher.Fetch(ctx)
	if err != nil {
		l.log.Warn("fetch failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		l.publish(func(st *State[R]) {
			st.Loading = false
			st.Err = err
		})
		return err
	}

	l.log.Debug("fetched records", zap.Int("count", len(records)), zap.Duration("elapsed", time.Since(start)))
	l.publish(func(st *State[R]) {
		st.Records = records
		st.Loading = false
		st.Err = nil
	})
	return nil
}

// Watch refreshes immediately and then every interval until ctx is
// cancelled. Fetch errors are recorded in the state and do not stop the
// loop. Watch returns ctx.Err().
func (l *Loader[R]) Watch(ctx context.Context, interval time.Duration) error {
	_ = l.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = l.Refresh(ctx)
		}
	}
}

func (l *Loader[R]) publish(fn func(*State[R])) {
	l.mu.Lock()
	fn(&l.state)
	st := l.state
	sinks := append([]Sink[R](nil), l.sinks...)
	l.mu.Unlock()

	for _, s := range sinks {
		s.SetData(st.Records, st.Loading, st.Err)
	}
}
