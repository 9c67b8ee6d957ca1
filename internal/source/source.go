// Package source supplies record sets to a table view. A Fetcher pulls
// records on demand; a Loader tracks the loading flag and last error of a
// Fetcher and pushes every change into a Sink such as a viewstate.Table.
package source

import (
	"context"
	"slices"
)

// Fetcher returns the current record set.
type Fetcher[R any] interface {
	Fetch(ctx context.Context) ([]R, error)
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc[R any] func(ctx context.Context) ([]R, error)

// Fetch calls f.
func (f FetchFunc[R]) Fetch(ctx context.Context) ([]R, error) {
	return f(ctx)
}

// Sink receives record sets together with the loading flag and the most
// recent fetch error.
type Sink[R any] interface {
	SetData(records []R, loading bool, err error)
}

// Static is a fixed record set.
type Static[R any] []R

// Fetch returns a copy of the records.
func (s Static[R]) Fetch(ctx context.Context) ([]R, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone([]R(s)), nil
}
