package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func numbered(n int) []person {
	out := make([]person, n)
	for i := range out {
		out[i] = person{ID: fmt.Sprintf("r%02d", i)}
	}
	return out
}

func TestPaginateBound(t *testing.T) {
	for _, n := range []int{0, 1, 7, 10, 23} {
		records := numbered(n)
		for _, size := range []int{1, 3, 5, 10} {
			for index := 0; index < 8; index++ {
				got := Paginate(records, Page{Index: index, Size: size})
				want := min(size, max(0, n-index*size))
				assert.Len(t, got, want, "n=%d size=%d index=%d", n, size, index)
			}
		}
	}
}

func TestPaginateWindow(t *testing.T) {
	got := Paginate(numbered(7), Page{Index: 1, Size: 3})
	assert.Equal(t, []string{"r03", "r04", "r05"}, IDs(got, personID))

	last := Paginate(numbered(7), Page{Index: 2, Size: 3})
	assert.Equal(t, []string{"r06"}, IDs(last, personID))
}

func TestPaginateInvalidSize(t *testing.T) {
	assert.Empty(t, Paginate(numbered(4), Page{Size: 0}))
	assert.Empty(t, Paginate(numbered(4), Page{Size: -2}))
}

func TestPaginateMaxPages(t *testing.T) {
	records := numbered(17)

	second := Paginate(records, Page{Index: 1, Size: 5, MaxPages: 2})
	beyond := Paginate(records, Page{Index: 2, Size: 5, MaxPages: 2})

	assert.Equal(t, IDs(second, personID), IDs(beyond, personID))
	assert.Equal(t, 10, ReportedTotal(17, 5, 2))
	assert.Equal(t, 2, PageCount(17, 5, 2))
	assert.Equal(t, 1, ClampIndex(2, 17, 5, 2))
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		total, size, maxPages, want int
	}{
		{0, 5, 0, 0},
		{1, 5, 0, 1},
		{10, 5, 0, 2},
		{11, 5, 0, 3},
		{11, 5, 2, 2},
		{3, 5, 4, 1},
		{10, 0, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PageCount(tt.total, tt.size, tt.maxPages),
			"total=%d size=%d maxPages=%d", tt.total, tt.size, tt.maxPages)
	}
}

func TestClampIndex(t *testing.T) {
	assert.Equal(t, 0, ClampIndex(-1, 10, 5, 0))
	assert.Equal(t, 1, ClampIndex(9, 10, 5, 0))
	assert.Equal(t, 0, ClampIndex(3, 0, 5, 0))
}

func TestRangeLabel(t *testing.T) {
	assert.Equal(t, "1–5 of 10", RangeLabel(0, 5, 10))
	assert.Equal(t, "6–10 of 10", RangeLabel(1, 5, 10))
	assert.Equal(t, "11–12 of 12", RangeLabel(2, 5, 12))
	assert.Equal(t, "0–0 of 0", RangeLabel(0, 5, 0))
}
