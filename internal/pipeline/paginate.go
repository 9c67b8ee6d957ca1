package pipeline

import "fmt"

// Page is the pagination window. MaxPages of zero means uncapped.
type Page struct {
	Index    int `json:"index"`
	Size     int `json:"size"`
	MaxPages int `json:"max_pages,omitempty"`
}

// Paginate returns records[Index*Size : Index*Size+Size] clipped to the
// slice bounds. When MaxPages is set, an index past the last navigable page
// is treated as the last navigable page.
func Paginate[R any](records []R, p Page) []R {
	if p.Size <= 0 {
		return []R{}
	}
	index := capIndex(p.Index, p.MaxPages)
	start := index * p.Size
	if start >= len(records) {
		return []R{}
	}
	end := min(start+p.Size, len(records))
	return records[start:end:end]
}

// ReportedTotal is the total shown to the user: total, capped at
// maxPages*size when a cap is set.
func ReportedTotal(total, size, maxPages int) int {
	if maxPages > 0 && size > 0 {
		return min(total, maxPages*size)
	}
	return total
}

// PageCount is the number of navigable pages.
func PageCount(total, size, maxPages int) int {
	if size <= 0 {
		return 0
	}
	reported := ReportedTotal(total, size, maxPages)
	return (reported + size - 1) / size
}

// ClampIndex bounds index to the navigable range [0, PageCount). With no
// pages it returns 0.
func ClampIndex(index, total, size, maxPages int) int {
	last := PageCount(total, size, maxPages) - 1
	if index > last {
		index = last
	}
	return max(index, 0)
}

// RangeLabel renders "from–to of total" for the given page.
func RangeLabel(index, size, reported int) string {
	if reported <= 0 || size <= 0 {
		return "0–0 of 0"
	}
	from := index*size + 1
	if from > reported {
		from = reported
	}
	to := min((index+1)*size, reported)
	return fmt.Sprintf("%d–%d of %d", from, to, reported)
}

func capIndex(index, maxPages int) int {
	if index < 0 {
		return 0
	}
	if maxPages > 0 && index >= maxPages {
		return maxPages - 1
	}
	return index
}
