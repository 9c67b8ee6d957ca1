package pipeline

import "slices"

// Selection is a set of selected record IDs. It is never pruned when the
// visible rows change, so a row stays selected after it scrolls out of view
// until it is toggled off or the selection is cleared.
//
// The zero value is an empty selection. Selection is not safe for
// concurrent use.
type Selection struct {
	ids []string
	set map[string]struct{}
}

// NewSelection returns a selection holding ids.
func NewSelection(ids ...string) *Selection {
	s := &Selection{}
	for _, id := range ids {
		s.add(id)
	}
	return s
}

// Toggle adds id when absent and removes it when present.
func (s *Selection) Toggle(id string) {
	if s.Has(id) {
		s.remove(id)
		return
	}
	s.add(id)
}

// SelectAll with checked set adds every id of the visible page; IDs
// selected on other pages are kept. With checked unset the selection is
// cleared entirely.
func (s *Selection) SelectAll(checked bool, visible []string) {
	if !checked {
		s.Clear()
		return
	}
	for _, id := range visible {
		s.add(id)
	}
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.ids = nil
	s.set = nil
}

// Has reports whether id is selected.
func (s *Selection) Has(id string) bool {
	_, ok := s.set[id]
	return ok
}

// Len returns the number of selected IDs.
func (s *Selection) Len() int {
	return len(s.ids)
}

// IDs returns the selected IDs in the order they were selected.
func (s *Selection) IDs() []string {
	return append([]string{}, s.ids...)
}

// AllSelected reports whether the selection equals the visible ID set.
// An empty page is never fully selected.
func (s *Selection) AllSelected(visible []string) bool {
	if len(visible) == 0 || s.Len() == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(visible))
	for _, id := range visible {
		if !s.Has(id) {
			return false
		}
		seen[id] = struct{}{}
	}
	return len(seen) == s.Len()
}

// Covers reports whether every visible ID is selected, regardless of what
// else is selected. An empty page is never covered.
func (s *Selection) Covers(visible []string) bool {
	if len(visible) == 0 {
		return false
	}
	for _, id := range visible {
		if !s.Has(id) {
			return false
		}
	}
	return true
}

// Indeterminate reports whether a select-all checkbox should render as
// partially checked: something is selected but the selection is not
// exactly the visible page.
func (s *Selection) Indeterminate(visible []string) bool {
	return s.Len() > 0 && !s.AllSelected(visible)
}

func (s *Selection) add(id string) {
	if s.Has(id) {
		return
	}
	if s.set == nil {
		s.set = make(map[string]struct{})
	}
	s.set[id] = struct{}{}
	s.ids = append(s.ids, id)
}

func (s *Selection) remove(id string) {
	delete(s.set, id)
	if i := slices.Index(s.ids, id); i >= 0 {
		s.ids = slices.Delete(s.ids, i, i+1)
	}
}
