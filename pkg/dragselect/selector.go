// Package dragselect turns a sequence of pointer-enter events over an ordered
// list into a selected-id set. The selection is tracked by id, not index,
// because the backing list may be re-sorted or re-filtered between selection
// and consumption; index ranges only ever apply to the ordering captured when
// the drag started.
package dragselect

// Selector is the drag-range selection state machine. It is a plain
// single-threaded value like the rest of the interaction layer; callers wire
// pointer events to its methods and read Selected afterwards.
type Selector struct {
	items    []string
	selected map[string]struct{}
	preDrag  map[string]struct{}
	anchor   int
	dragging bool
}

// New constructs a selector over the given ordered ids with an empty
// selection.
func New(items []string) *Selector {
	return &Selector{
		items:    append([]string(nil), items...),
		selected: make(map[string]struct{}),
	}
}

// SetItems replaces the ordered id list, e.g. after a re-sort or re-filter.
// The current selection survives; an in-progress drag is cut short because
// its anchor index no longer means anything.
func (s *Selector) SetItems(items []string) {
	s.items = append([]string(nil), items...)
	s.EndDrag()
}

// Dragging reports whether a drag is in progress.
func (s *Selector) Dragging() bool {
	return s.dragging
}

// StartDrag begins a drag anchored at index, additively selecting that item.
// The prior selection is preserved; callers wanting a fresh selection clear
// first. Out-of-range indexes are ignored.
func (s *Selector) StartDrag(index int) {
	if index < 0 || index >= len(s.items) {
		return
	}
	s.dragging = true
	s.anchor = index
	s.preDrag = make(map[string]struct{}, len(s.selected))
	for id := range s.selected {
		s.preDrag[id] = struct{}{}
	}
	s.selected[s.items[index]] = struct{}{}
}

// EnterItem extends the drag to index. The selection becomes the pre-drag set
// plus exactly the contiguous [min(anchor,index), max(anchor,index)] range,
// recomputed from scratch on every move so dragging back over passed items
// deselects them.
func (s *Selector) EnterItem(index int) {
	if !s.dragging || index < 0 || index >= len(s.items) {
		return
	}
	lo, hi := s.anchor, index
	if lo > hi {
		lo, hi = hi, lo
	}
	next := make(map[string]struct{}, len(s.preDrag)+hi-lo+1)
	for id := range s.preDrag {
		next[id] = struct{}{}
	}
	for i := lo; i <= hi; i++ {
		next[s.items[i]] = struct{}{}
	}
	s.selected = next
}

// EndDrag finishes the drag, leaving the selection in place. Callers must
// treat container mouseleave/mouseup as an implicit EndDrag so no release is
// lost when the pointer escapes the list.
func (s *Selector) EndDrag() {
	s.dragging = false
	s.preDrag = nil
}

// Toggle flips single-item membership outside of a drag without touching the
// rest of the selection.
func (s *Selector) Toggle(id string) {
	if s.dragging {
		return
	}
	if _, ok := s.selected[id]; ok {
		delete(s.selected, id)
		return
	}
	s.selected[id] = struct{}{}
}

// Clear empties the selection.
func (s *Selector) Clear() {
	s.selected = make(map[string]struct{})
}

// IsSelected reports membership for one id.
func (s *Selector) IsSelected(id string) bool {
	_, ok := s.selected[id]
	return ok
}

// Selected returns the selected ids in the current item order, with ids no
// longer present in the list appended last.
func (s *Selector) Selected() []string {
	out := make([]string, 0, len(s.selected))
	seen := make(map[string]struct{}, len(s.selected))
	for _, id := range s.items {
		if _, ok := s.selected[id]; ok {
			out = append(out, id)
			seen[id] = struct{}{}
		}
	}
	for id := range s.selected {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
