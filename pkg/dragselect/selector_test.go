package dragselect

import (
	"reflect"
	"testing"
)

func items() []string { return []string{"i0", "i1", "i2", "i3", "i4"} }

func TestDragRangeRecomputes(t *testing.T) {
	s := New(items())
	s.StartDrag(1)
	s.EnterItem(3)
	if got := s.Selected(); !reflect.DeepEqual(got, []string{"i1", "i2", "i3"}) {
		t.Fatalf("after enter 3: %v", got)
	}
	// Dragging back past the anchor shrinks the range; passed items are
	// deselected, not accumulated.
	s.EnterItem(0)
	if got := s.Selected(); !reflect.DeepEqual(got, []string{"i0", "i1"}) {
		t.Fatalf("after enter 0: %v", got)
	}
	s.EndDrag()
	if s.Dragging() {
		t.Fatalf("expected drag to end")
	}
	if got := s.Selected(); !reflect.DeepEqual(got, []string{"i0", "i1"}) {
		t.Fatalf("selection must survive EndDrag: %v", got)
	}
}

func TestDragIsAdditiveOverPriorSelection(t *testing.T) {
	s := New(items())
	s.Toggle("i4")
	s.StartDrag(0)
	s.EnterItem(1)
	if got := s.Selected(); !reflect.DeepEqual(got, []string{"i0", "i1", "i4"}) {
		t.Fatalf("expected pre-drag selection preserved: %v", got)
	}
	s.EnterItem(0)
	if got := s.Selected(); !reflect.DeepEqual(got, []string{"i0", "i4"}) {
		t.Fatalf("range shrank but pre-drag kept: %v", got)
	}
}

func TestToggleOutsideDragOnly(t *testing.T) {
	s := New(items())
	s.Toggle("i2")
	if !s.IsSelected("i2") {
		t.Fatalf("expected toggle on")
	}
	s.StartDrag(0)
	s.Toggle("i3")
	if s.IsSelected("i3") {
		t.Fatalf("toggle must be ignored mid-drag")
	}
	s.EndDrag()
	s.Toggle("i2")
	if s.IsSelected("i2") {
		t.Fatalf("expected toggle off")
	}
}

func TestSetItemsEndsDragKeepsSelection(t *testing.T) {
	s := New(items())
	s.StartDrag(2)
	s.EnterItem(4)
	s.SetItems([]string{"i4", "i2", "i9"})
	if s.Dragging() {
		t.Fatalf("expected SetItems to end the drag")
	}
	// i3 is gone from the list but stays selected; order follows the new list
	// with orphans last.
	got := s.Selected()
	if len(got) != 3 || got[0] != "i4" || got[1] != "i2" || got[2] != "i3" {
		t.Fatalf("unexpected selection after relist: %v", got)
	}
}

func TestOutOfRangeEventsIgnored(t *testing.T) {
	s := New(items())
	s.StartDrag(99)
	if s.Dragging() {
		t.Fatalf("out-of-range anchor must not start a drag")
	}
	s.StartDrag(0)
	s.EnterItem(-1)
	if got := s.Selected(); !reflect.DeepEqual(got, []string{"i0"}) {
		t.Fatalf("out-of-range enter must be ignored: %v", got)
	}
	s.Clear()
	if len(s.Selected()) != 0 {
		t.Fatalf("expected empty selection after clear")
	}
}
