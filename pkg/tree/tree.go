// Package tree implements the forest reparenting algorithm shared by the
// product category tree and the project master/sub hierarchy. Moves operate
// on immutable snapshots: Move returns a new forest value and never touches
// its input, so readers can keep older snapshots and untouched subtrees stay
// shared by reference.
package tree

// Position names where a dragged node lands relative to its drop target.
type Position string

const (
	// Before splices the node as the target's left sibling.
	Before Position = "before"
	// After splices the node as the target's right sibling.
	After Position = "after"
	// Inside appends the node as the target's last child.
	Inside Position = "inside"
)

// Node is one forest entry. Value carries the caller's payload untouched.
type Node[T any] struct {
	ID       string
	Value    T
	Children []Node[T]
}

// Find returns the node with the given id, searching depth-first.
func Find[T any](forest []Node[T], id string) (Node[T], bool) {
	for _, n := range forest {
		if n.ID == id {
			return n, true
		}
		if found, ok := Find(n.Children, id); ok {
			return found, true
		}
	}
	return Node[T]{}, false
}

// Walk visits every node depth-first, parents before children.
func Walk[T any](forest []Node[T], visit func(node Node[T], parent *Node[T], depth int)) {
	walk(forest, nil, 0, visit)
}

func walk[T any](forest []Node[T], parent *Node[T], depth int, visit func(Node[T], *Node[T], int)) {
	for i := range forest {
		visit(forest[i], parent, depth)
		walk(forest[i].Children, &forest[i], depth+1, visit)
	}
}

func contains[T any](n Node[T], id string) bool {
	if n.ID == id {
		return true
	}
	for _, c := range n.Children {
		if contains(c, id) {
			return true
		}
	}
	return false
}

// Move reparents the dragged node relative to the target. An invalid drop --
// unknown dragged id, target equal to or inside the dragged subtree, or a
// sibling position against a nil target -- is a normal no-op outcome: the
// original forest is returned unchanged with ok=false, not an error. A nil
// (empty) target id with Inside promotes the node to a new last root.
func Move[T any](forest []Node[T], draggedID, targetID string, pos Position) (result []Node[T], ok bool) {
	dragged, found := Find(forest, draggedID)
	if !found {
		return forest, false
	}
	if targetID != "" && contains(dragged, targetID) {
		return forest, false
	}

	detached, removed, found := detach(forest, draggedID)
	if !found {
		return forest, false
	}

	if targetID == "" {
		if pos != Inside {
			return forest, false
		}
		return append(append([]Node[T]{}, detached...), removed), true
	}

	inserted, ok := insert(detached, removed, targetID, pos)
	if !ok {
		// Target vanished with the detachment; reject the drop.
		return forest, false
	}
	return inserted, true
}

// detach removes the node with the given id, rebuilding only the path to it.
func detach[T any](forest []Node[T], id string) ([]Node[T], Node[T], bool) {
	for i, n := range forest {
		if n.ID == id {
			out := make([]Node[T], 0, len(forest)-1)
			out = append(out, forest[:i]...)
			out = append(out, forest[i+1:]...)
			return out, n, true
		}
		if children, removed, ok := detach(n.Children, id); ok {
			out := make([]Node[T], len(forest))
			copy(out, forest)
			out[i].Children = children
			return out, removed, true
		}
	}
	return forest, Node[T]{}, false
}

// insert splices node relative to the target, rebuilding only the path to it.
func insert[T any](forest []Node[T], node Node[T], targetID string, pos Position) ([]Node[T], bool) {
	for i, n := range forest {
		if n.ID == targetID {
			out := make([]Node[T], 0, len(forest)+1)
			switch pos {
			case Before:
				out = append(out, forest[:i]...)
				out = append(out, node)
				out = append(out, forest[i:]...)
			case After:
				out = append(out, forest[:i+1]...)
				out = append(out, node)
				out = append(out, forest[i+1:]...)
			case Inside:
				out = append(out, forest...)
				children := make([]Node[T], 0, len(n.Children)+1)
				children = append(children, n.Children...)
				out[i].Children = append(children, node)
			default:
				return forest, false
			}
			return out, true
		}
		if children, ok := insert(n.Children, node, targetID, pos); ok {
			out := make([]Node[T], len(forest))
			copy(out, forest)
			out[i].Children = children
			return out, true
		}
	}
	return forest, false
}
