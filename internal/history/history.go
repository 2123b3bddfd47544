// Package history keeps a linear undo/redo sequence of heightmap snapshots.
package history

import "github.com/talgya/erosion-lab/internal/terrain"

// History is an arena of snapshots with a single cursor. Pushing while
// the cursor is behind the tail discards the abandoned future first.
// Snapshots are owned by the history and must not be mutated after Push.
// Not safe for concurrent use; callers serialize access.
type History struct {
	snapshots []*terrain.Heightmap
	cursor    int // -1 while empty
}

// New returns an empty history.
func New() *History {
	return &History{cursor: -1}
}

// Push truncates everything after the cursor, appends s and moves the cursor onto it.
func (h *History) Push(s *terrain.Heightmap) {
	for i := h.cursor + 1; i < len(h.snapshots); i++ {
		h.snapshots[i] = nil
	}
	h.snapshots = append(h.snapshots[:h.cursor+1], s)
	h.cursor = len(h.snapshots) - 1
}

// Undo steps back one snapshot. ok is false at the head, and the cursor stays put.
func (h *History) Undo() (*terrain.Heightmap, bool) {
	if !h.CanUndo() {
		return nil, false
	}
	h.cursor--
	return h.snapshots[h.cursor], true
}

// Redo steps forward one snapshot. ok is false at the tail.
func (h *History) Redo() (*terrain.Heightmap, bool) {
	if !h.CanRedo() {
		return nil, false
	}
	h.cursor++
	return h.snapshots[h.cursor], true
}

// Current returns the snapshot under the cursor; ok is false while empty.
func (h *History) Current() (*terrain.Heightmap, bool) {
	if h.cursor < 0 {
		return nil, false
	}
	return h.snapshots[h.cursor], true
}

// Previous returns the snapshot just before the cursor without moving it.
func (h *History) Previous() (*terrain.Heightmap, bool) {
	if !h.CanUndo() {
		return nil, false
	}
	return h.snapshots[h.cursor-1], true
}

// CanUndo reports whether a predecessor exists.
func (h *History) CanUndo() bool { return h.cursor > 0 }

// CanRedo reports whether a successor exists.
func (h *History) CanRedo() bool { return h.cursor >= 0 && h.cursor < len(h.snapshots)-1 }

// Len returns the number of reachable snapshots.
func (h *History) Len() int { return len(h.snapshots) }

// Position returns the zero-based cursor, or -1 while empty.
func (h *History) Position() int { return h.cursor }
