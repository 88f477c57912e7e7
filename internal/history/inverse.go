// File: internal/history/inverse.go
// Description: Inverse-operation records and the undo stack. Each record is a
// tagged data variant carrying the pre-mutation snapshot by value, so undo
// never chases references into state that has since moved on, and records are
// trivially comparable in tests.

package history

import "github.com/fitforge/fitroom-cli/api/schemas"

// InverseRecord restores exactly the fields one prior mutation captured.
// Apply reports an aspect ratio to restore when the record captured one;
// the session owns the ratio, so the engine cannot restore it itself.
type InverseRecord interface {
	Apply(e *Engine) (ratio schemas.AspectRatio, hasRatio bool)
}

// RestoreCursor rewinds the active-layer cursor and pose index. Pushed by
// garment applies (both cache hits and fresh generations) and by pose
// selections that only moved the index.
type RestoreCursor struct {
	Active int
	Pose   int
}

func (r RestoreCursor) Apply(e *Engine) (schemas.AspectRatio, bool) {
	e.active = r.Active
	e.poseIndex = r.Pose
	return "", false
}

// RestoreLayer puts a whole prior layer object back at its index and rewinds
// the pose index. Pushed by pose generation, background swaps and masked
// edits.
type RestoreLayer struct {
	Index int
	Layer schemas.OutfitLayer
	Pose  int
}

func (r RestoreLayer) Apply(e *Engine) (schemas.AspectRatio, bool) {
	if r.Index >= 0 && r.Index < len(e.layers) {
		e.layers[r.Index] = r.Layer.Clone()
	}
	e.poseIndex = r.Pose
	return "", false
}

// RestoreLayerAndRatio additionally rewinds the session-wide aspect ratio.
// Pushed by aspect-ratio changes.
type RestoreLayerAndRatio struct {
	Index int
	Layer schemas.OutfitLayer
	Pose  int
	Ratio schemas.AspectRatio
}

func (r RestoreLayerAndRatio) Apply(e *Engine) (schemas.AspectRatio, bool) {
	if r.Index >= 0 && r.Index < len(e.layers) {
		e.layers[r.Index] = r.Layer.Clone()
	}
	e.poseIndex = r.Pose
	return r.Ratio, true
}

// UndoStack is the linear stack of inverse records. One record is pushed per
// successful mutation with a defined inverse; destructive actions clear it
// entirely.
type UndoStack struct {
	records []InverseRecord
}

// Push adds a record to the top of the stack.
func (s *UndoStack) Push(r InverseRecord) {
	s.records = append(s.records, r)
}

// Pop removes and returns the most recent record.
func (s *UndoStack) Pop() (InverseRecord, bool) {
	if len(s.records) == 0 {
		return nil, false
	}
	r := s.records[len(s.records)-1]
	s.records = s.records[:len(s.records)-1]
	return r, true
}

// Clear empties the stack.
func (s *UndoStack) Clear() { s.records = nil }

// Len reports the stack depth.
func (s *UndoStack) Len() int { return len(s.records) }
