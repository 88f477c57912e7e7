// File: internal/session/views.go
// Description: Read-only projections of session state for the UI layer. Each
// view recomputes from committed state; none of them block or mutate.

package session

import (
	"errors"

	"github.com/fitforge/fitroom-cli/api/schemas"
)

// HasModel reports whether a model photo exists to edit.
func (s *Session) HasModel() bool { return s.engine.HasHistory() }

// DisplayImage is the image the UI should render right now.
func (s *Session) DisplayImage() (schemas.ImageRef, bool) {
	return s.engine.DisplayImage()
}

// ActiveLayers returns a deep copy of the worn outfit, base layer first.
func (s *Session) ActiveLayers() []schemas.OutfitLayer {
	return s.engine.ActiveLayers()
}

// PoseInstructions lists the full pose catalog, stock poses first and custom
// ones in the order they were added.
func (s *Session) PoseInstructions() []string {
	return s.engine.Catalog().All()
}

// CurrentPoseIndex returns the selected pose-catalog index.
func (s *Session) CurrentPoseIndex() int { return s.engine.PoseIndex() }

// AvailablePoseKeys lists the poses already generated for the active layer.
func (s *Session) AvailablePoseKeys() []string {
	return s.engine.AvailablePoseKeys()
}

// AspectRatio returns the session-wide ratio used for new generations.
func (s *Session) AspectRatio() schemas.AspectRatio { return s.aspect }

// Wardrobe lists every garment seen this session, stock items first.
func (s *Session) Wardrobe() []schemas.Garment { return s.closet.All() }

// Looks lists the saved lookbook, newest first.
func (s *Session) Looks() []schemas.SavedOutfit { return s.looks.All() }

// UndoDepth reports how many operations can be undone.
func (s *Session) UndoDepth() int { return s.undo.Len() }

// LastError returns the error surfaced by the most recent failed mutation,
// or nil after a success. Rejected-while-busy calls never touch it.
func (s *Session) LastError() error { return s.lastErr }

// LastErrorMessage renders the current error for end users; "" when clear.
func (s *Session) LastErrorMessage() string {
	if s.lastErr == nil {
		return ""
	}
	var ge *schemas.GenerationError
	if errors.As(s.lastErr, &ge) {
		return ge.Friendly()
	}
	return s.lastErr.Error()
}

// Busy reports whether a mutation is currently in flight.
func (s *Session) Busy() bool {
	if s.busy.TryAcquire(1) {
		s.busy.Release(1)
		return false
	}
	return true
}
