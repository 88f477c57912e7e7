// File: internal/history/engine.go
// Description: Owns the layered outfit history, the active-layer cursor and
// the current pose index. Every method here is a synchronous state
// transition; the session layer sequences gateway calls and feeds generated
// images in, so a mutation is either fully committed or never observed.

package history

import (
	"errors"

	"github.com/fitforge/fitroom-cli/api/schemas"
)

// ErrNoHistory is returned by operations that need at least a base layer.
var ErrNoHistory = errors.New("no outfit history")

// ErrBaseLayer is returned when removing the base layer is attempted.
var ErrBaseLayer = errors.New("cannot remove the base layer")

// Engine owns the ordered layer sequence and both cursors. It is not safe for
// concurrent use; the session serializes access.
type Engine struct {
	catalog   *PoseCatalog
	layers    []schemas.OutfitLayer
	active    int
	poseIndex int
}

// NewEngine builds an empty engine over the given pose catalog.
func NewEngine(catalog *PoseCatalog) *Engine {
	return &Engine{catalog: catalog}
}

// Catalog exposes the engine's pose catalog.
func (e *Engine) Catalog() *PoseCatalog { return e.catalog }

// HasHistory reports whether a base layer exists.
func (e *Engine) HasHistory() bool { return len(e.layers) > 0 }

// Len reports the full history length, including explored-but-inactive layers
// beyond the cursor.
func (e *Engine) Len() int { return len(e.layers) }

// ActiveIndex returns the cursor position.
func (e *Engine) ActiveIndex() int { return e.active }

// PoseIndex returns the current pose-catalog index.
func (e *Engine) PoseIndex() int { return e.poseIndex }

// Reset replaces all state with a single base layer holding the freshly
// generated model image under the catalog's index-0 pose.
func (e *Engine) Reset(base schemas.ImageRef) {
	poseText, _ := e.catalog.At(0)
	e.layers = []schemas.OutfitLayer{schemas.NewBaseLayer(poseText, base)}
	e.active = 0
	e.poseIndex = 0
}

// Clear drops all history, returning the engine to its pre-model state.
func (e *Engine) Clear() {
	e.layers = nil
	e.active = 0
	e.poseIndex = 0
}

// CurrentPoseText resolves the current pose index against the catalog.
func (e *Engine) CurrentPoseText() (string, bool) {
	return e.catalog.At(e.poseIndex)
}

// ActiveLayer returns a copy of the layer under the cursor.
func (e *Engine) ActiveLayer() (schemas.OutfitLayer, bool) {
	if !e.HasHistory() {
		return schemas.OutfitLayer{}, false
	}
	return e.layers[e.active].Clone(), true
}

// ActiveLayers returns a deep copy of the worn slice history[0..active].
func (e *Engine) ActiveLayers() []schemas.OutfitLayer {
	if !e.HasHistory() {
		return nil
	}
	return schemas.CloneLayers(e.layers[:e.active+1])
}

// LayerSnapshot returns a copy of the layer at an absolute index, for inverse
// records.
func (e *Engine) LayerSnapshot(i int) (schemas.OutfitLayer, bool) {
	if i < 0 || i >= len(e.layers) {
		return schemas.OutfitLayer{}, false
	}
	return e.layers[i].Clone(), true
}

// DisplayImage selects the image shown for the current state: the active
// layer's entry for the current pose, falling back to the layer's
// deterministic first entry when that pose has not been generated yet.
func (e *Engine) DisplayImage() (schemas.ImageRef, bool) {
	if !e.HasHistory() {
		return "", false
	}
	layer := e.layers[e.active]
	if poseText, ok := e.catalog.At(e.poseIndex); ok {
		if ref, ok := layer.ImageFor(poseText); ok {
			return ref, true
		}
	}
	_, ref, ok := layer.AnyImage()
	return ref, ok
}

// AvailablePoseKeys lists the pose instructions already generated for the
// active layer.
func (e *Engine) AvailablePoseKeys() []string {
	if !e.HasHistory() {
		return nil
	}
	keys := make([]string, 0, len(e.layers[e.active].PoseImages))
	for _, p := range e.catalog.All() {
		if _, ok := e.layers[e.active].PoseImages[p]; ok {
			keys = append(keys, p)
		}
	}
	return keys
}

// NextLayerGarmentID reports the garment id of the layer just beyond the
// cursor, or "" when no explored future exists. Used for the re-apply cache
// check.
func (e *Engine) NextLayerGarmentID() string {
	if e.active+1 >= len(e.layers) {
		return ""
	}
	return e.layers[e.active+1].GarmentID()
}

// AdvanceReapply moves the cursor onto the already-generated next layer.
// The caller must have verified the garment id via NextLayerGarmentID.
func (e *Engine) AdvanceReapply() {
	e.active++
	e.poseIndex = 0
}

// CommitGarment splices a freshly generated layer into history: layers beyond
// the cursor are discarded, the new layer is appended and the cursor advances.
// The pose index resets because the active layer changed.
func (e *Engine) CommitGarment(g schemas.Garment, poseText string, img schemas.ImageRef) {
	layer := schemas.OutfitLayer{
		Garment:    &g,
		PoseImages: map[string]schemas.ImageRef{poseText: img},
	}
	e.layers = append(e.layers[:e.active+1], layer)
	e.active++
	e.poseIndex = 0
}

// SetPoseIndex moves the pose cursor without touching layer content.
func (e *Engine) SetPoseIndex(i int) { e.poseIndex = i }

// CommitPoseImage records a newly generated pose variant on the active layer
// and moves the pose cursor to it. The layer object is replaced, not mutated,
// so prior snapshots stay intact.
func (e *Engine) CommitPoseImage(poseIdx int, poseText string, img schemas.ImageRef) error {
	if !e.HasHistory() {
		return ErrNoHistory
	}
	layer := e.layers[e.active].Clone()
	layer.PoseImages[poseText] = img
	e.layers[e.active] = layer
	e.poseIndex = poseIdx
	return nil
}

// ReplaceActivePoseImage overwrites the active layer's entry for the current
// pose with a regenerated image (background swap, aspect change, masked
// edit). Other cached poses of the layer are intentionally left untouched
// even though they no longer match the new scene. Returns the pose text the
// image was stored under.
func (e *Engine) ReplaceActivePoseImage(img schemas.ImageRef) (string, error) {
	if !e.HasHistory() {
		return "", ErrNoHistory
	}
	poseText, ok := e.catalog.At(e.poseIndex)
	if !ok {
		return "", ErrNoHistory
	}
	layer := e.layers[e.active].Clone()
	layer.PoseImages[poseText] = img
	e.layers[e.active] = layer
	return poseText, nil
}

// RemoveLastLayer steps the cursor back one layer. The discarded branch stays
// in memory until a different garment is applied.
func (e *Engine) RemoveLastLayer() error {
	if !e.HasHistory() {
		return ErrNoHistory
	}
	if e.active == 0 {
		return ErrBaseLayer
	}
	e.active--
	e.poseIndex = 0
	return nil
}

// LoadSnapshot replaces history wholesale with a saved look.
func (e *Engine) LoadSnapshot(layers []schemas.OutfitLayer, activeIdx, poseIdx int) error {
	if len(layers) == 0 {
		return ErrNoHistory
	}
	if activeIdx < 0 || activeIdx >= len(layers) {
		return errors.New("active index out of range for snapshot")
	}
	e.layers = schemas.CloneLayers(layers)
	e.active = activeIdx
	e.poseIndex = poseIdx
	return nil
}
