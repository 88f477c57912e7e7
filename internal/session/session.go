// File: internal/session/session.go
// Description: The editing session orchestrator. It sequences gateway calls
// with history/undo/lookbook updates under a single-flight busy gate: at most
// one mutating operation is ever in flight, so each one observes a consistent
// pre-state and commits atomically. Every operation is all-or-nothing — fully
// committed with an inverse pushed, or fully rolled back with the error
// surfaced as the session's current error.

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/fitforge/fitroom-cli/api/schemas"
	"github.com/fitforge/fitroom-cli/internal/config"
	"github.com/fitforge/fitroom-cli/internal/history"
	"github.com/fitforge/fitroom-cli/internal/lookbook"
	"github.com/fitforge/fitroom-cli/internal/wardrobe"
)

var (
	// ErrBusy rejects a mutating call while another one is in flight.
	ErrBusy = errors.New("another edit is still in progress")
	// ErrNoModel rejects edits before a model photo exists.
	ErrNoModel = errors.New("create a model photo first")
)

// Session owns one editing session end to end. It is designed for a single
// UI goroutine: mutating operations are serialized by the busy gate, and
// read-only views are pure functions of committed state.
type Session struct {
	gateway schemas.GenerationGateway
	engine  *history.Engine
	undo    history.UndoStack
	closet  *wardrobe.Wardrobe
	looks   *lookbook.Store
	log     *zap.Logger

	// busy enforces the at-most-one-in-flight policy across all mutation
	// kinds. TryAcquire makes rejection immediate rather than queueing.
	busy *semaphore.Weighted

	aspect  schemas.AspectRatio
	lastErr error
}

// New wires a session from its collaborators.
func New(cfg *config.Config, gateway schemas.GenerationGateway, looks *lookbook.Store, logger *zap.Logger) (*Session, error) {
	if cfg == nil || gateway == nil || looks == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize session with nil dependencies")
	}
	return &Session{
		gateway: gateway,
		engine:  history.NewEngine(history.NewPoseCatalog(cfg.Studio.Poses)),
		closet:  wardrobe.New(wardrobe.DefaultGarments()),
		looks:   looks,
		log:     logger.Named("session"),
		busy:    semaphore.NewWeighted(1),
		aspect:  schemas.AspectRatio(cfg.Studio.DefaultAspectRatio),
	}, nil
}

// begin claims the busy gate and clears the previous error. It returns false
// when another mutation is in flight; the caller must return ErrBusy without
// touching any state.
func (s *Session) begin() bool {
	if !s.busy.TryAcquire(1) {
		return false
	}
	s.lastErr = nil
	return true
}

func (s *Session) end() { s.busy.Release(1) }

// fail classifies a gateway error, stores it as the current error and
// returns it.
func (s *Session) fail(op string, err error) error {
	ge := schemas.Classify(err)
	s.lastErr = ge
	s.log.Warn("Operation failed", zap.String("op", op), zap.String("kind", string(ge.Kind)), zap.Error(err))
	return ge
}

// StartFromPhoto generates the model photo from a user picture and resets the
// session to a fresh base layer.
func (s *Session) StartFromPhoto(ctx context.Context, photo schemas.ImageRef, instructions string) error {
	if !s.begin() {
		return ErrBusy
	}
	defer s.end()

	img, err := s.gateway.CreateModel(ctx, photo, instructions)
	if err != nil {
		return s.fail("create_model", err)
	}
	s.engine.Reset(img)
	s.undo.Clear()
	s.log.Info("Model created, history reset")
	return nil
}

// ApplyGarment dresses the model in g, reusing the already-generated next
// layer when the user re-applies the garment they just removed.
func (s *Session) ApplyGarment(ctx context.Context, g schemas.Garment) error {
	if !s.begin() {
		return ErrBusy
	}
	defer s.end()

	if !s.engine.HasHistory() {
		return ErrNoModel
	}

	prevActive, prevPose := s.engine.ActiveIndex(), s.engine.PoseIndex()

	// Cache hit: the layer just beyond the cursor already holds this exact
	// garment, so no generation is needed.
	if g.ID != "" && s.engine.NextLayerGarmentID() == g.ID {
		s.engine.AdvanceReapply()
		s.undo.Push(history.RestoreCursor{Active: prevActive, Pose: prevPose})
		s.log.Debug("Garment re-applied from cache", zap.String("garment", g.ID))
		return nil
	}

	display, ok := s.engine.DisplayImage()
	if !ok {
		return ErrNoModel
	}
	poseText, _ := s.engine.CurrentPoseText()

	var img schemas.ImageRef
	var err error
	if g.Category == schemas.CategoryAccessory {
		img, err = s.gateway.ApplyAccessory(ctx, display, g.Image, s.aspect)
	} else {
		img, err = s.gateway.ApplyGarment(ctx, display, g.Image, s.aspect)
	}
	if err != nil {
		return s.fail("apply_garment", err)
	}

	s.engine.CommitGarment(g, poseText, img)
	s.undo.Push(history.RestoreCursor{Active: prevActive, Pose: prevPose})
	s.closet.Add(g)
	s.log.Info("Garment applied", zap.String("garment", g.ID), zap.Int("layer", s.engine.ActiveIndex()))
	return nil
}

// SelectPose switches the displayed pose, generating a variant only when the
// active layer has no cached image for it.
func (s *Session) SelectPose(ctx context.Context, newIndex int) error {
	if !s.begin() {
		return ErrBusy
	}
	defer s.end()
	return s.selectPose(ctx, newIndex)
}

// AddCustomPose catalogs a user-written pose instruction and selects it.
// Text already catalogued behaves exactly like selecting its index.
func (s *Session) AddCustomPose(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if !s.begin() {
		return ErrBusy
	}
	defer s.end()

	// Append-then-select as one operation; the catalog dedupes exact text.
	return s.selectPose(ctx, s.engine.Catalog().Add(text))
}

// selectPose is the shared pose-selection path; the caller holds the gate.
func (s *Session) selectPose(ctx context.Context, newIndex int) error {
	if !s.engine.HasHistory() || newIndex == s.engine.PoseIndex() {
		return nil
	}
	poseText, ok := s.engine.Catalog().At(newIndex)
	if !ok {
		return fmt.Errorf("pose index %d out of range", newIndex)
	}

	layer, _ := s.engine.ActiveLayer()
	prevPose := s.engine.PoseIndex()

	// Cached pose: index-only update, no generation.
	if _, ok := layer.ImageFor(poseText); ok {
		s.engine.SetPoseIndex(newIndex)
		s.undo.Push(history.RestoreCursor{Active: s.engine.ActiveIndex(), Pose: prevPose})
		return nil
	}

	_, base, ok := layer.AnyImage()
	if !ok {
		return ErrNoModel
	}
	snapshot, _ := s.engine.LayerSnapshot(s.engine.ActiveIndex())

	// Optimistic: the UI shows the intended pose while generation runs.
	s.engine.SetPoseIndex(newIndex)

	img, err := s.gateway.VaryPose(ctx, base, poseText, s.aspect)
	if err != nil {
		s.engine.SetPoseIndex(prevPose)
		return s.fail("vary_pose", err)
	}

	if err := s.engine.CommitPoseImage(newIndex, poseText, img); err != nil {
		s.engine.SetPoseIndex(prevPose)
		return err
	}
	s.undo.Push(history.RestoreLayer{Index: s.engine.ActiveIndex(), Layer: snapshot, Pose: prevPose})
	s.log.Info("Pose generated", zap.String("pose", poseText))
	return nil
}

// ChangeBackground swaps the scene behind the model per a text prompt. Only
// the image for the currently active pose is regenerated; other cached poses
// of the layer keep the old scene.
func (s *Session) ChangeBackground(ctx context.Context, prompt string) error {
	return s.replaceActive(ctx, "change_background", func(display schemas.ImageRef) (schemas.ImageRef, error) {
		return s.gateway.ChangeBackground(ctx, display, prompt, s.aspect)
	})
}

// ChangeBackgroundWithImage swaps the scene using a reference picture.
func (s *Session) ChangeBackgroundWithImage(ctx context.Context, background schemas.ImageRef) error {
	return s.replaceActive(ctx, "change_background_image", func(display schemas.ImageRef) (schemas.ImageRef, error) {
		return s.gateway.ChangeBackgroundWithImage(ctx, display, background, s.aspect)
	})
}

// ApplyMaskedEdit applies a free-form instruction to the masked region of the
// current display image.
func (s *Session) ApplyMaskedEdit(ctx context.Context, mask schemas.ImageRef, prompt string) error {
	return s.replaceActive(ctx, "edit_with_mask", func(display schemas.ImageRef) (schemas.ImageRef, error) {
		return s.gateway.EditWithMask(ctx, display, mask, prompt, s.aspect)
	})
}

// replaceActive runs a regeneration of the current display image and swaps it
// into the active layer's current pose entry, pushing a whole-layer inverse.
func (s *Session) replaceActive(ctx context.Context, op string, generate func(schemas.ImageRef) (schemas.ImageRef, error)) error {
	if !s.begin() {
		return ErrBusy
	}
	defer s.end()

	display, ok := s.engine.DisplayImage()
	if !ok {
		return ErrNoModel
	}
	prevPose := s.engine.PoseIndex()
	snapshot, _ := s.engine.LayerSnapshot(s.engine.ActiveIndex())

	img, err := generate(display)
	if err != nil {
		return s.fail(op, err)
	}

	if _, err := s.engine.ReplaceActivePoseImage(img); err != nil {
		return err
	}
	s.undo.Push(history.RestoreLayer{Index: s.engine.ActiveIndex(), Layer: snapshot, Pose: prevPose})
	s.log.Info("Active image replaced", zap.String("op", op))
	return nil
}

// ChangeAspectRatio recomposes the current display image to a new geometry
// and makes the ratio the session-wide default for subsequent generations.
// Layers generated earlier keep the geometry they were generated under.
func (s *Session) ChangeAspectRatio(ctx context.Context, ratio schemas.AspectRatio) error {
	if !s.begin() {
		return ErrBusy
	}
	defer s.end()

	if ratio == s.aspect {
		return nil
	}
	if !ratio.Valid() {
		return fmt.Errorf("unsupported aspect ratio %q", ratio)
	}

	// Before a model exists the ratio is just a setting for future requests.
	if !s.engine.HasHistory() {
		s.aspect = ratio
		return nil
	}

	display, _ := s.engine.DisplayImage()
	prevRatio := s.aspect
	prevPose := s.engine.PoseIndex()
	snapshot, _ := s.engine.LayerSnapshot(s.engine.ActiveIndex())

	// Optimistic: new requests already use the chosen ratio during latency.
	s.aspect = ratio

	img, err := s.gateway.ChangeAspectRatio(ctx, display, ratio)
	if err != nil {
		s.aspect = prevRatio
		return s.fail("change_aspect_ratio", err)
	}

	if _, err := s.engine.ReplaceActivePoseImage(img); err != nil {
		s.aspect = prevRatio
		return err
	}
	s.undo.Push(history.RestoreLayerAndRatio{
		Index: s.engine.ActiveIndex(),
		Layer: snapshot,
		Pose:  prevPose,
		Ratio: prevRatio,
	})
	s.log.Info("Aspect ratio changed", zap.String("ratio", string(ratio)))
	return nil
}

// RemoveLastLayer takes the top garment off. Destructive: the undo stack is
// cleared because the branch above the cursor goes away on the next apply,
// which would leave earlier inverses pointing at state that no longer exists.
func (s *Session) RemoveLastLayer() error {
	if !s.begin() {
		return ErrBusy
	}
	defer s.end()

	if err := s.engine.RemoveLastLayer(); err != nil {
		return err
	}
	s.undo.Clear()
	s.log.Info("Layer removed", zap.Int("layer", s.engine.ActiveIndex()))
	return nil
}

// Undo pops one inverse record and applies it. It never calls the gateway and
// there is no redo.
func (s *Session) Undo() error {
	if !s.begin() {
		return ErrBusy
	}
	defer s.end()

	rec, ok := s.undo.Pop()
	if !ok {
		return nil
	}
	if ratio, hasRatio := rec.Apply(s.engine); hasRatio {
		s.aspect = ratio
	}
	s.log.Debug("Undo applied", zap.Int("remaining", s.undo.Len()))
	return nil
}

// SaveLook snapshots the worn outfit into the lookbook. A bare base layer is
// rejected; a storage failure keeps the in-memory save and is surfaced as a
// non-fatal error.
func (s *Session) SaveLook() (schemas.SavedOutfit, error) {
	if !s.begin() {
		return schemas.SavedOutfit{}, ErrBusy
	}
	defer s.end()

	layers := s.engine.ActiveLayers()
	preview, _ := s.engine.DisplayImage()
	poseText, _ := s.engine.CurrentPoseText()

	saved, err := s.looks.Save(layers, preview, poseText)
	if err != nil {
		if errors.Is(err, lookbook.ErrPersistFailed) {
			s.lastErr = err
		}
		return saved, err
	}
	return saved, nil
}

// LoadLook replaces the session history wholesale with a saved look.
// Destructive: the undo stack is cleared.
func (s *Session) LoadLook(id string) error {
	if !s.begin() {
		return ErrBusy
	}
	defer s.end()

	outfit, ok := s.looks.Get(id)
	if !ok {
		return lookbook.ErrNotFound
	}

	// The saved pose may predate this session's catalog.
	poseIdx := s.engine.Catalog().Add(outfit.PoseInstruction)
	if err := s.engine.LoadSnapshot(outfit.Layers, len(outfit.Layers)-1, poseIdx); err != nil {
		return err
	}
	s.undo.Clear()
	s.log.Info("Look loaded", zap.String("id", id), zap.Int("layers", len(outfit.Layers)))
	return nil
}

// DeleteLook removes a saved look. Storage failures are non-fatal, same as
// saving.
func (s *Session) DeleteLook(id string) error {
	if !s.begin() {
		return ErrBusy
	}
	defer s.end()

	if err := s.looks.Delete(id); err != nil {
		if errors.Is(err, lookbook.ErrPersistFailed) {
			s.lastErr = err
		}
		return err
	}
	return nil
}

// Reset returns the session to its pre-model state: no history, empty undo
// stack, stock wardrobe, no current error.
func (s *Session) Reset() error {
	if !s.begin() {
		return ErrBusy
	}
	defer s.end()

	s.engine.Clear()
	s.undo.Clear()
	s.closet.ResetToDefaults()
	s.log.Info("Session reset")
	return nil
}
