// File: internal/lookbook/lookbook.go
// Description: The persisted collection of saved looks. The whole collection
// is serialized to the blob store after every add/delete; a storage failure is
// non-fatal by design, so session state and persisted state may diverge until
// the next successful write.

package lookbook

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/fitforge/fitroom-cli/api/schemas"
)

// StorageKey is the single fixed key the collection lives under.
const StorageKey = "fitroom/lookbook"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrTooFewLayers rejects saving a look that is just the bare model.
	ErrTooFewLayers = errors.New("a look needs at least one applied garment")
	// ErrNotFound is returned when deleting or loading an unknown look id.
	ErrNotFound = errors.New("look not found")
	// ErrPersistFailed wraps storage-write failures. The in-memory change has
	// still been applied when this is returned.
	ErrPersistFailed = errors.New("failed to persist lookbook")
)

// Store keeps the saved-outfit collection in memory, mirrored to the blob
// store.
type Store struct {
	blobs   schemas.BlobStore
	log     *zap.Logger
	outfits []schemas.SavedOutfit
}

// New loads the persisted collection. An absent key means an empty lookbook;
// a corrupt payload is an error.
func New(blobs schemas.BlobStore, logger *zap.Logger) (*Store, error) {
	if blobs == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize lookbook with nil dependencies")
	}
	s := &Store{blobs: blobs, log: logger.Named("lookbook")}

	raw, found, err := blobs.Get(StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load lookbook: %w", err)
	}
	if found {
		if err := json.UnmarshalFromString(raw, &s.outfits); err != nil {
			return nil, fmt.Errorf("failed to decode lookbook payload: %w", err)
		}
		s.log.Info("Lookbook loaded", zap.Int("looks", len(s.outfits)))
	}
	return s, nil
}

// All returns a copy of the collection, newest first.
func (s *Store) All() []schemas.SavedOutfit {
	out := make([]schemas.SavedOutfit, len(s.outfits))
	copy(out, s.outfits)
	return out
}

// Get finds a saved look by id.
func (s *Store) Get(id string) (schemas.SavedOutfit, bool) {
	for _, o := range s.outfits {
		if o.ID == id {
			return o, true
		}
	}
	return schemas.SavedOutfit{}, false
}

// Save snapshots the active layer slice as a new look. Fewer than two layers
// is a no-op rejection: a bare base layer is not a saved look. A storage
// failure keeps the in-memory addition and reports ErrPersistFailed.
func (s *Store) Save(layers []schemas.OutfitLayer, preview schemas.ImageRef, poseText string) (schemas.SavedOutfit, error) {
	if len(layers) < 2 {
		return schemas.SavedOutfit{}, ErrTooFewLayers
	}

	outfit := schemas.SavedOutfit{
		ID:              uuid.NewString(),
		CreatedAt:       time.Now().UTC(),
		Preview:         preview,
		Layers:          schemas.CloneLayers(layers),
		PoseInstruction: poseText,
	}
	// Newest first keeps the most recent look at the top of listings.
	s.outfits = append([]schemas.SavedOutfit{outfit}, s.outfits...)

	if err := s.persist(); err != nil {
		s.log.Warn("Look saved in memory but not persisted", zap.String("id", outfit.ID), zap.Error(err))
		return outfit, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	s.log.Info("Look saved", zap.String("id", outfit.ID), zap.Int("layers", len(outfit.Layers)))
	return outfit, nil
}

// Delete removes a look by id and re-serializes the collection. Storage
// failures are non-fatal, same as Save.
func (s *Store) Delete(id string) error {
	kept := s.outfits[:0:0]
	found := false
	for _, o := range s.outfits {
		if o.ID == id {
			found = true
			continue
		}
		kept = append(kept, o)
	}
	if !found {
		return ErrNotFound
	}
	s.outfits = kept

	if err := s.persist(); err != nil {
		s.log.Warn("Look deleted in memory but deletion not persisted", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	return nil
}

func (s *Store) persist() error {
	raw, err := json.MarshalToString(s.outfits)
	if err != nil {
		return fmt.Errorf("failed to encode lookbook: %w", err)
	}
	return s.blobs.Put(StorageKey, raw)
}
