// File: api/schemas/schemas.go
// Description: Shared value types for the fitroom editing core. These are the
// currency passed between the history engine, the generation gateway, and the
// lookbook; everything persisted carries JSON tags.

package schemas

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ImageRef is an opaque, immutable handle for a generated bitmap. The concrete
// representation is a data URL ("data:<mime>;base64,<payload>") so a ref is
// self-contained and survives serialization to the lookbook.
type ImageRef string

// EncodeImage packs raw image bytes into an ImageRef.
func EncodeImage(data []byte, mimeType string) ImageRef {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return ImageRef("data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data))
}

// Decode unpacks the ref back into raw bytes and the MIME type.
func (r ImageRef) Decode() ([]byte, string, error) {
	s := string(r)
	if !strings.HasPrefix(s, "data:") {
		return nil, "", fmt.Errorf("image ref is not a data URL")
	}
	rest := s[len("data:"):]
	sep := strings.Index(rest, ";base64,")
	if sep < 0 {
		return nil, "", fmt.Errorf("image ref is missing a base64 payload")
	}
	mimeType := rest[:sep]
	data, err := base64.StdEncoding.DecodeString(rest[sep+len(";base64,"):])
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image payload: %w", err)
	}
	return data, mimeType, nil
}

// MIMEType reports the declared MIME type, or "" when the ref is malformed.
func (r ImageRef) MIMEType() string {
	_, mimeType, err := r.Decode()
	if err != nil {
		return ""
	}
	return mimeType
}

// IsZero reports whether the ref is empty.
func (r ImageRef) IsZero() bool { return r == "" }

// AspectRatio identifies the requested output geometry for generated images.
// One value is active per editing session; already generated layers keep the
// geometry they were generated under.
type AspectRatio string

const (
	AspectPortrait      AspectRatio = "2:3"
	AspectLandscape     AspectRatio = "3:2"
	AspectSquare        AspectRatio = "1:1"
	AspectVerticalStory AspectRatio = "9:16"
	AspectWideScreen    AspectRatio = "16:9"
)

// AspectRatios lists every supported ratio in display order.
func AspectRatios() []AspectRatio {
	return []AspectRatio{AspectPortrait, AspectLandscape, AspectSquare, AspectVerticalStory, AspectWideScreen}
}

// Valid reports whether the ratio is one of the supported values.
func (a AspectRatio) Valid() bool {
	for _, r := range AspectRatios() {
		if a == r {
			return true
		}
	}
	return false
}

// GarmentCategory distinguishes full garment replacement from additive
// accessories; the two categories route to different gateway operations.
type GarmentCategory string

const (
	CategoryGarment   GarmentCategory = "garment"
	CategoryAccessory GarmentCategory = "accessory"
)

// Valid reports whether the category is known.
func (c GarmentCategory) Valid() bool {
	return c == CategoryGarment || c == CategoryAccessory
}

// Garment is an immutable wardrobe item.
type Garment struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category GarmentCategory `json:"category"`
	Image    ImageRef        `json:"image"`
}

// OutfitLayer is one step in the outfit history: the garment applied at that
// step (nil for the base model layer) plus every pose variant generated for
// this exact garment state, keyed by pose instruction text.
//
// Layers are treated as immutable: mutations clone the layer and replace it in
// the history slice, so inverse records can hold the prior layer by value.
type OutfitLayer struct {
	Garment    *Garment            `json:"garment,omitempty"`
	PoseImages map[string]ImageRef `json:"poseImages"`
}

// NewBaseLayer builds the index-0 layer for a freshly generated model photo.
func NewBaseLayer(poseText string, img ImageRef) OutfitLayer {
	return OutfitLayer{PoseImages: map[string]ImageRef{poseText: img}}
}

// Clone returns a deep copy of the layer.
func (l OutfitLayer) Clone() OutfitLayer {
	out := OutfitLayer{PoseImages: make(map[string]ImageRef, len(l.PoseImages))}
	for k, v := range l.PoseImages {
		out.PoseImages[k] = v
	}
	if l.Garment != nil {
		g := *l.Garment
		out.Garment = &g
	}
	return out
}

// ImageFor looks up the generated image for a pose instruction.
func (l OutfitLayer) ImageFor(poseText string) (ImageRef, bool) {
	ref, ok := l.PoseImages[poseText]
	return ref, ok
}

// AnyImage returns a deterministic "first available" pose entry, used as the
// base image when generating a new pose variant. Map order is randomized in
// Go, so the lexicographically smallest pose key is used.
func (l OutfitLayer) AnyImage() (string, ImageRef, bool) {
	if len(l.PoseImages) == 0 {
		return "", "", false
	}
	keys := make([]string, 0, len(l.PoseImages))
	for k := range l.PoseImages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0], l.PoseImages[keys[0]], true
}

// GarmentID reports the applied garment's id, or "" for the base layer.
func (l OutfitLayer) GarmentID() string {
	if l.Garment == nil {
		return ""
	}
	return l.Garment.ID
}

// CloneLayers deep-copies a history slice.
func CloneLayers(layers []OutfitLayer) []OutfitLayer {
	out := make([]OutfitLayer, len(layers))
	for i, l := range layers {
		out[i] = l.Clone()
	}
	return out
}

// SavedOutfit is an immutable snapshot of a complete look: the worn layer
// slice at save time plus the pose that was active.
type SavedOutfit struct {
	ID              string        `json:"id"`
	CreatedAt       time.Time     `json:"createdAt"`
	Preview         ImageRef      `json:"preview"`
	Layers          []OutfitLayer `json:"outfitLayers"`
	PoseInstruction string        `json:"poseInstruction"`
}
