// File: api/schemas/interfaces.go
// Description: Consumed interfaces at the edge of the core. The generation
// gateway and the blob store are external collaborators; defining them here
// keeps the engine decoupled and lets tests inject scripted implementations.

package schemas

import "context"

// GenerationGateway is the external image-generation service boundary: one
// asynchronous operation per edit kind. Every call either returns a new
// ImageRef or fails; implementations classify failures into *GenerationError.
type GenerationGateway interface {
	// CreateModel turns a user photo into a clean full-body model shot.
	CreateModel(ctx context.Context, source ImageRef, instructions string) (ImageRef, error)
	// ApplyGarment dresses the model in the garment, fully replacing any
	// previously applied clothing of the same kind.
	ApplyGarment(ctx context.Context, model, garment ImageRef, ratio AspectRatio) (ImageRef, error)
	// ApplyAccessory adds the accessory without removing existing garments.
	ApplyAccessory(ctx context.Context, model, accessory ImageRef, ratio AspectRatio) (ImageRef, error)
	// VaryPose regenerates the same outfit from a different pose instruction.
	VaryPose(ctx context.Context, base ImageRef, poseText string, ratio AspectRatio) (ImageRef, error)
	// ChangeBackground swaps the scene behind the model per a text prompt.
	ChangeBackground(ctx context.Context, base ImageRef, backgroundText string, ratio AspectRatio) (ImageRef, error)
	// ChangeBackgroundWithImage swaps the scene using a reference picture.
	ChangeBackgroundWithImage(ctx context.Context, base, background ImageRef, ratio AspectRatio) (ImageRef, error)
	// ChangeAspectRatio recomposes the current image to a new geometry.
	ChangeAspectRatio(ctx context.Context, base ImageRef, ratio AspectRatio) (ImageRef, error)
	// EditWithMask applies a free-form instruction to the masked region only.
	EditWithMask(ctx context.Context, base, mask ImageRef, instruction string, ratio AspectRatio) (ImageRef, error)
}

// BlobStore is the opaque persistence collaborator: string blobs under string
// keys. The lookbook uses a single fixed key.
type BlobStore interface {
	// Get returns the stored value and whether the key was present.
	Get(key string) (string, bool, error)
	// Put stores the value, replacing any previous one.
	Put(key, value string) error
	// Close releases the underlying resources.
	Close() error
}
