// File: internal/generation/prompts.go
// Description: Instruction builders for each edit kind. The wording matters:
// every prompt pins down what must NOT change so the service edits one thing
// at a time instead of reimagining the whole scene.

package generation

import (
	"fmt"

	"github.com/fitforge/fitroom-cli/api/schemas"
)

func ratioClause(ratio schemas.AspectRatio) string {
	if ratio == "" {
		return ""
	}
	return fmt.Sprintf(" The output image must have a %s aspect ratio.", ratio)
}

func modelCreationPrompt(instructions string) string {
	p := "You are an expert fashion photographer AI. Transform the person in this photo into a full-body fashion model shot suitable for an e-commerce catalog. " +
		"The background must be a clean, neutral studio backdrop (light gray, #f0f0f0). " +
		"Preserve the person's identity, unique facial features, and body type exactly, but place them in a standard, relaxed standing model pose. " +
		"The final image must be photorealistic. Return ONLY the final image."
	if instructions != "" {
		p += " Additional direction: " + instructions
	}
	return p
}

func garmentPrompt(ratio schemas.AspectRatio) string {
	return "You are an expert virtual try-on AI. You will be given a 'model image' and a 'garment image'. " +
		"Create a new photorealistic image where the person from the model image is wearing the garment from the garment image. " +
		"The garment completely REPLACES any item of the same kind the person is currently wearing. " +
		"Preserve the person's pose, face, body shape, and the background exactly. Return ONLY the final image." +
		ratioClause(ratio)
}

func accessoryPrompt(ratio schemas.AspectRatio) string {
	return "You are an expert virtual try-on AI. You will be given a 'model image' and an 'accessory image'. " +
		"Create a new photorealistic image where the person from the model image is additionally wearing the accessory from the accessory image. " +
		"Do NOT remove or alter any garment the person is already wearing; the accessory is added on top. " +
		"Preserve the person's pose, face, body shape, and the background exactly. Return ONLY the final image." +
		ratioClause(ratio)
}

func posePrompt(poseText string, ratio schemas.AspectRatio) string {
	return fmt.Sprintf("Regenerate this exact image from a different perspective. "+
		"The person, their clothing, and the background must remain identical. "+
		"The new pose of the person must be: %q. Return ONLY the final image.", poseText) +
		ratioClause(ratio)
}

func backgroundPrompt(backgroundText string, ratio schemas.AspectRatio) string {
	return fmt.Sprintf("Change the background of this image to: %q. "+
		"The person, their pose, and their clothing must remain completely unchanged. "+
		"Match the lighting on the person to the new scene. Return ONLY the final image.", backgroundText) +
		ratioClause(ratio)
}

func backgroundImagePrompt(ratio schemas.AspectRatio) string {
	return "You are given a 'subject image' and a 'scene image'. " +
		"Place the person from the subject image into the scene image. " +
		"The person, their pose, and their clothing must remain completely unchanged. " +
		"Match the lighting on the person to the scene. Return ONLY the final image." +
		ratioClause(ratio)
}

func aspectRatioPrompt(ratio schemas.AspectRatio) string {
	return fmt.Sprintf("Recompose this image to a %s aspect ratio. "+
		"Extend the scene naturally to fill the new frame; the person, their pose, and their clothing must remain completely unchanged. "+
		"Return ONLY the final image.", ratio)
}

func maskedEditPrompt(instruction string, ratio schemas.AspectRatio) string {
	return fmt.Sprintf("You are given a 'base image' and a 'mask image' where the white region marks the area to edit. "+
		"Apply the following instruction to the masked area ONLY, leaving the rest of the base image untouched: %q. "+
		"Blend the edit seamlessly. Return ONLY the final image.", instruction) +
		ratioClause(ratio)
}
