// File: internal/generation/gateway.go
// Description: The production GenerationGateway over the Gemini API. Each
// operation sends inline image parts plus an instruction, retries transient
// failures with exponential backoff, and returns the first inline image of
// the first candidate as a data-URL ImageRef. Raw failures are classified
// into the schemas.GenerationError taxonomy here, at the boundary, so the
// engine above never inspects service messages.

package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/fitforge/fitroom-cli/api/schemas"
	"github.com/fitforge/fitroom-cli/internal/config"
)

// contentGenerator is the slice of the Gemini SDK the gateway needs; the
// indirection lets tests script responses without a network.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// supportedMIMETypes the service accepts as inline image input.
var supportedMIMETypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// Gateway implements schemas.GenerationGateway against Gemini.
type Gateway struct {
	models     contentGenerator
	model      string
	limiter    *rate.Limiter
	maxElapsed time.Duration
	// retryInterval seeds the exponential backoff; tests shrink it.
	retryInterval time.Duration
	log           *zap.Logger
}

var _ schemas.GenerationGateway = (*Gateway)(nil)

// New initializes the gateway from configuration.
func New(ctx context.Context, cfg config.GatewayConfig, logger *zap.Logger) (*Gateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required (set FITROOM_GEMINI_API_KEY)")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newGateway(client.Models, cfg, logger), nil
}

// newGateway wires an arbitrary content generator; used by New and by tests.
func newGateway(models contentGenerator, cfg config.GatewayConfig, logger *zap.Logger) *Gateway {
	perSecond := cfg.RequestsPerMinute / 60.0
	return &Gateway{
		models:        models,
		model:         cfg.Model,
		limiter:       rate.NewLimiter(rate.Limit(perSecond), 1),
		maxElapsed:    cfg.MaxRetryElapsed,
		retryInterval: backoff.DefaultInitialInterval,
		log:           logger.Named("gateway.gemini"),
	}
}

// CreateModel turns a user photo into a clean full-body model shot.
func (g *Gateway) CreateModel(ctx context.Context, source schemas.ImageRef, instructions string) (schemas.ImageRef, error) {
	parts, err := buildParts([]schemas.ImageRef{source}, modelCreationPrompt(instructions))
	if err != nil {
		return "", err
	}
	return g.generate(ctx, "create_model", parts)
}

// ApplyGarment dresses the model in the garment, fully replacing clothing of
// the same kind.
func (g *Gateway) ApplyGarment(ctx context.Context, model, garment schemas.ImageRef, ratio schemas.AspectRatio) (schemas.ImageRef, error) {
	parts, err := buildParts([]schemas.ImageRef{model, garment}, garmentPrompt(ratio))
	if err != nil {
		return "", err
	}
	return g.generate(ctx, "apply_garment", parts)
}

// ApplyAccessory adds the accessory on top of the current outfit.
func (g *Gateway) ApplyAccessory(ctx context.Context, model, accessory schemas.ImageRef, ratio schemas.AspectRatio) (schemas.ImageRef, error) {
	parts, err := buildParts([]schemas.ImageRef{model, accessory}, accessoryPrompt(ratio))
	if err != nil {
		return "", err
	}
	return g.generate(ctx, "apply_accessory", parts)
}

// VaryPose regenerates the same outfit in a new pose.
func (g *Gateway) VaryPose(ctx context.Context, base schemas.ImageRef, poseText string, ratio schemas.AspectRatio) (schemas.ImageRef, error) {
	parts, err := buildParts([]schemas.ImageRef{base}, posePrompt(poseText, ratio))
	if err != nil {
		return "", err
	}
	return g.generate(ctx, "vary_pose", parts)
}

// ChangeBackground swaps the scene per a text prompt.
func (g *Gateway) ChangeBackground(ctx context.Context, base schemas.ImageRef, backgroundText string, ratio schemas.AspectRatio) (schemas.ImageRef, error) {
	parts, err := buildParts([]schemas.ImageRef{base}, backgroundPrompt(backgroundText, ratio))
	if err != nil {
		return "", err
	}
	return g.generate(ctx, "change_background", parts)
}

// ChangeBackgroundWithImage swaps the scene using a reference picture.
func (g *Gateway) ChangeBackgroundWithImage(ctx context.Context, base, background schemas.ImageRef, ratio schemas.AspectRatio) (schemas.ImageRef, error) {
	parts, err := buildParts([]schemas.ImageRef{base, background}, backgroundImagePrompt(ratio))
	if err != nil {
		return "", err
	}
	return g.generate(ctx, "change_background_image", parts)
}

// ChangeAspectRatio recomposes the image to a new geometry.
func (g *Gateway) ChangeAspectRatio(ctx context.Context, base schemas.ImageRef, ratio schemas.AspectRatio) (schemas.ImageRef, error) {
	parts, err := buildParts([]schemas.ImageRef{base}, aspectRatioPrompt(ratio))
	if err != nil {
		return "", err
	}
	return g.generate(ctx, "change_aspect_ratio", parts)
}

// EditWithMask applies a free-form instruction to the masked region only.
func (g *Gateway) EditWithMask(ctx context.Context, base, mask schemas.ImageRef, instruction string, ratio schemas.AspectRatio) (schemas.ImageRef, error) {
	parts, err := buildParts([]schemas.ImageRef{base, mask}, maskedEditPrompt(instruction, ratio))
	if err != nil {
		return "", err
	}
	return g.generate(ctx, "edit_with_mask", parts)
}

// buildParts decodes the refs into inline image parts followed by the
// instruction text. Undecodable or unsupported inputs fail before any
// network traffic.
func buildParts(images []schemas.ImageRef, instruction string) ([]*genai.Part, error) {
	parts := make([]*genai.Part, 0, len(images)+1)
	for _, ref := range images {
		data, mimeType, err := ref.Decode()
		if err != nil {
			return nil, &schemas.GenerationError{Kind: schemas.KindUnsupportedInput, Message: err.Error(), Err: err}
		}
		if !supportedMIMETypes[mimeType] {
			err := fmt.Errorf("unsupported MIME type %s", mimeType)
			return nil, &schemas.GenerationError{Kind: schemas.KindUnsupportedInput, Message: err.Error(), Err: err}
		}
		parts = append(parts, genai.NewPartFromBytes(data, mimeType))
	}
	parts = append(parts, genai.NewPartFromText(instruction))
	return parts, nil
}

// generate runs one request under the rate limiter with retries and extracts
// the generated image.
func (g *Gateway) generate(ctx context.Context, op string, parts []*genai.Part) (schemas.ImageRef, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", schemas.Classify(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.retryInterval
	b.MaxElapsedTime = g.maxElapsed
	b.MaxInterval = 30 * time.Second

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	genCfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	start := time.Now()
	var out schemas.ImageRef

	operation := func() error {
		resp, err := g.models.GenerateContent(ctx, g.model, contents, genCfg)
		if err != nil {
			return g.handleAPIError(op, err)
		}

		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
			return backoff.Permanent(fmt.Errorf("request blocked by safety filters (reason: %s)", resp.PromptFeedback.BlockReason))
		}
		if len(resp.Candidates) == 0 {
			return backoff.Permanent(errors.New("service returned no candidates"))
		}

		cand := resp.Candidates[0]
		switch cand.FinishReason {
		case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonImageSafety:
			return backoff.Permanent(fmt.Errorf("generation blocked by safety filters (reason: %s)", cand.FinishReason))
		}

		img := firstInlineImage(cand)
		if img == nil {
			// The model occasionally answers with text only; that is worth
			// one more attempt before giving up.
			return fmt.Errorf("candidate contained no image part (reason: %s)", cand.FinishReason)
		}

		out = schemas.EncodeImage(img.Data, img.MIMEType)
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		ge := schemas.Classify(err)
		g.log.Warn("Generation failed",
			zap.String("op", op),
			zap.String("kind", string(ge.Kind)),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return "", ge
	}

	g.log.Info("Generation complete",
		zap.String("op", op),
		zap.String("model", g.model),
		zap.Duration("duration", time.Since(start)),
	)
	return out, nil
}

// handleAPIError splits SDK errors into retryable and permanent.
func (g *Gateway) handleAPIError(op string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429, 500, 503:
			g.log.Warn("Transient service error, retrying", zap.String("op", op), zap.Int("code", apiErr.Code))
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	// Plain transport errors are worth retrying.
	g.log.Warn("Network error during generation, retrying", zap.String("op", op), zap.Error(err))
	return err
}

// firstInlineImage finds the first inline image blob in a candidate.
func firstInlineImage(cand *genai.Candidate) *genai.Blob {
	if cand.Content == nil {
		return nil
	}
	for _, part := range cand.Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData
		}
	}
	return nil
}
