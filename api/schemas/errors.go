// File: api/schemas/errors.go
// Description: The user-facing error taxonomy for generation failures. The
// history engine never inspects raw service errors; classification happens
// once at the gateway boundary and the session stores the result.

package schemas

import (
	"errors"
	"strings"
)

// GenerationErrorKind buckets raw service failures into the categories the UI
// can phrase a useful message for.
type GenerationErrorKind string

const (
	// KindContentPolicy means the request or its result was blocked by the
	// service's safety filters.
	KindContentPolicy GenerationErrorKind = "content_policy"
	// KindUnsupportedInput means the service rejected the image format.
	KindUnsupportedInput GenerationErrorKind = "unsupported_input"
	// KindNoResult means the call completed but produced no usable image.
	KindNoResult GenerationErrorKind = "no_result"
	// KindService covers transport failures and everything else.
	KindService GenerationErrorKind = "service"
)

// GenerationError wraps a raw gateway failure with its classified kind.
type GenerationError struct {
	Kind    GenerationErrorKind
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Friendly returns the message shown to the user for this failure.
func (e *GenerationError) Friendly() string {
	switch e.Kind {
	case KindContentPolicy:
		return "The request was blocked by the image service's content policy. Try a different photo or instruction."
	case KindUnsupportedInput:
		return "That image format isn't supported. Use a PNG, JPEG or WebP photo."
	case KindNoResult:
		return "The image service didn't return a picture for this request. Try again or adjust the instruction."
	default:
		return "The image service failed. Check your connection and try again."
	}
}

// classifier rules, checked in order; the first match wins.
var classifierRules = []struct {
	kind      GenerationErrorKind
	fragments []string
}{
	{KindContentPolicy, []string{"safety", "blocked", "prohibited", "content policy", "blocklist"}},
	{KindUnsupportedInput, []string{"unsupported mime", "unsupported image", "invalid image", "mime type", "could not decode image"}},
	{KindNoResult, []string{"no image", "no candidates", "empty content", "returned no usable"}},
}

// Classify maps any error to a GenerationError using substring heuristics on
// the raw message. An error that is already a *GenerationError passes through
// unchanged.
func Classify(err error) *GenerationError {
	if err == nil {
		return nil
	}
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge
	}
	msg := strings.ToLower(err.Error())
	for _, rule := range classifierRules {
		for _, frag := range rule.fragments {
			if strings.Contains(msg, frag) {
				return &GenerationError{Kind: rule.kind, Message: err.Error(), Err: err}
			}
		}
	}
	return &GenerationError{Kind: KindService, Message: err.Error(), Err: err}
}
