package pipeline

import (
	"context"

	"github.com/Harikeshav-R/Penny/internal/llm"
	"google.golang.org/genai"
)

// Extractor turns one image into schema-conforming JSON with a single model
// call. It has no storage side effects and does not retry.
type Extractor struct {
	caller StructuredCaller
}

// NewExtractor creates an extractor on top of caller.
func NewExtractor(caller StructuredCaller) *Extractor {
	return &Extractor{caller: caller}
}

// Ready reports a configuration error when the model credential is absent.
func (e *Extractor) Ready() error {
	return e.caller.Ready()
}

// Extract validates the image and asks the model for JSON matching schema.
func (e *Extractor) Extract(ctx context.Context, image []byte, instruction string, schema *genai.Schema) ([]byte, error) {
	mimeType, err := DetectImageType(image)
	if err != nil {
		return nil, err
	}

	return e.caller.GenerateJSON(ctx, llm.StructuredRequest{
		Instruction: instruction,
		Image:       image,
		MIMEType:    mimeType,
		Schema:      schema,
	})
}
