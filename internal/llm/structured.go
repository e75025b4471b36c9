package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/Harikeshav-R/Penny/internal/domain"
	"google.golang.org/genai"
)

// StructuredRequest asks the model for JSON conforming to Schema.
type StructuredRequest struct {
	Instruction string
	Image       []byte
	MIMEType    string
	Schema      *genai.Schema
}

// GenerateJSON sends the instruction and image to the model and returns the
// raw JSON after checking it against the request schema. Any failure after
// the credential check is a transient model error.
func (c *Client) GenerateJSON(ctx context.Context, req StructuredRequest) ([]byte, error) {
	if req.Schema == nil {
		return nil, domain.NewValidationError("GenerateJSON: schema is required")
	}

	client, err := c.genai(ctx)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{{Text: req.Instruction}}
	if len(req.Image) > 0 {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: req.MIMEType,
				Data:     req.Image,
			},
		})
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	temperature := float32(0.1)
	resp, err := client.Models.GenerateContent(ctx, c.cfg.Model, contents, &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
		ResponseSchema:   req.Schema,
	})
	if err != nil {
		return nil, domain.NewTransientModelError("GenerateJSON: generate content", err)
	}

	return decodeStructured(resp.Text(), req.Schema)
}

// decodeStructured cleans a model reply and validates it against schema.
func decodeStructured(rawText string, schema *genai.Schema) ([]byte, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, domain.NewTransientModelError("GenerateJSON: empty response from model", nil)
	}

	clean := cleanModelJSON(rawText)
	if err := ValidateJSONAgainstSchema(JSONSchema(schema), []byte(clean)); err != nil {
		return nil, domain.NewTransientModelError(fmt.Sprintf("GenerateJSON: malformed model output: %.200s", rawText), err)
	}
	return []byte(clean), nil
}

// cleanModelJSON strips Markdown fences and any text around the outermost
// JSON object or array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	first, last := "{", "}"
	if oi, ai := strings.Index(s, "{"), strings.Index(s, "["); ai != -1 && (oi == -1 || ai < oi) {
		first, last = "[", "]"
	}
	if start := strings.Index(s, first); start != -1 {
		if end := strings.LastIndex(s, last); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
