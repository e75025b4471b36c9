package pipeline

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/Harikeshav-R/Penny/internal/domain"
)

// Accepted image content types.
const (
	MIMETypeJPEG = "image/jpeg"
	MIMETypePNG  = "image/png"
)

// DetectImageType sniffs the image content and accepts JPEG and PNG only.
func DetectImageType(image []byte) (string, error) {
	if len(image) == 0 {
		return "", domain.NewValidationError("image is empty")
	}

	switch mime := http.DetectContentType(image); mime {
	case MIMETypeJPEG, MIMETypePNG:
		return mime, nil
	default:
		return "", domain.NewValidationError("unsupported image type " + mime + ": expected JPEG or PNG")
	}
}

// normalizeItems trims surrounding whitespace from the text fields and caps
// item names at maxNameLen runes when maxNameLen > 0. Categories keep their
// case so grouping stays exact.
func normalizeItems(items []domain.ExtractedItem, maxNameLen int) []domain.ExtractedItem {
	out := make([]domain.ExtractedItem, len(items))
	for i, item := range items {
		item.Merchant = strings.TrimSpace(item.Merchant)
		item.Category = strings.TrimSpace(item.Category)
		item.ItemName = strings.TrimSpace(item.ItemName)
		item.Date = strings.TrimSpace(item.Date)
		if maxNameLen > 0 && utf8.RuneCountInString(item.ItemName) > maxNameLen {
			item.ItemName = string([]rune(item.ItemName)[:maxNameLen])
		}
		out[i] = item
	}
	return out
}
