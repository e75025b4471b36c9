package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Harikeshav-R/Penny/internal/domain"
)

// decodeExtraction converts validated model JSON into an extraction.
// Decoding problems are transient: the model may answer correctly next time.
func decodeExtraction(kind domain.AnalysisKind, raw []byte) (*extraction, error) {
	var ext extraction

	switch kind {
	case domain.AnalysisKindReceipt:
		var out receiptOutput
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, domain.NewTransientModelError("decodeExtraction: unmarshal receipt output", err)
		}
		ext.Items = normalizeItems(out.Items, 0)

	case domain.AnalysisKindCart:
		var out cartOutput
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, domain.NewTransientModelError("decodeExtraction: unmarshal cart output", err)
		}
		ext.Items = normalizeItems(out.Items, maxItemNameLen)
		if out.Merchant != nil {
			ext.ReportedMerchant = strings.TrimSpace(*out.Merchant)
		}
		if out.TotalAmount != nil {
			if out.TotalAmount.IsNegative() {
				return nil, domain.NewTransientModelError(fmt.Sprintf("decodeExtraction: negative cart total %s", out.TotalAmount), nil)
			}
			ext.ReportedTotal = out.TotalAmount
		}

	default:
		return nil, domain.NewValidationError(fmt.Sprintf("unknown analysis kind %q", kind))
	}

	for i, item := range ext.Items {
		if item.Amount.IsNegative() {
			return nil, domain.NewTransientModelError(fmt.Sprintf("decodeExtraction: item %d has negative amount %s", i, item.Amount), nil)
		}
	}
	if ext.Items == nil {
		ext.Items = []domain.ExtractedItem{}
	}

	return &ext, nil
}
