package pipeline

import (
	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/shopspring/decimal"
)

// receiptOutput mirrors ReceiptSchema.
type receiptOutput struct {
	Items []domain.ExtractedItem `json:"items"`
}

// cartOutput mirrors CartSchema.
type cartOutput struct {
	Items       []domain.ExtractedItem `json:"items"`
	TotalAmount *decimal.Decimal       `json:"total_amount"`
	Merchant    *string                `json:"merchant"`
}

// extraction is the decoded model output shared by both pipelines.
type extraction struct {
	Items []domain.ExtractedItem

	// Cart only.
	ReportedMerchant string
	ReportedTotal    *decimal.Decimal
}
