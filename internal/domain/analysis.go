package domain

import (
	"github.com/shopspring/decimal"
)

// ExtractedItem is one line item read from a receipt or cart image.
// Amounts are non-negative; the caller decides whether it is an expense or income.
type ExtractedItem struct {
	Merchant string          `json:"merchant"`
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	ItemName string          `json:"item_name"`
	Date     string          `json:"date,omitempty"` // YYYY-MM-DD, receipts only
}

// CategorySplit is the subtotal of all items sharing one category.
type CategorySplit struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Items    []string        `json:"items"`
}

// AnalysisResponse is produced once per extraction call.
type AnalysisResponse struct {
	Merchant      string           `json:"merchant"`
	Date          string           `json:"date"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	TimeCostHours *decimal.Decimal `json:"time_cost_hours,omitempty"`
	Splits        []CategorySplit  `json:"splits"`
	RawItems      []ExtractedItem  `json:"raw_items"`
}

// AnalysisKind names the extraction pipeline that produced a response.
type AnalysisKind string

const (
	AnalysisKindReceipt AnalysisKind = "receipt"
	AnalysisKindCart    AnalysisKind = "cart"
)

// Valid reports whether k is a known pipeline.
func (k AnalysisKind) Valid() bool {
	return k == AnalysisKindReceipt || k == AnalysisKindCart
}
