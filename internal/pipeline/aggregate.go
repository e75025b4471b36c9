package pipeline

import (
	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/shopspring/decimal"
)

// Aggregate groups items by their exact category string. Splits appear in
// first-seen category order and keep item names in input order. Sums are
// exact and rounded to cents once, after all items are added.
func Aggregate(items []domain.ExtractedItem) []domain.CategorySplit {
	splits := make([]domain.CategorySplit, 0)
	index := make(map[string]int)

	for _, item := range items {
		i, ok := index[item.Category]
		if !ok {
			i = len(splits)
			index[item.Category] = i
			splits = append(splits, domain.CategorySplit{
				Category: item.Category,
				Amount:   decimal.Zero,
				Items:    []string{},
			})
		}
		splits[i].Amount = splits[i].Amount.Add(item.Amount)
		splits[i].Items = append(splits[i].Items, item.ItemName)
	}

	for i := range splits {
		splits[i].Amount = splits[i].Amount.Round(2)
	}
	return splits
}

// sumItems returns the unrounded sum of item amounts.
func sumItems(items []domain.ExtractedItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount)
	}
	return total
}
