package pipeline

import "strings"

func categoryList() string {
	return strings.Join(RecommendedCategories, ", ")
}

// buildReceiptPrompt returns the instruction sent with a receipt photo.
func buildReceiptPrompt() string {
	var b strings.Builder
	b.WriteString("Analyze this receipt image. Extract all purchased items.\n\n")
	b.WriteString("For each item, identify:\n")
	b.WriteString("- merchant: the merchant name (usually at the top).\n")
	b.WriteString("- item_name: the name of the item.\n")
	b.WriteString("- amount: the price as a non-negative number.\n")
	b.WriteString("- date: the date of the receipt (format YYYY-MM-DD). If not visible, use today's date.\n")
	b.WriteString("- category: one of " + categoryList() + ".\n\n")
	b.WriteString("Do not include tax or subtotal lines as separate items.\n")
	b.WriteString("If multiple items are from the same merchant, list them as separate entries with the same merchant name.\n")
	b.WriteString("If the image contains no purchasable items, return an empty items list.\n")
	return b.String()
}

// buildCartPrompt returns the instruction sent with a cart screenshot.
func buildCartPrompt() string {
	var b strings.Builder
	b.WriteString("Analyze this shopping cart screenshot. Extract items being purchased.\n\n")
	b.WriteString("For each item provide:\n")
	b.WriteString("- merchant: the store name (Amazon, Target, Walmart, etc.)\n")
	b.WriteString("- item_name: short item description (max 50 chars)\n")
	b.WriteString("- amount: price in dollars as a number\n")
	b.WriteString("- category: one of " + categoryList() + "\n\n")
	b.WriteString("Also provide:\n")
	b.WriteString("- total_amount: the cart total shown\n")
	b.WriteString("- merchant: the store name\n\n")
	b.WriteString("Keep item names short. Only include actual products, not taxes or fees.\n")
	return b.String()
}
