package pipeline

import "google.golang.org/genai"

var zeroAmount = 0.0

func itemSchema(withDate bool) *genai.Schema {
	s := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"merchant":  {Type: genai.TypeString, Description: "The name of the store or merchant"},
			"category":  {Type: genai.TypeString, Description: "Spending category of the item"},
			"amount":    {Type: genai.TypeNumber, Minimum: &zeroAmount, Description: "The price of the item"},
			"item_name": {Type: genai.TypeString, Description: "The name of the item purchased"},
		},
		Required:         []string{"merchant", "category", "amount", "item_name"},
		PropertyOrdering: []string{"merchant", "item_name", "amount", "category"},
	}
	if withDate {
		s.Properties["date"] = &genai.Schema{Type: genai.TypeString, Description: "Purchase date in YYYY-MM-DD format"}
		s.Required = append(s.Required, "date")
		s.PropertyOrdering = append(s.PropertyOrdering, "date")
	}
	return s
}

// ReceiptSchema is the response schema for receipt photos.
func ReceiptSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"items": {Type: genai.TypeArray, Items: itemSchema(true)},
		},
		Required: []string{"items"},
	}
}

// CartSchema is the response schema for shopping cart screenshots. The cart
// total and merchant are reported alongside the items.
func CartSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"items":        {Type: genai.TypeArray, Items: itemSchema(false)},
			"total_amount": {Type: genai.TypeNumber, Minimum: &zeroAmount, Description: "The total cart amount shown on the page"},
			"merchant":     {Type: genai.TypeString, Description: "The primary merchant or store name"},
		},
		Required:         []string{"items"},
		PropertyOrdering: []string{"merchant", "items", "total_amount"},
	}
}
