package notionsync

import (
	"time"

	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the transactions database.
const (
	PropDescription   = "Description"
	PropTransactionID = "Transaction ID"
	PropDate          = "Date"
	PropAmount        = "Amount"
	PropCategory      = "Category"
	PropIcon          = "Icon"
)

// TransactionToNotionProperties maps a ledger transaction onto a page of the
// transactions database.
func TransactionToNotionProperties(tx domain.Transaction) notionapi.Properties {
	amount, _ := tx.Amount.Float64()

	props := notionapi.Properties{
		PropDescription:   titleProperty(tx.Merchant),
		PropTransactionID: richTextProperty(tx.ID.String()),
		PropDate:          dateProperty(tx.Date),
		PropAmount:        notionapi.NumberProperty{Number: amount},
	}
	if tx.Category != "" {
		props[PropCategory] = notionapi.SelectProperty{Select: notionapi.Option{Name: tx.Category}}
	}
	if tx.Icon != "" {
		props[PropIcon] = richTextProperty(tx.Icon)
	}
	return props
}

func titleProperty(s string) notionapi.TitleProperty {
	return notionapi.TitleProperty{
		Title: []notionapi.RichText{{Text: &notionapi.Text{Content: s}}},
	}
}

func richTextProperty(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: s}}},
	}
}

func dateProperty(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(t.UTC())
	return notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}}
}

// extractTransactionID reads the ledger id back from a queried page. Pages
// decoded from the API carry pointer properties.
func extractTransactionID(page notionapi.Page) string {
	prop, ok := page.Properties[PropTransactionID]
	if !ok {
		return ""
	}

	var parts []notionapi.RichText
	switch p := prop.(type) {
	case *notionapi.RichTextProperty:
		parts = p.RichText
	case notionapi.RichTextProperty:
		parts = p.RichText
	default:
		return ""
	}

	var id string
	for _, rt := range parts {
		if rt.PlainText != "" {
			id += rt.PlainText
		} else if rt.Text != nil {
			id += rt.Text.Content
		}
	}
	return id
}
