package pipeline

const (
	// DefaultMerchant is used when nothing on the image names the seller.
	DefaultMerchant = "Unknown"

	// DateLayout is the wire format of analysis dates.
	DateLayout = "2006-01-02"

	// maxItemNameLen bounds item names kept from cart screenshots.
	maxItemNameLen = 50
)

// RecommendedCategories is the vocabulary offered to the model. Categories
// stay open strings: anything the model returns is kept as-is.
var RecommendedCategories = []string{
	"Food & Drink",
	"Shopping",
	"Transport",
	"Entertainment",
	"Groceries",
	"Health",
	"Utilities",
}
