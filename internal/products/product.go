package products

// Product is a catalog entry normalized for display. Every Product carries a
// non-empty ASIN.
type Product struct {
	ASIN     string    `json:"asin"`
	Title    string    `json:"title"`
	URL      string    `json:"url"`
	ImageURL string    `json:"image_url"`
	Brand    string    `json:"brand"`
	Price    PriceInfo `json:"price"`
	IsPrime  bool      `json:"is_prime"`
	Rating   Rating    `json:"rating"`
	Features []string  `json:"features"`
}

// PriceInfo holds the current price and, when the listing has a saving
// basis, the original price and the derived discount.
type PriceInfo struct {
	Current           *float64 `json:"current"`
	CurrentFormatted  string   `json:"current_formatted"`
	Original          *float64 `json:"original"`
	OriginalFormatted *string  `json:"original_formatted"`
	DiscountPercent   *int     `json:"discount_percent"`
}

type Rating struct {
	Stars float64 `json:"stars"`
	Count int     `json:"count"`
}

// HasDiscount reports whether the product carries a non-zero discount.
func (p Product) HasDiscount() bool {
	return p.Price.DiscountPercent != nil && *p.Price.DiscountPercent != 0
}

const (
	DefaultTitle    = "Title not available"
	DefaultImageURL = "/static/images/placeholder.png"
	DefaultBrand    = "Unknown"
	NotAvailable    = "not available"
	MaxFeatures     = 5
)
