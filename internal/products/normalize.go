package products

import (
	"strings"

	"primefinder/internal/dig"
)

// NormalizeOptions carries the per-deployment settings the normalizer needs.
type NormalizeOptions struct {
	AffiliateTag   string
	CurrencySymbol string
}

// Normalize maps one Product Advertising API item onto a Product. It reports
// false when the item has no ASIN or its shape could not be read; callers
// skip those items.
func Normalize(item any, opts NormalizeOptions) (p Product, ok bool) {
	defer func() {
		if recover() != nil {
			p, ok = Product{}, false
		}
	}()

	asin := dig.String(item, "", "ASIN")
	if asin == "" {
		return Product{}, false
	}

	p = Product{
		ASIN:     asin,
		Title:    dig.String(item, DefaultTitle, "ItemInfo", "Title", "DisplayValue"),
		URL:      withAffiliateTag(dig.String(item, "", "DetailPageURL"), opts.AffiliateTag),
		ImageURL: dig.String(item, DefaultImageURL, "Images", "Primary", "Large", "URL"),
		Brand:    dig.String(item, DefaultBrand, "ItemInfo", "ByLineInfo", "Brand", "DisplayValue"),
		Price: PriceInfo{
			CurrentFormatted: NotAvailable,
		},
		Features: firstFeatures(dig.Strings(item, "ItemInfo", "Features", "DisplayValues")),
	}

	if listing, found := dig.First(item, "Offers", "Listings"); found {
		p.Price = listingPrice(listing, opts.CurrencySymbol)
		p.IsPrime = dig.Bool(listing, false, "ProgramEligibility", "IsPrimeExclusive")
	}

	p.Rating.Stars = dig.Float(item, 0, "CustomerReviews", "StarRating", "Value")
	p.Rating.Count = dig.Int(item, 0, "CustomerReviews", "Count")

	return p, true
}

// NormalizeAll normalizes items in order and returns how many were rejected.
func NormalizeAll(items []any, opts NormalizeOptions) ([]Product, int) {
	out := make([]Product, 0, len(items))
	rejected := 0
	for _, item := range items {
		p, ok := Normalize(item, opts)
		if !ok {
			rejected++
			continue
		}
		out = append(out, p)
	}
	return out, rejected
}

func listingPrice(listing any, symbol string) PriceInfo {
	price := PriceInfo{CurrentFormatted: NotAvailable}

	// a zero amount is treated as missing
	current, hasCurrent := dig.LookupFloat(listing, "Price", "Amount")
	hasCurrent = hasCurrent && current != 0
	if hasCurrent {
		price.Current = &current
		price.CurrentFormatted = dig.String(listing, FormatAmount(current, symbol), "Price", "DisplayAmount")
	}

	original, hasOriginal := dig.LookupFloat(listing, "SavingBasis", "Amount")
	if !hasOriginal || original == 0 {
		return price
	}
	formatted := dig.String(listing, FormatAmount(original, symbol), "SavingBasis", "DisplayAmount")
	price.Original = &original
	price.OriginalFormatted = &formatted
	if hasCurrent {
		d := DiscountPercent(original, current)
		price.DiscountPercent = &d
	}
	return price
}

// DiscountPercent is the percentage saved against original, truncated toward
// zero. original must be non-zero.
func DiscountPercent(original, current float64) int {
	return int((original - current) / original * 100)
}

func withAffiliateTag(url, tag string) string {
	if url == "" || tag == "" || strings.Contains(url, "tag=") {
		return url
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "tag=" + tag
}

func firstFeatures(features []string) []string {
	if len(features) > MaxFeatures {
		features = features[:MaxFeatures]
	}
	if features == nil {
		return []string{}
	}
	return features
}
