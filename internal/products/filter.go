package products

import "github.com/samber/lo"

// Filters narrows a result list. The zero value keeps everything.
type Filters struct {
	MaxPrice     *float64
	PrimeOnly    bool
	DiscountOnly bool
}

// Keep reports whether p passes every filter. A product with no known
// current price always passes the price ceiling.
func (f Filters) Keep(p Product) bool {
	if f.MaxPrice != nil && *f.MaxPrice > 0 && p.Price.Current != nil && *p.Price.Current > *f.MaxPrice {
		return false
	}
	if f.PrimeOnly && !p.IsPrime {
		return false
	}
	if f.DiscountOnly && !p.HasDiscount() {
		return false
	}
	return true
}

// Filter returns the products that pass f, in their original order.
func Filter(products []Product, f Filters) []Product {
	return lo.Filter(products, func(p Product, _ int) bool {
		return f.Keep(p)
	})
}
