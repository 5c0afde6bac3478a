package search

import (
	"math"
	"strings"

	"primefinder/internal/paapi"
	"primefinder/internal/products"

	"github.com/shopspring/decimal"
)

// DefaultCategory searches every index.
const DefaultCategory = "All"

// Query is one search request from a caller.
type Query struct {
	Keywords     string   `json:"keywords"`
	MaxPrice     *float64 `json:"max_price,omitempty"`
	Category     string   `json:"category"`
	ItemCount    int      `json:"item_count"`
	PrimeOnly    bool     `json:"prime_only"`
	DiscountOnly bool     `json:"discount_only"`
}

// Normalize trims keywords, defaults the category and clamps ItemCount to
// [1, 10]. A zero ItemCount means the maximum. A MaxPrice that is not a
// positive finite number is dropped.
func (q Query) Normalize() Query {
	q.Keywords = strings.TrimSpace(q.Keywords)
	q.Category = strings.TrimSpace(q.Category)
	if q.Category == "" {
		q.Category = DefaultCategory
	}
	switch {
	case q.ItemCount == 0:
		q.ItemCount = paapi.MaxItemCount
	case q.ItemCount < 1:
		q.ItemCount = 1
	case q.ItemCount > paapi.MaxItemCount:
		q.ItemCount = paapi.MaxItemCount
	}
	if q.MaxPrice != nil && (!finite(*q.MaxPrice) || *q.MaxPrice <= 0) {
		q.MaxPrice = nil
	}
	return q
}

func (q Query) Filters() products.Filters {
	return products.Filters{
		MaxPrice:     q.MaxPrice,
		PrimeOnly:    q.PrimeOnly,
		DiscountOnly: q.DiscountOnly,
	}
}

// MinorUnits converts a price to integer cents, truncating sub-cent digits.
// NaN and infinities yield 0.
func MinorUnits(price float64) int64 {
	if !finite(price) {
		return 0
	}
	return decimal.NewFromFloat(price).Shift(2).IntPart()
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Result is the envelope every search returns. Error is set only when the
// search failed, in which case Products is empty.
type Result struct {
	Products []products.Product `json:"products"`
	Count    int                `json:"count"`
	Error    *string            `json:"error"`
}

func okResult(ps []products.Product) Result {
	if ps == nil {
		ps = []products.Product{}
	}
	return Result{Products: ps, Count: len(ps)}
}

func errorResult(msg string) Result {
	return Result{Products: []products.Product{}, Count: 0, Error: &msg}
}

// Failed reports whether the search ended in an error.
func (r Result) Failed() bool {
	return r.Error != nil
}
