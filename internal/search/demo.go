package search

import (
	"fmt"

	"primefinder/internal/affiliate"
	"primefinder/internal/products"

	"github.com/samber/lo"
)

type demoItem struct {
	asin     string
	title    string
	image    string
	brand    string
	current  float64
	original float64
	prime    bool
	stars    float64
	reviews  int
	features []string
}

var demoItems = []demoItem{
	{
		asin:     "B08N5WRWNW",
		title:    "Apple AirPods Pro (2nd Gen) - Result for \"%s\"",
		image:    "https://m.media-amazon.com/images/I/61f1YfTkTDL._AC_SL1500_.jpg",
		brand:    "Apple",
		current:  279.0,
		original: 329.0,
		prime:    true,
		stars:    4.6,
		reviews:  23456,
		features: []string{
			"Active noise cancellation up to 2x stronger",
			"Personalized spatial audio",
			"Adaptive transparency mode",
			"Up to 6 hours of listening with ANC on",
		},
	},
	{
		asin:     "B0BSHF7WHW",
		title:    "Logitech MX Master 3S - Wireless Mouse - \"%s\"",
		image:    "https://m.media-amazon.com/images/I/61ni3t1ryQL._AC_SL1500_.jpg",
		brand:    "Logitech",
		current:  89.99,
		original: 119.99,
		prime:    true,
		stars:    4.7,
		reviews:  12890,
		features: []string{
			"8K DPI sensor",
			"Fast USB-C charging",
			"Multi-device connection",
			"Quiet scrolling",
		},
	},
	{
		asin:     "B09X6GQ8X4",
		title:    "Samsung Galaxy Buds2 Pro - \"%s\"",
		image:    "https://m.media-amazon.com/images/I/51DT7r3JnIL._AC_SL1500_.jpg",
		brand:    "Samsung",
		current:  149.0,
		prime:    true,
		stars:    4.4,
		reviews:  8934,
		features: []string{
			"Hi-Fi 24bit audio",
			"Intelligent noise cancellation",
			"IPX7 water resistant",
			"Up to 8 hours of battery",
		},
	},
	{
		asin:     "B0C1J96NT1",
		title:    "Anker PowerBank 20000mAh - Power bank for \"%s\"",
		image:    "https://m.media-amazon.com/images/I/61N1ZqC+vsL._AC_SL1500_.jpg",
		brand:    "Anker",
		current:  39.99,
		original: 59.99,
		prime:    true,
		stars:    4.5,
		reviews:  15678,
		features: []string{
			"20000mAh capacity",
			"20W fast charging",
			"Bidirectional USB-C",
			"2 output ports",
		},
	},
	{
		asin:     "B0BDJ7R4PG",
		title:    "Kindle Paperwhite (16 GB) - \"%s\"",
		image:    "https://m.media-amazon.com/images/I/51QCk82iGcL._AC_SL1000_.jpg",
		brand:    "Amazon",
		current:  119.99,
		original: 159.99,
		prime:    false,
		stars:    4.8,
		reviews:  34521,
		features: []string{
			`6.8" high resolution display`,
			"Adjustable warm light",
			"IPX8 waterproof",
			"Weeks of battery life",
		},
	},
}

// demoCatalog builds the fixed demo products with keywords in every title.
// Prices and discounts go through the same formatting as live items.
func demoCatalog(keywords, tag, marketplace string) []products.Product {
	return lo.Map(demoItems, func(d demoItem, _ int) products.Product {
		return d.product(keywords, tag, marketplace)
	})
}

func (d demoItem) product(keywords, tag, marketplace string) products.Product {
	current := d.current
	price := products.PriceInfo{
		Current:          &current,
		CurrentFormatted: products.FormatAmount(current, products.DefaultCurrencySymbol),
	}
	if d.original > 0 {
		original := d.original
		formatted := products.FormatAmount(original, products.DefaultCurrencySymbol)
		discount := products.DiscountPercent(original, current)
		price.Original = &original
		price.OriginalFormatted = &formatted
		price.DiscountPercent = &discount
	}
	return products.Product{
		ASIN:     d.asin,
		Title:    fmt.Sprintf(d.title, keywords),
		URL:      affiliate.TagURL("https://"+marketplace+"/dp/"+d.asin, tag),
		ImageURL: d.image,
		Brand:    d.brand,
		Price:    price,
		IsPrime:  d.prime,
		Rating:   products.Rating{Stars: d.stars, Count: d.reviews},
		Features: append([]string(nil), d.features...),
	}
}
