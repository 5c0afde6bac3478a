package config

// Category is a Product Advertising API search index offered in the UI.
type Category struct {
	Index string
	Label string
}

// Categories lists the supported search indexes in display order.
var Categories = []Category{
	{Index: "All", Label: "All categories"},
	{Index: "Electronics", Label: "Electronics"},
	{Index: "Computers", Label: "Computers"},
	{Index: "VideoGames", Label: "Video games"},
	{Index: "OfficeProducts", Label: "Office"},
	{Index: "Furniture", Label: "Furniture"},
	{Index: "HomeAndKitchen", Label: "Home and kitchen"},
	{Index: "Sports", Label: "Sports"},
	{Index: "ToysAndGames", Label: "Toys and games"},
}

func IsCategory(index string) bool {
	for _, c := range Categories {
		if c.Index == index {
			return true
		}
	}
	return false
}
