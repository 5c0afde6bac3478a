package paapi

// Response is a decoded API response. Numbers are kept as json.Number.
type Response = map[string]any

// SearchRequest is the operation-specific part of a SearchItems call.
// Partner fields are filled in by the Client.
type SearchRequest struct {
	Keywords    string   `json:"Keywords"`
	SearchIndex string   `json:"SearchIndex,omitempty"`
	ItemCount   int      `json:"ItemCount,omitempty"`
	Resources   []string `json:"Resources,omitempty"`
	// MaxPrice is in the marketplace currency's minor units (cents).
	MaxPrice *int64 `json:"MaxPrice,omitempty"`
}

// GetItemsRequest looks up items by ASIN.
type GetItemsRequest struct {
	ItemIDs   []string `json:"ItemIds"`
	Resources []string `json:"Resources,omitempty"`
}

// DefaultResources requests exactly the fields the product normalizer reads.
var DefaultResources = []string{
	"Images.Primary.Large",
	"ItemInfo.Title",
	"ItemInfo.Features",
	"ItemInfo.ByLineInfo",
	"Offers.Listings.Price",
	"Offers.Listings.SavingBasis",
	"Offers.Listings.ProgramEligibility.IsPrimeExclusive",
	"CustomerReviews.StarRating",
	"CustomerReviews.Count",
}

// MaxItemCount is the largest page SearchItems returns.
const MaxItemCount = 10

type partner struct {
	PartnerTag  string `json:"PartnerTag"`
	PartnerType string `json:"PartnerType"`
	Marketplace string `json:"Marketplace"`
}

type searchItemsBody struct {
	SearchRequest
	partner
}

type getItemsBody struct {
	GetItemsRequest
	partner
}
