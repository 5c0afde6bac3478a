// Package affiliate builds and rewrites Amazon associate links.
package affiliate

import (
	"net/url"
	"strings"
)

// DefaultMarketplace is the storefront links point at when none is given.
const DefaultMarketplace = "www.amazon.it"

var amazonDomains = []string{
	"amazon.it",
	"amazon.com",
	"amazon.co.uk",
	"amazon.de",
	"amazon.fr",
	"amazon.es",
	"amzn.to",
	"amzn.eu",
}

// GenerateLink returns the product detail link for asin credited to tag.
// It returns "" when asin or tag is empty.
func GenerateLink(asin, tag, marketplace string) string {
	if asin == "" || tag == "" {
		return ""
	}
	if marketplace == "" {
		marketplace = DefaultMarketplace
	}
	params := url.Values{}
	params.Set("tag", tag)
	params.Set("linkCode", "ll1")
	params.Set("creative", "9325")
	params.Set("creativeASIN", asin)
	return "https://" + marketplace + "/dp/" + url.PathEscape(asin) + "?" + params.Encode()
}

// TagURL sets the tag query parameter on raw, replacing any existing value.
// Unparseable urls are returned unchanged.
func TagURL(raw, tag string) string {
	if raw == "" || tag == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set("tag", tag)
	u.RawQuery = q.Encode()
	return u.String()
}

// ExtractASIN finds the ASIN in a product url: the path segment after "dp"
// or "product", else the asin query parameter.
func ExtractASIN(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	parts := strings.Split(u.Path, "/")
	for _, marker := range []string{"dp", "product"} {
		for i, part := range parts {
			if part == marker && i+1 < len(parts) && parts[i+1] != "" {
				return parts[i+1], true
			}
		}
	}
	if asin := u.Query().Get("asin"); asin != "" {
		return asin, true
	}
	return "", false
}

// IsAmazonURL reports whether raw points at a known Amazon storefront or
// short-link host.
func IsAmazonURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Host)
	if host == "" {
		return false
	}
	for _, domain := range amazonDomains {
		if strings.Contains(host, domain) {
			return true
		}
	}
	return false
}
