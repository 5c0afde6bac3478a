package sitemap

import (
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"primefinder/internal/config"
)

func TestHandleSitemapListsPublicPages(t *testing.T) {
	server := New("https://deals.example.com/")
	rr := httptest.NewRecorder()
	server.handleSitemap(rr, httptest.NewRequest(http.MethodGet, "/sitemap.xml", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); !strings.Contains(got, "application/xml") {
		t.Fatalf("expected XML content type, got %q", got)
	}

	var parsed urlSet
	if err := xml.Unmarshal(rr.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("failed to parse sitemap: %v", err)
	}
	// home, about and every category except All
	if want := 2 + len(config.Categories) - 1; len(parsed.URLs) != want {
		t.Fatalf("expected %d urls, got %d", want, len(parsed.URLs))
	}
	if parsed.URLs[0].Loc != "https://deals.example.com/" {
		t.Fatalf("unexpected first url %q", parsed.URLs[0].Loc)
	}
	for _, u := range parsed.URLs {
		if strings.Contains(u.Loc, "/go/") || strings.Contains(u.Loc, "/api/") {
			t.Fatalf("sitemap must not list %q", u.Loc)
		}
	}
	if !strings.Contains(rr.Body.String(), "/search?category=HomeAndKitchen&amp;keywords=home+and+kitchen") {
		t.Fatalf("expected escaped category url in %s", rr.Body.String())
	}
}

func TestHandleRobots(t *testing.T) {
	mux := http.NewServeMux()
	New("https://deals.example.com").Register(mux)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/robots.txt", nil))

	body := rr.Body.String()
	for _, want := range []string{"Disallow: /go/", "Disallow: /api/", "Sitemap: https://deals.example.com/sitemap.xml"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in robots.txt:\n%s", want, body)
		}
	}
}
