package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"primefinder/internal/cache"
	"primefinder/internal/config"
	"primefinder/internal/metrics"
	"primefinder/internal/search"

	"golang.org/x/net/html"
)

func newTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	reg := metrics.NewRegistry()
	searcher, store, err := newSearcher(cfg, reg)
	if err != nil {
		t.Fatalf("failed to create searcher: %v", err)
	}
	handler, err := newServerHandler(cfg, searcher, store, reg)
	if err != nil {
		t.Fatalf("failed to create handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func demoConfig() *config.Config {
	return &config.Config{
		Catalog: config.CatalogConfig{AssociateTag: "demo-21", Marketplace: "www.amazon.it", CurrencySymbol: "€"},
		Cache:   config.CacheConfig{Backend: "memory", TTL: time.Minute},
		Mocks:   config.MockConfig{Enable: true},
	}
}

func newTestClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
}

func TestWebEndToEndDemo(t *testing.T) {
	srv := newTestServer(t, demoConfig())
	client := newTestClient()

	resp := mustGet(t, client, srv.URL+"/ready")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected /ready to return 200 OK, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	for _, path := range []string{"/", "/about", "/search?keywords=mouse&max_price=100&prime_only=true"} {
		resp := mustGet(t, client, srv.URL+path)
		body := readAll(t, resp.Body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: status %d", path, resp.StatusCode)
		}
		requireValidHTML(t, path, resp.Header.Get("Content-Type"), body)
		if resp.Header.Get(requestIDHeader) == "" {
			t.Fatalf("GET %s: missing request id header", path)
		}
	}

	resp = mustGet(t, client, srv.URL+"/search?keywords=mouse&max_price=100&prime_only=true")
	doc, err := html.Parse(strings.NewReader(readAll(t, resp.Body)))
	if err != nil {
		t.Fatalf("parse results: %v", err)
	}
	asins := collectAttr(doc, "article", "data-asin")
	if strings.Join(asins, ",") != "B0BSHF7WHW,B0C1J96NT1" {
		t.Fatalf("unexpected result cards: %v", asins)
	}

	var api struct {
		Success  bool `json:"success"`
		Count    int  `json:"count"`
		Products []struct {
			ASIN string `json:"asin"`
			URL  string `json:"url"`
		} `json:"products"`
	}
	resp = mustGet(t, client, srv.URL+"/api/search?keywords=mouse&max_price=100&prime_only=true")
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		t.Fatalf("decode api search: %v", err)
	}
	_ = resp.Body.Close()
	if !api.Success || api.Count != 2 || len(api.Products) != 2 {
		t.Fatalf("unexpected api search: %+v", api)
	}
	if !strings.Contains(api.Products[0].URL, "tag=demo-21") {
		t.Fatalf("expected affiliate tag in %q", api.Products[0].URL)
	}

	resp = mustGet(t, client, srv.URL+"/go/B0BSHF7WHW")
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusFound || !strings.Contains(resp.Header.Get("Location"), "tag=demo-21") {
		t.Fatalf("unexpected redirect: %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp = mustGet(t, client, srv.URL+"/missing")
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	if robots := readAll(t, mustGet(t, client, srv.URL+"/robots.txt").Body); !strings.Contains(robots, "Disallow: /go/") {
		t.Fatalf("unexpected robots.txt: %s", robots)
	}

	metricsBody := readAll(t, mustGet(t, client, srv.URL+"/metrics").Body)
	for _, want := range []string{
		`primefinder_searches_total{mode="demo",outcome="ok"} 3`,
		"http_request_duration_seconds",
		`handler="GET /go/{asin}"`,
	} {
		if !strings.Contains(metricsBody, want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
	if strings.Contains(metricsBody, `handler="/go/B0BSHF7WHW"`) {
		t.Fatal("expected HTTP metrics labelled by route, not raw path")
	}
}

// fakeCatalogAPI answers SearchItems with one item and counts calls.
func fakeCatalogAPI(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") == "" {
			t.Errorf("unsigned request to %s", r.URL.Path)
		}
		switch r.URL.Path {
		case "/paapi5/searchitems":
			_, _ = w.Write([]byte(`{"SearchResult":{"Items":[
				{"ASIN":"B0TEST0001","DetailPageURL":"https://www.amazon.it/dp/B0TEST0001",
				 "ItemInfo":{"Title":{"DisplayValue":"Test Hub"},"ByLineInfo":{"Brand":{"DisplayValue":"Acme"}}},
				 "Offers":{"Listings":[{"Price":{"Amount":25,"DisplayAmount":"€ 25,00"},"SavingBasis":{"Amount":50},
				   "ProgramEligibility":{"IsPrimeExclusive":true}}]}},
				{"ItemInfo":{"Title":{"DisplayValue":"missing asin"}}}
			]}}`))
		case "/paapi5/getitems":
			_, _ = w.Write([]byte(`{"ItemsResult":{"Items":[{"ASIN":"B0TEST0001","ItemInfo":{"Title":{"DisplayValue":"Test Hub"}}}]}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebEndToEndLiveWithCache(t *testing.T) {
	var calls atomic.Int32
	api := fakeCatalogAPI(t, &calls)

	cfg := demoConfig()
	cfg.Mocks.Enable = false
	cfg.Catalog.AccessKey = "AKIDEXAMPLE"
	cfg.Catalog.SecretKey = "secret"
	cfg.Catalog.AssociateTag = "live-21"
	cfg.Catalog.BaseURL = api.URL
	cfg.Catalog.HTTPClient = api.Client()
	srv := newTestServer(t, cfg)
	client := newTestClient()

	for range 2 {
		resp := mustGet(t, client, srv.URL+"/api/search?keywords=usb+hub&discount_only=true")
		var body map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK || body["count"] != float64(1) {
			t.Fatalf("unexpected live search: %d %v", resp.StatusCode, body)
		}
		product := body["products"].([]any)[0].(map[string]any)
		if product["url"] != "https://www.amazon.it/dp/B0TEST0001?tag=live-21" {
			t.Fatalf("unexpected product url %v", product["url"])
		}
		price := product["price"].(map[string]any)
		if price["discount_percent"] != float64(50) {
			t.Fatalf("unexpected discount %v", price["discount_percent"])
		}
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected second search to be served from cache, got %d upstream calls", got)
	}

	resp := mustGet(t, client, srv.URL+"/api/items/B0TEST0001")
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected item lookup to succeed, got %d", resp.StatusCode)
	}

	metricsBody := readAll(t, mustGet(t, client, srv.URL+"/metrics").Body)
	for _, want := range []string{
		`primefinder_cache_lookups_total{result="hit"} 1`,
		`primefinder_items_rejected_total 1`,
		`primefinder_searches_total{mode="live",outcome="ok"} 1`,
	} {
		if !strings.Contains(metricsBody, want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, metricsBody)
		}
	}
}

type flakyCache struct {
	cache.Cache
	failures atomic.Int32
}

func (f *flakyCache) Ready(context.Context) error {
	if f.failures.Add(-1) >= 0 {
		return errors.New("warming up")
	}
	return nil
}

func TestReadyOnce(t *testing.T) {
	fc := &flakyCache{Cache: cache.NewInMemoryCache()}
	fc.failures.Store(1)
	ro := &readyOnce{}
	ro.Add("cache", fc)

	rr := httptest.NewRecorder()
	ro.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusServiceUnavailable || !strings.Contains(rr.Body.String(), "cache: warming up") {
		t.Fatalf("expected 503 while warming up, got %d %q", rr.Code, rr.Body.String())
	}

	for range 2 {
		rr = httptest.NewRecorder()
		ro.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200 once ready, got %d", rr.Code)
		}
	}
	if got := fc.failures.Load(); got != -1 {
		t.Fatalf("expected checks to stop after first success, counter %d", got)
	}
}

func TestMiddlewareRecoversAndTagsRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	h := WithMiddleware(mux, metrics.NewRegistry())

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", rr.Code)
	}
	if got := rr.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("expected incoming request id to be kept, got %q", got)
	}
}

func TestNewSearcherModes(t *testing.T) {
	searcher, store, err := newSearcher(demoConfig(), nil)
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}
	if searcher.Mode() != search.ModeDemo || store == nil {
		t.Fatalf("expected cached demo searcher, got %s %v", searcher.Mode(), store)
	}

	cfg := demoConfig()
	cfg.Cache.Backend = "none"
	cfg.Mocks.Enable = false
	cfg.Catalog.AccessKey = "a"
	cfg.Catalog.SecretKey = "s"
	searcher, store, err = newSearcher(cfg, nil)
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}
	if searcher.Mode() != search.ModeLive || store != nil {
		t.Fatalf("expected uncached live searcher, got %s %v", searcher.Mode(), store)
	}

	cfg.Catalog.AssociateTag = ""
	if _, _, err := newSearcher(cfg, nil); err == nil {
		t.Fatal("expected error without associate tag")
	}
}

func mustGet(t *testing.T, client *http.Client, url string) *http.Response {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	return resp
}

func readAll(t *testing.T, r io.ReadCloser) string {
	t.Helper()
	defer func() { _ = r.Close() }()
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

func requireValidHTML(t *testing.T, url, contentType, body string) {
	t.Helper()
	if strings.TrimSpace(body) == "" {
		t.Fatalf("GET %s returned empty body", url)
	}
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "text/html") {
		t.Fatalf("GET %s expected HTML content-type, got %q", url, contentType)
	}
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		t.Fatalf("GET %s returned invalid HTML: %v", url, err)
	}
	if !hasElement(doc, "main") {
		t.Fatalf("GET %s expected a main element", url)
	}
}

func hasElement(n *html.Node, name string) bool {
	if n.Type == html.ElementNode && n.Data == name {
		return true
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if hasElement(child, name) {
			return true
		}
	}
	return false
}

// collectAttr returns attr from every element named tag, in document order.
func collectAttr(n *html.Node, tag, attr string) []string {
	var out []string
	if n.Type == html.ElementNode && n.Data == tag {
		for _, a := range n.Attr {
			if a.Key == attr {
				out = append(out, a.Val)
			}
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		out = append(out, collectAttr(child, tag, attr)...)
	}
	return out
}
