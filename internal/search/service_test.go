package search

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"primefinder/internal/paapi"
	"primefinder/internal/products"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCatalog answers from canned JSON documents.
type fakeCatalog struct {
	mu          sync.Mutex
	searchJSON  string
	itemsJSON   string
	err         error
	searches    []paapi.SearchRequest
	lookups     []paapi.GetItemsRequest
	searchCalls int
}

func (f *fakeCatalog) SearchItems(_ context.Context, req paapi.SearchRequest) (paapi.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, req)
	f.searchCalls++
	if f.err != nil {
		return nil, f.err
	}
	return decodeResponse(f.searchJSON), nil
}

func (f *fakeCatalog) GetItems(_ context.Context, req paapi.GetItemsRequest) (paapi.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, req)
	if f.err != nil {
		return nil, f.err
	}
	return decodeResponse(f.itemsJSON), nil
}

func decodeResponse(raw string) paapi.Response {
	if raw == "" {
		return nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var out paapi.Response
	if err := dec.Decode(&out); err != nil {
		panic(err)
	}
	return out
}

type countingRecorder struct {
	mu       sync.Mutex
	searches map[string]int
	rejected int
	catalog  int
	lookups  map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{searches: map[string]int{}, lookups: map[string]int{}}
}

func (r *countingRecorder) SearchCompleted(mode, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searches[mode+"/"+outcome]++
}

func (r *countingRecorder) CatalogRequest(string, time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalog++
}

func (r *countingRecorder) ItemsRejected(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected += n
}

func (r *countingRecorder) CacheLookup(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups[result]++
}

const liveSearchJSON = `{"SearchResult":{"Items":[
	{"ASIN":"A1","DetailPageURL":"https://www.amazon.it/dp/A1","ItemInfo":{"Title":{"DisplayValue":"Cheap prime"}},
	 "Offers":{"Listings":[{"Price":{"Amount":19.99,"DisplayAmount":"€ 19,99"},"ProgramEligibility":{"IsPrimeExclusive":true}}]}},
	{"ItemInfo":{"Title":{"DisplayValue":"No ASIN"}}},
	{"ASIN":"A2","Offers":{"Listings":[{"Price":{"Amount":250},"SavingBasis":{"Amount":300}}]}},
	{"ASIN":"A3"}
]}}`

func liveOptions(rec Recorder) Options {
	return Options{AffiliateTag: "mytag-21", Marketplace: "www.amazon.it", Recorder: rec}
}

func ptr(v float64) *float64 { return &v }

func TestNewPicksModeOnce(t *testing.T) {
	assert.Equal(t, ModeDemo, New(Options{}, nil).Mode())
	assert.Equal(t, ModeDemo, New(Options{Demo: true}, &fakeCatalog{}).Mode())
	assert.Equal(t, ModeLive, New(Options{}, &fakeCatalog{}).Mode())
}

func TestDemoSearchMouseScenario(t *testing.T) {
	rec := newCountingRecorder()
	svc := New(Options{AffiliateTag: "demo-21", Recorder: rec}, nil)

	res := svc.Search(context.Background(), Query{Keywords: "mouse", MaxPrice: ptr(100), PrimeOnly: true, ItemCount: 10})

	require.Nil(t, res.Error)
	asins := make([]string, 0, len(res.Products))
	for _, p := range res.Products {
		asins = append(asins, p.ASIN)
		assert.True(t, p.IsPrime)
		require.NotNil(t, p.Price.Current)
		assert.LessOrEqual(t, *p.Price.Current, 100.0)
		assert.Contains(t, p.Title, `"mouse"`)
		assert.Contains(t, p.URL, "tag=demo-21")
	}
	assert.Equal(t, []string{"B0BSHF7WHW", "B0C1J96NT1"}, asins)
	assert.Equal(t, len(res.Products), res.Count)
	assert.Equal(t, 1, rec.searches["demo/ok"])
}

func TestDemoSearchTruncatesAndFilters(t *testing.T) {
	svc := New(Options{}, nil)

	res := svc.Search(context.Background(), Query{Keywords: "anything", ItemCount: 2})
	require.Nil(t, res.Error)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, "B08N5WRWNW", res.Products[0].ASIN)

	res = svc.Search(context.Background(), Query{Keywords: "anything", DiscountOnly: true})
	assert.Equal(t, 4, res.Count)
	for _, p := range res.Products {
		assert.True(t, p.HasDiscount(), p.ASIN)
	}

	res = svc.Search(context.Background(), Query{Keywords: "anything"})
	assert.Equal(t, 5, res.Count)
	kindle := res.Products[4]
	assert.False(t, kindle.IsPrime)
	assert.Equal(t, "€ 119,99", kindle.Price.CurrentFormatted)
	require.NotNil(t, kindle.Price.DiscountPercent)
	assert.Equal(t, 25, *kindle.Price.DiscountPercent)
}

func TestDemoCatalogDiscounts(t *testing.T) {
	want := map[string]*int{
		"B08N5WRWNW": intPtr(15),
		"B0BSHF7WHW": intPtr(25),
		"B09X6GQ8X4": nil,
		"B0C1J96NT1": intPtr(33),
		"B0BDJ7R4PG": intPtr(25),
	}
	for _, p := range demoCatalog("kw", "", "www.amazon.it") {
		assert.Equal(t, want[p.ASIN], p.Price.DiscountPercent, p.ASIN)
		assert.Equal(t, "https://www.amazon.it/dp/"+p.ASIN, p.URL)
		assert.LessOrEqual(t, len(p.Features), products.MaxFeatures)
	}
}

func intPtr(v int) *int { return &v }

func TestDemoGetItemIsNil(t *testing.T) {
	assert.Nil(t, New(Options{}, nil).GetItem(context.Background(), "B08N5WRWNW"))
}

func TestSearchRequiresKeywords(t *testing.T) {
	catalog := &fakeCatalog{}
	res := New(liveOptions(nil), catalog).Search(context.Background(), Query{Keywords: "   "})
	require.NotNil(t, res.Error)
	assert.Equal(t, MissingKeywordsMessage, *res.Error)
	assert.Empty(t, catalog.searches)
}

func TestLiveSearchNormalizesAndFilters(t *testing.T) {
	rec := newCountingRecorder()
	catalog := &fakeCatalog{searchJSON: liveSearchJSON}
	svc := New(liveOptions(rec), catalog)

	res := svc.Search(context.Background(), Query{Keywords: " usb hub ", MaxPrice: ptr(100), Category: "Electronics", ItemCount: 25})

	require.Nil(t, res.Error)
	require.Len(t, catalog.searches, 1)
	req := catalog.searches[0]
	assert.Equal(t, "usb hub", req.Keywords)
	assert.Equal(t, "Electronics", req.SearchIndex)
	assert.Equal(t, 10, req.ItemCount)
	require.NotNil(t, req.MaxPrice)
	assert.Equal(t, int64(10000), *req.MaxPrice)
	assert.Equal(t, paapi.DefaultResources, req.Resources)

	// A2 costs more than the ceiling, A3 has no price and passes
	asins := []string{}
	for _, p := range res.Products {
		asins = append(asins, p.ASIN)
	}
	assert.Equal(t, []string{"A1", "A3"}, asins)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, "https://www.amazon.it/dp/A1?tag=mytag-21", res.Products[0].URL)
	assert.Equal(t, 1, rec.rejected)
	assert.Equal(t, 1, rec.catalog)
	assert.Equal(t, 1, rec.searches["live/ok"])
}

func TestSearchIgnoresNonFiniteCeiling(t *testing.T) {
	catalog := &fakeCatalog{searchJSON: liveSearchJSON}
	res := New(liveOptions(nil), catalog).Search(context.Background(), Query{Keywords: "usb hub", MaxPrice: ptr(math.Inf(1))})
	require.Nil(t, res.Error)
	require.Len(t, catalog.searches, 1)
	assert.Nil(t, catalog.searches[0].MaxPrice)
	assert.Equal(t, 3, res.Count)

	uncapped := New(Options{}, nil).Search(context.Background(), Query{Keywords: "mouse"})
	res = New(Options{}, nil).Search(context.Background(), Query{Keywords: "mouse", MaxPrice: ptr(math.NaN())})
	require.Nil(t, res.Error)
	assert.Equal(t, uncapped.Products, res.Products)
}

func TestLiveSearchDefaultsCategory(t *testing.T) {
	catalog := &fakeCatalog{searchJSON: `{"SearchResult":{"Items":[]}}`}
	res := New(liveOptions(nil), catalog).Search(context.Background(), Query{Keywords: "x"})
	require.Nil(t, res.Error)
	assert.NotNil(t, res.Products)
	assert.Equal(t, 0, res.Count)
	assert.Equal(t, "All", catalog.searches[0].SearchIndex)
	assert.Nil(t, catalog.searches[0].MaxPrice)
}

func TestLiveSearchError(t *testing.T) {
	rec := newCountingRecorder()
	catalog := &fakeCatalog{err: errors.New("connection reset by peer")}
	res := New(liveOptions(rec), catalog).Search(context.Background(), Query{Keywords: "mouse"})

	require.NotNil(t, res.Error)
	assert.True(t, strings.HasPrefix(*res.Error, "API error: "))
	assert.Contains(t, *res.Error, "connection reset by peer")
	assert.Empty(t, res.Products)
	assert.Equal(t, 0, res.Count)
	assert.Equal(t, 1, rec.searches["live/error"])
}

func TestLiveSearchStatusErrorMessage(t *testing.T) {
	catalog := &fakeCatalog{err: &paapi.StatusError{Operation: "SearchItems", StatusCode: 401, Code: "InvalidSignature", Message: "bad signature"}}
	res := New(liveOptions(nil), catalog).Search(context.Background(), Query{Keywords: "mouse"})
	require.NotNil(t, res.Error)
	assert.Contains(t, *res.Error, "InvalidSignature")
}

func TestLiveSearchEmpty(t *testing.T) {
	for name, raw := range map[string]string{
		"nil response":     "",
		"empty response":   `{}`,
		"no items":         `{"SearchResult":{}}`,
		"items not a list": `{"SearchResult":{"Items":"nope"}}`,
		"null result":      `{"SearchResult":null}`,
	} {
		t.Run(name, func(t *testing.T) {
			res := New(liveOptions(nil), &fakeCatalog{searchJSON: raw}).Search(context.Background(), Query{Keywords: "zzz"})
			require.NotNil(t, res.Error)
			assert.Equal(t, NoResultsMessage, *res.Error)
			assert.Empty(t, res.Products)
			assert.Equal(t, 0, res.Count)
		})
	}
}

type panickingCatalog struct{ fakeCatalog }

func (p *panickingCatalog) SearchItems(context.Context, paapi.SearchRequest) (paapi.Response, error) {
	panic("decoder exploded")
}

func TestLiveSearchRecoversPanics(t *testing.T) {
	res := New(liveOptions(nil), &panickingCatalog{}).Search(context.Background(), Query{Keywords: "mouse"})
	require.NotNil(t, res.Error)
	assert.Contains(t, *res.Error, "decoder exploded")
}

func TestGetItem(t *testing.T) {
	catalog := &fakeCatalog{itemsJSON: `{"ItemsResult":{"Items":[{"ASIN":"B1","ItemInfo":{"Title":{"DisplayValue":"Thing"}}}]}}`}
	svc := New(liveOptions(nil), catalog)

	p := svc.GetItem(context.Background(), " B1 ")
	require.NotNil(t, p)
	assert.Equal(t, "B1", p.ASIN)
	assert.Equal(t, "Thing", p.Title)
	require.Len(t, catalog.lookups, 1)
	assert.Equal(t, []string{"B1"}, catalog.lookups[0].ItemIDs)

	assert.Nil(t, svc.GetItem(context.Background(), ""))
}

func TestGetItemMissingOrFailing(t *testing.T) {
	cases := map[string]*fakeCatalog{
		"error":       {err: errors.New("timeout")},
		"no result":   {itemsJSON: `{}`},
		"empty items": {itemsJSON: `{"ItemsResult":{"Items":[]}}`},
		"rejected":    {itemsJSON: `{"ItemsResult":{"Items":[{"ItemInfo":{}}]}}`},
	}
	for name, catalog := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, New(liveOptions(nil), catalog).GetItem(context.Background(), "B1"))
		})
	}
}
