// Package search runs product searches against the catalog API, or against a
// built-in demo catalog when no credentials are configured.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"primefinder/internal/dig"
	"primefinder/internal/paapi"
	"primefinder/internal/products"
)

type Mode string

const (
	ModeLive Mode = "live"
	ModeDemo Mode = "demo"
)

const (
	NoResultsMessage       = "no results found"
	MissingKeywordsMessage = "keywords are required"
	apiErrorPrefix         = "API error: "

	outcomeOK    = "ok"
	outcomeError = "error"
)

// CatalogAPI is the remote product catalog. *paapi.Client implements it.
type CatalogAPI interface {
	SearchItems(ctx context.Context, req paapi.SearchRequest) (paapi.Response, error)
	GetItems(ctx context.Context, req paapi.GetItemsRequest) (paapi.Response, error)
}

// Recorder receives search metrics. *metrics.Registry implements it.
type Recorder interface {
	SearchCompleted(mode, outcome string)
	CatalogRequest(operation string, d time.Duration, err error)
	ItemsRejected(n int)
	CacheLookup(result string)
}

// Searcher is what the HTTP layer and CLI consume.
type Searcher interface {
	Mode() Mode
	Search(ctx context.Context, q Query) Result
	GetItem(ctx context.Context, asin string) *products.Product
}

type Options struct {
	// Demo forces the demo catalog even when a CatalogAPI is supplied.
	Demo           bool
	AffiliateTag   string
	Marketplace    string
	CurrencySymbol string
	Recorder       Recorder
}

// Service is safe for concurrent use; it holds only configuration fixed in New.
type Service struct {
	api         CatalogAPI
	mode        Mode
	tag         string
	marketplace string
	normalize   products.NormalizeOptions
	recorder    Recorder
}

var _ Searcher = (*Service)(nil)

// New picks the mode once: demo when opts.Demo is set or api is nil.
func New(opts Options, api CatalogAPI) *Service {
	mode := ModeLive
	if opts.Demo || api == nil {
		mode = ModeDemo
		api = nil
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	marketplace := opts.Marketplace
	if marketplace == "" {
		marketplace = "www.amazon.it"
	}
	return &Service{
		api:         api,
		mode:        mode,
		tag:         opts.AffiliateTag,
		marketplace: marketplace,
		normalize: products.NormalizeOptions{
			AffiliateTag:   opts.AffiliateTag,
			CurrencySymbol: opts.CurrencySymbol,
		},
		recorder: recorder,
	}
}

func (s *Service) Mode() Mode {
	return s.mode
}

// Search never returns an error; failures are reported in Result.Error.
func (s *Service) Search(ctx context.Context, q Query) (res Result) {
	q = q.Normalize()
	defer func() {
		outcome := outcomeOK
		if res.Failed() {
			outcome = outcomeError
		}
		s.recorder.SearchCompleted(string(s.mode), outcome)
	}()

	if q.Keywords == "" {
		return errorResult(MissingKeywordsMessage)
	}
	if s.mode == ModeDemo {
		return s.demoSearch(q)
	}
	return s.liveSearch(ctx, q)
}

func (s *Service) demoSearch(q Query) Result {
	filtered := products.Filter(demoCatalog(q.Keywords, s.tag, s.marketplace), q.Filters())
	if len(filtered) > q.ItemCount {
		filtered = filtered[:q.ItemCount]
	}
	return okResult(filtered)
}

func (s *Service) liveSearch(ctx context.Context, q Query) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "catalog search panicked", "keywords", q.Keywords, "panic", r)
			res = errorResult(apiErrorPrefix + fmt.Sprint(r))
		}
	}()

	req := paapi.SearchRequest{
		Keywords:    q.Keywords,
		SearchIndex: q.Category,
		ItemCount:   q.ItemCount,
		Resources:   paapi.DefaultResources,
	}
	if q.MaxPrice != nil {
		cents := MinorUnits(*q.MaxPrice)
		req.MaxPrice = &cents
	}

	start := time.Now()
	resp, err := s.api.SearchItems(ctx, req)
	s.recorder.CatalogRequest(paapi.OperationSearchItems, time.Since(start), err)
	if err != nil {
		slog.ErrorContext(ctx, "catalog search failed", "keywords", q.Keywords, "category", q.Category, "error", err)
		return errorResult(apiErrorPrefix + err.Error())
	}

	items, ok := itemList(resp, "SearchResult", "Items")
	if !ok {
		return errorResult(NoResultsMessage)
	}

	normalized := s.normalizeAll(ctx, items)
	filtered := products.Filter(normalized, q.Filters())
	slog.InfoContext(ctx, "catalog search served", "keywords", q.Keywords, "returned", len(items), "kept", len(filtered))
	return okResult(filtered)
}

// GetItem returns nil in demo mode, on any failure, or when the item is unknown.
func (s *Service) GetItem(ctx context.Context, asin string) (p *products.Product) {
	asin = strings.TrimSpace(asin)
	if s.mode == ModeDemo || asin == "" {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "catalog lookup panicked", "asin", asin, "panic", r)
			p = nil
		}
	}()

	start := time.Now()
	resp, err := s.api.GetItems(ctx, paapi.GetItemsRequest{
		ItemIDs:   []string{asin},
		Resources: paapi.DefaultResources,
	})
	s.recorder.CatalogRequest(paapi.OperationGetItems, time.Since(start), err)
	if err != nil {
		slog.ErrorContext(ctx, "catalog lookup failed", "asin", asin, "error", err)
		return nil
	}

	items, ok := itemList(resp, "ItemsResult", "Items")
	if !ok || len(items) == 0 {
		return nil
	}
	normalized := s.normalizeAll(ctx, items[:1])
	if len(normalized) == 0 {
		return nil
	}
	return &normalized[0]
}

func (s *Service) normalizeAll(ctx context.Context, items []any) []products.Product {
	out, rejected := products.NormalizeAll(items, s.normalize)
	if rejected > 0 {
		slog.WarnContext(ctx, "skipped catalog items without an ASIN", "count", rejected)
		s.recorder.ItemsRejected(rejected)
	}
	return out
}

// itemList reads the item container at path. A missing container reports
// false; a present but empty one reports true.
func itemList(resp paapi.Response, path ...any) ([]any, bool) {
	v, ok := dig.Get(resp, path...)
	if !ok {
		return nil, false
	}
	switch items := v.(type) {
	case []any:
		return items, true
	case []map[string]any:
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = item
		}
		return out, true
	}
	return nil, false
}

type nopRecorder struct{}

func (nopRecorder) SearchCompleted(string, string)              {}
func (nopRecorder) CatalogRequest(string, time.Duration, error) {}
func (nopRecorder) ItemsRejected(int)                           {}
func (nopRecorder) CacheLookup(string)                          {}
