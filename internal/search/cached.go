package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"primefinder/internal/cache"
	"primefinder/internal/products"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"
)

const (
	searchKeyPrefix = "search/"
	itemKeyPrefix   = "item/"
)

// CachedSearcher serves repeated live searches from a cache. Only successful
// results are stored, and concurrent identical misses share one upstream call.
// Cache failures are logged and bypassed.
type CachedSearcher struct {
	next     Searcher
	cache    cache.Cache
	ttl      time.Duration
	recorder Recorder
	group    singleflight.Group
}

var _ Searcher = (*CachedSearcher)(nil)

// NewCached wraps next. A nil cache returns next unchanged.
func NewCached(next Searcher, c cache.Cache, ttl time.Duration, recorder Recorder) Searcher {
	if c == nil {
		return next
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &CachedSearcher{next: next, cache: c, ttl: ttl, recorder: recorder}
}

func (cs *CachedSearcher) Mode() Mode {
	return cs.next.Mode()
}

func (cs *CachedSearcher) Search(ctx context.Context, q Query) Result {
	q = q.Normalize()
	if q.Keywords == "" || cs.next.Mode() == ModeDemo {
		return cs.next.Search(ctx, q)
	}
	key := SearchKey(cs.next.Mode(), q)

	var cached Result
	if cs.load(ctx, key, &cached) {
		cs.recorder.CacheLookup("hit")
		return cached
	}
	cs.recorder.CacheLookup("miss")

	v, _, shared := cs.group.Do(key, func() (any, error) {
		// one caller going away must not fail the others
		res := cs.next.Search(context.WithoutCancel(ctx), q)
		if !res.Failed() {
			cs.store(ctx, key, res)
		}
		return res, nil
	})
	if shared {
		slog.DebugContext(ctx, "shared in-flight search", "key", key)
	}
	return v.(Result)
}

func (cs *CachedSearcher) GetItem(ctx context.Context, asin string) *products.Product {
	asin = strings.TrimSpace(asin)
	if asin == "" || cs.next.Mode() == ModeDemo {
		return cs.next.GetItem(ctx, asin)
	}
	key := itemKeyPrefix + asin

	var cached products.Product
	if cs.load(ctx, key, &cached) {
		cs.recorder.CacheLookup("hit")
		return &cached
	}
	cs.recorder.CacheLookup("miss")

	v, _, _ := cs.group.Do(key, func() (any, error) {
		p := cs.next.GetItem(context.WithoutCancel(ctx), asin)
		if p != nil {
			cs.store(ctx, key, p)
		}
		return p, nil
	})
	return v.(*products.Product)
}

func (cs *CachedSearcher) load(ctx context.Context, key string, out any) bool {
	raw, err := cache.GetString(ctx, cs.cache, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			slog.WarnContext(ctx, "cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		slog.WarnContext(ctx, "discarding unreadable cache entry", "key", key, "error", err)
		_ = cs.cache.Delete(ctx, key)
		return false
	}
	return true
}

func (cs *CachedSearcher) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.WarnContext(ctx, "cache encode failed", "key", key, "error", err)
		return
	}
	if err := cs.cache.Put(context.WithoutCancel(ctx), key, string(data), cache.PutOptions{TTL: cs.ttl}); err != nil {
		slog.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
}

// SearchKey identifies a normalized query. Keywords that differ only in
// case, accents or spacing share a key.
func SearchKey(mode Mode, q Query) string {
	maxPrice := ""
	if q.MaxPrice != nil && finite(*q.MaxPrice) {
		maxPrice = decimal.NewFromFloat(*q.MaxPrice).StringFixed(2)
	}
	raw := fmt.Sprintf("%s|%s|%s|%d|%s|%t|%t",
		mode, FoldKeywords(q.Keywords), q.Category, q.ItemCount, maxPrice, q.PrimeOnly, q.DiscountOnly)
	sum := sha256.Sum256([]byte(raw))
	return searchKeyPrefix + hex.EncodeToString(sum[:])
}

// FoldKeywords lowercases, strips accents and collapses whitespace.
func FoldKeywords(s string) string {
	t := norm.NFD.String(strings.ToLower(s))
	var b strings.Builder
	for _, r := range t {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
