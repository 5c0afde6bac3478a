// Package web serves the search pages and the JSON API.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"primefinder/internal/affiliate"
	"primefinder/internal/config"
	"primefinder/internal/products"
	"primefinder/internal/search"
	"primefinder/internal/templates"

	"github.com/samber/lo"
)

const enterKeywordsMessage = "Enter keywords to search"

var asinPattern = regexp.MustCompile(`^[A-Z0-9]{10}$`)

type Handler struct {
	searcher    search.Searcher
	tag         string
	marketplace string
	started     time.Time
	now         func() time.Time
}

func NewHandler(cfg *config.Config, searcher search.Searcher) *Handler {
	marketplace := cfg.Catalog.Marketplace
	if marketplace == "" {
		marketplace = affiliate.DefaultMarketplace
	}
	return &Handler{
		searcher:    searcher,
		tag:         cfg.Catalog.AssociateTag,
		marketplace: marketplace,
		started:     time.Now(),
		now:         time.Now,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleHome)
	mux.HandleFunc("GET /about", h.handleAbout)
	mux.HandleFunc("GET /search", h.handleSearchPage)
	mux.HandleFunc("POST /search", h.handleSearchPage)
	mux.HandleFunc("GET /api/search", h.handleAPISearch)
	mux.HandleFunc("GET /api/items/{asin}", h.handleAPIItem)
	mux.HandleFunc("GET /api/link", h.handleAPILink)
	mux.HandleFunc("GET /go/{asin}", h.handleGo)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("/", h.handleNotFound)
}

type pageData struct {
	Query      search.Query
	Categories []config.Category
	Products   []products.Product
	Count      int
	Error      string
}

func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Query:      search.Query{Category: search.DefaultCategory},
		Categories: config.Categories,
	}
	render(w, r, templates.Home, http.StatusOK, data)
}

func (h *Handler) handleAbout(w http.ResponseWriter, r *http.Request) {
	render(w, r, templates.About, http.StatusOK, nil)
}

func (h *Handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	render(w, r, templates.NotFound, http.StatusNotFound, nil)
}

// handleSearchPage reads checkboxes as "on" from the form and "true" from
// query strings. Unreadable numbers are ignored.
func (h *Handler) handleSearchPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	checked := lo.Ternary(r.Method == http.MethodPost, "on", "true")
	q, err := parseQuery(r.Form, checked)
	if err != nil {
		slog.InfoContext(ctx, "ignoring invalid search parameter", "error", err)
	}
	if !config.IsCategory(q.Category) {
		q.Category = search.DefaultCategory
	}

	data := pageData{Query: q, Categories: config.Categories}
	if strings.TrimSpace(q.Keywords) == "" {
		data.Error = enterKeywordsMessage
		render(w, r, templates.Results, http.StatusOK, data)
		return
	}

	res := h.searcher.Search(ctx, q)
	data.Products = res.Products
	data.Count = res.Count
	if res.Error != nil {
		data.Error = *res.Error
	}
	render(w, r, templates.Results, http.StatusOK, data)
}

func (h *Handler) handleAPISearch(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query(), "true")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(q.Keywords) == "" {
		writeError(w, r, http.StatusBadRequest, search.MissingKeywordsMessage)
		return
	}
	if !config.IsCategory(q.Category) {
		writeError(w, r, http.StatusBadRequest, "unknown category "+strconv.Quote(q.Category))
		return
	}

	res := h.searcher.Search(r.Context(), q)
	if res.Error != nil {
		writeError(w, r, http.StatusInternalServerError, *res.Error)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"success":  true,
		"products": res.Products,
		"count":    res.Count,
	})
}

func (h *Handler) handleAPIItem(w http.ResponseWriter, r *http.Request) {
	asin := strings.ToUpper(r.PathValue("asin"))
	if !asinPattern.MatchString(asin) {
		writeError(w, r, http.StatusBadRequest, "invalid ASIN")
		return
	}
	p := h.searcher.GetItem(r.Context(), asin)
	if p == nil {
		writeError(w, r, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"success": true,
		"product": p,
	})
}

// handleAPILink credits an Amazon url to the configured associate tag.
func (h *Handler) handleAPILink(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if !affiliate.IsAmazonURL(raw) {
		writeError(w, r, http.StatusBadRequest, "not an Amazon url")
		return
	}
	asin, _ := affiliate.ExtractASIN(raw)
	writeJSON(w, r, http.StatusOK, map[string]any{
		"success": true,
		"url":     affiliate.TagURL(raw, h.tag),
		"asin":    asin,
	})
}

func (h *Handler) handleGo(w http.ResponseWriter, r *http.Request) {
	asin := strings.ToUpper(r.PathValue("asin"))
	if !asinPattern.MatchString(asin) {
		http.Error(w, "invalid ASIN", http.StatusBadRequest)
		return
	}
	target := affiliate.GenerateLink(asin, h.tag, h.marketplace)
	if target == "" {
		target = "https://" + h.marketplace + "/dp/" + asin
	}
	slog.InfoContext(r.Context(), "affiliate redirect", "asin", asin)
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": now.UTC().Format(time.RFC3339),
		"uptime":    int64(now.Sub(h.started).Seconds()),
		"mode":      h.searcher.Mode(),
	})
}

var errInvalidNumber = errors.New("invalid number")

// parseQuery reads a search from form or query values. Checkboxes count as
// set when their value equals checked. Invalid numbers are left unset and
// reported.
func parseQuery(values map[string][]string, checked string) (search.Query, error) {
	get := func(key string) string {
		if v := values[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}
	q := search.Query{
		Keywords:     get("keywords"),
		Category:     lo.CoalesceOrEmpty(get("category"), search.DefaultCategory),
		PrimeOnly:    get("prime_only") == checked,
		DiscountOnly: get("discount_only") == checked,
	}

	var errs []error
	if raw := get("max_price"); raw != "" {
		price, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
		if err != nil || math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
			errs = append(errs, fmt.Errorf("%w: max_price must be a finite non-negative number", errInvalidNumber))
		} else {
			q.MaxPrice = &price
		}
	}
	if raw := get("count"); raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: count must be an integer", errInvalidNumber))
		} else {
			q.ItemCount = count
		}
	}
	return q, errors.Join(errs...)
}

func render(w http.ResponseWriter, r *http.Request, tmpl *template.Template, status int, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		slog.ErrorContext(r.Context(), "template execute error", "template", tmpl.Name(), "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]any{
		"success": false,
		"error":   msg,
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to write json response", "error", err)
	}
}
