// Package sitemap serves robots.txt and a sitemap of the public pages.
package sitemap

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"primefinder/internal/config"
	"primefinder/internal/search"
)

const robots = `User-agent: *
Allow: /
Disallow: /api/
Disallow: /go/

Sitemap: %s/sitemap.xml
`

type Server struct {
	origin string
}

func New(publicURL string) *Server {
	return &Server{origin: strings.TrimRight(publicURL, "/")}
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /sitemap.xml", s.handleSitemap)
	mux.HandleFunc("GET /robots.txt", s.handleRobots)
}

type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	Xmlns   string     `xml:"xmlns,attr"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Loc        string `xml:"loc"`
	ChangeFreq string `xml:"changefreq,omitempty"`
}

// entries lists the home and about pages plus one browse page per category.
// Affiliate redirects and the JSON API are not crawlable.
func (s *Server) entries() []urlEntry {
	out := []urlEntry{
		{Loc: s.origin + "/", ChangeFreq: "daily"},
		{Loc: s.origin + "/about", ChangeFreq: "monthly"},
	}
	for _, c := range config.Categories {
		if c.Index == search.DefaultCategory {
			continue
		}
		out = append(out, urlEntry{
			Loc:        s.origin + "/search?category=" + c.Index + "&keywords=" + strings.ToLower(strings.ReplaceAll(c.Label, " ", "+")),
			ChangeFreq: "daily",
		})
	}
	return out
}

func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	entries := s.entries()
	slog.InfoContext(r.Context(), "serving sitemap", "count", len(entries))

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	if _, err := w.Write([]byte(xml.Header)); err != nil {
		slog.ErrorContext(r.Context(), "failed to write sitemap header", "error", err)
		return
	}
	if err := xml.NewEncoder(w).Encode(urlSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  entries,
	}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode sitemap", "error", err)
	}
}

func (s *Server) handleRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := fmt.Fprintf(w, robots, s.origin); err != nil {
		slog.ErrorContext(r.Context(), "failed to write robots.txt", "error", err)
	}
}
