// Package static serves the embedded stylesheet, script and images.
package static

import (
	"crypto/sha256"
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
)

//go:embed style.css
var styleCSS []byte

//go:embed app.js
var appJS []byte

//go:embed favicon.png
var favicon []byte

//go:embed images/placeholder.png
var placeholder []byte

// StyleAssetPath and ScriptAssetPath carry a content hash so they can be
// cached forever.
var StyleAssetPath, ScriptAssetPath string

// PlaceholderPath is shown when a product has no image.
const PlaceholderPath = "/static/images/placeholder.png"

func Init() {
	StyleAssetPath = hashedPath("style", "css", styleCSS)
	ScriptAssetPath = hashedPath("app", "js", appJS)
}

func hashedPath(name, ext string, data []byte) string {
	sum := fmt.Sprintf("%x", sha256.Sum256(data))
	return fmt.Sprintf("/static/%s.%s.%s", name, sum[:12], ext)
}

// Register serves the static assets. Init must run first.
func Register(mux *http.ServeMux) {
	if StyleAssetPath == "" {
		Init()
	}
	mux.HandleFunc(StyleAssetPath, serve("text/css; charset=utf-8", styleCSS))
	mux.HandleFunc(ScriptAssetPath, serve("application/javascript; charset=utf-8", appJS))
	mux.HandleFunc(PlaceholderPath, serve("image/png", placeholder))
	mux.HandleFunc("/favicon.ico", serve("image/png", favicon))
}

func serve(contentType string, body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		if _, err := w.Write(body); err != nil {
			slog.ErrorContext(r.Context(), "failed to write static asset", "path", r.URL.Path, "error", err)
		}
	}
}
