package templates

import (
	"embed"
	"html/template"
	"math"
	"strings"

	"primefinder/internal/config"
	"primefinder/internal/products"
)

//go:embed *.html
var htmlFiles embed.FS

var Home,
	Results,
	About,
	NotFound *template.Template

// Init parses the embedded pages. Asset paths come from the static package.
func Init(cfg *config.Config, styleAssetPath, scriptAssetPath string) error {
	symbol := cfg.Catalog.CurrencySymbol
	funcs := template.FuncMap{
		"formatPrice":     func(amount *float64) string { return products.FormatPrice(amount, symbol) },
		"stars":           Stars,
		"demoMode":        cfg.DemoMode,
		"StyleAssetPath":  func() string { return styleAssetPath },
		"ScriptAssetPath": func() string { return scriptAssetPath },
	}
	tmpls, err := template.New("all").Funcs(funcs).ParseFS(htmlFiles, "*.html")
	if err != nil {
		return err
	}
	Home = ensure(tmpls, "home.html")
	Results = ensure(tmpls, "results.html")
	About = ensure(tmpls, "about.html")
	NotFound = ensure(tmpls, "notfound.html")
	return nil
}

func ensure(templates *template.Template, name string) *template.Template {
	tmpl := templates.Lookup(name)
	if tmpl == nil {
		panic("template " + name + " not found")
	}
	return tmpl
}

// Stars renders a 0-5 rating as full, half and empty stars, e.g. 4.5 -> "★★★★½".
// A zero rating renders as "".
func Stars(rating float64) string {
	if rating <= 0 || math.IsNaN(rating) {
		return ""
	}
	rating = math.Min(rating, 5)
	full := int(rating)
	half := 0
	if rating-float64(full) >= 0.5 {
		half = 1
	}
	out := strings.Repeat("★", full)
	if half == 1 {
		out += "½"
	}
	return out + strings.Repeat("☆", 5-full-half)
}
