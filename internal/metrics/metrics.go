package metrics

import (
	"errors"
	"net/http"
	"time"

	"primefinder/internal/paapi"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg            *prometheus.Registry
	Searches       *prometheus.CounterVec
	CatalogLatency *prometheus.HistogramVec
	Rejected       prometheus.Counter
	CacheLookups   *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	searches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "primefinder_searches_total",
		Help: "Searches served, by catalog mode and outcome.",
	}, []string{"mode", "outcome"})
	catalogLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "primefinder_catalog_request_seconds",
		Help:    "Product Advertising API call latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "primefinder_items_rejected_total",
		Help: "Catalog items dropped because they could not be normalized.",
	})
	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "primefinder_cache_lookups_total",
		Help: "Search cache lookups by result.",
	}, []string{"result"})

	r.MustRegister(
		searches, catalogLatency, rejected, cacheLookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{
		reg:            r,
		Searches:       searches,
		CatalogLatency: catalogLatency,
		Rejected:       rejected,
		CacheLookups:   cacheLookups,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

// Registerer lets HTTP middleware register its collectors alongside ours.
func (r *Registry) Registerer() prometheus.Registerer { return r.reg }

func (r *Registry) SearchCompleted(mode, outcome string) {
	r.Searches.WithLabelValues(mode, outcome).Inc()
}

// CatalogRequest observes one API call under status ok, throttled or error.
func (r *Registry) CatalogRequest(operation string, d time.Duration, err error) {
	status := "ok"
	var statusErr *paapi.StatusError
	switch {
	case errors.As(err, &statusErr) && statusErr.Throttled():
		status = "throttled"
	case err != nil:
		status = "error"
	}
	r.CatalogLatency.WithLabelValues(operation, status).Observe(d.Seconds())
}

func (r *Registry) ItemsRejected(n int) {
	if n > 0 {
		r.Rejected.Add(float64(n))
	}
}

func (r *Registry) CacheLookup(result string) {
	r.CacheLookups.WithLabelValues(result).Inc()
}
