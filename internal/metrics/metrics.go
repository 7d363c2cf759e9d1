package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RefreshTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sitemap_refresh_total",
		Help: "Total number of wholesale data refreshes",
	})
	RefreshStaleTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sitemap_refresh_stale_total",
		Help: "Refresh results discarded because a newer refresh started",
	})
	RefreshDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sitemap_refresh_duration_ms",
		Help:    "Refresh duration in milliseconds",
		Buckets: []float64{5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000},
	})
	SourceFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitemap_source_fail_total",
		Help: "Boundary read failures absorbed by degrading to empty data",
	}, []string{"source"})
	SitesCanonical = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sitemap_sites_canonical",
		Help: "Number of canonical site entries after the last refresh",
	})
	VisibleTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sitemap_visible_total",
		Help: "Total filter+rank computations of the visible list",
	})
	VisibleDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sitemap_visible_duration_ms",
		Help:    "Filter+rank duration in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 50},
	})
	ConfirmTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitemap_confirm_total",
		Help: "Selection confirm attempts by result",
	}, []string{"result"})
	PulseTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitemap_pulse_total",
		Help: "Highlight pulse sequences by outcome",
	}, []string{"outcome"})
	ZonesCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitemap_zones_cache_total",
		Help: "Geometry feed cache lookups by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(RefreshTotal)
	prometheus.MustRegister(RefreshStaleTotal)
	prometheus.MustRegister(RefreshDurationMs)
	prometheus.MustRegister(SourceFailTotal)
	prometheus.MustRegister(SitesCanonical)
	prometheus.MustRegister(VisibleTotal)
	prometheus.MustRegister(VisibleDurationMs)
	prometheus.MustRegister(ConfirmTotal)
	prometheus.MustRegister(PulseTotal)
	prometheus.MustRegister(ZonesCacheTotal)
}

// 文档注释：返回 Prometheus 指标监听器，在主入口挂载到 <API_BASE>/metrics
func Handler() http.Handler { return promhttp.Handler() }
