package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "libreria"

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	uploads         *prometheus.CounterVec
	downloads       *prometheus.CounterVec
	categoryCache   *prometheus.CounterVec
	visits          *prometheus.CounterVec
	sweptFiles      prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
		}, []string{"method", "route"}),
		uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "uploads_total",
			Help:      "Uploads by origin and outcome",
		}, []string{"origin", "outcome"}),
		downloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "downloads_total",
			Help:      "Resolved downloads by kind (redirect, stream, not_found, error)",
		}, []string{"kind"}),
		categoryCache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "category_cache_requests_total",
			Help:      "Category cache lookups by result (hit, miss)",
		}, []string{"result"}),
		visits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "visits",
			Name:      "registrations_total",
			Help:      "Visit registrations by result (new, repeat)",
		}, []string{"result"}),
		sweptFiles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "swept_files_total",
			Help:      "Orphaned payload files removed by the sweep",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records count and latency per route. Unmatched routes are
// grouped under "unmatched" to keep label cardinality bounded.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.requestCounter.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveUpload(origin string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.uploads.WithLabelValues(origin, outcome).Inc()
}

func (m *Metrics) ObserveDownload(kind string) {
	m.downloads.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveCategoryCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.categoryCache.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveVisit(isNew bool) {
	result := "repeat"
	if isNew {
		result = "new"
	}
	m.visits.WithLabelValues(result).Inc()
}

func (m *Metrics) AddSweptFiles(n int) {
	m.sweptFiles.Add(float64(n))
}
