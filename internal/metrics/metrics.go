package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Pipeline metrics
	GenerationsTotal *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	ImagesFetched    prometheus.Counter
	ImagesDeduped    prometheus.Counter
	FramesEncoded    prometheus.Counter
	GifBytes         prometheus.Histogram
	StatusChecks     *prometheus.CounterVec

	// Queue metrics
	TasksEnqueued  *prometheus.CounterVec
	TasksProcessed *prometheus.CounterVec
}

// New registers all collectors on a fresh registry, so several instances can coexist in tests.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runreel_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "runreel_http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 15, 60},
			},
			[]string{"method", "path"},
		),

		GenerationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runreel_gif_generations_total",
				Help: "Gif generations by result",
			},
			[]string{"result"}, // "success" or an error kind
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "runreel_gif_stage_duration_seconds",
				Help:    "Duration of gif pipeline stages",
				Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		ImagesFetched: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "runreel_images_fetched_total",
				Help: "Total images downloaded",
			},
		),
		ImagesDeduped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "runreel_images_deduped_total",
				Help: "Total downloaded images dropped as byte-identical duplicates",
			},
		),
		FramesEncoded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "runreel_frames_encoded_total",
				Help: "Total gif frames encoded",
			},
		),
		GifBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "runreel_gif_bytes",
				Help:    "Size of published gifs",
				Buckets: prometheus.ExponentialBuckets(64<<10, 2, 10),
			},
		),
		StatusChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runreel_gif_status_checks_total",
				Help: "Gif status checks by reported status",
			},
			[]string{"status"},
		),

		TasksEnqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runreel_tasks_enqueued_total",
				Help: "Tasks handed to the queue",
			},
			[]string{"type", "result"}, // "enqueued", "collapsed" or "error"
		),
		TasksProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runreel_tasks_processed_total",
				Help: "Tasks consumed by workers",
			},
			[]string{"type", "result"},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
