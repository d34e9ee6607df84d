// Package observability exposes Prometheus metrics for briefing runs.
package observability

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "rallybrief"

// Metrics tracks operational metrics for briefing runs. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	// Run metrics
	RunsTotal     *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	StageFailures *prometheus.CounterVec

	// Crawl metrics
	ResolveAttempts *prometheus.CounterVec
	LinesExtracted  *prometheus.CounterVec

	// Delivery metrics
	BytesDownloaded prometheus.Counter
	Downloads       *prometheus.CounterVec
	LLMCalls        *prometheus.CounterVec
	LLMDuration     prometheus.Histogram
	Forwards        *prometheus.CounterVec

	logger *slog.Logger
}

// NewMetrics creates a Metrics instance on its own registry, so repeated
// construction in tests never collides with the default registerer.
func NewMetrics(logger *slog.Logger) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		reg:    reg,
		logger: logger.With("component", "metrics"),
	}

	m.RunsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "runs_total",
		Help:      "Pipeline runs by pipeline and final state",
	}, []string{"pipeline", "state"})

	m.StageDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stages in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"pipeline", "stage"})

	m.StageFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "stage_failures_total",
		Help:      "Failed pipeline stages",
	}, []string{"pipeline", "stage"})

	m.ResolveAttempts = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "resolve_attempts_total",
		Help:      "Search attempts by outcome",
	}, []string{"outcome"})

	m.LinesExtracted = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "lines_extracted_total",
		Help:      "Marked lines extracted by strategy",
	}, []string{"strategy"})

	m.BytesDownloaded = factory.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "bytes_downloaded_total",
		Help:      "Bytes of PDF attachments downloaded",
	})

	m.Downloads = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "downloads_total",
		Help:      "Attachment downloads by outcome",
	}, []string{"outcome"})

	m.LLMCalls = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "llm_calls_total",
		Help:      "Language model calls by model and outcome",
	}, []string{"model", "outcome"})

	m.LLMDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "llm_duration_seconds",
		Help:      "Language model call latency",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	m.Forwards = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "forwards_total",
		Help:      "Analysis deliveries by outcome",
	}, []string{"outcome"})

	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveStage records the duration of a stage and whether it failed.
func (m *Metrics) ObserveStage(pipeline, stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(pipeline, stage).Observe(d.Seconds())
	if err != nil {
		m.StageFailures.WithLabelValues(pipeline, stage).Inc()
	}
}

// RunFinished counts a completed run by its final state.
func (m *Metrics) RunFinished(pipeline, state string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(pipeline, state).Inc()
}

// ResolveTried counts search attempts; found reports whether the last one
// produced an article.
func (m *Metrics) ResolveTried(attempts int, found bool) {
	if m == nil || attempts <= 0 {
		return
	}
	missed := attempts
	if found {
		m.ResolveAttempts.WithLabelValues("found").Inc()
		missed--
	}
	m.ResolveAttempts.WithLabelValues("missed").Add(float64(missed))
}

// Extracted counts lines produced by a strategy.
func (m *Metrics) Extracted(strategy string, lines int) {
	if m == nil {
		return
	}
	m.LinesExtracted.WithLabelValues(strategy).Add(float64(lines))
}

// Downloaded records an attachment download.
func (m *Metrics) Downloaded(bytes int64, err error) {
	if m == nil {
		return
	}
	m.Downloads.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		m.BytesDownloaded.Add(float64(bytes))
	}
}

// LLMCall records a language model call.
func (m *Metrics) LLMCall(model string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.LLMCalls.WithLabelValues(model, outcome(err)).Inc()
	m.LLMDuration.Observe(d.Seconds())
}

// Forwarded records a delivery attempt to the downstream server.
func (m *Metrics) Forwarded(err error) {
	if m == nil {
		return
	}
	m.Forwards.WithLabelValues(outcome(err)).Inc()
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{
		ErrorLog:      slog.NewLogLogger(m.logger.Handler(), slog.LevelError),
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Snapshot returns the rallybrief counters summed over their labels.
func (m *Metrics) Snapshot() map[string]float64 {
	out := map[string]float64{}
	if m == nil {
		return out
	}
	families, err := m.reg.Gather()
	if err != nil {
		m.logger.Warn("gather metrics", "error", err)
	}
	prefix := Namespace + "_"
	for _, mf := range families {
		name := mf.GetName()
		if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				out[name[len(prefix):]] += c.GetValue()
			}
		}
	}
	return out
}
