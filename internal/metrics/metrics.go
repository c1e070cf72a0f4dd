// Package metrics holds the Prometheus instruments for the reading pipeline.
//
// All recording methods are safe on a nil *Metrics so services can be built
// without instrumentation in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storyreader"

// OCR attempt outcomes.
const (
	OutcomeText    = "text"
	OutcomeRefusal = "refusal"
	OutcomeError   = "error"
)

// Synthesis modes.
const (
	ModeModel = "model"
	ModeMock  = "mock"
	ModeEmpty = "empty"
)

// Metrics groups the pipeline instruments.
type Metrics struct {
	ocrAttempts     *prometheus.CounterVec
	ocrFallbacks    prometheus.Counter
	ocrFailures     *prometheus.CounterVec
	ttsRequests     *prometheus.CounterVec
	ttsDegradations *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	modelLoaded     prometheus.Gauge
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ocrAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ocr_attempts_total",
			Help:      "Vision model calls by model and outcome.",
		}, []string{"model", "outcome"}),
		ocrFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ocr_fallbacks_total",
			Help:      "Extractions retried on the fallback model.",
		}),
		ocrFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ocr_failures_total",
			Help:      "Extractions that produced no usable text.",
		}, []string{"reason"}),
		ttsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tts_requests_total",
			Help:      "Synthesis requests by audio source.",
		}, []string{"mode"}),
		ttsDegradations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tts_degradations_total",
			Help:      "Synthesis requests answered with mock audio, by reason.",
		}, []string{"reason"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Latency of pipeline stages.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		modelLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tts_model_loaded",
			Help:      "1 when the speech model is loaded.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ocrAttempts,
			m.ocrFallbacks,
			m.ocrFailures,
			m.ttsRequests,
			m.ttsDegradations,
			m.stageDuration,
			m.modelLoaded,
		)
	}
	return m
}

func (m *Metrics) OCRAttempt(model, outcome string) {
	if m == nil {
		return
	}
	m.ocrAttempts.WithLabelValues(model, outcome).Inc()
}

func (m *Metrics) OCRFallback() {
	if m == nil {
		return
	}
	m.ocrFallbacks.Inc()
}

func (m *Metrics) OCRFailure(reason string) {
	if m == nil {
		return
	}
	m.ocrFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) TTSRequest(mode string) {
	if m == nil {
		return
	}
	m.ttsRequests.WithLabelValues(mode).Inc()
}

func (m *Metrics) TTSDegraded(reason string) {
	if m == nil {
		return
	}
	m.ttsDegradations.WithLabelValues(reason).Inc()
}

// ObserveStage records how long a stage took since start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) SetModelLoaded(loaded bool) {
	if m == nil {
		return
	}
	if loaded {
		m.modelLoaded.Set(1)
	} else {
		m.modelLoaded.Set(0)
	}
}
