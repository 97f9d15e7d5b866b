// Package metrics holds the Prometheus collectors exported on the admin listener.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ProviderAttempts counts provider calls by model and outcome (ok, retryable, failed, canceled).
	ProviderAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionhub_provider_attempts_total",
		Help: "Generation provider attempts by model and outcome",
	}, []string{"model", "outcome"})

	GenerationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "visionhub_generation_duration_seconds",
		Help:    "End-to-end generation latency including upload and metadata write",
		Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160, 320},
	}, []string{"kind", "status"})

	GeneratedItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionhub_generated_items_total",
		Help: "Media items persisted by kind",
	}, []string{"kind"})

	CreditsDebited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "visionhub_credits_debited_total",
		Help: "Credits spent on video generation",
	})

	CreditsGranted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionhub_credits_granted_total",
		Help: "Credits added to balances by source",
	}, []string{"source"})

	InsufficientCredits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "visionhub_insufficient_credit_rejections_total",
		Help: "Video requests rejected for lack of credits",
	})

	PaymentSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionhub_payment_submissions_total",
		Help: "Payment submissions by event (submitted, approved)",
	}, []string{"event"})

	GalleryStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "visionhub_gallery_streams",
		Help: "Open gallery websocket streams",
	})
)

// ObserveGeneration returns a func that records the latency of one generation batch.
func ObserveGeneration(kind string) func(err *error) {
	start := time.Now()
	return func(err *error) {
		status := "ok"
		if err != nil && *err != nil {
			status = "error"
		}
		GenerationLatency.WithLabelValues(kind, status).Observe(time.Since(start).Seconds())
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
