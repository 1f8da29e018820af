// Package metrics records the outcome of a single hook run and pushes it to
// a Prometheus Pushgateway. A hook process lives for milliseconds, so there
// is nothing to scrape; gauges describe the last run per event type.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Job is the Pushgateway job label.
const Job = "hookrelay"

type Recorder struct {
	registry *prometheus.Registry

	lastRun      *prometheus.GaugeVec
	lastSuccess  *prometheus.GaugeVec
	lastDuration *prometheus.GaugeVec
	lastChat     *prometheus.GaugeVec

	pushURL   string
	sourceApp string
	client    *http.Client
}

// New creates a Recorder. An empty pushgatewayURL makes Push a no-op.
func New(pushgatewayURL, sourceApp string, timeout time.Duration) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hookrelay_last_run_timestamp_seconds",
				Help: "Unix time of the last hook run",
			},
			[]string{"hook_event_type"},
		),
		lastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hookrelay_last_delivery_success",
				Help: "1 if the last envelope was delivered, 0 otherwise",
			},
			[]string{"hook_event_type"},
		),
		lastDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hookrelay_last_delivery_duration_seconds",
				Help: "Duration of the last delivery attempt in seconds",
			},
			[]string{"hook_event_type"},
		),
		lastChat: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hookrelay_last_chat_messages",
				Help: "Transcript messages attached to the last envelope",
			},
			[]string{"hook_event_type"},
		),
		pushURL:   pushgatewayURL,
		sourceApp: sourceApp,
		client:    &http.Client{Timeout: timeout},
	}

	r.registry.MustRegister(r.lastRun, r.lastSuccess, r.lastDuration, r.lastChat)
	return r
}

// Enabled reports whether Push will contact a gateway.
func (r *Recorder) Enabled() bool {
	return r.pushURL != ""
}

// Observe records one run.
func (r *Recorder) Observe(eventType string, at time.Time, delivered bool, took time.Duration, chatMessages int) {
	r.lastRun.WithLabelValues(eventType).Set(float64(at.UnixMilli()) / 1000)
	success := 0.0
	if delivered {
		success = 1
	}
	r.lastSuccess.WithLabelValues(eventType).Set(success)
	r.lastDuration.WithLabelValues(eventType).Set(took.Seconds())
	r.lastChat.WithLabelValues(eventType).Set(float64(chatMessages))
}

// Push sends the recorded gauges, replacing earlier values for the same
// metric names in this source app's group.
func (r *Recorder) Push(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}
	return push.New(r.pushURL, Job).
		Client(r.client).
		Gatherer(r.registry).
		Grouping("source_app", r.sourceApp).
		AddContext(ctx)
}

// Gatherer exposes the registry, mainly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}
